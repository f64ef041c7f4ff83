package workflows

import (
	"context"

	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// SubmissionWorkflow maneja o reenvio assíncrono de lotes com falha de
// rede; lotes em ERROR voltam a READY e o envio é repetido
type SubmissionWorkflow struct {
	client inngestgo.Client
	logger *logrus.Logger
}

// NewSubmissionWorkflow cria uma nova instância do workflow de reenvio
func NewSubmissionWorkflow(client inngestgo.Client, logger *logrus.Logger) *SubmissionWorkflow {
	return &SubmissionWorkflow{
		client: client,
		logger: logger,
	}
}

// RetryBatch repete o envio de um lote que falhou por erro de rede
func (w *SubmissionWorkflow) RetryBatch(ctx context.Context, input inngestgo.Input[RetryBatchInput]) error {
	// TODO: chamar o BillingService quando o registro de workflows
	// estiver ativo; hoje o reenvio é disparado pela rota de retry
	w.logger.WithFields(logrus.Fields{
		"batch_id":    input.Event.Data.BatchID,
		"resume_from": input.Event.Data.ResumeFrom,
	}).Info("Batch retry workflow triggered")
	return nil
}

// RetryBatchInput representa o input para reenviar um lote
type RetryBatchInput struct {
	BatchID    string `json:"batch_id"`
	ResumeFrom string `json:"resume_from"`
}
