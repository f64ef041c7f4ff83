package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// batchTransitions define as transições legais do ciclo de vida do lote.
// ERROR→READY é a única aresta de reentrada.
var batchTransitions = map[models.BatchStatus][]models.BatchStatus{
	models.BatchStatusDraft:      {models.BatchStatusValidating},
	models.BatchStatusValidating: {models.BatchStatusReady, models.BatchStatusError},
	models.BatchStatusReady:      {models.BatchStatusSending},
	models.BatchStatusSending:    {models.BatchStatusSent, models.BatchStatusError},
	models.BatchStatusSent:       {models.BatchStatusProcessing},
	models.BatchStatusProcessing: {models.BatchStatusProcessed, models.BatchStatusPartial, models.BatchStatusError},
	models.BatchStatusError:      {models.BatchStatusReady},
}

// claimTransitions define as transições legais do ciclo de vida da guia
var claimTransitions = map[models.ClaimStatus][]models.ClaimStatus{
	models.ClaimStatusDraft:     {models.ClaimStatusValidated},
	models.ClaimStatusValidated: {models.ClaimStatusSubmitted},
	models.ClaimStatusSubmitted: {models.ClaimStatusUnderReview},
	models.ClaimStatusUnderReview: {
		models.ClaimStatusAuthorized,
		models.ClaimStatusDenied,
		models.ClaimStatusPartiallyDenied,
		models.ClaimStatusPaid,
	},
	models.ClaimStatusAuthorized:      {models.ClaimStatusPaid},
	models.ClaimStatusDenied:          {models.ClaimStatusAppealed},
	models.ClaimStatusPartiallyDenied: {models.ClaimStatusAppealed},
	models.ClaimStatusAppealed:        {models.ClaimStatusUnderReview},
}

// BatchTransitioner é o compare-and-set de status de lote na persistência
type BatchTransitioner interface {
	TransitionStatus(id uuid.UUID, from, to models.BatchStatus) error
}

// ClaimTransitioner é o compare-and-set de status de guia na persistência
type ClaimTransitioner interface {
	TransitionStatus(id uuid.UUID, from, to models.ClaimStatus) error
}

// LifecycleStateMachine aplica as transições de status de lotes e guias.
// A legalidade é conferida na tabela e a corrida é resolvida pelo
// compare-and-set do banco: de dois envios concorrentes, um perde.
type LifecycleStateMachine struct {
	batches BatchTransitioner
	claims  ClaimTransitioner
	logger  *logrus.Logger
}

// NewLifecycleStateMachine cria uma nova instância da máquina de estados
func NewLifecycleStateMachine(batches BatchTransitioner, claims ClaimTransitioner, logger *logrus.Logger) *LifecycleStateMachine {
	return &LifecycleStateMachine{
		batches: batches,
		claims:  claims,
		logger:  logger,
	}
}

// CanTransitionBatch indica se a transição de lote é legal
func CanTransitionBatch(from, to models.BatchStatus) bool {
	for _, allowed := range batchTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionClaim indica se a transição de guia é legal
func CanTransitionClaim(from, to models.ClaimStatus) bool {
	for _, allowed := range claimTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionBatch valida e aplica uma transição de status de lote
func (m *LifecycleStateMachine) TransitionBatch(id uuid.UUID, from, to models.BatchStatus) error {
	if !CanTransitionBatch(from, to) {
		return models.NewStateConflictError(
			fmt.Sprintf("illegal batch transition %s -> %s", from, to))
	}

	if err := m.batches.TransitionStatus(id, from, to); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"batch_id": id,
		"from":     from,
		"to":       to,
	}).Info("Batch status transitioned")

	return nil
}

// TransitionClaim valida e aplica uma transição de status de guia
func (m *LifecycleStateMachine) TransitionClaim(id uuid.UUID, from, to models.ClaimStatus) error {
	if !CanTransitionClaim(from, to) {
		return models.NewStateConflictError(
			fmt.Sprintf("illegal claim transition %s -> %s", from, to))
	}

	if err := m.claims.TransitionStatus(id, from, to); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"claim_id": id,
		"from":     from,
		"to":       to,
	}).Info("Claim status transitioned")

	return nil
}

// ApplyAppealOutcome reabre uma guia recorrida e aplica o desfecho da
// resposta do recurso. A guia volta a UNDER_REVIEW antes do novo
// desfecho; um desfecho pendente a deixa em análise.
func (m *LifecycleStateMachine) ApplyAppealOutcome(id uuid.UUID, outcome models.ClaimOutcome) error {
	if err := m.TransitionClaim(id, models.ClaimStatusAppealed, models.ClaimStatusUnderReview); err != nil {
		return err
	}

	target := ClaimStatusForOutcome(outcome)
	if target == models.ClaimStatusUnderReview {
		return nil
	}

	return m.TransitionClaim(id, models.ClaimStatusUnderReview, target)
}

// DeriveBatchStatus consolida o status final do lote a partir dos
// desfechos das guias: tudo negado vira ERROR, alguma negação vira
// PARTIAL, nenhuma vira PROCESSED
func DeriveBatchStatus(outcomes []models.ClaimOutcome) models.BatchStatus {
	if len(outcomes) == 0 {
		return models.BatchStatusError
	}

	denied := 0
	fullyDenied := 0
	for _, outcome := range outcomes {
		switch outcome {
		case models.ClaimOutcomeFullyDenied:
			fullyDenied++
			denied++
		case models.ClaimOutcomePartiallyDenied:
			denied++
		}
	}

	switch {
	case fullyDenied == len(outcomes):
		return models.BatchStatusError
	case denied > 0:
		return models.BatchStatusPartial
	default:
		return models.BatchStatusProcessed
	}
}

// ClaimStatusForOutcome mapeia o desfecho do demonstrativo para o status
// da guia
func ClaimStatusForOutcome(outcome models.ClaimOutcome) models.ClaimStatus {
	switch outcome {
	case models.ClaimOutcomeApproved:
		return models.ClaimStatusAuthorized
	case models.ClaimOutcomePartiallyDenied:
		return models.ClaimStatusPartiallyDenied
	case models.ClaimOutcomeFullyDenied:
		return models.ClaimStatusDenied
	default:
		return models.ClaimStatusUnderReview
	}
}
