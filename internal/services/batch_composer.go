package services

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"

	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// BatchComposer monta as mensagens TISS de envio de lote de guias e de
// recurso de glosa. A composição é determinística a partir dos dados do
// lote; nenhum estado é tocado.
type BatchComposer struct {
	tissVersion string
	logger      *logrus.Logger
}

// NewBatchComposer cria uma nova instância do compositor
func NewBatchComposer(tissVersion string, logger *logrus.Logger) *BatchComposer {
	if tissVersion == "" {
		tissVersion = "4.01.00"
	}
	return &BatchComposer{
		tissVersion: tissVersion,
		logger:      logger,
	}
}

// ComposeClaimBatch gera o XML mensagemTISS de envio de lote de guias,
// incluindo o epílogo com hash MD5 do corpo
func (c *BatchComposer) ComposeClaimBatch(batch *models.Batch, provider *models.Provider, operator *models.Operator) (string, error) {
	if len(batch.Claims) == 0 {
		return "", models.NewDataValidationError("batch has no claims", nil)
	}
	if provider == nil || operator == nil {
		return "", models.NewDataValidationError("batch is missing provider or operator data", nil)
	}

	now := time.Now()

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas">`)
	sb.WriteString(c.buildHeader(models.TransactionTypeClaimBatch, provider, operator, now))

	sb.WriteString(`<ans:prestadorParaOperadora><ans:loteGuias>`)
	sb.WriteString(fmt.Sprintf(`<ans:numeroLote>%s</ans:numeroLote>`, escapeXML(batch.BatchNumber)))
	sb.WriteString(`<ans:guiasTISS>`)

	for _, claim := range batch.Claims {
		sb.WriteString(buildClaim(&claim, provider))
	}

	sb.WriteString(`</ans:guiasTISS>`)
	sb.WriteString(`</ans:loteGuias></ans:prestadorParaOperadora>`)

	body := sb.String()
	message := body + buildEpilogue(body) + `</ans:mensagemTISS>`

	c.logger.WithFields(logrus.Fields{
		"batch_id":     batch.ID,
		"batch_number": batch.BatchNumber,
		"claims":       len(batch.Claims),
	}).Info("Claim batch composed")

	return message, nil
}

// ComposeAppeal gera o XML mensagemTISS de recurso de glosa contra os
// itens contestados de uma guia já conciliada
func (c *BatchComposer) ComposeAppeal(appeal *models.Appeal, claim *models.Claim, batch *models.Batch, provider *models.Provider, operator *models.Operator) (string, error) {
	if len(appeal.Items) == 0 {
		return "", models.NewDataValidationError("appeal has no contested items", nil)
	}
	if claim == nil || provider == nil || operator == nil {
		return "", models.NewDataValidationError("appeal is missing claim, provider or operator data", nil)
	}

	now := time.Now()

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas">`)
	sb.WriteString(c.buildHeader(models.TransactionTypeAppeal, provider, operator, now))

	sb.WriteString(`<ans:prestadorParaOperadora><ans:recursoGlosa>`)
	sb.WriteString(fmt.Sprintf(`<ans:numeroGuiaPrestador>%s</ans:numeroGuiaPrestador>`, escapeXML(claim.ClaimNumber)))
	if batch != nil && batch.ProtocolNumber != nil {
		sb.WriteString(fmt.Sprintf(`<ans:numeroProtocolo>%s</ans:numeroProtocolo>`, escapeXML(*batch.ProtocolNumber)))
	}
	sb.WriteString(fmt.Sprintf(`<ans:justificativaRecurso>%s</ans:justificativaRecurso>`, escapeXML(appeal.Justification)))
	sb.WriteString(`<ans:itensRecursados>`)

	for _, item := range appeal.Items {
		sb.WriteString(`<ans:itemRecursado>`)
		sb.WriteString(fmt.Sprintf(`<ans:sequencialItem>%d</ans:sequencialItem>`, item.ItemSequence))
		sb.WriteString(fmt.Sprintf(`<ans:codigoProcedimento>%s</ans:codigoProcedimento>`, escapeXML(item.ProcedureCode)))
		sb.WriteString(fmt.Sprintf(`<ans:valorRecursado>%.2f</ans:valorRecursado>`, item.ContestedAmount))
		sb.WriteString(fmt.Sprintf(`<ans:justificativaItem>%s</ans:justificativaItem>`, escapeXML(item.Justification)))
		sb.WriteString(`</ans:itemRecursado>`)
	}

	sb.WriteString(`</ans:itensRecursados>`)
	sb.WriteString(`</ans:recursoGlosa></ans:prestadorParaOperadora>`)

	body := sb.String()
	message := body + buildEpilogue(body) + `</ans:mensagemTISS>`

	c.logger.WithFields(logrus.Fields{
		"appeal_id": appeal.ID,
		"claim_id":  claim.ID,
		"items":     len(appeal.Items),
	}).Info("Appeal composed")

	return message, nil
}

// buildHeader monta o cabeçalho da transação com identificação, origem
// e destino
func (c *BatchComposer) buildHeader(transactionType models.TransactionType, provider *models.Provider, operator *models.Operator, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(`<ans:cabecalho>`)
	sb.WriteString(`<ans:identificacaoTransacao>`)
	sb.WriteString(fmt.Sprintf(`<ans:tipoTransacao>%s</ans:tipoTransacao>`, transactionType))
	sb.WriteString(fmt.Sprintf(`<ans:sequencialTransacao>%s</ans:sequencialTransacao>`, transactionSequential(now)))
	sb.WriteString(fmt.Sprintf(`<ans:dataRegistroTransacao>%s</ans:dataRegistroTransacao>`, now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf(`<ans:horaRegistroTransacao>%s</ans:horaRegistroTransacao>`, now.Format("15:04:05")))
	sb.WriteString(`</ans:identificacaoTransacao>`)
	sb.WriteString(`<ans:origem><ans:identificacaoPrestador>`)
	sb.WriteString(fmt.Sprintf(`<ans:CNPJ>%s</ans:CNPJ>`, escapeXML(provider.CNPJ)))
	if provider.ProviderCode != "" {
		sb.WriteString(fmt.Sprintf(`<ans:codigoPrestadorNaOperadora>%s</ans:codigoPrestadorNaOperadora>`, escapeXML(provider.ProviderCode)))
	}
	sb.WriteString(`</ans:identificacaoPrestador></ans:origem>`)
	sb.WriteString(fmt.Sprintf(`<ans:destino><ans:registroANS>%s</ans:registroANS></ans:destino>`, escapeXML(operator.ANSRegistry)))
	sb.WriteString(fmt.Sprintf(`<ans:Padrao>%s</ans:Padrao>`, c.tissVersion))
	sb.WriteString(`</ans:cabecalho>`)
	return sb.String()
}

// buildClaim monta uma guia com seus procedimentos
func buildClaim(claim *models.Claim, provider *models.Provider) string {
	var sb strings.Builder
	sb.WriteString(`<ans:guiaSP-SADT>`)
	sb.WriteString(fmt.Sprintf(`<ans:numeroGuiaPrestador>%s</ans:numeroGuiaPrestador>`, escapeXML(claim.ClaimNumber)))
	sb.WriteString(fmt.Sprintf(`<ans:numeroCarteira>%s</ans:numeroCarteira>`, escapeXML(claim.CardNumber)))
	sb.WriteString(fmt.Sprintf(`<ans:dataAtendimento>%s</ans:dataAtendimento>`, claim.ServiceDate.Format("2006-01-02")))
	if provider.CNES != nil && *provider.CNES != "" {
		sb.WriteString(fmt.Sprintf(`<ans:codigoCNES>%s</ans:codigoCNES>`, escapeXML(*provider.CNES)))
	}
	sb.WriteString(`<ans:procedimentosExecutados>`)

	for _, item := range claim.Items {
		sb.WriteString(`<ans:procedimentoExecutado>`)
		sb.WriteString(fmt.Sprintf(`<ans:sequencialItem>%d</ans:sequencialItem>`, item.Sequence))
		sb.WriteString(fmt.Sprintf(`<ans:codigoProcedimento>%s</ans:codigoProcedimento>`, escapeXML(item.ProcedureCode)))
		sb.WriteString(fmt.Sprintf(`<ans:descricaoProcedimento>%s</ans:descricaoProcedimento>`, escapeXML(item.Description)))
		sb.WriteString(fmt.Sprintf(`<ans:quantidadeExecutada>%.2f</ans:quantidadeExecutada>`, item.Quantity))
		sb.WriteString(fmt.Sprintf(`<ans:valorUnitario>%.2f</ans:valorUnitario>`, item.UnitAmount))
		sb.WriteString(fmt.Sprintf(`<ans:valorTotal>%.2f</ans:valorTotal>`, item.TotalAmount))
		sb.WriteString(`</ans:procedimentoExecutado>`)
	}

	sb.WriteString(`</ans:procedimentosExecutados>`)
	sb.WriteString(fmt.Sprintf(`<ans:valorTotalGeral>%.2f</ans:valorTotalGeral>`, claim.DeclaredAmount))
	sb.WriteString(`</ans:guiaSP-SADT>`)
	return sb.String()
}

// buildEpilogue calcula o hash MD5 do corpo da mensagem e monta o epílogo
func buildEpilogue(body string) string {
	hash := md5.Sum([]byte(body))
	return fmt.Sprintf(`<ans:epilogo><ans:hash>%x</ans:hash></ans:epilogo>`, hash)
}

// transactionSequential deriva o sequencial da transação dos últimos 10
// dígitos do timestamp em milissegundos
func transactionSequential(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 10 {
		ms = ms[len(ms)-10:]
	}
	return ms
}

// escapeXML escapa os caracteres reservados de conteúdo XML
func escapeXML(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(value)
}
