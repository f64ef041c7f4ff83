package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Os demonstrativos variam entre operadoras e versões do padrão; os
// padrões abaixo aceitam os aliases de campo observados em produção.
var (
	demoProtocolPattern    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:numeroProtocolo|protocolo)>\s*([^<]+?)\s*</`)
	demoAnalysisDatePat    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:dataAnalise|dataProcessamento|dataPagamento)>\s*([^<]+?)\s*</`)
	demoClaimNumberPattern = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:numeroGuiaPrestador|numeroGuiaOrigem|numeroGuia)>\s*([^<]+?)\s*</`)
	demoServiceDatePattern = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:dataExecucao|dataAtendimento|dataRealizacao)>\s*([^<]+?)\s*</`)
	demoDeclaredPattern    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:valorInformado|valorApresentado)>\s*([^<]+?)\s*</`)
	demoApprovedPattern    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:valorLiberado|valorProcessado|valorPago)>\s*([^<]+?)\s*</`)
	demoDeniedPattern      = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?valorGlosa>\s*([^<]+?)\s*</`)
	demoDenialCodePattern  = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:codigoGlosa|motivoGlosa)>\s*([^<]+?)\s*</`)
	demoDenialReasonPat    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:descricaoGlosa|justificativaGlosa)>\s*([^<]+?)\s*</`)
	demoItemSequencePat    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:sequencialItem|numeroItem)>\s*([^<]+?)\s*</`)
	demoProcedureCodePat   = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?codigoProcedimento>\s*([^<]+?)\s*</`)
)

// ResponseProcessor interpreta demonstrativos de análise de contas
// recebidos das operadoras, tolerando as variações de nome de campo
// entre versões do padrão
type ResponseProcessor struct {
	logger *logrus.Logger
}

// NewResponseProcessor cria uma nova instância do processador
func NewResponseProcessor(logger *logrus.Logger) *ResponseProcessor {
	return &ResponseProcessor{logger: logger}
}

// Parse extrai o demonstrativo do documento. Um documento sem nenhuma
// guia reconhecível é rejeitado como erro de protocolo.
func (p *ResponseProcessor) Parse(documentXML string) (*models.DemonstrativoAnalise, error) {
	if strings.TrimSpace(documentXML) == "" {
		return nil, models.NewProtocolError("demonstrativo document is empty", nil)
	}

	demo := &models.DemonstrativoAnalise{
		AnalysisDate: time.Now(),
	}

	if match := demoProtocolPattern.FindStringSubmatch(documentXML); match != nil {
		demo.ProtocolNumber = strings.TrimSpace(match[1])
	}

	if match := demoAnalysisDatePat.FindStringSubmatch(documentXML); match != nil {
		if parsed, ok := parseDate(match[1]); ok {
			demo.AnalysisDate = parsed
		}
	}

	segments := splitClaimSegments(documentXML)
	if len(segments) == 0 {
		return nil, models.NewProtocolError("demonstrativo has no recognizable claim entries", nil)
	}

	for _, segment := range segments {
		guia := p.parseClaimSegment(segment, demo.AnalysisDate)
		demo.DeclaredTotal += guia.DeclaredAmount
		demo.ApprovedTotal += guia.ApprovedAmount
		demo.DeniedTotal += guia.DeniedAmount
		demo.Claims = append(demo.Claims, guia)
	}

	p.logger.WithFields(logrus.Fields{
		"protocol": demo.ProtocolNumber,
		"claims":   len(demo.Claims),
		"approved": demo.ApprovedTotal,
		"denied":   demo.DeniedTotal,
	}).Info("Demonstrativo parsed")

	return demo, nil
}

// splitClaimSegments fatia o documento em um trecho por guia, usando as
// posições dos números de guia como delimitadores
func splitClaimSegments(documentXML string) []string {
	matches := demoClaimNumberPattern.FindAllStringIndex(documentXML, -1)
	if len(matches) == 0 {
		return nil
	}

	segments := make([]string, 0, len(matches))
	for i, match := range matches {
		start := match[0]
		end := len(documentXML)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		segments = append(segments, documentXML[start:end])
	}
	return segments
}

// parseClaimSegment extrai valores e glosas de um trecho de guia.
// Valores ausentes valem zero.
func (p *ResponseProcessor) parseClaimSegment(segment string, analysisDate time.Time) models.GuiaAnalise {
	guia := models.GuiaAnalise{}

	if match := demoClaimNumberPattern.FindStringSubmatch(segment); match != nil {
		guia.ClaimNumber = strings.TrimSpace(match[1])
	}
	if match := demoServiceDatePattern.FindStringSubmatch(segment); match != nil {
		if parsed, ok := parseDate(match[1]); ok {
			guia.ServiceDate = parsed
		}
	}

	guia.DeclaredAmount = firstAmount(demoDeclaredPattern, segment)
	guia.ApprovedAmount = firstAmount(demoApprovedPattern, segment)
	guia.DeniedAmount = sumAmounts(demoDeniedPattern, segment)

	guia.Outcome = deriveOutcome(guia.ApprovedAmount, guia.DeniedAmount)

	if guia.DeniedAmount > 0 {
		guia.Glosas = parseGlosas(segment, analysisDate)
	}

	return guia
}

// deriveOutcome classifica o desfecho da guia pelos valores conciliados.
// Sem valor liberado nem glosado a guia fica pendente, não aprovada: a
// ausência de valores indica análise inacabada.
func deriveOutcome(approved, denied float64) models.ClaimOutcome {
	switch {
	case denied == 0 && approved > 0:
		return models.ClaimOutcomeApproved
	case denied > 0 && approved > 0:
		return models.ClaimOutcomePartiallyDenied
	case denied > 0 && approved == 0:
		return models.ClaimOutcomeFullyDenied
	default:
		return models.ClaimOutcomePending
	}
}

// reconciliationMismatch indica se os valores da guia não fecham: o
// declarado deve corresponder a liberado mais glosado, com tolerância
// de um centavo. Guias sem valor declarado não são conferidas.
func reconciliationMismatch(guia models.GuiaAnalise) bool {
	if guia.DeclaredAmount == 0 {
		return false
	}
	return math.Abs(guia.DeclaredAmount-(guia.ApprovedAmount+guia.DeniedAmount)) > 0.01
}

// parseGlosas extrai as glosas do trecho da guia; o prazo de recurso é
// contado a partir da data de análise
func parseGlosas(segment string, analysisDate time.Time) []models.Glosa {
	codes := demoDenialCodePattern.FindAllStringSubmatch(segment, -1)
	if len(codes) == 0 {
		return nil
	}

	amounts := demoDeniedPattern.FindAllStringSubmatch(segment, -1)
	reasons := demoDenialReasonPat.FindAllStringSubmatch(segment, -1)
	sequences := demoItemSequencePat.FindAllStringSubmatch(segment, -1)
	procedures := demoProcedureCodePat.FindAllStringSubmatch(segment, -1)

	glosas := make([]models.Glosa, 0, len(codes))
	for i, code := range codes {
		glosa := models.Glosa{
			DenialCode:     strings.TrimSpace(code[1]),
			AdjudicatedAt:  analysisDate,
			AppealDeadline: analysisDate.AddDate(0, 0, models.AppealDeadlineDays),
		}
		if i < len(amounts) {
			glosa.DeniedAmount = parseAmount(amounts[i][1])
		}
		if i < len(reasons) {
			glosa.DenialReason = strings.TrimSpace(reasons[i][1])
		}
		if i < len(sequences) {
			if seq, err := strconv.Atoi(strings.TrimSpace(sequences[i][1])); err == nil {
				glosa.ItemSequence = seq
			}
		}
		if i < len(procedures) {
			glosa.ProcedureCode = strings.TrimSpace(procedures[i][1])
		}
		glosas = append(glosas, glosa)
	}

	return glosas
}

func firstAmount(pattern *regexp.Regexp, segment string) float64 {
	if match := pattern.FindStringSubmatch(segment); match != nil {
		return parseAmount(match[1])
	}
	return 0
}

func sumAmounts(pattern *regexp.Regexp, segment string) float64 {
	var total float64
	for _, match := range pattern.FindAllStringSubmatch(segment, -1) {
		total += parseAmount(match[1])
	}
	return total
}

// parseAmount aceita separador decimal com vírgula ou ponto
func parseAmount(raw string) float64 {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, ",", ".")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

// parseDate aceita os formatos de data usados pelas operadoras
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "02/01/2006", time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
