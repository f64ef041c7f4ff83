package services

import (
	"bytes"
	"fmt"

	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"
)

// DemonstrativoPDFGenerator gera o PDF-resumo do demonstrativo de
// análise, para conferência humana do faturamento
type DemonstrativoPDFGenerator struct {
	logger *logrus.Logger
}

// NewDemonstrativoPDFGenerator cria uma nova instância do gerador
func NewDemonstrativoPDFGenerator(logger *logrus.Logger) *DemonstrativoPDFGenerator {
	return &DemonstrativoPDFGenerator{
		logger: logger,
	}
}

// Generate monta o PDF com os totais do lote e o desfecho de cada guia
func (g *DemonstrativoPDFGenerator) Generate(batch *models.Batch, provider *models.Provider, operator *models.Operator, demo *models.DemonstrativoAnalise) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFillColor(22, 101, 52)
	pdf.SetTextColor(44, 62, 80)
	pdf.SetDrawColor(52, 73, 94)

	// Cabeçalho
	pdf.SetFillColor(22, 101, 52)
	pdf.Rect(0, 0, 210, 36, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(190, 14, "DEMONSTRATIVO DE ANALISE")
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, fmt.Sprintf("Lote %s", batch.BatchNumber))
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(190, 6, fmt.Sprintf("Protocolo: %s  |  Analise: %s",
		demo.ProtocolNumber, demo.AnalysisDate.Format("02/01/2006")))
	pdf.Ln(6)

	pdf.SetTextColor(44, 62, 80)
	pdf.SetFillColor(255, 255, 255)

	// Prestador e operadora
	pdf.SetY(44)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(95, 8, "PRESTADOR")
	pdf.Cell(95, 8, "OPERADORA")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(95, 6, provider.Name)
	pdf.Cell(95, 6, operator.Name)
	pdf.Ln(6)
	pdf.Cell(95, 6, fmt.Sprintf("CNPJ: %s", provider.CNPJ))
	pdf.Cell(95, 6, fmt.Sprintf("Registro ANS: %s", operator.ANSRegistry))
	pdf.Ln(12)

	// Totais
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, "TOTAIS DO LOTE")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(63, 6, fmt.Sprintf("Informado: R$ %.2f", demo.DeclaredTotal))
	pdf.Cell(63, 6, fmt.Sprintf("Liberado: R$ %.2f", demo.ApprovedTotal))
	pdf.Cell(63, 6, fmt.Sprintf("Glosado: R$ %.2f", demo.DeniedTotal))
	pdf.Ln(12)

	// Tabela de guias
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(236, 240, 241)
	pdf.CellFormat(35, 8, "Guia", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Atendimento", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Informado", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Liberado", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Glosado", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Desfecho", "1", 0, "L", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	for _, guia := range demo.Claims {
		serviceDate := ""
		if !guia.ServiceDate.IsZero() {
			serviceDate = guia.ServiceDate.Format("02/01/2006")
		}
		pdf.CellFormat(35, 7, guia.ClaimNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, serviceDate, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", guia.DeclaredAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", guia.ApprovedAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", guia.DeniedAmount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, outcomeLabel(guia.Outcome), "1", 0, "L", false, 0, "")
		pdf.Ln(7)
	}

	// Glosas com prazo de recurso
	glosaCount := 0
	for _, guia := range demo.Claims {
		glosaCount += len(guia.Glosas)
	}

	if glosaCount > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(190, 8, "GLOSAS")
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 9)
		for _, guia := range demo.Claims {
			for _, glosa := range guia.Glosas {
				pdf.Cell(190, 6, fmt.Sprintf("Guia %s  item %d  codigo %s  R$ %.2f  prazo de recurso %s",
					guia.ClaimNumber, glosa.ItemSequence, glosa.DenialCode,
					glosa.DeniedAmount, glosa.AppealDeadline.Format("02/01/2006")))
				pdf.Ln(6)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating demonstrativo PDF: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"claims":   len(demo.Claims),
		"glosas":   glosaCount,
		"size":     buf.Len(),
	}).Info("Demonstrativo PDF generated")

	return buf.Bytes(), nil
}

func outcomeLabel(outcome models.ClaimOutcome) string {
	switch outcome {
	case models.ClaimOutcomeApproved:
		return "Aprovada"
	case models.ClaimOutcomePartiallyDenied:
		return "Glosa parcial"
	case models.ClaimOutcomeFullyDenied:
		return "Glosa total"
	default:
		return "Pendente"
	}
}
