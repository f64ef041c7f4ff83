package models

import "time"

// ClaimOutcome representa o desfecho de uma guia no demonstrativo
type ClaimOutcome string

const (
	ClaimOutcomeApproved        ClaimOutcome = "approved"
	ClaimOutcomePartiallyDenied ClaimOutcome = "partiallyDenied"
	ClaimOutcomeFullyDenied     ClaimOutcome = "fullyDenied"
	ClaimOutcomePending         ClaimOutcome = "pending"
)

// DemonstrativoAnalise representa o demonstrativo de análise de contas
// da operadora: totais do lote e desfechos por guia
type DemonstrativoAnalise struct {
	ProtocolNumber string        `json:"protocol_number"`
	AnalysisDate   time.Time     `json:"analysis_date"`
	DeclaredTotal  float64       `json:"declared_total"`
	ApprovedTotal  float64       `json:"approved_total"`
	DeniedTotal    float64       `json:"denied_total"`
	Claims         []GuiaAnalise `json:"claims"`
}

// GuiaAnalise representa o desfecho de uma guia dentro do demonstrativo
type GuiaAnalise struct {
	ClaimNumber    string       `json:"claim_number"`
	ServiceDate    time.Time    `json:"service_date"`
	DeclaredAmount float64      `json:"declared_amount"`
	ApprovedAmount float64      `json:"approved_amount"`
	DeniedAmount   float64      `json:"denied_amount"`
	Outcome        ClaimOutcome `json:"outcome"`
	Glosas         []Glosa      `json:"glosas,omitempty"`
}

// IngestDemonstrativoRequest representa o request para ingerir o
// demonstrativo da operadora
type IngestDemonstrativoRequest struct {
	DocumentXML string `json:"document_xml" binding:"required"`
}

// IngestDemonstrativoResponse representa o resultado da conciliação
type IngestDemonstrativoResponse struct {
	BatchStatus    BatchStatus   `json:"batch_status"`
	ProtocolNumber string        `json:"protocol_number"`
	Totals         BatchTotals   `json:"totals"`
	Claims         []GuiaAnalise `json:"claims"`
}
