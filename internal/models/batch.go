package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus representa o estado do lote de guias
type BatchStatus string

const (
	BatchStatusDraft      BatchStatus = "DRAFT"
	BatchStatusValidating BatchStatus = "VALIDATING"
	BatchStatusReady      BatchStatus = "READY"
	BatchStatusSending    BatchStatus = "SENDING"
	BatchStatusSent       BatchStatus = "SENT"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusProcessed  BatchStatus = "PROCESSED"
	BatchStatusPartial    BatchStatus = "PARTIAL"
	BatchStatusError      BatchStatus = "ERROR"
)

// TransactionType representa o tipo de transação TISS do documento
type TransactionType string

const (
	TransactionTypeClaimBatch TransactionType = "ENVIO_LOTE_GUIAS"
	TransactionTypeAppeal     TransactionType = "RECURSO_GLOSA"
)

// Batch representa um lote de guias enviado a uma operadora.
// Lotes nunca são apagados (trilha de auditoria); o protocolo só
// existe a partir do estado SENT.
type Batch struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`
	OperatorID uuid.UUID `json:"operator_id" db:"operator_id"`

	// Identificação do lote
	BatchNumber string      `json:"batch_number" db:"batch_number"`
	Status      BatchStatus `json:"status" db:"status"`

	// Documento assinado e rastreio
	SignedDocument *string `json:"-" db:"signed_document"`
	DocumentHash   *string `json:"document_hash,omitempty" db:"document_hash"`
	ProtocolNumber *string `json:"protocol_number,omitempty" db:"protocol_number"`

	// Totais consolidados das guias
	DeclaredAmount float64 `json:"declared_amount" db:"declared_amount"`
	ApprovedAmount float64 `json:"approved_amount" db:"approved_amount"`
	DeniedAmount   float64 `json:"denied_amount" db:"denied_amount"`

	// Erros acumulados (auditoria de tentativas)
	Errors []string `json:"errors,omitempty"`

	// Metadados
	IdempotencyKey *string    `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty" db:"processed_at"`

	// Relações (populadas em consultas)
	Claims   []Claim   `json:"claims,omitempty"`
	Provider *Provider `json:"provider,omitempty"`
	Operator *Operator `json:"operator,omitempty"`
}

// CreateBatchRequest representa o request para criar um lote
type CreateBatchRequest struct {
	OperatorID string         `json:"operator_id" binding:"required,uuid"`
	Claims     []ClaimRequest `json:"claims" binding:"required,min=1"`
}

// BatchResponse representa a resposta ao criar um lote
type BatchResponse struct {
	ID          uuid.UUID   `json:"id"`
	BatchNumber string      `json:"batch_number"`
	Status      BatchStatus `json:"status"`
	ClaimCount  int         `json:"claim_count"`
	Totals      BatchTotals `json:"totals"`
	Links       Links       `json:"links"`
}

// BatchStatusResponse representa a resposta ao consultar um lote
type BatchStatusResponse struct {
	ID             uuid.UUID   `json:"id"`
	BatchNumber    string      `json:"batch_number"`
	Status         BatchStatus `json:"status"`
	ProtocolNumber *string     `json:"protocol_number,omitempty"`
	DocumentHash   *string     `json:"document_hash,omitempty"`
	Totals         BatchTotals `json:"totals"`
	Errors         []string    `json:"errors,omitempty"`
	Claims         []Claim     `json:"claims,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	SentAt         *time.Time  `json:"sent_at,omitempty"`
	ProcessedAt    *time.Time  `json:"processed_at,omitempty"`
	Links          Links       `json:"links"`
}

// BatchTotals representa os totais do lote
type BatchTotals struct {
	Declared float64 `json:"declared"`
	Approved float64 `json:"approved"`
	Denied   float64 `json:"denied"`
}

// Links representa os enlaces relacionados
type Links struct {
	Self  string `json:"self"`
	Files string `json:"files,omitempty"`
}

// SubmitBatchResponse representa a resposta ao enviar um lote
type SubmitBatchResponse struct {
	ID             uuid.UUID   `json:"id"`
	Status         BatchStatus `json:"status"`
	ProtocolNumber *string     `json:"protocol_number,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// RetryResponse representa a resposta ao reenfileirar um lote com erro
type RetryResponse struct {
	Status     string `json:"status"`
	ResumeFrom string `json:"resume_from,omitempty"`
}
