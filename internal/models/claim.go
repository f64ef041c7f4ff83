package models

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus representa o estado da guia
type ClaimStatus string

const (
	ClaimStatusDraft           ClaimStatus = "DRAFT"
	ClaimStatusValidated       ClaimStatus = "VALIDATED"
	ClaimStatusSubmitted       ClaimStatus = "SUBMITTED"
	ClaimStatusUnderReview     ClaimStatus = "UNDER_REVIEW"
	ClaimStatusAuthorized      ClaimStatus = "AUTHORIZED"
	ClaimStatusDenied          ClaimStatus = "DENIED"
	ClaimStatusPartiallyDenied ClaimStatus = "PARTIALLY_DENIED"
	ClaimStatusPaid            ClaimStatus = "PAID"
	ClaimStatusAppealed        ClaimStatus = "APPEALED"
)

// AppealDeadlineDays é o prazo em dias corridos para recurso de glosa,
// contado a partir da data de análise
const AppealDeadlineDays = 30

// Claim representa uma guia dentro de um lote.
// Após a análise vale DeclaredAmount ≈ ApprovedAmount + DeniedAmount.
type Claim struct {
	ID         uuid.UUID `json:"id" db:"id"`
	BatchID    uuid.UUID `json:"batch_id" db:"batch_id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`

	// Identificação da guia
	ClaimNumber string    `json:"claim_number" db:"claim_number"`
	CardNumber  string    `json:"card_number" db:"card_number"`
	ServiceDate time.Time `json:"service_date" db:"service_date"`

	// Valores
	DeclaredAmount float64 `json:"declared_amount" db:"declared_amount"`
	ApprovedAmount float64 `json:"approved_amount" db:"approved_amount"`
	DeniedAmount   float64 `json:"denied_amount" db:"denied_amount"`

	Status    ClaimStatus `json:"status" db:"status"`
	HasDenial bool        `json:"has_denial" db:"has_denial"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Relações (populadas em consultas)
	Items  []ClaimItem `json:"items,omitempty"`
	Glosas []Glosa     `json:"glosas,omitempty"`
}

// ClaimItem representa um procedimento executado dentro da guia
type ClaimItem struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ClaimID       uuid.UUID `json:"claim_id" db:"claim_id"`
	Sequence      int       `json:"sequence" db:"sequence"`
	ProcedureCode string    `json:"procedure_code" db:"procedure_code"`
	Description   string    `json:"description" db:"description"`
	Quantity      float64   `json:"quantity" db:"qty"`
	UnitAmount    float64   `json:"unit_amount" db:"unit_amount"`
	TotalAmount   float64   `json:"total_amount" db:"total_amount"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Glosa representa um item glosado (negado total ou parcialmente) de
// uma guia, com o prazo de recurso já calculado
type Glosa struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ClaimID        uuid.UUID `json:"claim_id" db:"claim_id"`
	ItemSequence   int       `json:"item_sequence" db:"item_sequence"`
	ProcedureCode  string    `json:"procedure_code" db:"procedure_code"`
	DeniedAmount   float64   `json:"denied_amount" db:"denied_amount"`
	DenialCode     string    `json:"denial_code" db:"denial_code"`
	DenialReason   string    `json:"denial_reason" db:"denial_reason"`
	AdjudicatedAt  time.Time `json:"adjudicated_at" db:"adjudicated_at"`
	AppealDeadline time.Time `json:"appeal_deadline" db:"appeal_deadline"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// AppealStatus representa o estado do recurso de glosa
type AppealStatus string

const (
	AppealStatusDraft     AppealStatus = "DRAFT"
	AppealStatusSubmitted AppealStatus = "SUBMITTED"
	AppealStatusAnswered  AppealStatus = "ANSWERED"
)

// Appeal representa um recurso de glosa: contesta itens glosados de
// uma guia e gera seu próprio documento assinado
type Appeal struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	ClaimID        uuid.UUID    `json:"claim_id" db:"claim_id"`
	ProviderID     uuid.UUID    `json:"provider_id" db:"provider_id"`
	Justification  string       `json:"justification" db:"justification"`
	Status         AppealStatus `json:"status" db:"status"`
	SignedDocument *string      `json:"-" db:"signed_document"`
	ProtocolNumber *string      `json:"protocol_number,omitempty" db:"protocol_number"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`

	Items []AppealItem `json:"items,omitempty"`
}

// AppealItem representa um item glosado contestado dentro do recurso
type AppealItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	AppealID        uuid.UUID `json:"appeal_id" db:"appeal_id"`
	GlosaID         uuid.UUID `json:"glosa_id" db:"glosa_id"`
	ItemSequence    int       `json:"item_sequence" db:"item_sequence"`
	ProcedureCode   string    `json:"procedure_code" db:"procedure_code"`
	ContestedAmount float64   `json:"contested_amount" db:"contested_amount"`
	Justification   string    `json:"justification" db:"justification"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ClaimRequest representa o request para incluir uma guia no lote
type ClaimRequest struct {
	ClaimNumber string             `json:"claim_number" binding:"required"`
	CardNumber  string             `json:"card_number" binding:"required"`
	ServiceDate string             `json:"service_date" binding:"required"`
	Items       []ClaimItemRequest `json:"items" binding:"required,min=1"`
}

// ClaimItemRequest representa o request para um procedimento da guia
type ClaimItemRequest struct {
	ProcedureCode string  `json:"procedure_code" binding:"required"`
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity" binding:"required,gt=0"`
	UnitAmount    float64 `json:"unit_amount" binding:"required,gt=0"`
}

// CreateAppealRequest representa o request para recorrer de glosas
type CreateAppealRequest struct {
	Justification string              `json:"justification" binding:"required"`
	Items         []AppealItemRequest `json:"items" binding:"required,min=1"`
}

// AppealItemRequest representa um item glosado a contestar
type AppealItemRequest struct {
	GlosaID       string  `json:"glosa_id" binding:"required,uuid"`
	Justification string  `json:"justification"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
}

// AppealResponse representa a resposta ao criar um recurso
type AppealResponse struct {
	ID             uuid.UUID    `json:"id"`
	ClaimID        uuid.UUID    `json:"claim_id"`
	Status         AppealStatus `json:"status"`
	ClaimStatus    ClaimStatus  `json:"claim_status"`
	ProtocolNumber *string      `json:"protocol_number,omitempty"`
}
