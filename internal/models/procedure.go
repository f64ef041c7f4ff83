package models

import (
	"time"

	"github.com/google/uuid"
)

// Procedure representa um procedimento da tabela TUSS cadastrado pelo
// prestador, usado para resolver descrição e valor de referência ao
// montar as guias
type Procedure struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ProviderID  uuid.UUID `json:"provider_id" db:"provider_id"`
	Code        string    `json:"code" db:"code"`
	Description string    `json:"description" db:"description"`
	UnitAmount  float64   `json:"unit_amount" db:"unit_amount"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CreateProcedureRequest representa o request para cadastrar um procedimento
type CreateProcedureRequest struct {
	Code        string  `json:"code" binding:"required"`
	Description string  `json:"description" binding:"required"`
	UnitAmount  float64 `json:"unit_amount" binding:"required,gt=0"`
}
