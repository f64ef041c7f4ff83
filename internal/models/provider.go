package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider representa um prestador de serviços de saúde que fatura
// guias contra operadoras
type Provider struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	CNPJ         string    `json:"cnpj" db:"cnpj"`
	ProviderCode string    `json:"provider_code" db:"provider_code"`
	CNES         *string   `json:"cnes,omitempty" db:"cnes"`
	Email        string    `json:"email" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	AddressLine  *string   `json:"address_line,omitempty" db:"address_line"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// APIKey representa uma chave de API para integração de um prestador
type APIKey struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ProviderID      uuid.UUID  `json:"provider_id" db:"provider_id"`
	Name            string     `json:"name" db:"name"`
	KeyHash         string     `json:"key_hash" db:"key_hash"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	RateLimitPerMin int        `json:"rate_limit_per_min" db:"rate_limit_per_min"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// CreateProviderRequest representa o request para cadastrar um prestador
type CreateProviderRequest struct {
	Name         string  `json:"name" binding:"required"`
	CNPJ         string  `json:"cnpj" binding:"required,len=14"`
	ProviderCode string  `json:"provider_code" binding:"required"`
	CNES         *string `json:"cnes,omitempty"`
	Email        string  `json:"email" binding:"required,email"`
	Phone        *string `json:"phone,omitempty"`
	AddressLine  *string `json:"address_line,omitempty"`
}

// CreateAPIKeyRequest representa o request para criar uma API key
type CreateAPIKeyRequest struct {
	ProviderID      string `json:"provider_id" binding:"required,uuid"`
	Name            string `json:"name" binding:"required"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
}

// CreateAPIKeyResponse representa a resposta com a chave em claro
// (exibida uma única vez)
type CreateAPIKeyResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	APIKey string    `json:"api_key"`
}
