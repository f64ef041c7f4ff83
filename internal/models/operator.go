package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthMode representa o modo de autenticação do webservice da operadora
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeBasic  AuthMode = "basic"
	AuthModeBearer AuthMode = "bearer"
	AuthModeMTLS   AuthMode = "mtls"
)

// Operator representa uma operadora de plano de saúde e a configuração
// do seu endpoint de recebimento de lotes
type Operator struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ANSRegistry string    `json:"ans_registry" db:"ans_registry"`
	TISSVersion string    `json:"tiss_version" db:"tiss_version"`

	// Endpoint de envio
	EndpointURL    string   `json:"endpoint_url" db:"endpoint_url"`
	AuthMode       AuthMode `json:"auth_mode" db:"auth_mode"`
	AuthUsername   *string  `json:"auth_username,omitempty" db:"auth_username"`
	AuthPassword   *string  `json:"-" db:"auth_password"`
	BearerToken    *string  `json:"-" db:"bearer_token"`
	TimeoutSeconds int      `json:"timeout_seconds" db:"timeout_seconds"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateOperatorRequest representa o request para cadastrar uma operadora
type CreateOperatorRequest struct {
	Name           string   `json:"name" binding:"required"`
	ANSRegistry    string   `json:"ans_registry" binding:"required,len=6"`
	TISSVersion    string   `json:"tiss_version"`
	EndpointURL    string   `json:"endpoint_url" binding:"required,url"`
	AuthMode       AuthMode `json:"auth_mode" binding:"required,oneof=none basic bearer mtls"`
	AuthUsername   *string  `json:"auth_username,omitempty"`
	AuthPassword   *string  `json:"auth_password,omitempty"`
	BearerToken    *string  `json:"bearer_token,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}
