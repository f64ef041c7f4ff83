package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// ProviderRepository maneja as operações de banco para prestadores
type ProviderRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewProviderRepository cria uma nova instância do repositório
func NewProviderRepository(db *DB, logger *logrus.Logger) *ProviderRepository {
	return &ProviderRepository{
		db:     db,
		logger: logger,
	}
}

// Create cadastra um prestador
func (r *ProviderRepository) Create(req *models.CreateProviderRequest) (*models.Provider, error) {
	provider := &models.Provider{
		ID:           uuid.New(),
		Name:         req.Name,
		CNPJ:         req.CNPJ,
		ProviderCode: req.ProviderCode,
		CNES:         req.CNES,
		Email:        req.Email,
		Phone:        req.Phone,
		AddressLine:  req.AddressLine,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	query := `
		INSERT INTO providers (
			id, name, cnpj, provider_code, cnes, email, phone, address_line,
			is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecWithTimeout(query,
		provider.ID, provider.Name, provider.CNPJ, provider.ProviderCode, provider.CNES,
		provider.Email, provider.Phone, provider.AddressLine,
		provider.IsActive, provider.CreatedAt, provider.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("error creating provider: %w", err)
	}

	return provider, nil
}

// GetByID obtém um prestador por ID
func (r *ProviderRepository) GetByID(id uuid.UUID) (*models.Provider, error) {
	query := `
		SELECT id, name, cnpj, provider_code, cnes, email, phone, address_line,
			   is_active, created_at, updated_at
		FROM providers
		WHERE id = $1
	`

	var provider models.Provider
	err := r.db.QueryRowWithTimeout(query, id).Scan(
		&provider.ID, &provider.Name, &provider.CNPJ, &provider.ProviderCode, &provider.CNES,
		&provider.Email, &provider.Phone, &provider.AddressLine,
		&provider.IsActive, &provider.CreatedAt, &provider.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("provider not found: %s", id)
		}
		return nil, fmt.Errorf("error querying provider: %w", err)
	}

	return &provider, nil
}
