package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// ProcedureRepository maneja as operações de banco para a tabela de
// procedimentos (TUSS) do prestador
type ProcedureRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewProcedureRepository cria uma nova instância do repositório
func NewProcedureRepository(db *DB, logger *logrus.Logger) *ProcedureRepository {
	return &ProcedureRepository{
		db:     db,
		logger: logger,
	}
}

// Create cadastra um procedimento
func (r *ProcedureRepository) Create(providerID uuid.UUID, req *models.CreateProcedureRequest) (*models.Procedure, error) {
	procedure := &models.Procedure{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Code:        req.Code,
		Description: req.Description,
		UnitAmount:  req.UnitAmount,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	query := `
		INSERT INTO procedures (
			id, provider_id, code, description, unit_amount, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecWithTimeout(query,
		procedure.ID, procedure.ProviderID, procedure.Code, procedure.Description,
		procedure.UnitAmount, procedure.IsActive, procedure.CreatedAt, procedure.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("error creating procedure: %w", err)
	}

	return procedure, nil
}

// GetByCode obtém um procedimento do prestador pelo código TUSS
func (r *ProcedureRepository) GetByCode(providerID uuid.UUID, code string) (*models.Procedure, error) {
	query := `
		SELECT id, provider_id, code, description, unit_amount, is_active, created_at, updated_at
		FROM procedures
		WHERE provider_id = $1 AND code = $2 AND is_active = true
	`

	var procedure models.Procedure
	err := r.db.QueryRowWithTimeout(query, providerID, code).Scan(
		&procedure.ID, &procedure.ProviderID, &procedure.Code, &procedure.Description,
		&procedure.UnitAmount, &procedure.IsActive, &procedure.CreatedAt, &procedure.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("procedure not found: %s", code)
		}
		return nil, fmt.Errorf("error querying procedure: %w", err)
	}

	return &procedure, nil
}

// GetByProviderID obtém os procedimentos ativos de um prestador
func (r *ProcedureRepository) GetByProviderID(providerID uuid.UUID) ([]models.Procedure, error) {
	query := `
		SELECT id, provider_id, code, description, unit_amount, is_active, created_at, updated_at
		FROM procedures
		WHERE provider_id = $1 AND is_active = true
		ORDER BY code
	`

	rows, err := r.db.QueryWithTimeout(query, providerID)
	if err != nil {
		return nil, fmt.Errorf("error querying procedures: %w", err)
	}
	defer rows.Close()

	var procedures []models.Procedure
	for rows.Next() {
		var procedure models.Procedure
		err := rows.Scan(
			&procedure.ID, &procedure.ProviderID, &procedure.Code, &procedure.Description,
			&procedure.UnitAmount, &procedure.IsActive, &procedure.CreatedAt, &procedure.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning procedure: %w", err)
		}
		procedures = append(procedures, procedure)
	}

	return procedures, nil
}

// Deactivate desativa um procedimento
func (r *ProcedureRepository) Deactivate(id uuid.UUID) error {
	query := `
		UPDATE procedures
		SET is_active = false, updated_at = $1
		WHERE id = $2
	`

	result, err := r.db.ExecWithTimeout(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error deactivating procedure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("procedure not found: %s", id)
	}

	return nil
}
