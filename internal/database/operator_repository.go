package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// OperatorRepository maneja as operações de banco para operadoras e a
// configuração dos seus endpoints de envio
type OperatorRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewOperatorRepository cria uma nova instância do repositório
func NewOperatorRepository(db *DB, logger *logrus.Logger) *OperatorRepository {
	return &OperatorRepository{
		db:     db,
		logger: logger,
	}
}

// Create cadastra uma operadora
func (r *OperatorRepository) Create(req *models.CreateOperatorRequest) (*models.Operator, error) {
	tissVersion := req.TISSVersion
	if tissVersion == "" {
		tissVersion = "4.01.00"
	}

	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	operator := &models.Operator{
		ID:             uuid.New(),
		Name:           req.Name,
		ANSRegistry:    req.ANSRegistry,
		TISSVersion:    tissVersion,
		EndpointURL:    req.EndpointURL,
		AuthMode:       req.AuthMode,
		AuthUsername:   req.AuthUsername,
		AuthPassword:   req.AuthPassword,
		BearerToken:    req.BearerToken,
		TimeoutSeconds: timeout,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	query := `
		INSERT INTO operators (
			id, name, ans_registry, tiss_version, endpoint_url,
			auth_mode, auth_username, auth_password, bearer_token, timeout_seconds,
			is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecWithTimeout(query,
		operator.ID, operator.Name, operator.ANSRegistry, operator.TISSVersion, operator.EndpointURL,
		operator.AuthMode, operator.AuthUsername, operator.AuthPassword, operator.BearerToken, operator.TimeoutSeconds,
		operator.IsActive, operator.CreatedAt, operator.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("error creating operator: %w", err)
	}

	return operator, nil
}

// GetByID obtém uma operadora por ID
func (r *OperatorRepository) GetByID(id uuid.UUID) (*models.Operator, error) {
	query := `
		SELECT id, name, ans_registry, tiss_version, endpoint_url,
			   auth_mode, auth_username, auth_password, bearer_token, timeout_seconds,
			   is_active, created_at, updated_at
		FROM operators
		WHERE id = $1
	`

	var operator models.Operator
	err := r.db.QueryRowWithTimeout(query, id).Scan(
		&operator.ID, &operator.Name, &operator.ANSRegistry, &operator.TISSVersion, &operator.EndpointURL,
		&operator.AuthMode, &operator.AuthUsername, &operator.AuthPassword, &operator.BearerToken, &operator.TimeoutSeconds,
		&operator.IsActive, &operator.CreatedAt, &operator.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("operator not found: %s", id)
		}
		return nil, fmt.Errorf("error querying operator: %w", err)
	}

	return &operator, nil
}
