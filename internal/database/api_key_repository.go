package database

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// APIKeyRepository maneja as operações de banco para API Keys
type APIKeyRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewAPIKeyRepository cria uma nova instância do repositório
func NewAPIKeyRepository(db *DB, logger *logrus.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: logger,
	}
}

// Create cria uma nova API key
func (r *APIKeyRepository) Create(providerID uuid.UUID, name string, rateLimit int) (*models.APIKey, string, error) {
	apiKey, err := r.generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("error generating API key: %w", err)
	}
	keyHash := r.HashAPIKey(apiKey)

	apiKeyModel := &models.APIKey{
		ID:              uuid.New(),
		ProviderID:      providerID,
		Name:            name,
		KeyHash:         keyHash,
		IsActive:        true,
		RateLimitPerMin: rateLimit,
		CreatedAt:       time.Now(),
	}

	query := `
		INSERT INTO api_keys (
			id, provider_id, name, key_hash, is_active, rate_limit_per_min, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err = r.db.ExecWithTimeout(query,
		apiKeyModel.ID, apiKeyModel.ProviderID, apiKeyModel.Name,
		apiKeyModel.KeyHash, apiKeyModel.IsActive, apiKeyModel.RateLimitPerMin,
		apiKeyModel.CreatedAt,
	)

	if err != nil {
		return nil, "", fmt.Errorf("error creating API key: %w", err)
	}

	return apiKeyModel, apiKey, nil
}

// GetByHash obtém uma API key pelo hash, com retry
func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	var apiKey *models.APIKey
	var err error

	maxRetries := 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		apiKey, err = r.getByHash(hash)
		if err == nil {
			return apiKey, nil
		}

		if strings.Contains(err.Error(), "context canceled") && attempt < maxRetries {
			r.logger.Warnf("Attempt %d failed with context canceled, retrying...", attempt)
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}

		break
	}

	return nil, err
}

func (r *APIKeyRepository) getByHash(hash string) (*models.APIKey, error) {
	query := `
		SELECT id, provider_id, name, key_hash, is_active, rate_limit_per_min, created_at, last_used_at
		FROM api_keys
		WHERE key_hash = $1 AND is_active = true
	`

	var apiKey models.APIKey
	err := r.db.QueryRowWithTimeout(query, hash).Scan(
		&apiKey.ID, &apiKey.ProviderID, &apiKey.Name, &apiKey.KeyHash,
		&apiKey.IsActive, &apiKey.RateLimitPerMin, &apiKey.CreatedAt, &apiKey.LastUsedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("API key not found or inactive")
		}
		return nil, fmt.Errorf("error querying API key: %w", err)
	}

	return &apiKey, nil
}

// GetByProviderID obtém todas as API keys de um prestador
func (r *APIKeyRepository) GetByProviderID(providerID uuid.UUID) ([]models.APIKey, error) {
	query := `
		SELECT id, provider_id, name, key_hash, is_active, rate_limit_per_min,
			   created_at, last_used_at
		FROM api_keys
		WHERE provider_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryWithTimeout(query, providerID)
	if err != nil {
		return nil, fmt.Errorf("error querying API keys: %w", err)
	}
	defer rows.Close()

	var apiKeys []models.APIKey
	for rows.Next() {
		var apiKey models.APIKey
		err := rows.Scan(
			&apiKey.ID, &apiKey.ProviderID, &apiKey.Name, &apiKey.KeyHash,
			&apiKey.IsActive, &apiKey.RateLimitPerMin, &apiKey.CreatedAt, &apiKey.LastUsedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning API key: %w", err)
		}
		apiKeys = append(apiKeys, apiKey)
	}

	return apiKeys, nil
}

// UpdateLastUsed atualiza o último uso da API key
func (r *APIKeyRepository) UpdateLastUsed(id uuid.UUID) error {
	query := `
		UPDATE api_keys
		SET last_used_at = $1
		WHERE id = $2
	`

	_, err := r.db.ExecWithTimeout(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating API key last used: %w", err)
	}

	return nil
}

// Deactivate desativa uma API key
func (r *APIKeyRepository) Deactivate(id uuid.UUID) error {
	query := `
		UPDATE api_keys
		SET is_active = false
		WHERE id = $1
	`

	result, err := r.db.ExecWithTimeout(query, id)
	if err != nil {
		return fmt.Errorf("error deactivating API key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("API key not found: %s", id)
	}

	return nil
}

// generateAPIKey gera uma API key aleatória de 32 caracteres
func (r *APIKeyRepository) generateAPIKey() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	key := make([]byte, len(buf))
	for i, b := range buf {
		key[i] = charset[int(b)%len(charset)]
	}
	return string(key), nil
}

// HashAPIKey gera o hash SHA-256 da API key
func (r *APIKeyRepository) HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return fmt.Sprintf("%x", hash)
}
