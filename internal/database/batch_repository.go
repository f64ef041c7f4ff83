package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// BatchRepository maneja as operações de banco de dados para lotes.
// Lotes nunca são apagados; toda mudança de status passa pelo
// compare-and-set de TransitionStatus.
type BatchRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewBatchRepository cria uma nova instância do repositório
func NewBatchRepository(db *DB, logger *logrus.Logger) *BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

// Create cria um lote com suas guias e itens
func (r *BatchRepository) Create(batch *models.Batch, claims []models.Claim) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		query := `
			INSERT INTO batches (
				id, provider_id, operator_id, batch_number, status,
				declared_amount, approved_amount, denied_amount,
				errors, idempotency_key, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
			)
		`

		_, err := tx.Exec(query,
			batch.ID, batch.ProviderID, batch.OperatorID, batch.BatchNumber, batch.Status,
			batch.DeclaredAmount, batch.ApprovedAmount, batch.DeniedAmount,
			pq.Array(batch.Errors), batch.IdempotencyKey, batch.CreatedAt, batch.UpdatedAt,
		)

		if err != nil {
			return fmt.Errorf("error inserting batch: %w", err)
		}

		for _, claim := range claims {
			claimQuery := `
				INSERT INTO claims (
					id, batch_id, provider_id, claim_number, card_number, service_date,
					declared_amount, approved_amount, denied_amount,
					status, has_denial, created_at, updated_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
				)
			`

			_, err := tx.Exec(claimQuery,
				claim.ID, claim.BatchID, claim.ProviderID, claim.ClaimNumber, claim.CardNumber, claim.ServiceDate,
				claim.DeclaredAmount, claim.ApprovedAmount, claim.DeniedAmount,
				claim.Status, claim.HasDenial, claim.CreatedAt, claim.UpdatedAt,
			)

			if err != nil {
				return fmt.Errorf("error inserting claim: %w", err)
			}

			for _, item := range claim.Items {
				itemQuery := `
					INSERT INTO claim_items (
						id, claim_id, sequence, procedure_code, description,
						qty, unit_amount, total_amount, created_at
					) VALUES (
						$1, $2, $3, $4, $5, $6, $7, $8, $9
					)
				`

				_, err := tx.Exec(itemQuery,
					item.ID, item.ClaimID, item.Sequence, item.ProcedureCode, item.Description,
					item.Quantity, item.UnitAmount, item.TotalAmount, item.CreatedAt,
				)

				if err != nil {
					return fmt.Errorf("error inserting claim item: %w", err)
				}
			}
		}

		return nil
	})
}

// GetByID obtém um lote por ID com suas relações
func (r *BatchRepository) GetByID(id uuid.UUID) (*models.Batch, error) {
	query := `
		SELECT
			b.id, b.provider_id, b.operator_id, b.batch_number, b.status,
			b.signed_document, b.document_hash, b.protocol_number,
			b.declared_amount, b.approved_amount, b.denied_amount,
			b.errors, b.idempotency_key, b.created_at, b.updated_at, b.sent_at, b.processed_at,
			p.name AS provider_name, p.cnpj AS provider_cnpj, p.provider_code, p.email AS provider_email,
			o.name AS operator_name, o.ans_registry, o.tiss_version,
			o.endpoint_url, o.auth_mode, o.auth_username, o.auth_password, o.bearer_token, o.timeout_seconds
		FROM batches b
		JOIN providers p ON b.provider_id = p.id
		JOIN operators o ON b.operator_id = o.id
		WHERE b.id = $1
	`

	var batch models.Batch
	var provider models.Provider
	var operator models.Operator

	err := r.db.QueryRowWithTimeout(query, id).Scan(
		&batch.ID, &batch.ProviderID, &batch.OperatorID, &batch.BatchNumber, &batch.Status,
		&batch.SignedDocument, &batch.DocumentHash, &batch.ProtocolNumber,
		&batch.DeclaredAmount, &batch.ApprovedAmount, &batch.DeniedAmount,
		pq.Array(&batch.Errors), &batch.IdempotencyKey, &batch.CreatedAt, &batch.UpdatedAt, &batch.SentAt, &batch.ProcessedAt,
		&provider.Name, &provider.CNPJ, &provider.ProviderCode, &provider.Email,
		&operator.Name, &operator.ANSRegistry, &operator.TISSVersion,
		&operator.EndpointURL, &operator.AuthMode, &operator.AuthUsername, &operator.AuthPassword, &operator.BearerToken, &operator.TimeoutSeconds,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("batch not found: %s", id)
		}
		return nil, fmt.Errorf("error querying batch: %w", err)
	}

	provider.ID = batch.ProviderID
	operator.ID = batch.OperatorID
	batch.Provider = &provider
	batch.Operator = &operator

	claims, err := r.GetClaimsByBatchID(id)
	if err != nil {
		r.logger.Warnf("Error getting claims for batch %s: %v", id, err)
	}
	batch.Claims = claims

	return &batch, nil
}

// GetByIdempotencyKey obtém um lote pela chave de idempotência
func (r *BatchRepository) GetByIdempotencyKey(key string) (*models.Batch, error) {
	query := `SELECT id FROM batches WHERE idempotency_key = $1`

	var id uuid.UUID
	err := r.db.QueryRowWithTimeout(query, key).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying batch by idempotency key: %w", err)
	}

	return r.GetByID(id)
}

// GetClaimsByBatchID obtém as guias de um lote
func (r *BatchRepository) GetClaimsByBatchID(batchID uuid.UUID) ([]models.Claim, error) {
	query := `
		SELECT id, batch_id, provider_id, claim_number, card_number, service_date,
			   declared_amount, approved_amount, denied_amount,
			   status, has_denial, created_at, updated_at
		FROM claims
		WHERE batch_id = $1
		ORDER BY claim_number
	`

	rows, err := r.db.QueryWithTimeout(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("error querying claims: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		var claim models.Claim
		err := rows.Scan(
			&claim.ID, &claim.BatchID, &claim.ProviderID, &claim.ClaimNumber, &claim.CardNumber, &claim.ServiceDate,
			&claim.DeclaredAmount, &claim.ApprovedAmount, &claim.DeniedAmount,
			&claim.Status, &claim.HasDenial, &claim.CreatedAt, &claim.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning claim: %w", err)
		}
		claims = append(claims, claim)
	}

	return claims, nil
}

// TransitionStatus aplica uma transição de status com compare-and-set
// contra a camada de persistência: zero linhas afetadas significa que
// outro chamador venceu a corrida ou o estado esperado não vale mais.
func (r *BatchRepository) TransitionStatus(id uuid.UUID, from, to models.BatchStatus) error {
	query := `
		UPDATE batches
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecWithTimeout(query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("error updating batch status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewStateConflictError(fmt.Sprintf("batch %s is not in status %s", id, from))
	}

	return nil
}

// SetSignedDocument grava o documento assinado e seu hash de conteúdo
func (r *BatchRepository) SetSignedDocument(id uuid.UUID, document, hash string) error {
	query := `
		UPDATE batches
		SET signed_document = $1, document_hash = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecWithTimeout(query, document, hash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating signed document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("batch not found: %s", id)
	}

	return nil
}

// SetProtocol grava o número de protocolo atribuído pela operadora
func (r *BatchRepository) SetProtocol(id uuid.UUID, protocolNumber string, sentAt time.Time) error {
	query := `
		UPDATE batches
		SET protocol_number = $1, sent_at = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.ExecWithTimeout(query, protocolNumber, sentAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating batch protocol: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("batch not found: %s", id)
	}

	return nil
}

// AppendError acumula um erro na lista do lote (trilha de auditoria)
func (r *BatchRepository) AppendError(id uuid.UUID, message string) error {
	query := `
		UPDATE batches
		SET errors = array_append(errors, $1), updated_at = $2
		WHERE id = $3
	`

	if _, err := r.db.ExecWithTimeout(query, message, time.Now(), id); err != nil {
		return fmt.Errorf("error appending batch error: %w", err)
	}

	return nil
}

// SetAdjudicationTotals grava os totais conciliados do demonstrativo
func (r *BatchRepository) SetAdjudicationTotals(id uuid.UUID, approved, denied float64, processedAt time.Time) error {
	query := `
		UPDATE batches
		SET approved_amount = $1, denied_amount = $2, processed_at = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecWithTimeout(query, approved, denied, processedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating batch totals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("batch not found: %s", id)
	}

	return nil
}

// GetByProviderID obtém lotes por prestador com paginação
func (r *BatchRepository) GetByProviderID(providerID uuid.UUID, page, pageSize int) ([]models.Batch, int, error) {
	countQuery := `SELECT COUNT(*) FROM batches WHERE provider_id = $1`
	var total int
	err := r.db.QueryRowWithTimeout(countQuery, providerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting batches: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, provider_id, operator_id, batch_number, status,
			   protocol_number, declared_amount, approved_amount, denied_amount,
			   created_at, sent_at, processed_at
		FROM batches
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryWithTimeout(query, providerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying batches: %w", err)
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		var batch models.Batch
		err := rows.Scan(
			&batch.ID, &batch.ProviderID, &batch.OperatorID, &batch.BatchNumber, &batch.Status,
			&batch.ProtocolNumber, &batch.DeclaredAmount, &batch.ApprovedAmount, &batch.DeniedAmount,
			&batch.CreatedAt, &batch.SentAt, &batch.ProcessedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning batch: %w", err)
		}
		batches = append(batches, batch)
	}

	return batches, total, nil
}
