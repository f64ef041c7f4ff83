package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// ClaimRepository maneja as operações de banco para guias, glosas e
// recursos. Toda mudança de status passa pelo compare-and-set.
type ClaimRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewClaimRepository cria uma nova instância do repositório
func NewClaimRepository(db *DB, logger *logrus.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID obtém uma guia por ID com itens e glosas
func (r *ClaimRepository) GetByID(id uuid.UUID) (*models.Claim, error) {
	query := `
		SELECT id, batch_id, provider_id, claim_number, card_number, service_date,
			   declared_amount, approved_amount, denied_amount,
			   status, has_denial, created_at, updated_at
		FROM claims
		WHERE id = $1
	`

	var claim models.Claim
	err := r.db.QueryRowWithTimeout(query, id).Scan(
		&claim.ID, &claim.BatchID, &claim.ProviderID, &claim.ClaimNumber, &claim.CardNumber, &claim.ServiceDate,
		&claim.DeclaredAmount, &claim.ApprovedAmount, &claim.DeniedAmount,
		&claim.Status, &claim.HasDenial, &claim.CreatedAt, &claim.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("claim not found: %s", id)
		}
		return nil, fmt.Errorf("error querying claim: %w", err)
	}

	items, err := r.GetItemsByClaimID(id)
	if err != nil {
		r.logger.Warnf("Error getting items for claim %s: %v", id, err)
	}
	claim.Items = items

	glosas, err := r.GetGlosasByClaimID(id)
	if err != nil {
		r.logger.Warnf("Error getting glosas for claim %s: %v", id, err)
	}
	claim.Glosas = glosas

	return &claim, nil
}

// GetByClaimNumber obtém uma guia pelo número do prestador dentro do lote
func (r *ClaimRepository) GetByClaimNumber(batchID uuid.UUID, claimNumber string) (*models.Claim, error) {
	query := `SELECT id FROM claims WHERE batch_id = $1 AND claim_number = $2`

	var id uuid.UUID
	err := r.db.QueryRowWithTimeout(query, batchID, claimNumber).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("claim not found: batch %s number %s", batchID, claimNumber)
		}
		return nil, fmt.Errorf("error querying claim by number: %w", err)
	}

	return r.GetByID(id)
}

// GetItemsByClaimID obtém os procedimentos de uma guia
func (r *ClaimRepository) GetItemsByClaimID(claimID uuid.UUID) ([]models.ClaimItem, error) {
	query := `
		SELECT id, claim_id, sequence, procedure_code, description,
			   qty, unit_amount, total_amount, created_at
		FROM claim_items
		WHERE claim_id = $1
		ORDER BY sequence
	`

	rows, err := r.db.QueryWithTimeout(query, claimID)
	if err != nil {
		return nil, fmt.Errorf("error querying claim items: %w", err)
	}
	defer rows.Close()

	var items []models.ClaimItem
	for rows.Next() {
		var item models.ClaimItem
		err := rows.Scan(
			&item.ID, &item.ClaimID, &item.Sequence, &item.ProcedureCode, &item.Description,
			&item.Quantity, &item.UnitAmount, &item.TotalAmount, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning claim item: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

// TransitionStatus aplica uma transição de status de guia com
// compare-and-set contra a camada de persistência
func (r *ClaimRepository) TransitionStatus(id uuid.UUID, from, to models.ClaimStatus) error {
	query := `
		UPDATE claims
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecWithTimeout(query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("error updating claim status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.NewStateConflictError(fmt.Sprintf("claim %s is not in status %s", id, from))
	}

	return nil
}

// SetAdjudication grava os valores conciliados do demonstrativo
func (r *ClaimRepository) SetAdjudication(id uuid.UUID, approved, denied float64, hasDenial bool) error {
	query := `
		UPDATE claims
		SET approved_amount = $1, denied_amount = $2, has_denial = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecWithTimeout(query, approved, denied, hasDenial, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating claim adjudication: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("claim not found: %s", id)
	}

	return nil
}

// CreateGlosas grava as glosas emitidas pelo demonstrativo para uma guia
func (r *ClaimRepository) CreateGlosas(glosas []models.Glosa) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		for _, glosa := range glosas {
			query := `
				INSERT INTO glosas (
					id, claim_id, item_sequence, procedure_code,
					denied_amount, denial_code, denial_reason,
					adjudicated_at, appeal_deadline, created_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
				)
			`

			_, err := tx.Exec(query,
				glosa.ID, glosa.ClaimID, glosa.ItemSequence, glosa.ProcedureCode,
				glosa.DeniedAmount, glosa.DenialCode, glosa.DenialReason,
				glosa.AdjudicatedAt, glosa.AppealDeadline, glosa.CreatedAt,
			)

			if err != nil {
				return fmt.Errorf("error inserting glosa: %w", err)
			}
		}

		return nil
	})
}

// GetGlosasByClaimID obtém as glosas de uma guia
func (r *ClaimRepository) GetGlosasByClaimID(claimID uuid.UUID) ([]models.Glosa, error) {
	query := `
		SELECT id, claim_id, item_sequence, procedure_code,
			   denied_amount, denial_code, denial_reason,
			   adjudicated_at, appeal_deadline, created_at
		FROM glosas
		WHERE claim_id = $1
		ORDER BY item_sequence
	`

	rows, err := r.db.QueryWithTimeout(query, claimID)
	if err != nil {
		return nil, fmt.Errorf("error querying glosas: %w", err)
	}
	defer rows.Close()

	var glosas []models.Glosa
	for rows.Next() {
		var glosa models.Glosa
		err := rows.Scan(
			&glosa.ID, &glosa.ClaimID, &glosa.ItemSequence, &glosa.ProcedureCode,
			&glosa.DeniedAmount, &glosa.DenialCode, &glosa.DenialReason,
			&glosa.AdjudicatedAt, &glosa.AppealDeadline, &glosa.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning glosa: %w", err)
		}
		glosas = append(glosas, glosa)
	}

	return glosas, nil
}

// GetGlosaByID obtém uma glosa por ID
func (r *ClaimRepository) GetGlosaByID(id uuid.UUID) (*models.Glosa, error) {
	query := `
		SELECT id, claim_id, item_sequence, procedure_code,
			   denied_amount, denial_code, denial_reason,
			   adjudicated_at, appeal_deadline, created_at
		FROM glosas
		WHERE id = $1
	`

	var glosa models.Glosa
	err := r.db.QueryRowWithTimeout(query, id).Scan(
		&glosa.ID, &glosa.ClaimID, &glosa.ItemSequence, &glosa.ProcedureCode,
		&glosa.DeniedAmount, &glosa.DenialCode, &glosa.DenialReason,
		&glosa.AdjudicatedAt, &glosa.AppealDeadline, &glosa.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("glosa not found: %s", id)
		}
		return nil, fmt.Errorf("error querying glosa: %w", err)
	}

	return &glosa, nil
}

// CreateAppeal grava um recurso de glosa com seus itens
func (r *ClaimRepository) CreateAppeal(appeal *models.Appeal) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		query := `
			INSERT INTO appeals (
				id, claim_id, provider_id, justification, status,
				signed_document, protocol_number, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			)
		`

		_, err := tx.Exec(query,
			appeal.ID, appeal.ClaimID, appeal.ProviderID, appeal.Justification, appeal.Status,
			appeal.SignedDocument, appeal.ProtocolNumber, appeal.CreatedAt, appeal.UpdatedAt,
		)

		if err != nil {
			return fmt.Errorf("error inserting appeal: %w", err)
		}

		for _, item := range appeal.Items {
			itemQuery := `
				INSERT INTO appeal_items (
					id, appeal_id, glosa_id, item_sequence, procedure_code,
					contested_amount, justification, created_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8
				)
			`

			_, err := tx.Exec(itemQuery,
				item.ID, item.AppealID, item.GlosaID, item.ItemSequence, item.ProcedureCode,
				item.ContestedAmount, item.Justification, item.CreatedAt,
			)

			if err != nil {
				return fmt.Errorf("error inserting appeal item: %w", err)
			}
		}

		return nil
	})
}

// UpdateAppealSubmission grava o documento assinado e o protocolo do recurso
func (r *ClaimRepository) UpdateAppealSubmission(id uuid.UUID, signedDocument string, protocolNumber *string, status models.AppealStatus) error {
	query := `
		UPDATE appeals
		SET signed_document = $1, protocol_number = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecWithTimeout(query, signedDocument, protocolNumber, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating appeal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("appeal not found: %s", id)
	}

	return nil
}
