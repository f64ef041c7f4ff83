package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// DocumentRepository maneja as operações de banco para documentos de lote
// (XML assinado, resposta bruta da operadora, PDF do demonstrativo)
type DocumentRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewDocumentRepository cria uma nova instância do repositório
func NewDocumentRepository(db *DB, logger *logrus.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// CreateOrUpdate grava ou substitui um documento de lote (UPSERT por tipo)
func (r *DocumentRepository) CreateOrUpdate(doc *models.BatchDocument) error {
	query := `
		INSERT INTO batch_documents (
			id, batch_id, kind, data, size, url, content_hash, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (batch_id, kind) DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			url = EXCLUDED.url,
			content_hash = EXCLUDED.content_hash,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecWithTimeout(query,
		doc.ID, doc.BatchID, doc.Kind, doc.Data, doc.Size,
		doc.URL, doc.ContentHash, doc.CreatedAt, doc.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("error upserting batch document: %w", err)
	}

	return nil
}

// GetByBatchAndKind obtém um documento de um lote pelo tipo
func (r *DocumentRepository) GetByBatchAndKind(batchID uuid.UUID, kind models.DocumentKind) (*models.BatchDocument, error) {
	query := `
		SELECT id, batch_id, kind, data, size, url, content_hash, created_at, updated_at
		FROM batch_documents
		WHERE batch_id = $1 AND kind = $2
	`

	var doc models.BatchDocument
	err := r.db.QueryRowWithTimeout(query, batchID, kind).Scan(
		&doc.ID, &doc.BatchID, &doc.Kind, &doc.Data, &doc.Size,
		&doc.URL, &doc.ContentHash, &doc.CreatedAt, &doc.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document not found for batch %s kind %s", batchID, kind)
		}
		return nil, fmt.Errorf("error querying batch document: %w", err)
	}

	return &doc, nil
}

// GetByBatchID obtém todos os documentos de um lote
func (r *DocumentRepository) GetByBatchID(batchID uuid.UUID) ([]models.BatchDocument, error) {
	query := `
		SELECT id, batch_id, kind, data, size, url, content_hash, created_at, updated_at
		FROM batch_documents
		WHERE batch_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryWithTimeout(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("error querying batch documents: %w", err)
	}
	defer rows.Close()

	var docs []models.BatchDocument
	for rows.Next() {
		var doc models.BatchDocument
		err := rows.Scan(
			&doc.ID, &doc.BatchID, &doc.Kind, &doc.Data, &doc.Size,
			&doc.URL, &doc.ContentHash, &doc.CreatedAt, &doc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning batch document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete remove os documentos de um lote
func (r *DocumentRepository) Delete(batchID uuid.UUID) error {
	query := `DELETE FROM batch_documents WHERE batch_id = $1`

	_, err := r.db.ExecWithTimeout(query, batchID)
	if err != nil {
		return fmt.Errorf("error deleting batch documents: %w", err)
	}

	return nil
}

// Exists verifica se um lote já tem documento do tipo informado
func (r *DocumentRepository) Exists(batchID uuid.UUID, kind models.DocumentKind) (bool, error) {
	query := `SELECT COUNT(*) FROM batch_documents WHERE batch_id = $1 AND kind = $2`

	var count int
	err := r.db.QueryRowWithTimeout(query, batchID, kind).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking batch document existence: %w", err)
	}

	return count > 0, nil
}
