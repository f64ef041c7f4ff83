package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// CertificateRepository maneja as operações de banco para certificados
// cifrados. Existe no máximo um certificado ativo por prestador.
type CertificateRepository struct {
	db     *DB
	logger *logrus.Logger
}

// NewCertificateRepository cria uma nova instância do repositório
func NewCertificateRepository(db *DB, logger *logrus.Logger) *CertificateRepository {
	return &CertificateRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert grava ou substitui o certificado do prestador
func (r *CertificateRepository) Upsert(record *models.CertificateRecord) error {
	query := `
		INSERT INTO certificates (
			id, provider_id,
			cert_data, cert_nonce, cert_tag,
			pass_data, pass_nonce, pass_tag,
			subject_name, tax_id, issuer, serial_number,
			valid_from, valid_until, class,
			uploaded_at, uploaded_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (provider_id) DO UPDATE SET
			cert_data = EXCLUDED.cert_data,
			cert_nonce = EXCLUDED.cert_nonce,
			cert_tag = EXCLUDED.cert_tag,
			pass_data = EXCLUDED.pass_data,
			pass_nonce = EXCLUDED.pass_nonce,
			pass_tag = EXCLUDED.pass_tag,
			subject_name = EXCLUDED.subject_name,
			tax_id = EXCLUDED.tax_id,
			issuer = EXCLUDED.issuer,
			serial_number = EXCLUDED.serial_number,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			class = EXCLUDED.class,
			uploaded_at = EXCLUDED.uploaded_at,
			uploaded_by = EXCLUDED.uploaded_by
	`

	_, err := r.db.ExecWithTimeout(query,
		record.ID, record.ProviderID,
		record.Certificate.Data, record.Certificate.Nonce, record.Certificate.Tag,
		record.Passphrase.Data, record.Passphrase.Nonce, record.Passphrase.Tag,
		record.Metadata.SubjectName, record.Metadata.TaxID, record.Metadata.Issuer, record.Metadata.SerialNumber,
		record.Metadata.ValidFrom, record.Metadata.ValidUntil, record.Metadata.Class,
		record.UploadedAt, record.UploadedBy,
	)

	if err != nil {
		return fmt.Errorf("error upserting certificate: %w", err)
	}

	return nil
}

// GetByProviderID obtém o certificado ativo de um prestador
func (r *CertificateRepository) GetByProviderID(providerID uuid.UUID) (*models.CertificateRecord, error) {
	query := `
		SELECT id, provider_id,
			   cert_data, cert_nonce, cert_tag,
			   pass_data, pass_nonce, pass_tag,
			   subject_name, tax_id, issuer, serial_number,
			   valid_from, valid_until, class,
			   uploaded_at, uploaded_by
		FROM certificates
		WHERE provider_id = $1
	`

	var record models.CertificateRecord
	err := r.db.QueryRowWithTimeout(query, providerID).Scan(
		&record.ID, &record.ProviderID,
		&record.Certificate.Data, &record.Certificate.Nonce, &record.Certificate.Tag,
		&record.Passphrase.Data, &record.Passphrase.Nonce, &record.Passphrase.Tag,
		&record.Metadata.SubjectName, &record.Metadata.TaxID, &record.Metadata.Issuer, &record.Metadata.SerialNumber,
		&record.Metadata.ValidFrom, &record.Metadata.ValidUntil, &record.Metadata.Class,
		&record.UploadedAt, &record.UploadedBy,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotConfigured
		}
		return nil, fmt.Errorf("error querying certificate: %w", err)
	}

	return &record, nil
}

// Delete remove o certificado do prestador; idempotente
func (r *CertificateRepository) Delete(providerID uuid.UUID) error {
	query := `DELETE FROM certificates WHERE provider_id = $1`

	if _, err := r.db.ExecWithTimeout(query, providerID); err != nil {
		return fmt.Errorf("error deleting certificate: %w", err)
	}

	return nil
}
