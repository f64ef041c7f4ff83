package models

import (
	"time"

	"github.com/google/uuid"
)

// CertificateClass representa a classe do certificado ICP-Brasil,
// inferida pela janela de validade: A1 (arquivo, curta duração) ou
// A3 (token/cartão, longa duração)
type CertificateClass string

const (
	CertificateClassA1 CertificateClass = "A1"
	CertificateClassA3 CertificateClass = "A3"
)

// EncryptedBlob representa um valor cifrado com AEAD: ciphertext,
// nonce e tag de autenticação armazenados separadamente
type EncryptedBlob struct {
	Data  []byte `json:"-" db:"data"`
	Nonce []byte `json:"-" db:"nonce"`
	Tag   []byte `json:"-" db:"tag"`
}

// CertificateMetadata representa os metadados extraídos do certificado
type CertificateMetadata struct {
	SubjectName     string           `json:"subject_name" db:"subject_name"`
	TaxID           string           `json:"tax_id" db:"tax_id"`
	Issuer          string           `json:"issuer" db:"issuer"`
	SerialNumber    string           `json:"serial_number" db:"serial_number"`
	ValidFrom       time.Time        `json:"valid_from" db:"valid_from"`
	ValidUntil      time.Time        `json:"valid_until" db:"valid_until"`
	Class           CertificateClass `json:"class" db:"class"`
	DaysUntilExpiry int              `json:"days_until_expiry"`
}

// CertificateRecord representa o certificado digital armazenado de um
// prestador: o contêiner e a senha são cifrados de forma independente,
// cada um com seu próprio nonce
type CertificateRecord struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	ProviderID  uuid.UUID           `json:"provider_id" db:"provider_id"`
	Certificate EncryptedBlob       `json:"-"`
	Passphrase  EncryptedBlob       `json:"-"`
	Metadata    CertificateMetadata `json:"metadata"`
	UploadedAt  time.Time           `json:"uploaded_at" db:"uploaded_at"`
	UploadedBy  string              `json:"uploaded_by" db:"uploaded_by"`
}

// StoreCertificateRequest representa o request para armazenar um certificado
type StoreCertificateRequest struct {
	CertificateBase64 string `json:"certificate" binding:"required"`
	Passphrase        string `json:"passphrase" binding:"required"`
}

// CertificateResponse representa a resposta com os metadados do certificado
type CertificateResponse struct {
	Metadata   CertificateMetadata `json:"metadata"`
	UploadedAt time.Time           `json:"uploaded_at"`
	UploadedBy string              `json:"uploaded_by"`
}
