package services

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/hypernova-labs/tiss-service/internal/secrets"
	"github.com/sirupsen/logrus"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

const (
	// gcmNonceSize é o tamanho do nonce usado pelo cofre (128 bits)
	gcmNonceSize = 16
	// gcmTagSize é o tamanho da tag de autenticação GCM (128 bits)
	gcmTagSize = 16
)

// oidCNPJ é o atributo de subject ICP-Brasil que carrega o CNPJ da
// pessoa jurídica titular do certificado
var oidCNPJ = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}

var cnpjPattern = regexp.MustCompile(`\d{14}`)

// CertificateStore é a camada de persistência exigida pelo cofre
type CertificateStore interface {
	Upsert(record *models.CertificateRecord) error
	GetByProviderID(providerID uuid.UUID) (*models.CertificateRecord, error)
	Delete(providerID uuid.UUID) error
}

// CertificateVault guarda o certificado digital A1/A3 de cada prestador.
// O contêiner PKCS#12 e a senha são cifrados de forma independente com
// AES-256-GCM antes de tocar o banco; o material nunca é logado.
type CertificateVault struct {
	store   CertificateStore
	secrets secrets.Provider
	logger  *logrus.Logger
}

// NewCertificateVault cria uma nova instância do cofre
func NewCertificateVault(store CertificateStore, secretsProvider secrets.Provider, logger *logrus.Logger) *CertificateVault {
	return &CertificateVault{
		store:   store,
		secrets: secretsProvider,
		logger:  logger,
	}
}

// Store valida, cifra e grava o certificado de um prestador. O contêiner
// chega em base64 junto com a senha; a senha precisa abrir o contêiner
// antes de qualquer gravação.
func (v *CertificateVault) Store(providerID uuid.UUID, req *models.StoreCertificateRequest, uploadedBy string) (*models.CertificateResponse, error) {
	containerData, err := base64.StdEncoding.DecodeString(req.CertificateBase64)
	if err != nil {
		return nil, models.NewDataValidationError("certificate is not valid base64", err)
	}

	_, cert, _, err := pkcs12.DecodeChain(containerData, req.Passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, models.ErrWrongPassphrase
		}
		return nil, models.ErrInvalidContainer
	}

	metadata, err := extractCertificateMetadata(cert)
	if err != nil {
		return nil, err
	}

	if metadata.DaysUntilExpiry < 0 {
		return nil, models.ErrCertificateExpired
	}

	key, err := v.secrets.EncryptionKey()
	if err != nil {
		return nil, models.NewConfigurationError("vault encryption key unavailable", err)
	}

	encCert, err := encryptBlob(key, containerData)
	if err != nil {
		return nil, fmt.Errorf("error encrypting certificate: %w", err)
	}

	encPass, err := encryptBlob(key, []byte(req.Passphrase))
	if err != nil {
		return nil, fmt.Errorf("error encrypting passphrase: %w", err)
	}

	record := &models.CertificateRecord{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Certificate: encCert,
		Passphrase:  encPass,
		Metadata:    *metadata,
		UploadedAt:  time.Now(),
		UploadedBy:  uploadedBy,
	}

	if err := v.store.Upsert(record); err != nil {
		return nil, err
	}

	v.logger.WithFields(logrus.Fields{
		"provider_id": providerID,
		"tax_id":      metadata.TaxID,
		"class":       metadata.Class,
		"valid_until": metadata.ValidUntil.Format(time.RFC3339),
	}).Info("Certificate stored successfully")

	return &models.CertificateResponse{
		Metadata:   *metadata,
		UploadedAt: record.UploadedAt,
		UploadedBy: record.UploadedBy,
	}, nil
}

// Retrieve devolve o contêiner PKCS#12 e a senha em claro para uso
// imediato em assinatura ou mTLS. Um certificado vencido nunca sai do
// cofre; qualquer falha de autenticação AEAD vira erro de integridade.
func (v *CertificateVault) Retrieve(providerID uuid.UUID) ([]byte, string, error) {
	record, err := v.store.GetByProviderID(providerID)
	if err != nil {
		return nil, "", err
	}

	if daysUntil(record.Metadata.ValidUntil) < 0 {
		return nil, "", models.ErrCertificateExpired
	}

	key, err := v.secrets.EncryptionKey()
	if err != nil {
		return nil, "", models.NewConfigurationError("vault encryption key unavailable", err)
	}

	containerData, err := decryptBlob(key, record.Certificate)
	if err != nil {
		return nil, "", &models.PipelineError{
			Kind:    models.ErrorKindCryptoIntegrity,
			Message: "certificate blob failed authentication",
			Cause:   models.ErrCryptoIntegrity,
		}
	}

	passphrase, err := decryptBlob(key, record.Passphrase)
	if err != nil {
		return nil, "", &models.PipelineError{
			Kind:    models.ErrorKindCryptoIntegrity,
			Message: "passphrase blob failed authentication",
			Cause:   models.ErrCryptoIntegrity,
		}
	}

	return containerData, string(passphrase), nil
}

// Unlock decifra e abre o contêiner, devolvendo a chave privada, o
// certificado folha e a cadeia de CAs
func (v *CertificateVault) Unlock(providerID uuid.UUID) (crypto.PrivateKey, *x509.Certificate, []*x509.Certificate, error) {
	containerData, passphrase, err := v.Retrieve(providerID)
	if err != nil {
		return nil, nil, nil, err
	}

	privateKey, cert, caCerts, err := pkcs12.DecodeChain(containerData, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, nil, models.ErrWrongPassphrase
		}
		return nil, nil, nil, models.ErrInvalidContainer
	}

	return privateKey, cert, caCerts, nil
}

// Metadata devolve os metadados do certificado sem decifrar o contêiner
func (v *CertificateVault) Metadata(providerID uuid.UUID) (*models.CertificateResponse, error) {
	record, err := v.store.GetByProviderID(providerID)
	if err != nil {
		return nil, err
	}

	metadata := record.Metadata
	metadata.DaysUntilExpiry = daysUntil(metadata.ValidUntil)

	return &models.CertificateResponse{
		Metadata:   metadata,
		UploadedAt: record.UploadedAt,
		UploadedBy: record.UploadedBy,
	}, nil
}

// Delete remove o certificado do prestador; idempotente
func (v *CertificateVault) Delete(providerID uuid.UUID) error {
	if err := v.store.Delete(providerID); err != nil {
		return err
	}

	v.logger.WithField("provider_id", providerID).Info("Certificate deleted")
	return nil
}

// extractCertificateMetadata extrai CNPJ, validade e classe do
// certificado folha
func extractCertificateMetadata(cert *x509.Certificate) (*models.CertificateMetadata, error) {
	taxID := extractCNPJ(cert)
	if taxID == "" {
		return nil, models.ErrMissingTaxID
	}

	class := models.CertificateClassA1
	// certificados A3 (token/cartão) têm janelas de validade longas
	if cert.NotAfter.Sub(cert.NotBefore) > 2*365*24*time.Hour {
		class = models.CertificateClassA3
	}

	return &models.CertificateMetadata{
		SubjectName:     cert.Subject.CommonName,
		TaxID:           formatCNPJ(taxID),
		Issuer:          cert.Issuer.CommonName,
		SerialNumber:    cert.SerialNumber.String(),
		ValidFrom:       cert.NotBefore,
		ValidUntil:      cert.NotAfter,
		Class:           class,
		DaysUntilExpiry: daysUntil(cert.NotAfter),
	}, nil
}

// extractCNPJ procura o CNPJ primeiro no atributo ICP-Brasil do subject,
// depois como sequência de 14 dígitos no CN e no serialNumber
func extractCNPJ(cert *x509.Certificate) string {
	for _, attr := range cert.Subject.Names {
		if attr.Type.Equal(oidCNPJ) {
			if value, ok := attr.Value.(string); ok {
				if match := cnpjPattern.FindString(value); match != "" {
					return match
				}
			}
		}
	}

	if match := cnpjPattern.FindString(cert.Subject.CommonName); match != "" {
		return match
	}

	if match := cnpjPattern.FindString(cert.Subject.SerialNumber); match != "" {
		return match
	}

	return ""
}

// formatCNPJ formata 14 dígitos como NN.NNN.NNN/NNNN-NN
func formatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s",
		digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}

func daysUntil(t time.Time) int {
	return int(time.Until(t).Hours() / 24)
}

// encryptBlob cifra o plaintext com AES-256-GCM usando nonce aleatório
// de 128 bits; a tag de autenticação é separada do ciphertext
func encryptBlob(key, plaintext []byte) (models.EncryptedBlob, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return models.EncryptedBlob{}, err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return models.EncryptedBlob{}, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return models.EncryptedBlob{}, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - gcmTagSize

	return models.EncryptedBlob{
		Data:  sealed[:tagStart],
		Nonce: nonce,
		Tag:   sealed[tagStart:],
	}, nil
}

// decryptBlob decifra e autentica um blob; qualquer adulteração de
// ciphertext, nonce ou tag falha a verificação
func decryptBlob(key []byte, blob models.EncryptedBlob) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(blob.Data)+len(blob.Tag))
	sealed = append(sealed, blob.Data...)
	sealed = append(sealed, blob.Tag...)

	return gcm.Open(nil, blob.Nonce, sealed, nil)
}
