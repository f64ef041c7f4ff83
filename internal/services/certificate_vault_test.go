package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// fakeCertStore guarda registros em memória para os testes do cofre
type fakeCertStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.CertificateRecord
}

func newFakeCertStore() *fakeCertStore {
	return &fakeCertStore{records: make(map[uuid.UUID]*models.CertificateRecord)}
}

func (s *fakeCertStore) Upsert(record *models.CertificateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ProviderID] = record
	return nil
}

func (s *fakeCertStore) GetByProviderID(providerID uuid.UUID) (*models.CertificateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[providerID]
	if !ok {
		return nil, models.ErrNotConfigured
	}
	copied := *record
	return &copied, nil
}

func (s *fakeCertStore) Delete(providerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, providerID)
	return nil
}

// staticKeyProvider entrega uma chave fixa de 32 bytes
type staticKeyProvider struct {
	key []byte
}

func (p *staticKeyProvider) EncryptionKey() ([]byte, error) {
	return p.key, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testVaultKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

// makeTestContainer gera um contêiner PKCS#12 autoassinado com o CNPJ no
// CN, no padrão dos certificados de pessoa jurídica
func makeTestContainer(t *testing.T, commonName, passphrase string, notBefore, notAfter time.Time) ([]byte, *rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1000),
		Subject: pkix.Name{
			CommonName: commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	container, err := pkcs12.Modern.Encode(key, cert, nil, passphrase)
	require.NoError(t, err)

	return container, key, cert
}

func newTestVault() (*CertificateVault, *fakeCertStore) {
	store := newFakeCertStore()
	vault := NewCertificateVault(store, &staticKeyProvider{key: testVaultKey()}, testLogger())
	return vault, store
}

func TestEncryptBlob_RoundTrip(t *testing.T) {
	key := testVaultKey()

	cases := []struct {
		name      string
		plaintext []byte
	}{
		{"empty payload", []byte{}},
		{"short payload", []byte("segredo")},
		{"large payload", make([]byte, 150*1024)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blob, err := encryptBlob(key, tc.plaintext)
			require.NoError(t, err)

			assert.Len(t, blob.Nonce, gcmNonceSize)
			assert.Len(t, blob.Tag, gcmTagSize)

			decrypted, err := decryptBlob(key, blob)
			require.NoError(t, err)
			assert.Equal(t, tc.plaintext, decrypted)
		})
	}
}

func TestDecryptBlob_DetectsTampering(t *testing.T) {
	key := testVaultKey()

	t.Run("ciphertext byte flip", func(t *testing.T) {
		blob, err := encryptBlob(key, []byte("conteudo do contrato"))
		require.NoError(t, err)

		blob.Data[0] ^= 0xFF
		_, err = decryptBlob(key, blob)
		assert.Error(t, err)
	})

	t.Run("nonce byte flip", func(t *testing.T) {
		blob, err := encryptBlob(key, []byte("conteudo do contrato"))
		require.NoError(t, err)

		blob.Nonce[0] ^= 0xFF
		_, err = decryptBlob(key, blob)
		assert.Error(t, err)
	})

	t.Run("tag swapped between blobs", func(t *testing.T) {
		first, err := encryptBlob(key, []byte("primeiro"))
		require.NoError(t, err)
		second, err := encryptBlob(key, []byte("segundo"))
		require.NoError(t, err)

		first.Tag = second.Tag
		_, err = decryptBlob(key, first)
		assert.Error(t, err)
	})
}

func TestCertificateVault_Store(t *testing.T) {
	vault, _ := newTestVault()
	providerID := uuid.New()

	t.Run("stores valid certificate and extracts metadata", func(t *testing.T) {
		container, _, _ := makeTestContainer(t,
			"ACME SAUDE LTDA:12345678000195", "senha-forte",
			time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

		resp, err := vault.Store(providerID, &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString(container),
			Passphrase:        "senha-forte",
		}, "ops@acme.com.br")
		require.NoError(t, err)

		assert.Equal(t, "12.345.678/0001-95", resp.Metadata.TaxID)
		assert.Equal(t, models.CertificateClassA1, resp.Metadata.Class)
		assert.Equal(t, "ops@acme.com.br", resp.UploadedBy)
		assert.Greater(t, resp.Metadata.DaysUntilExpiry, 300)
	})

	t.Run("long validity window classifies as A3", func(t *testing.T) {
		container, _, _ := makeTestContainer(t,
			"ACME SAUDE LTDA:12345678000195", "senha-forte",
			time.Now().Add(-24*time.Hour), time.Now().Add(3*365*24*time.Hour))

		resp, err := vault.Store(uuid.New(), &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString(container),
			Passphrase:        "senha-forte",
		}, "ops@acme.com.br")
		require.NoError(t, err)
		assert.Equal(t, models.CertificateClassA3, resp.Metadata.Class)
	})

	t.Run("wrong passphrase is rejected before persisting", func(t *testing.T) {
		container, _, _ := makeTestContainer(t,
			"ACME SAUDE LTDA:12345678000195", "senha-correta",
			time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

		_, err := vault.Store(uuid.New(), &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString(container),
			Passphrase:        "senha-errada",
		}, "ops@acme.com.br")
		assert.ErrorIs(t, err, models.ErrWrongPassphrase)
	})

	t.Run("garbage container is rejected", func(t *testing.T) {
		_, err := vault.Store(uuid.New(), &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString([]byte("nao sou um pkcs12")),
			Passphrase:        "qualquer",
		}, "ops@acme.com.br")
		assert.ErrorIs(t, err, models.ErrInvalidContainer)
	})

	t.Run("invalid base64 is a validation error", func(t *testing.T) {
		_, err := vault.Store(uuid.New(), &models.StoreCertificateRequest{
			CertificateBase64: "%%% nao e base64 %%%",
			Passphrase:        "qualquer",
		}, "ops@acme.com.br")
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})

	t.Run("expired certificate is rejected", func(t *testing.T) {
		container, _, _ := makeTestContainer(t,
			"ACME SAUDE LTDA:12345678000195", "senha-forte",
			time.Now().Add(-400*24*time.Hour), time.Now().Add(-48*time.Hour))

		_, err := vault.Store(uuid.New(), &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString(container),
			Passphrase:        "senha-forte",
		}, "ops@acme.com.br")
		assert.ErrorIs(t, err, models.ErrCertificateExpired)
	})

	t.Run("certificate without tax id is rejected", func(t *testing.T) {
		container, _, _ := makeTestContainer(t,
			"PESSOA FISICA SEM CNPJ", "senha-forte",
			time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

		_, err := vault.Store(uuid.New(), &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString(container),
			Passphrase:        "senha-forte",
		}, "ops@acme.com.br")
		assert.ErrorIs(t, err, models.ErrMissingTaxID)
	})
}

func TestCertificateVault_RetrieveAndUnlock(t *testing.T) {
	vault, store := newTestVault()
	providerID := uuid.New()

	container, key, cert := makeTestContainer(t,
		"ACME SAUDE LTDA:12345678000195", "senha-forte",
		time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

	_, err := vault.Store(providerID, &models.StoreCertificateRequest{
		CertificateBase64: base64.StdEncoding.EncodeToString(container),
		Passphrase:        "senha-forte",
	}, "ops@acme.com.br")
	require.NoError(t, err)

	t.Run("retrieve returns original container and passphrase", func(t *testing.T) {
		data, passphrase, err := vault.Retrieve(providerID)
		require.NoError(t, err)
		assert.Equal(t, container, data)
		assert.Equal(t, "senha-forte", passphrase)
	})

	t.Run("unlock returns the private key and leaf certificate", func(t *testing.T) {
		privateKey, leaf, _, err := vault.Unlock(providerID)
		require.NoError(t, err)

		rsaKey, ok := privateKey.(*rsa.PrivateKey)
		require.True(t, ok)
		assert.True(t, rsaKey.Equal(key))
		assert.Equal(t, cert.SerialNumber, leaf.SerialNumber)
	})

	t.Run("tampered blob fails as crypto integrity", func(t *testing.T) {
		record := store.records[providerID]
		record.Certificate.Data[0] ^= 0xFF

		_, _, err := vault.Retrieve(providerID)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrorKindCryptoIntegrity))
		assert.ErrorIs(t, err, models.ErrCryptoIntegrity)

		record.Certificate.Data[0] ^= 0xFF
	})

	t.Run("unknown provider is not configured", func(t *testing.T) {
		_, _, err := vault.Retrieve(uuid.New())
		assert.ErrorIs(t, err, models.ErrNotConfigured)
	})
}

func TestCertificateVault_ExpiredCertificateNeverLeavesVault(t *testing.T) {
	vault, store := newTestVault()
	providerID := uuid.New()

	t.Run("certificate that expired after upload is withheld", func(t *testing.T) {
		container, _, _ := makeTestContainer(t,
			"ACME SAUDE LTDA:12345678000195", "senha-forte",
			time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

		_, err := vault.Store(providerID, &models.StoreCertificateRequest{
			CertificateBase64: base64.StdEncoding.EncodeToString(container),
			Passphrase:        "senha-forte",
		}, "ops@acme.com.br")
		require.NoError(t, err)

		// a validade venceu depois da gravação
		store.records[providerID].Metadata.ValidUntil = time.Now().Add(-72 * time.Hour)

		_, _, err = vault.Retrieve(providerID)
		assert.ErrorIs(t, err, models.ErrCertificateExpired)

		_, _, _, err = vault.Unlock(providerID)
		assert.ErrorIs(t, err, models.ErrCertificateExpired)
	})

	t.Run("record persisted already expired is withheld", func(t *testing.T) {
		container, _, cert := makeTestContainer(t,
			"ACME SAUDE LTDA:12345678000195", "senha-forte",
			time.Now().Add(-400*24*time.Hour), time.Now().Add(-72*time.Hour))

		key := testVaultKey()
		encCert, err := encryptBlob(key, container)
		require.NoError(t, err)
		encPass, err := encryptBlob(key, []byte("senha-forte"))
		require.NoError(t, err)

		expiredProvider := uuid.New()
		require.NoError(t, store.Upsert(&models.CertificateRecord{
			ID:          uuid.New(),
			ProviderID:  expiredProvider,
			Certificate: encCert,
			Passphrase:  encPass,
			Metadata: models.CertificateMetadata{
				SubjectName:     cert.Subject.CommonName,
				TaxID:           "12.345.678/0001-95",
				ValidFrom:       cert.NotBefore,
				ValidUntil:      cert.NotAfter,
				Class:           models.CertificateClassA1,
				DaysUntilExpiry: daysUntil(cert.NotAfter),
			},
			UploadedAt: time.Now().Add(-30 * 24 * time.Hour),
			UploadedBy: "ops@acme.com.br",
		}))

		data, passphrase, err := vault.Retrieve(expiredProvider)
		assert.ErrorIs(t, err, models.ErrCertificateExpired)
		assert.Nil(t, data)
		assert.Empty(t, passphrase)
	})

	t.Run("metadata still reports the expired certificate", func(t *testing.T) {
		resp, err := vault.Metadata(providerID)
		require.NoError(t, err)
		assert.Negative(t, resp.Metadata.DaysUntilExpiry)
	})
}

func TestCertificateVault_MetadataAndDelete(t *testing.T) {
	vault, _ := newTestVault()
	providerID := uuid.New()

	container, _, _ := makeTestContainer(t,
		"ACME SAUDE LTDA:12345678000195", "senha-forte",
		time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

	_, err := vault.Store(providerID, &models.StoreCertificateRequest{
		CertificateBase64: base64.StdEncoding.EncodeToString(container),
		Passphrase:        "senha-forte",
	}, "ops@acme.com.br")
	require.NoError(t, err)

	t.Run("metadata does not decrypt the container", func(t *testing.T) {
		resp, err := vault.Metadata(providerID)
		require.NoError(t, err)
		assert.Equal(t, "12.345.678/0001-95", resp.Metadata.TaxID)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		require.NoError(t, vault.Delete(providerID))

		_, err := vault.Metadata(providerID)
		assert.ErrorIs(t, err, models.ErrNotConfigured)
	})
}

func TestFormatCNPJ(t *testing.T) {
	assert.Equal(t, "12.345.678/0001-95", formatCNPJ("12345678000195"))
	assert.Equal(t, "123", formatCNPJ("123"))
}

func TestPipelineErrorClassification(t *testing.T) {
	var target *models.PipelineError

	err := models.NewNetworkError("operator unreachable", errors.New("dial timeout"))
	require.ErrorAs(t, err, &target)
	assert.True(t, models.IsRetryable(err))

	err = models.NewProtocolError("operator rejected batch", nil)
	assert.False(t, models.IsRetryable(err))
	assert.True(t, models.IsKind(err, models.ErrorKindProtocol))
}
