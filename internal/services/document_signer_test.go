package services

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignerWithCertificate(t *testing.T) (*DocumentSigner, uuid.UUID, *x509.Certificate) {
	t.Helper()

	vault, _ := newTestVault()
	providerID := uuid.New()

	container, _, cert := makeTestContainer(t,
		"ACME SAUDE LTDA:12345678000195", "senha-forte",
		time.Now().Add(-24*time.Hour), time.Now().Add(365*24*time.Hour))

	_, err := vault.Store(providerID, &models.StoreCertificateRequest{
		CertificateBase64: base64.StdEncoding.EncodeToString(container),
		Passphrase:        "senha-forte",
	}, "ops@acme.com.br")
	require.NoError(t, err)

	return NewDocumentSigner(vault, testLogger()), providerID, cert
}

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			"crlf becomes lf",
			"<a>\r\n<b/>\r\n</a>",
			"<a><b/></a>",
		},
		{
			"surrounding whitespace trimmed",
			"  \n <a><b/></a> \n ",
			"<a><b/></a>",
		},
		{
			"inter-tag whitespace collapsed",
			"<a>   <b>texto</b>\n\t<c/></a>",
			"<a><b>texto</b><c/></a>",
		},
		{
			"text content preserved",
			"<a>um  dois</a>",
			"<a>um  dois</a>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Canonicalize(tc.input))
		})
	}
}

func TestDigestValue(t *testing.T) {
	document := "<ans:loteGuias>\r\n  <ans:numeroLote>L1</ans:numeroLote>\r\n</ans:loteGuias>"

	expected := sha256.Sum256([]byte("<ans:loteGuias><ans:numeroLote>L1</ans:numeroLote></ans:loteGuias>"))
	assert.Equal(t, base64.StdEncoding.EncodeToString(expected[:]), DigestValue(document))

	// o digest é estável entre representações equivalentes
	assert.Equal(t, DigestValue(document), DigestValue(Canonicalize(document)))
}

func TestLocateSignableElement(t *testing.T) {
	t.Run("finds loteGuias with namespace prefix", func(t *testing.T) {
		doc := "<ans:mensagemTISS><ans:loteGuias><ans:numeroLote>1</ans:numeroLote></ans:loteGuias></ans:mensagemTISS>"
		target, closing := locateSignableElement(doc)
		assert.Equal(t, "<ans:loteGuias><ans:numeroLote>1</ans:numeroLote></ans:loteGuias>", target)
		assert.Equal(t, "</ans:loteGuias>", closing)
	})

	t.Run("finds recursoGlosa without prefix", func(t *testing.T) {
		doc := "<mensagem><recursoGlosa><item>1</item></recursoGlosa></mensagem>"
		target, closing := locateSignableElement(doc)
		assert.Equal(t, "<recursoGlosa><item>1</item></recursoGlosa>", target)
		assert.Equal(t, "</recursoGlosa>", closing)
	})

	t.Run("falls back to whole document", func(t *testing.T) {
		doc := "<outroDocumento><corpo>x</corpo></outroDocumento>"
		target, closing := locateSignableElement(doc)
		assert.Equal(t, doc, target)
		assert.Equal(t, "</outroDocumento>", closing)
	})
}

func TestDocumentSigner_Sign(t *testing.T) {
	signer, providerID, cert := newSignerWithCertificate(t)

	document := `<?xml version="1.0" encoding="UTF-8"?>
<ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas">
  <ans:loteGuias>
    <ans:numeroLote>L20250101-AB12CD34</ans:numeroLote>
  </ans:loteGuias>
</ans:mensagemTISS>`

	signed, err := signer.Sign(providerID, document)
	require.NoError(t, err)

	t.Run("signature is embedded inside the signed element", func(t *testing.T) {
		sigIdx := strings.Index(signed, `<Signature xmlns="http://www.w3.org/2000/09/xmldsig#">`)
		closeIdx := strings.Index(signed, "</ans:loteGuias>")
		require.GreaterOrEqual(t, sigIdx, 0)
		require.GreaterOrEqual(t, closeIdx, 0)
		assert.Less(t, sigIdx, closeIdx)
	})

	t.Run("digest covers the canonical signable element", func(t *testing.T) {
		canonical := Canonicalize(document)
		target, _ := locateSignableElement(canonical)

		expected := sha256.Sum256([]byte(target))
		expectedValue := base64.StdEncoding.EncodeToString(expected[:])
		assert.Contains(t, signed, "<DigestValue>"+expectedValue+"</DigestValue>")
	})

	t.Run("signature verifies with the certificate public key", func(t *testing.T) {
		signedInfo := extractElement(t, signed, "SignedInfo")
		signatureValue := extractText(t, signed, "SignatureValue")

		signatureBytes, err := base64.StdEncoding.DecodeString(signatureValue)
		require.NoError(t, err)

		digest := sha256.Sum256([]byte(signedInfo))
		publicKey := cert.PublicKey.(*rsa.PublicKey)
		assert.NoError(t, rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], signatureBytes))
	})

	t.Run("embedded certificate matches the vault certificate", func(t *testing.T) {
		certValue := extractText(t, signed, "X509Certificate")
		assert.Equal(t, base64.StdEncoding.EncodeToString(cert.Raw), certValue)
	})

	t.Run("signed document is still well formed", func(t *testing.T) {
		decoder := xml.NewDecoder(strings.NewReader(signed))
		for {
			_, err := decoder.Token()
			if err != nil {
				assert.Equal(t, "EOF", err.Error())
				break
			}
		}
	})
}

func TestDocumentSigner_SignFallback(t *testing.T) {
	signer, providerID, _ := newSignerWithCertificate(t)

	document := "<comunicado><texto>sem elemento assinavel</texto></comunicado>"
	signed, err := signer.Sign(providerID, document)
	require.NoError(t, err)

	sigIdx := strings.Index(signed, "<Signature ")
	closeIdx := strings.LastIndex(signed, "</comunicado>")
	require.GreaterOrEqual(t, sigIdx, 0)
	assert.Less(t, sigIdx, closeIdx)
}

func TestDocumentSigner_SignErrors(t *testing.T) {
	signer, providerID, _ := newSignerWithCertificate(t)

	t.Run("empty document", func(t *testing.T) {
		_, err := signer.Sign(providerID, "   ")
		assert.True(t, models.IsKind(err, models.ErrorKindValidation))
	})

	t.Run("provider without certificate", func(t *testing.T) {
		_, err := signer.Sign(uuid.New(), "<loteGuias><a>1</a></loteGuias>")
		assert.ErrorIs(t, err, models.ErrNotConfigured)
	})
}

func extractElement(t *testing.T, document, name string) string {
	t.Helper()
	pattern := regexp.MustCompile(`(?s)<` + name + `[ >].*?</` + name + `>`)
	match := pattern.FindString(document)
	require.NotEmpty(t, match, "element %s not found", name)
	return match
}

func extractText(t *testing.T, document, name string) string {
	t.Helper()
	pattern := regexp.MustCompile(`<` + name + `>([^<]+)</` + name + `>`)
	match := pattern.FindStringSubmatch(document)
	require.NotNil(t, match, "element %s not found", name)
	return match[1]
}
