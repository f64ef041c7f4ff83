package services

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Algoritmos da assinatura digital exigidos pelo padrão de troca
const (
	algCanonicalization = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	algSignatureRSA256  = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	algTransformEnvelop = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	algDigestSHA256     = "http://www.w3.org/2001/04/xmlenc#sha256"
)

// signableElementPattern localiza o elemento assinável do documento,
// tolerando qualquer prefixo de namespace (ans:, tiss:, nenhum)
var signableElementPattern = regexp.MustCompile(`<([A-Za-z0-9_]+:)?(loteGuias|recursoGlosa)[\s>]`)

var interTagWhitespace = regexp.MustCompile(`>\s+<`)

// DocumentSigner assina documentos TISS com a chave privada do
// certificado guardado no cofre, no formato de assinatura envelopada
type DocumentSigner struct {
	vault  *CertificateVault
	logger *logrus.Logger
}

// NewDocumentSigner cria uma nova instância do assinador
func NewDocumentSigner(vault *CertificateVault, logger *logrus.Logger) *DocumentSigner {
	return &DocumentSigner{
		vault:  vault,
		logger: logger,
	}
}

// Canonicalize normaliza o documento antes do cálculo do digest:
// quebras de linha CRLF viram LF, espaço nas bordas é removido e o
// espaço entre tags adjacentes é colapsado
func Canonicalize(document string) string {
	document = strings.ReplaceAll(document, "\r\n", "\n")
	document = strings.ReplaceAll(document, "\r", "\n")
	document = strings.TrimSpace(document)
	document = interTagWhitespace.ReplaceAllString(document, "><")
	return document
}

// Sign assina o documento com o certificado do prestador. A assinatura
// cobre o elemento loteGuias ou recursoGlosa quando presente; na ausência
// de ambos, cobre o documento inteiro.
func (s *DocumentSigner) Sign(providerID uuid.UUID, documentXML string) (string, error) {
	if strings.TrimSpace(documentXML) == "" {
		return "", models.NewDataValidationError("document is empty", nil)
	}

	privateKey, cert, _, err := s.vault.Unlock(providerID)
	if err != nil {
		return "", err
	}

	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return "", models.NewConfigurationError("certificate private key is not RSA", nil)
	}

	canonical := Canonicalize(documentXML)

	target, closingTag := locateSignableElement(canonical)

	digest := sha256.Sum256([]byte(target))
	digestValue := base64.StdEncoding.EncodeToString(digest[:])

	signedInfo := buildSignedInfo(digestValue)

	signedInfoDigest := sha256.Sum256([]byte(signedInfo))
	signatureBytes, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, signedInfoDigest[:])
	if err != nil {
		return "", fmt.Errorf("error signing document: %w", err)
	}
	signatureValue := base64.StdEncoding.EncodeToString(signatureBytes)
	certValue := base64.StdEncoding.EncodeToString(cert.Raw)

	signature := fmt.Sprintf(
		`<Signature xmlns="http://www.w3.org/2000/09/xmldsig#">%s<SignatureValue>%s</SignatureValue><KeyInfo><X509Data><X509Certificate>%s</X509Certificate></X509Data></KeyInfo></Signature>`,
		signedInfo, signatureValue, certValue,
	)

	signed, err := embedSignature(canonical, signature, closingTag)
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"provider_id": providerID,
		"digest":      digestValue,
	}).Info("Document signed successfully")

	return signed, nil
}

// DigestValue calcula o digest SHA-256 em base64 do documento
// canonicalizado, para conferência sem assinar
func DigestValue(documentXML string) string {
	digest := sha256.Sum256([]byte(Canonicalize(documentXML)))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// locateSignableElement devolve o trecho assinável (o elemento
// loteGuias/recursoGlosa completo) e a tag de fechamento onde a
// assinatura deve ser embutida. Sem elemento reconhecível, o documento
// inteiro é o alvo.
func locateSignableElement(canonical string) (target, closingTag string) {
	match := signableElementPattern.FindStringSubmatchIndex(canonical)
	if match == nil {
		return canonical, lastClosingTag(canonical)
	}

	prefix := ""
	if match[2] >= 0 {
		prefix = canonical[match[2]:match[3]]
	}
	name := canonical[match[4]:match[5]]
	closingTag = fmt.Sprintf("</%s%s>", prefix, name)

	start := match[0]
	end := strings.Index(canonical[start:], closingTag)
	if end < 0 {
		return canonical, lastClosingTag(canonical)
	}
	end = start + end + len(closingTag)

	return canonical[start:end], closingTag
}

// lastClosingTag devolve a tag de fechamento do elemento raiz
func lastClosingTag(document string) string {
	idx := strings.LastIndex(document, "</")
	if idx < 0 {
		return ""
	}
	end := strings.Index(document[idx:], ">")
	if end < 0 {
		return ""
	}
	return document[idx : idx+end+1]
}

func buildSignedInfo(digestValue string) string {
	return fmt.Sprintf(
		`<SignedInfo><CanonicalizationMethod Algorithm="%s"/><SignatureMethod Algorithm="%s"/><Reference URI=""><Transforms><Transform Algorithm="%s"/></Transforms><DigestMethod Algorithm="%s"/><DigestValue>%s</DigestValue></Reference></SignedInfo>`,
		algCanonicalization, algSignatureRSA256, algTransformEnvelop, algDigestSHA256, digestValue,
	)
}

// embedSignature insere a assinatura imediatamente antes da tag de
// fechamento do elemento assinado
func embedSignature(document, signature, closingTag string) (string, error) {
	if closingTag == "" {
		return "", models.NewDataValidationError("document has no closing tag to anchor the signature", nil)
	}

	idx := strings.LastIndex(document, closingTag)
	if idx < 0 {
		return "", models.NewDataValidationError("signable element closing tag not found", nil)
	}

	return document[:idx] + signature + document[idx:], nil
}
