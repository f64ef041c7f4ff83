package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	xmlDeclPattern     = regexp.MustCompile(`<\?xml[^?]*\?>`)
	protocolPattern    = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:numeroProtocolo|protocolo)>\s*([^<]+?)\s*</`)
	errorListPattern   = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:mensagemErro|descricaoErro)>\s*([^<]+?)\s*</`)
	faultReasonPattern = regexp.MustCompile(`<(?:[A-Za-z0-9_]+:)?(?:Reason|Text|faultstring)>\s*([^<]+?)\s*</`)
)

// SubmissionClient entrega documentos assinados ao webservice SOAP da
// operadora. Falhas de transporte são repetíveis; rejeições estruturadas
// da operadora não são.
type SubmissionClient struct {
	vault  *CertificateVault
	config *config.InsurerConfig
	logger *logrus.Logger
}

// NewSubmissionClient cria uma nova instância do cliente de envio
func NewSubmissionClient(vault *CertificateVault, cfg *config.InsurerConfig, logger *logrus.Logger) *SubmissionClient {
	return &SubmissionClient{
		vault:  vault,
		config: cfg,
		logger: logger,
	}
}

// Submit entrega o documento assinado ao endpoint da operadora e
// interpreta a resposta na ordem protocolo, erros estruturados, fault
func (s *SubmissionClient) Submit(ctx context.Context, operator *models.Operator, providerID uuid.UUID, signedXML string) (*models.SubmissionResult, error) {
	if operator.EndpointURL == "" {
		return nil, models.NewConfigurationError("operator has no endpoint configured", nil)
	}
	if !strings.HasPrefix(operator.EndpointURL, "https://") && !s.config.AllowHTTP {
		return nil, models.NewConfigurationError(
			fmt.Sprintf("operator endpoint must use HTTPS: %s", operator.EndpointURL), nil)
	}

	client, err := s.buildHTTPClient(operator, providerID)
	if err != nil {
		return nil, err
	}

	envelope := buildSOAPEnvelope(signedXML)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, operator.EndpointURL, strings.NewReader(envelope))
	if err != nil {
		return nil, models.NewConfigurationError("error building submission request", err)
	}

	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8`)
	if s.config.SOAPAction != "" {
		req.Header.Set("SOAPAction", s.config.SOAPAction)
	}

	if err := s.applyAuth(req, operator); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, models.NewNetworkError(
			fmt.Sprintf("error delivering document to %s", operator.Name), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewNetworkError("error reading operator response", err)
	}

	s.logger.WithFields(logrus.Fields{
		"operator":    operator.Name,
		"http_status": resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Submission completed")

	return s.interpretResponse(resp.StatusCode, string(body))
}

// buildHTTPClient monta o cliente HTTP respeitando o timeout da
// operadora e, no modo mtls, o certificado do prestador
func (s *SubmissionClient) buildHTTPClient(operator *models.Operator, providerID uuid.UUID) (*http.Client, error) {
	timeout := s.config.Timeout
	if operator.TimeoutSeconds > 0 {
		timeout = time.Duration(operator.TimeoutSeconds) * time.Second
	}

	client := &http.Client{Timeout: timeout}

	if operator.AuthMode == models.AuthModeMTLS {
		privateKey, cert, caCerts, err := s.vault.Unlock(providerID)
		if err != nil {
			return nil, err
		}

		chain := [][]byte{cert.Raw}
		for _, ca := range caCerts {
			chain = append(chain, ca.Raw)
		}

		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{{
					Certificate: chain,
					PrivateKey:  privateKey,
					Leaf:        cert,
				}},
				MinVersion: tls.VersionTLS12,
			},
		}
	}

	return client, nil
}

// applyAuth aplica as credenciais conforme o modo da operadora
func (s *SubmissionClient) applyAuth(req *http.Request, operator *models.Operator) error {
	switch operator.AuthMode {
	case models.AuthModeNone, models.AuthModeMTLS:
		return nil
	case models.AuthModeBasic:
		if operator.AuthUsername == nil || operator.AuthPassword == nil {
			return models.NewConfigurationError("operator basic auth credentials are missing", nil)
		}
		req.SetBasicAuth(*operator.AuthUsername, *operator.AuthPassword)
		return nil
	case models.AuthModeBearer:
		if operator.BearerToken == nil {
			return models.NewConfigurationError("operator bearer token is missing", nil)
		}
		req.Header.Set("Authorization", "Bearer "+*operator.BearerToken)
		return nil
	default:
		return models.NewConfigurationError(
			fmt.Sprintf("unknown operator auth mode: %s", operator.AuthMode), nil)
	}
}

// interpretResponse extrai o resultado da resposta: primeiro protocolo,
// depois erros estruturados, por último fault SOAP
func (s *SubmissionClient) interpretResponse(httpStatus int, body string) (*models.SubmissionResult, error) {
	if match := protocolPattern.FindStringSubmatch(body); match != nil {
		protocol := strings.TrimSpace(match[1])
		return &models.SubmissionResult{
			Success:        true,
			ProtocolNumber: &protocol,
			Message:        "batch accepted by operator",
			RawResponse:    body,
			HTTPStatus:     httpStatus,
		}, nil
	}

	if matches := errorListPattern.FindAllStringSubmatch(body, -1); len(matches) > 0 {
		errs := make([]string, 0, len(matches))
		for _, m := range matches {
			errs = append(errs, strings.TrimSpace(m[1]))
		}
		return &models.SubmissionResult{
			Success:     false,
			Message:     "operator rejected the document",
			RawResponse: body,
			HTTPStatus:  httpStatus,
			Errors:      errs,
		}, models.NewProtocolError(strings.Join(errs, "; "), nil)
	}

	if match := faultReasonPattern.FindStringSubmatch(body); match != nil {
		reason := strings.TrimSpace(match[1])
		return &models.SubmissionResult{
			Success:     false,
			Message:     reason,
			RawResponse: body,
			HTTPStatus:  httpStatus,
			Errors:      []string{reason},
		}, models.NewProtocolError(fmt.Sprintf("operator returned fault: %s", reason), nil)
	}

	if httpStatus >= 500 {
		return &models.SubmissionResult{
			Success:     false,
			Message:     fmt.Sprintf("operator returned HTTP %d", httpStatus),
			RawResponse: body,
			HTTPStatus:  httpStatus,
		}, models.NewNetworkError(fmt.Sprintf("operator returned HTTP %d", httpStatus), nil)
	}

	return &models.SubmissionResult{
		Success:     false,
		Message:     "operator response has no protocol number",
		RawResponse: body,
		HTTPStatus:  httpStatus,
	}, models.NewProtocolError("operator response has no protocol number", nil)
}

// buildSOAPEnvelope embala o documento assinado num envelope SOAP 1.2
func buildSOAPEnvelope(signedXML string) string {
	payload := strings.TrimSpace(xmlDeclPattern.ReplaceAllString(signedXML, ""))
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">` +
		`<soap:Header/>` +
		`<soap:Body>` + payload + `</soap:Body>` +
		`</soap:Envelope>`
}
