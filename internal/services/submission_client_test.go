package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInsurerConfig() *config.InsurerConfig {
	return &config.InsurerConfig{
		SOAPAction: "http://www.ans.gov.br/tiss/ws/tipos/envioLoteGuias",
		Timeout:    5 * time.Second,
		AllowHTTP:  true,
	}
}

func submissionOperator(url string) *models.Operator {
	return &models.Operator{
		ID:          uuid.New(),
		Name:        "Operadora Teste",
		ANSRegistry: "123456",
		EndpointURL: url,
		AuthMode:    models.AuthModeNone,
	}
}

const signedDocument = `<?xml version="1.0" encoding="UTF-8"?><ans:mensagemTISS xmlns:ans="http://www.ans.gov.br/padroes/tiss/schemas"><ans:loteGuias><ans:numeroLote>L1</ans:numeroLote></ans:loteGuias></ans:mensagemTISS>`

func TestSubmissionClient_Submit_Protocol(t *testing.T) {
	var receivedBody string
	var receivedContentType string
	var receivedAction string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		receivedBody = string(body)
		receivedContentType = r.Header.Get("Content-Type")
		receivedAction = r.Header.Get("SOAPAction")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body><ans:numeroProtocolo> PROTO-000123 </ans:numeroProtocolo></soap:Body></soap:Envelope>`))
	}))
	defer server.Close()

	client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
	result, err := client.Submit(context.Background(), submissionOperator(server.URL), uuid.New(), signedDocument)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.NotNil(t, result.ProtocolNumber)
	assert.Equal(t, "PROTO-000123", *result.ProtocolNumber)
	assert.Equal(t, http.StatusOK, result.HTTPStatus)

	t.Run("request is a SOAP 1.2 envelope", func(t *testing.T) {
		assert.Contains(t, receivedContentType, "application/soap+xml")
		assert.Equal(t, "http://www.ans.gov.br/tiss/ws/tipos/envioLoteGuias", receivedAction)
		assert.True(t, strings.HasPrefix(receivedBody, `<?xml version="1.0" encoding="UTF-8"?><soap:Envelope`))
		// a declaração XML do documento interno não pode se repetir
		assert.Equal(t, 1, strings.Count(receivedBody, "<?xml"))
		assert.Contains(t, receivedBody, "<ans:loteGuias>")
	})
}

func TestSubmissionClient_Submit_StructuredErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<resposta><ans:mensagemErro>Guia duplicada</ans:mensagemErro><ans:mensagemErro>Carteira invalida</ans:mensagemErro></resposta>`))
	}))
	defer server.Close()

	client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
	result, err := client.Submit(context.Background(), submissionOperator(server.URL), uuid.New(), signedDocument)

	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrorKindProtocol))
	assert.False(t, models.IsRetryable(err))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"Guia duplicada", "Carteira invalida"}, result.Errors)
}

func TestSubmissionClient_Submit_SOAPFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body><soap:Fault><soap:Reason>Assinatura invalida</soap:Reason></soap:Fault></soap:Body></soap:Envelope>`))
	}))
	defer server.Close()

	client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
	result, err := client.Submit(context.Background(), submissionOperator(server.URL), uuid.New(), signedDocument)

	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrorKindProtocol))
	require.NotNil(t, result)
	assert.Equal(t, "Assinatura invalida", result.Message)
}

func TestSubmissionClient_Submit_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
	result, err := client.Submit(context.Background(), submissionOperator(server.URL), uuid.New(), signedDocument)

	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrorKindNetwork))
	assert.True(t, models.IsRetryable(err))
	require.NotNil(t, result)
	assert.Equal(t, http.StatusBadGateway, result.HTTPStatus)
}

func TestSubmissionClient_Submit_NoProtocol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<resposta><status>recebido</status></resposta>`))
	}))
	defer server.Close()

	client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
	_, err := client.Submit(context.Background(), submissionOperator(server.URL), uuid.New(), signedDocument)

	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrorKindProtocol))
	assert.False(t, models.IsRetryable(err))
}

func TestSubmissionClient_Submit_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // força recusa de conexão

	client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
	_, err := client.Submit(context.Background(), submissionOperator(server.URL), uuid.New(), signedDocument)

	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrorKindNetwork))
	assert.True(t, models.IsRetryable(err))
}

func TestSubmissionClient_Auth(t *testing.T) {
	t.Run("basic credentials are applied", func(t *testing.T) {
		var gotUser, gotPass string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser, gotPass, _ = r.BasicAuth()
			w.Write([]byte(`<numeroProtocolo>P1</numeroProtocolo>`))
		}))
		defer server.Close()

		user := "prestador"
		pass := "segredo"
		operator := submissionOperator(server.URL)
		operator.AuthMode = models.AuthModeBasic
		operator.AuthUsername = &user
		operator.AuthPassword = &pass

		client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
		_, err := client.Submit(context.Background(), operator, uuid.New(), signedDocument)
		require.NoError(t, err)
		assert.Equal(t, "prestador", gotUser)
		assert.Equal(t, "segredo", gotPass)
	})

	t.Run("bearer token is applied", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`<numeroProtocolo>P1</numeroProtocolo>`))
		}))
		defer server.Close()

		token := "tok-123"
		operator := submissionOperator(server.URL)
		operator.AuthMode = models.AuthModeBearer
		operator.BearerToken = &token

		client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
		_, err := client.Submit(context.Background(), operator, uuid.New(), signedDocument)
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok-123", gotAuth)
	})

	t.Run("basic without credentials is a configuration error", func(t *testing.T) {
		operator := submissionOperator("https://operadora.example.com/tiss")
		operator.AuthMode = models.AuthModeBasic

		client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
		_, err := client.Submit(context.Background(), operator, uuid.New(), signedDocument)
		assert.True(t, models.IsKind(err, models.ErrorKindConfiguration))
	})
}

func TestSubmissionClient_EndpointValidation(t *testing.T) {
	t.Run("missing endpoint", func(t *testing.T) {
		client := NewSubmissionClient(nil, testInsurerConfig(), testLogger())
		_, err := client.Submit(context.Background(), submissionOperator(""), uuid.New(), signedDocument)
		assert.True(t, models.IsKind(err, models.ErrorKindConfiguration))
	})

	t.Run("plain HTTP rejected when not allowed", func(t *testing.T) {
		cfg := testInsurerConfig()
		cfg.AllowHTTP = false

		client := NewSubmissionClient(nil, cfg, testLogger())
		_, err := client.Submit(context.Background(), submissionOperator("http://operadora.example.com/tiss"), uuid.New(), signedDocument)
		assert.True(t, models.IsKind(err, models.ErrorKindConfiguration))
	})
}

func TestBuildSOAPEnvelope(t *testing.T) {
	envelope := buildSOAPEnvelope(signedDocument)

	assert.True(t, strings.HasPrefix(envelope, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Equal(t, 1, strings.Count(envelope, "<?xml"))
	assert.Contains(t, envelope, `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">`)
	assert.Contains(t, envelope, "<ans:mensagemTISS")
	assert.True(t, strings.HasSuffix(envelope, "</soap:Envelope>"))
}
