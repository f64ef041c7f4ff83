package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode representa o código de erro da API
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeInternal       ErrorCode = "INTERNAL"
)

// ErrorKind classifica os erros do núcleo do pipeline de faturamento
type ErrorKind string

const (
	ErrorKindConfiguration   ErrorKind = "CONFIGURATION"
	ErrorKindValidation      ErrorKind = "VALIDATION"
	ErrorKindCryptoIntegrity ErrorKind = "CRYPTO_INTEGRITY"
	ErrorKindNetwork         ErrorKind = "NETWORK"
	ErrorKindProtocol        ErrorKind = "PROTOCOL"
	ErrorKindStateConflict   ErrorKind = "STATE_CONFLICT"
)

// PipelineError é o erro etiquetado usado em todo o núcleo do pipeline.
// Retryable indica se o chamador pode repetir a operação sem correção manual.
type PipelineError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Cause     error
}

// Error implementa a interface error
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap expõe a causa para errors.Is/As
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Erros nomeados do cofre de certificados e da máquina de estados
var (
	ErrInvalidContainer   = &PipelineError{Kind: ErrorKindConfiguration, Message: "certificate container could not be parsed"}
	ErrWrongPassphrase    = &PipelineError{Kind: ErrorKindConfiguration, Message: "passphrase does not unlock the certificate container"}
	ErrMissingTaxID       = &PipelineError{Kind: ErrorKindValidation, Message: "no tax identifier found in certificate subject"}
	ErrCertificateExpired = &PipelineError{Kind: ErrorKindValidation, Message: "certificate validity window has passed"}
	ErrNotConfigured      = &PipelineError{Kind: ErrorKindConfiguration, Message: "no certificate stored for provider"}
	ErrCryptoIntegrity    = &PipelineError{Kind: ErrorKindCryptoIntegrity, Message: "authentication tag verification failed"}
	ErrStateConflict      = &PipelineError{Kind: ErrorKindStateConflict, Message: "illegal or racing status transition"}
)

// NewConfigurationError cria um erro de configuração
func NewConfigurationError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindConfiguration, Message: message, Cause: cause}
}

// NewDataValidationError cria um erro de validação de dados do pipeline
func NewDataValidationError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindValidation, Message: message, Cause: cause}
}

// NewNetworkError cria um erro de rede (sempre repetível)
func NewNetworkError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindNetwork, Message: message, Retryable: true, Cause: cause}
}

// NewProtocolError cria um erro de protocolo da operadora (não repetível)
func NewProtocolError(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrorKindProtocol, Message: message, Cause: cause}
}

// NewStateConflictError cria um erro de conflito de estado com contexto
func NewStateConflictError(message string) *PipelineError {
	return &PipelineError{Kind: ErrorKindStateConflict, Message: message, Cause: ErrStateConflict}
}

// IsKind verifica se o erro (ou sua cadeia) pertence à classe dada
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// IsRetryable indica se o erro permite nova tentativa sem correção manual
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// ErrorDetail representa um detalhe específico do erro da API
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ErrorResponse representa a resposta de erro padronizada da API
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// APIError implementa a interface error para uso na API
type APIError struct {
	ErrorResponse
}

// Error implementa a interface error
func (e APIError) Error() string {
	return e.ErrorResponse.Error.Message
}

// NewAPIError cria um novo erro de API
func NewAPIError(errResp ErrorResponse) error {
	return &APIError{ErrorResponse: errResp}
}

// ErrorInfo representa a informação do erro
type ErrorInfo struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// NewErrorResponse cria uma nova resposta de erro
func NewErrorResponse(code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(code),
			Message: message,
		},
	}
}

// NewValidationError cria um erro de validação com detalhes
func NewValidationError(message string, details []ErrorDetail) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeInvalidRequest),
			Message: message,
			Details: details,
		},
	}
}

// NewConflictError cria um erro de conflito (idempotência ou estado)
func NewConflictError(message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeConflict),
			Message: message,
		},
	}
}

// NewUnauthorizedError cria um erro de autenticação
func NewUnauthorizedError(message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeUnauthorized),
			Message: message,
		},
	}
}

// NewForbiddenError cria um erro de permissões
func NewForbiddenError(message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeForbidden),
			Message: message,
		},
	}
}

// NewNotFoundError cria um erro de recurso não encontrado
func NewNotFoundError(message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeNotFound),
			Message: message,
		},
	}
}

// NewRateLimitedError cria um erro de rate limiting
func NewRateLimitedError(message string, retryAfter time.Duration) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeRateLimited),
			Message: message,
		},
	}
}

// NewInternalError cria um erro interno do servidor
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeInternal),
			Message: message,
		},
	}
}
