package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/database"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/hypernova-labs/tiss-service/internal/services"
	"github.com/sirupsen/logrus"
)

// API maneja todos os endpoints do serviço
type API struct {
	billingService *services.BillingService
	vault          *services.CertificateVault
	providerRepo   *database.ProviderRepository
	operatorRepo   *database.OperatorRepository
	procedureRepo  *database.ProcedureRepository
	apiKeyRepo     *database.APIKeyRepository
	redis          *database.Redis
	logger         *logrus.Logger
}

// NewAPI cria uma nova instância da API
func NewAPI(
	billingService *services.BillingService,
	vault *services.CertificateVault,
	providerRepo *database.ProviderRepository,
	operatorRepo *database.OperatorRepository,
	procedureRepo *database.ProcedureRepository,
	apiKeyRepo *database.APIKeyRepository,
	redis *database.Redis,
	logger *logrus.Logger,
) *API {
	return &API{
		billingService: billingService,
		vault:          vault,
		providerRepo:   providerRepo,
		operatorRepo:   operatorRepo,
		procedureRepo:  procedureRepo,
		apiKeyRepo:     apiKeyRepo,
		redis:          redis,
		logger:         logger,
	}
}

// StoreCertificate armazena o certificado digital do prestador
func (api *API) StoreCertificate(c *gin.Context) {
	providerID, apiKey, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	var req models.StoreCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	response, err := api.vault.Store(providerID, &req, apiKey.Name)
	if err != nil {
		api.writePipelineError(c, err, "Error storing certificate")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetCertificate obtém os metadados do certificado do prestador
func (api *API) GetCertificate(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	response, err := api.vault.Metadata(providerID)
	if err != nil {
		if errors.Is(err, models.ErrNotConfigured) {
			c.JSON(http.StatusNotFound, models.NewNotFoundError("No certificate stored"))
			return
		}
		api.writePipelineError(c, err, "Error getting certificate")
		return
	}

	c.JSON(http.StatusOK, response)
}

// DeleteCertificate remove o certificado do prestador
func (api *API) DeleteCertificate(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	if err := api.vault.Delete(providerID); err != nil {
		api.writePipelineError(c, err, "Error deleting certificate")
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateBatch cria um lote de guias
func (api *API) CreateBatch(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	var req models.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.WithError(err).Error("Error binding create batch request")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")

	response, err := api.billingService.CreateBatch(providerID, &req, idempotencyKey)
	if err != nil {
		api.writePipelineError(c, err, "Error creating batch")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetBatch obtém um lote por ID
func (api *API) GetBatch(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	id, ok := api.parseIDParam(c)
	if !ok {
		return
	}

	response, err := api.billingService.GetBatch(id, providerID)
	if err != nil {
		api.writePipelineError(c, err, "Error getting batch")
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListBatches lista os lotes do prestador com paginação
func (api *API) ListBatches(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	batches, total, err := api.billingService.ListBatches(providerID, page, pageSize)
	if err != nil {
		api.logger.WithError(err).Error("Error listing batches")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error retrieving batches"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     batches,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

// SubmitBatch assina e envia um lote à operadora
func (api *API) SubmitBatch(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	id, ok := api.parseIDParam(c)
	if !ok {
		return
	}

	response, err := api.billingService.SubmitBatch(c.Request.Context(), id, providerID)
	if err != nil {
		api.writePipelineError(c, err, "Error submitting batch")
		return
	}

	c.JSON(http.StatusOK, response)
}

// RetryBatch reabilita um lote em erro para novo envio
func (api *API) RetryBatch(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	id, ok := api.parseIDParam(c)
	if !ok {
		return
	}

	response, err := api.billingService.RetrySubmission(id, providerID)
	if err != nil {
		api.writePipelineError(c, err, "Error retrying batch")
		return
	}

	c.JSON(http.StatusOK, response)
}

// IngestDemonstrativo concilia o demonstrativo da operadora contra o lote
func (api *API) IngestDemonstrativo(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	id, ok := api.parseIDParam(c)
	if !ok {
		return
	}

	var req models.IngestDemonstrativoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	response, err := api.billingService.IngestDemonstrativo(c.Request.Context(), id, providerID, &req)
	if err != nil {
		api.writePipelineError(c, err, "Error ingesting demonstrativo")
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetBatchFiles obtém as referências dos documentos do lote
func (api *API) GetBatchFiles(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	id, ok := api.parseIDParam(c)
	if !ok {
		return
	}

	response, err := api.billingService.GetBatchFiles(id, providerID)
	if err != nil {
		api.writePipelineError(c, err, "Error getting batch files")
		return
	}

	c.JSON(http.StatusOK, response)
}

// CreateAppeal abre um recurso de glosa para uma guia
func (api *API) CreateAppeal(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	id, ok := api.parseIDParam(c)
	if !ok {
		return
	}

	var req models.CreateAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	response, err := api.billingService.CreateAppeal(c.Request.Context(), id, providerID, &req)
	if err != nil {
		api.writePipelineError(c, err, "Error creating appeal")
		return
	}

	c.JSON(http.StatusCreated, response)
}

// CreateProvider cadastra um prestador (endpoint admin)
func (api *API) CreateProvider(c *gin.Context) {
	var req models.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.WithError(err).Error("Error binding create provider request")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	provider, err := api.providerRepo.Create(&req)
	if err != nil {
		api.logger.WithError(err).Error("Error creating provider")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error creating provider"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": provider.ID.String()})
}

// CreateOperator cadastra uma operadora (endpoint admin)
func (api *API) CreateOperator(c *gin.Context) {
	var req models.CreateOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.logger.WithError(err).Error("Error binding create operator request")
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	operator, err := api.operatorRepo.Create(&req)
	if err != nil {
		api.logger.WithError(err).Error("Error creating operator")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error creating operator"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": operator.ID.String()})
}

// CreateProcedure cadastra um procedimento do prestador (endpoint admin)
func (api *API) CreateProcedure(c *gin.Context) {
	providerID, _, err := api.getProviderFromAuth(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
		return
	}

	var req models.CreateProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	procedure, err := api.procedureRepo.Create(providerID, &req)
	if err != nil {
		api.logger.WithError(err).Error("Error creating procedure")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error creating procedure"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": procedure.ID.String()})
}

// CreateAPIKey cria uma API key para um prestador (endpoint admin)
func (api *API) CreateAPIKey(c *gin.Context) {
	var req models.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid request format", []models.ErrorDetail{
			{Field: "body", Issue: err.Error()},
		}))
		return
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid provider_id", []models.ErrorDetail{
			{Field: "provider_id", Issue: "Must be a valid UUID"},
		}))
		return
	}

	rateLimit := req.RateLimitPerMin
	if rateLimit <= 0 {
		rateLimit = 60
	}

	apiKeyModel, plainKey, err := api.apiKeyRepo.Create(providerID, req.Name, rateLimit)
	if err != nil {
		api.logger.WithError(err).Error("Error creating API key")
		c.JSON(http.StatusInternalServerError, models.NewInternalError("Error creating API key"))
		return
	}

	c.JSON(http.StatusCreated, models.CreateAPIKeyResponse{
		ID:     apiKeyModel.ID,
		Name:   apiKeyModel.Name,
		APIKey: plainKey,
	})
}

// RateLimitMiddleware limita a cadência de uma operação por prestador
func (api *API) RateLimitMiddleware(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID, apiKey, err := api.getProviderFromAuth(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
			c.Abort()
			return
		}

		allowed := true
		if api.redis != nil {
			var limitErr error
			allowed, limitErr = api.redis.AllowOperation(providerID.String(), operation, apiKey.RateLimitPerMin)
			if limitErr != nil {
				api.logger.Warnf("Rate limiter unavailable, allowing request: %v", limitErr)
			}
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, models.NewRateLimitedError("Rate limit exceeded", 0))
			c.Abort()
			return
		}

		c.Set("provider_id", providerID)
		c.Next()
	}
}

// AdminAuthMiddleware retorna o middleware de autenticação de admin
func (api *API) AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		providerID, _, err := api.getProviderFromAuth(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
			c.Abort()
			return
		}

		// TODO: validar papéis de admin quando o cadastro tiver perfis
		c.Set("provider_id", providerID)
		c.Next()
	}
}

// getProviderFromAuth extrai o prestador do header de autenticação
func (api *API) getProviderFromAuth(c *gin.Context) (uuid.UUID, *models.APIKey, error) {
	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		return uuid.Nil, nil, models.NewAPIError(models.NewUnauthorizedError("API key required"))
	}

	apiKeyModel, err := api.apiKeyRepo.GetByHash(api.apiKeyRepo.HashAPIKey(apiKey))
	if err != nil {
		return uuid.Nil, nil, models.NewAPIError(models.NewUnauthorizedError("Invalid API key"))
	}

	if err := api.apiKeyRepo.UpdateLastUsed(apiKeyModel.ID); err != nil {
		api.logger.Warnf("Error updating API key last used: %v", err)
	}

	return apiKeyModel.ProviderID, apiKeyModel, nil
}

// writePipelineError mapeia os erros do pipeline para respostas HTTP
func (api *API) writePipelineError(c *gin.Context, err error, logMessage string) {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadRequest
		switch models.ErrorCode(apiErr.ErrorResponse.Error.Code) {
		case models.ErrorCodeNotFound:
			status = http.StatusNotFound
		case models.ErrorCodeConflict:
			status = http.StatusConflict
		case models.ErrorCodeUnauthorized:
			status = http.StatusUnauthorized
		case models.ErrorCodeForbidden:
			status = http.StatusForbidden
		}
		c.JSON(status, apiErr.ErrorResponse)
		return
	}

	switch {
	case models.IsKind(err, models.ErrorKindValidation):
		c.JSON(http.StatusBadRequest, models.NewValidationError(err.Error(), nil))
	case models.IsKind(err, models.ErrorKindStateConflict):
		c.JSON(http.StatusConflict, models.NewConflictError(err.Error()))
	case models.IsKind(err, models.ErrorKindConfiguration):
		c.JSON(http.StatusUnprocessableEntity, models.NewErrorResponse(models.ErrorCodeInvalidRequest, err.Error()))
	case models.IsKind(err, models.ErrorKindProtocol):
		c.JSON(http.StatusUnprocessableEntity, models.NewErrorResponse(models.ErrorCodeInvalidRequest, err.Error()))
	case models.IsKind(err, models.ErrorKindNetwork):
		c.JSON(http.StatusBadGateway, models.NewErrorResponse(models.ErrorCodeInternal, err.Error()))
	case strings.Contains(err.Error(), "not found"):
		c.JSON(http.StatusNotFound, models.NewNotFoundError(err.Error()))
	default:
		api.logger.WithError(err).Error(logMessage)
		c.JSON(http.StatusInternalServerError, models.NewInternalError(logMessage))
	}
}

// parseIDParam faz o parse do parâmetro :id da rota
func (api *API) parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationError("Invalid resource ID", []models.ErrorDetail{
			{Field: "id", Issue: "Must be a valid UUID"},
		}))
		return uuid.Nil, false
	}
	return id, true
}
