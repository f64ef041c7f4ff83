package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/tiss-service/internal/api"
	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/hypernova-labs/tiss-service/internal/database"
	"github.com/hypernova-labs/tiss-service/internal/email"
	"github.com/hypernova-labs/tiss-service/internal/secrets"
	"github.com/hypernova-labs/tiss-service/internal/services"
	"github.com/hypernova-labs/tiss-service/internal/workflows"
	"github.com/sirupsen/logrus"
)

func main() {
	// Carregar configuração
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting TISS Service...")

	// Configurar modo do Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar ao banco de dados
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	// Conectar ao Redis
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	// Inicializar cliente do arquivo de documentos (S3)
	var archiveClient *database.ArchiveClient
	if cfg.Storage.Endpoint != "" && cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		archiveClient, err = database.NewArchiveClient(&cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing archive client: %v", err)
			archiveClient = nil
		} else {
			if err := archiveClient.HealthCheck(); err != nil {
				logger.Warnf("Archive storage health check failed: %v", err)
			} else {
				logger.Info("Archive storage connection healthy")
			}
		}
	} else {
		logger.Warn("Archive storage credentials not provided, document archive will not be available")
	}

	// Inicializar serviço de e-mail
	var resendService *email.ResendService
	if cfg.Email.ResendAPIKey != "" {
		resendService = email.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.FromAddress, cfg.Server.BaseURL, logger)
		logger.Info("Resend service initialized successfully")
	} else {
		logger.Warn("Resend API key not provided, email service will not be available")
	}

	// Inicializar cliente do Inngest
	inngestClient, err := workflows.NewInngestClient(cfg, logger)
	if err != nil {
		logger.Warnf("Error initializing Inngest client: %v", err)
		inngestClient = nil
	}

	if inngestClient != nil && cfg.Inngest.EventKey != "" && cfg.Inngest.SigningKey != "" {
		// Registrar workflows
		if err := inngestClient.RegisterWorkflows(resendService, database.NewBatchRepository(db, logger), database.NewProviderRepository(db, logger)); err != nil {
			logger.Warnf("Error registering workflows: %v", err)
		}
	} else {
		logger.Warn("Inngest credentials not provided, workflows will not be available")
	}

	// Inicializar o cofre de certificados
	secretsProvider := secrets.NewEnvProvider(cfg.Crypto.VaultKey, logger)
	certificateRepo := database.NewCertificateRepository(db, logger)
	vault := services.NewCertificateVault(certificateRepo, secretsProvider, logger)

	// Inicializar o serviço de faturamento
	billingService := services.NewBillingService(db, vault, inngestClient, resendService, archiveClient, cfg, logger)

	// Inicializar repositórios da API
	providerRepo := database.NewProviderRepository(db, logger)
	operatorRepo := database.NewOperatorRepository(db, logger)
	procedureRepo := database.NewProcedureRepository(db, logger)
	apiKeyRepo := database.NewAPIKeyRepository(db, logger)

	// Inicializar API
	apiHandler := api.NewAPI(
		billingService,
		vault,
		providerRepo,
		operatorRepo,
		procedureRepo,
		apiKeyRepo,
		redis,
		logger,
	)

	// Configurar router
	router := setupRouter(apiHandler, db, redis, archiveClient, cfg)

	// Criar servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para sinais de término
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor em goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar sinal de término
	<-quit
	logger.Info("Shutting down server...")

	// Contexto com timeout para shutdown graceful
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown graceful do servidor
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura o logger conforme a configuração
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	// Configurar nível de log
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configurar formato
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configura o router principal
func setupRouter(apiHandler *api.API, db *database.DB, redis *database.Redis, archive *database.ArchiveClient, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Middleware global
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Middleware de CORS para desenvolvimento
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key, Idempotency-Key")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "tiss-service",
			"version":   "1.0.0",
		}

		if err := db.HealthCheck(); err != nil {
			health["status"] = "degraded"
			health["database"] = "down"
		} else {
			health["database"] = "up"
		}

		if redis != nil {
			if err := redis.HealthCheck(); err != nil {
				health["redis"] = "down"
			} else {
				health["redis"] = "up"
			}
		}

		if archive != nil {
			if err := archive.HealthCheck(); err != nil {
				health["archive"] = "down"
			} else {
				health["archive"] = "up"
			}
		}

		c.JSON(http.StatusOK, health)
	})

	// API v1
	v1 := router.Group("/v1")
	{
		// Endpoints CORE (autenticados pela API key)
		core := v1.Group("")
		{
			// Certificados digitais
			core.POST("/certificates", apiHandler.StoreCertificate)
			core.GET("/certificates", apiHandler.GetCertificate)
			core.DELETE("/certificates", apiHandler.DeleteCertificate)

			// Lotes de guias
			core.POST("/batches", apiHandler.CreateBatch)
			core.GET("/batches", apiHandler.ListBatches)
			core.GET("/batches/:id", apiHandler.GetBatch)
			core.GET("/batches/:id/files", apiHandler.GetBatchFiles)
			core.POST("/batches/:id/retry", apiHandler.RetryBatch)
			core.POST("/batches/:id/demonstrativo", apiHandler.IngestDemonstrativo)

			// Envio com rate limit por prestador
			core.POST("/batches/:id/submit", apiHandler.RateLimitMiddleware("submit"), apiHandler.SubmitBatch)

			// Recursos de glosa
			core.POST("/claims/:id/appeal", apiHandler.CreateAppeal)
		}

		// Endpoints PÚBLICOS (registro inicial)
		public := v1.Group("")
		{
			public.POST("/providers", apiHandler.CreateProvider)
		}

		// Endpoints ADMIN (protegidos)
		admin := v1.Group("")
		admin.Use(apiHandler.AdminAuthMiddleware())
		{
			admin.POST("/operators", apiHandler.CreateOperator)
			admin.POST("/procedures", apiHandler.CreateProcedure)
			admin.POST("/apikeys", apiHandler.CreateAPIKey)
		}
	}

	return router
}
