package workflows

import (
	"fmt"

	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/hypernova-labs/tiss-service/internal/database"
	"github.com/hypernova-labs/tiss-service/internal/email"
	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// InngestClient maneja a configuração e o registro de workflows
type InngestClient struct {
	client inngestgo.Client
	logger *logrus.Logger
}

// NewInngestClient cria uma nova instância do cliente
func NewInngestClient(cfg *config.Config, logger *logrus.Logger) (*InngestClient, error) {
	if cfg.Inngest.EventKey == "" {
		return nil, fmt.Errorf("INNGEST_EVENT_KEY not configured")
	}

	if cfg.Inngest.SigningKey == "" {
		return nil, fmt.Errorf("INNGEST_SIGNING_KEY not configured")
	}

	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		EventKey:   &cfg.Inngest.EventKey,
		SigningKey: &cfg.Inngest.SigningKey,
		AppID:      cfg.Inngest.AppID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Inngest client: %w", err)
	}

	return &InngestClient{
		client: client,
		logger: logger,
	}, nil
}

// RegisterWorkflows registra os workflows de reenvio com o Inngest
func (c *InngestClient) RegisterWorkflows(emailService *email.ResendService, batchRepo *database.BatchRepository, providerRepo *database.ProviderRepository) error {
	c.logger.Info("Registering workflows with Inngest")

	// TODO: registrar o workflow de reenvio quando o endpoint serve do
	// Inngest estiver exposto no ambiente
	c.logger.Info("Workflow registration placeholder - not yet implemented")

	return nil
}

// GetClient retorna o cliente do Inngest
func (c *InngestClient) GetClient() inngestgo.Client {
	return c.client
}
