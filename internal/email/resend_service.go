package email

import (
	"fmt"

	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ResendService envia notificações por e-mail usando a API do Resend
type ResendService struct {
	client    *resend.Client
	fromEmail string
	baseURL   string
	logger    *logrus.Logger
}

// NewResendService cria uma nova instância do serviço de e-mail
func NewResendService(apiKey string, fromEmail string, baseURL string, logger *logrus.Logger) *ResendService {
	if fromEmail == "" {
		fromEmail = "onboarding@resend.dev"
	}
	return &ResendService{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// SendAdjudicationEmail notifica o prestador sobre o resultado da
// análise do lote, destacando glosas e prazos de recurso
func (s *ResendService) SendAdjudicationEmail(batch *models.Batch, provider *models.Provider, operator *models.Operator, demo *models.DemonstrativoAnalise) error {
	if provider.Email == "" {
		return fmt.Errorf("provider has no email configured")
	}

	subject := fmt.Sprintf("Demonstrativo do lote %s - %s", batch.BatchNumber, operator.Name)

	glosaRows := ""
	for _, guia := range demo.Claims {
		for _, glosa := range guia.Glosas {
			glosaRows += fmt.Sprintf(
				`<li>Guia <strong>%s</strong>, item %d, código %s: R$ %.2f (prazo de recurso: %s)</li>`,
				guia.ClaimNumber, glosa.ItemSequence, glosa.DenialCode,
				glosa.DeniedAmount, glosa.AppealDeadline.Format("02/01/2006"))
		}
	}

	glosaSection := "<p>Nenhuma glosa registrada neste lote.</p>"
	if glosaRows != "" {
		glosaSection = fmt.Sprintf("<p>Glosas registradas:</p><ul>%s</ul>", glosaRows)
	}

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Demonstrativo de Análise</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 8px; }
        .content { padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background-color: #166534; color: white; text-decoration: none; border-radius: 5px; margin: 10px 5px; }
        .footer { margin-top: 30px; padding: 20px; background-color: #f8f9fa; border-radius: 8px; font-size: 14px; color: #666; }
        .total { font-size: 18px; font-weight: bold; color: #166534; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Demonstrativo de Análise</h1>
            <p>Lote: %s</p>
            <p>Protocolo: %s</p>
        </div>

        <div class="content">
            <h2>Olá %s,</h2>

            <p>A operadora %s concluiu a análise do lote com o seguinte resultado:</p>

            <ul>
                <li><strong>Valor informado:</strong> R$ %.2f</li>
                <li><strong>Valor liberado:</strong> <span class="total">R$ %.2f</span></li>
                <li><strong>Valor glosado:</strong> R$ %.2f</li>
            </ul>

            %s

            <div style="text-align: center; margin: 20px 0;">
                <a href="%s/v1/batches/%s/files" class="button">Ver documentos do lote</a>
            </div>
        </div>

        <div class="footer">
            <p>Este é um e-mail automático do sistema de faturamento TISS.</p>
            <p>Em caso de dúvidas, entre em contato com o suporte.</p>
        </div>
    </div>
</body>
</html>`,
		batch.BatchNumber,
		demo.ProtocolNumber,
		provider.Name,
		operator.Name,
		demo.DeclaredTotal,
		demo.ApprovedTotal,
		demo.DeniedTotal,
		glosaSection,
		s.baseURL,
		batch.ID)

	request := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{provider.Email},
		Subject: subject,
		Html:    htmlContent,
	}

	result, err := s.client.Emails.Send(request)
	if err != nil {
		return fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id": result.Id,
		"to":       provider.Email,
		"subject":  subject,
	}).Info("Email sent successfully via Resend")

	return nil
}
