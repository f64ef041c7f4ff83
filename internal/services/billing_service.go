package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/config"
	"github.com/hypernova-labs/tiss-service/internal/database"
	"github.com/hypernova-labs/tiss-service/internal/email"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/hypernova-labs/tiss-service/internal/workflows"
	"github.com/sirupsen/logrus"
)

// BillingService orquestra o ciclo de faturamento: criação e validação
// do lote, assinatura, envio à operadora, conciliação do demonstrativo
// e recurso de glosa
type BillingService struct {
	batchRepo     *database.BatchRepository
	claimRepo     *database.ClaimRepository
	providerRepo  *database.ProviderRepository
	operatorRepo  *database.OperatorRepository
	documentRepo  *database.DocumentRepository
	vault         *CertificateVault
	signer        *DocumentSigner
	composer      *BatchComposer
	submission    *SubmissionClient
	processor     *ResponseProcessor
	lifecycle     *LifecycleStateMachine
	pdfGenerator  *DemonstrativoPDFGenerator
	archive       *ArchiveService
	inngestClient *workflows.InngestClient
	resendService *email.ResendService
	logger        *logrus.Logger
}

// NewBillingService cria uma nova instância do serviço
func NewBillingService(db *database.DB, vault *CertificateVault, inngestClient *workflows.InngestClient, resendService *email.ResendService, archiveClient *database.ArchiveClient, cfg *config.Config, logger *logrus.Logger) *BillingService {
	batchRepo := database.NewBatchRepository(db, logger)
	claimRepo := database.NewClaimRepository(db, logger)
	providerRepo := database.NewProviderRepository(db, logger)
	operatorRepo := database.NewOperatorRepository(db, logger)
	documentRepo := database.NewDocumentRepository(db, logger)

	return &BillingService{
		batchRepo:     batchRepo,
		claimRepo:     claimRepo,
		providerRepo:  providerRepo,
		operatorRepo:  operatorRepo,
		documentRepo:  documentRepo,
		vault:         vault,
		signer:        NewDocumentSigner(vault, logger),
		composer:      NewBatchComposer(cfg.Insurer.TISSVersion, logger),
		submission:    NewSubmissionClient(vault, &cfg.Insurer, logger),
		processor:     NewResponseProcessor(logger),
		lifecycle:     NewLifecycleStateMachine(batchRepo, claimRepo, logger),
		pdfGenerator:  NewDemonstrativoPDFGenerator(logger),
		archive:       NewArchiveService(archiveClient, documentRepo, logger),
		inngestClient: inngestClient,
		resendService: resendService,
		logger:        logger,
	}
}

// CreateBatch cria um lote de guias e o valida. Com Idempotency-Key
// repetida, o lote existente é devolvido sem criar outro.
func (s *BillingService) CreateBatch(providerID uuid.UUID, req *models.CreateBatchRequest, idempotencyKey string) (*models.BatchResponse, error) {
	if idempotencyKey != "" {
		existing, err := s.batchRepo.GetByIdempotencyKey(idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("error checking idempotency: %w", err)
		}
		if existing != nil {
			if existing.ProviderID != providerID {
				return nil, models.NewAPIError(models.NewConflictError("idempotency key already used by another provider"))
			}
			s.logger.WithFields(logrus.Fields{
				"batch_id":        existing.ID,
				"idempotency_key": idempotencyKey,
			}).Info("Idempotent batch create replayed")
			return buildBatchResponse(existing), nil
		}
	}

	operatorID, err := uuid.Parse(req.OperatorID)
	if err != nil {
		return nil, models.NewDataValidationError("invalid operator_id format", err)
	}

	operator, err := s.operatorRepo.GetByID(operatorID)
	if err != nil {
		return nil, fmt.Errorf("error getting operator: %w", err)
	}
	if !operator.IsActive {
		return nil, models.NewDataValidationError("operator is inactive", nil)
	}

	batchID := uuid.New()
	now := time.Now()

	claims, declaredTotal, err := buildClaims(batchID, providerID, req.Claims, now)
	if err != nil {
		return nil, err
	}

	batch := &models.Batch{
		ID:             batchID,
		ProviderID:     providerID,
		OperatorID:     operatorID,
		BatchNumber:    generateBatchNumber(now),
		Status:         models.BatchStatusDraft,
		DeclaredAmount: declaredTotal,
		IdempotencyKey: nilIfEmpty(idempotencyKey),
		CreatedAt:      now,
		UpdatedAt:      now,
		Claims:         claims,
	}

	if err := s.batchRepo.Create(batch, claims); err != nil {
		return nil, fmt.Errorf("error creating batch: %w", err)
	}

	if err := s.validateBatch(batch); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id":     batch.ID,
		"provider_id":  providerID,
		"batch_number": batch.BatchNumber,
		"claims":       len(claims),
		"declared":     declaredTotal,
	}).Info("Batch created successfully")

	return buildBatchResponse(batch), nil
}

// validateBatch passa o lote por VALIDATING e decide entre READY e ERROR
func (s *BillingService) validateBatch(batch *models.Batch) error {
	if err := s.lifecycle.TransitionBatch(batch.ID, models.BatchStatusDraft, models.BatchStatusValidating); err != nil {
		return err
	}

	var problems []string
	seen := make(map[string]bool)
	for _, claim := range batch.Claims {
		if seen[claim.ClaimNumber] {
			problems = append(problems, fmt.Sprintf("duplicate claim number %s", claim.ClaimNumber))
		}
		seen[claim.ClaimNumber] = true

		if claim.ServiceDate.After(time.Now()) {
			problems = append(problems, fmt.Sprintf("claim %s has a future service date", claim.ClaimNumber))
		}
		if claim.DeclaredAmount <= 0 {
			problems = append(problems, fmt.Sprintf("claim %s has no declared amount", claim.ClaimNumber))
		}
	}

	if len(problems) > 0 {
		for _, problem := range problems {
			if err := s.batchRepo.AppendError(batch.ID, problem); err != nil {
				s.logger.Warnf("Error recording validation problem: %v", err)
			}
		}
		if err := s.lifecycle.TransitionBatch(batch.ID, models.BatchStatusValidating, models.BatchStatusError); err != nil {
			return err
		}
		batch.Status = models.BatchStatusError
		batch.Errors = problems
		return nil
	}

	if err := s.lifecycle.TransitionBatch(batch.ID, models.BatchStatusValidating, models.BatchStatusReady); err != nil {
		return err
	}
	batch.Status = models.BatchStatusReady

	for _, claim := range batch.Claims {
		if err := s.lifecycle.TransitionClaim(claim.ID, models.ClaimStatusDraft, models.ClaimStatusValidated); err != nil {
			s.logger.Warnf("Error validating claim %s: %v", claim.ID, err)
		}
	}

	return nil
}

// GetBatch obtém um lote com status, totais e guias
func (s *BillingService) GetBatch(id, providerID uuid.UUID) (*models.BatchStatusResponse, error) {
	batch, err := s.batchRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if batch.ProviderID != providerID {
		return nil, models.NewAPIError(models.NewNotFoundError("batch not found"))
	}

	return &models.BatchStatusResponse{
		ID:             batch.ID,
		BatchNumber:    batch.BatchNumber,
		Status:         batch.Status,
		ProtocolNumber: batch.ProtocolNumber,
		DocumentHash:   batch.DocumentHash,
		Totals: models.BatchTotals{
			Declared: batch.DeclaredAmount,
			Approved: batch.ApprovedAmount,
			Denied:   batch.DeniedAmount,
		},
		Errors:      batch.Errors,
		Claims:      batch.Claims,
		CreatedAt:   batch.CreatedAt,
		SentAt:      batch.SentAt,
		ProcessedAt: batch.ProcessedAt,
		Links: models.Links{
			Self:  fmt.Sprintf("/v1/batches/%s", batch.ID),
			Files: fmt.Sprintf("/v1/batches/%s/files", batch.ID),
		},
	}, nil
}

// ListBatches obtém os lotes do prestador com paginação
func (s *BillingService) ListBatches(providerID uuid.UUID, page, pageSize int) ([]models.Batch, int, error) {
	return s.batchRepo.GetByProviderID(providerID, page, pageSize)
}

// SubmitBatch compõe, assina e entrega o lote à operadora. O
// compare-and-set READY→SENDING garante que, de dois envios
// concorrentes, apenas um alcança a rede.
func (s *BillingService) SubmitBatch(ctx context.Context, id, providerID uuid.UUID) (*models.SubmitBatchResponse, error) {
	batch, err := s.batchRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if batch.ProviderID != providerID {
		return nil, models.NewAPIError(models.NewNotFoundError("batch not found"))
	}

	if err := s.lifecycle.TransitionBatch(id, models.BatchStatusReady, models.BatchStatusSending); err != nil {
		return nil, err
	}

	provider, err := s.providerRepo.GetByID(batch.ProviderID)
	if err != nil {
		return nil, s.failSubmission(id, fmt.Errorf("error getting provider: %w", err))
	}

	// as guias do lote precisam dos itens para a composição
	for i := range batch.Claims {
		items, err := s.claimRepo.GetItemsByClaimID(batch.Claims[i].ID)
		if err != nil {
			return nil, s.failSubmission(id, fmt.Errorf("error loading claim items: %w", err))
		}
		batch.Claims[i].Items = items
	}

	document, err := s.composer.ComposeClaimBatch(batch, provider, batch.Operator)
	if err != nil {
		return nil, s.failSubmission(id, err)
	}

	signed, err := s.signer.Sign(providerID, document)
	if err != nil {
		return nil, s.failSubmission(id, err)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(signed)))
	if err := s.batchRepo.SetSignedDocument(id, signed, hash); err != nil {
		return nil, s.failSubmission(id, err)
	}

	if _, err := s.archive.StoreDocument(ctx, id, models.DocumentKindSignedBatch, []byte(signed)); err != nil {
		s.logger.Warnf("Error archiving signed batch %s: %v", id, err)
	}

	result, err := s.submission.Submit(ctx, batch.Operator, providerID, signed)
	if result != nil && result.RawResponse != "" {
		if _, archiveErr := s.archive.StoreDocument(ctx, id, models.DocumentKindRawResponse, []byte(result.RawResponse)); archiveErr != nil {
			s.logger.Warnf("Error archiving operator response for batch %s: %v", id, archiveErr)
		}
	}
	if err != nil {
		return nil, s.failSubmission(id, err)
	}

	if err := s.batchRepo.SetProtocol(id, *result.ProtocolNumber, time.Now()); err != nil {
		return nil, s.failSubmission(id, err)
	}

	if err := s.lifecycle.TransitionBatch(id, models.BatchStatusSending, models.BatchStatusSent); err != nil {
		return nil, err
	}

	for _, claim := range batch.Claims {
		if err := s.lifecycle.TransitionClaim(claim.ID, models.ClaimStatusValidated, models.ClaimStatusSubmitted); err != nil {
			s.logger.Warnf("Error marking claim %s submitted: %v", claim.ID, err)
			continue
		}
		if err := s.lifecycle.TransitionClaim(claim.ID, models.ClaimStatusSubmitted, models.ClaimStatusUnderReview); err != nil {
			s.logger.Warnf("Error marking claim %s under review: %v", claim.ID, err)
		}
	}

	if err := s.lifecycle.TransitionBatch(id, models.BatchStatusSent, models.BatchStatusProcessing); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id": id,
		"protocol": *result.ProtocolNumber,
	}).Info("Batch submitted successfully")

	return &models.SubmitBatchResponse{
		ID:             id,
		Status:         models.BatchStatusProcessing,
		ProtocolNumber: result.ProtocolNumber,
		Message:        result.Message,
	}, nil
}

// failSubmission registra o erro na trilha do lote e o leva a ERROR
func (s *BillingService) failSubmission(id uuid.UUID, cause error) error {
	if err := s.batchRepo.AppendError(id, cause.Error()); err != nil {
		s.logger.Warnf("Error recording submission failure: %v", err)
	}
	if err := s.batchRepo.TransitionStatus(id, models.BatchStatusSending, models.BatchStatusError); err != nil {
		s.logger.Warnf("Error transitioning batch %s to ERROR: %v", id, err)
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id":  id,
		"retryable": models.IsRetryable(cause),
	}).Errorf("Batch submission failed: %v", cause)

	return cause
}

// RetrySubmission reabilita um lote em ERROR para novo envio
func (s *BillingService) RetrySubmission(id, providerID uuid.UUID) (*models.RetryResponse, error) {
	batch, err := s.batchRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if batch.ProviderID != providerID {
		return nil, models.NewAPIError(models.NewNotFoundError("batch not found"))
	}

	if err := s.lifecycle.TransitionBatch(id, models.BatchStatusError, models.BatchStatusReady); err != nil {
		return nil, err
	}

	s.logger.WithField("batch_id", id).Info("Batch retry requested")

	return &models.RetryResponse{
		Status:     "ENQUEUED",
		ResumeFrom: "submit",
	}, nil
}

// IngestDemonstrativo concilia o demonstrativo da operadora contra as
// guias do lote: valores, glosas com prazo de recurso e o status final.
// Para lotes já liquidados o documento é tratado como resposta de
// recurso e reabre as guias recorridas antes de aplicar o desfecho
func (s *BillingService) IngestDemonstrativo(ctx context.Context, batchID, providerID uuid.UUID, req *models.IngestDemonstrativoRequest) (*models.IngestDemonstrativoResponse, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch.ProviderID != providerID {
		return nil, models.NewAPIError(models.NewNotFoundError("batch not found"))
	}

	// lotes já liquidados ainda recebem demonstrativos: a operadora
	// responde recursos de glosa depois que o lote fechou
	appealRound := batch.Status == models.BatchStatusProcessed || batch.Status == models.BatchStatusPartial

	if !appealRound {
		if batch.Status == models.BatchStatusSent {
			if err := s.lifecycle.TransitionBatch(batchID, models.BatchStatusSent, models.BatchStatusProcessing); err != nil {
				return nil, err
			}
			batch.Status = models.BatchStatusProcessing
		}
		if batch.Status != models.BatchStatusProcessing {
			return nil, models.NewStateConflictError(
				fmt.Sprintf("batch %s is not awaiting adjudication", batchID))
		}
	}

	demo, err := s.processor.Parse(req.DocumentXML)
	if err != nil {
		return nil, err
	}

	// a resposta bruta é preservada íntegra para revisão manual
	if _, err := s.archive.StoreDocument(ctx, batchID, models.DocumentKindRawResponse, []byte(req.DocumentXML)); err != nil {
		s.logger.Warnf("Error archiving demonstrativo for batch %s: %v", batchID, err)
	}

	outcomes := make([]models.ClaimOutcome, 0, len(demo.Claims))
	for _, guia := range demo.Claims {
		outcomes = append(outcomes, guia.Outcome)

		claim, err := s.claimRepo.GetByClaimNumber(batchID, guia.ClaimNumber)
		if err != nil {
			s.logger.Warnf("Demonstrativo references unknown claim %s: %v", guia.ClaimNumber, err)
			continue
		}

		if appealRound && claim.Status != models.ClaimStatusAppealed {
			s.logger.Warnf("Appeal demonstrativo references claim %s not under appeal (status %s)", guia.ClaimNumber, claim.Status)
			continue
		}

		if reconciliationMismatch(guia) {
			mismatch := fmt.Sprintf("claim %s reconciliation mismatch: declared %.2f, approved %.2f, denied %.2f",
				guia.ClaimNumber, guia.DeclaredAmount, guia.ApprovedAmount, guia.DeniedAmount)
			s.logger.WithField("batch_id", batchID).Warn(mismatch)
			if err := s.batchRepo.AppendError(batchID, mismatch); err != nil {
				s.logger.Warnf("Error recording reconciliation mismatch for batch %s: %v", batchID, err)
			}
		}

		if err := s.claimRepo.SetAdjudication(claim.ID, guia.ApprovedAmount, guia.DeniedAmount, guia.DeniedAmount > 0); err != nil {
			s.logger.Warnf("Error recording adjudication for claim %s: %v", claim.ID, err)
			continue
		}

		if len(guia.Glosas) > 0 {
			glosas := make([]models.Glosa, len(guia.Glosas))
			for i, glosa := range guia.Glosas {
				glosa.ID = uuid.New()
				glosa.ClaimID = claim.ID
				glosa.CreatedAt = time.Now()
				glosas[i] = glosa
			}
			if err := s.claimRepo.CreateGlosas(glosas); err != nil {
				s.logger.Warnf("Error recording glosas for claim %s: %v", claim.ID, err)
			}
		}

		if appealRound {
			if err := s.lifecycle.ApplyAppealOutcome(claim.ID, guia.Outcome); err != nil {
				s.logger.Warnf("Error applying appeal outcome for claim %s: %v", claim.ID, err)
			}
			continue
		}

		target := ClaimStatusForOutcome(guia.Outcome)
		if target != models.ClaimStatusUnderReview {
			if err := s.lifecycle.TransitionClaim(claim.ID, models.ClaimStatusUnderReview, target); err != nil {
				s.logger.Warnf("Error transitioning claim %s: %v", claim.ID, err)
			}
		}
	}

	// numa rodada de recurso o lote já liquidou; só as guias recorridas
	// mudam de status e os totais do lote ficam como estão
	if appealRound {
		s.logger.WithFields(logrus.Fields{
			"batch_id": batchID,
			"status":   batch.Status,
			"claims":   len(demo.Claims),
		}).Info("Appeal demonstrativo reconciled")

		return &models.IngestDemonstrativoResponse{
			BatchStatus:    batch.Status,
			ProtocolNumber: demo.ProtocolNumber,
			Totals: models.BatchTotals{
				Declared: demo.DeclaredTotal,
				Approved: demo.ApprovedTotal,
				Denied:   demo.DeniedTotal,
			},
			Claims: demo.Claims,
		}, nil
	}

	finalStatus := DeriveBatchStatus(outcomes)
	if err := s.lifecycle.TransitionBatch(batchID, models.BatchStatusProcessing, finalStatus); err != nil {
		return nil, err
	}

	if err := s.batchRepo.SetAdjudicationTotals(batchID, demo.ApprovedTotal, demo.DeniedTotal, demo.AnalysisDate); err != nil {
		s.logger.Warnf("Error recording batch totals: %v", err)
	}

	if pdfData, err := s.pdfGenerator.Generate(batch, batch.Provider, batch.Operator, demo); err != nil {
		s.logger.Warnf("Error generating demonstrativo PDF for batch %s: %v", batchID, err)
	} else if _, err := s.archive.StoreDocument(ctx, batchID, models.DocumentKindSummaryPDF, pdfData); err != nil {
		s.logger.Warnf("Error archiving demonstrativo PDF for batch %s: %v", batchID, err)
	}

	if s.resendService != nil {
		go func() {
			if err := s.resendService.SendAdjudicationEmail(batch, batch.Provider, batch.Operator, demo); err != nil {
				s.logger.WithField("batch_id", batchID).Errorf("Failed to send adjudication email: %v", err)
				return
			}
			s.logger.WithFields(logrus.Fields{
				"batch_id": batchID,
				"to":       batch.Provider.Email,
			}).Info("Adjudication email sent")
		}()
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"status":   finalStatus,
		"approved": demo.ApprovedTotal,
		"denied":   demo.DeniedTotal,
	}).Info("Demonstrativo reconciled")

	return &models.IngestDemonstrativoResponse{
		BatchStatus:    finalStatus,
		ProtocolNumber: demo.ProtocolNumber,
		Totals: models.BatchTotals{
			Declared: demo.DeclaredTotal,
			Approved: demo.ApprovedTotal,
			Denied:   demo.DeniedTotal,
		},
		Claims: demo.Claims,
	}, nil
}

// CreateAppeal monta, assina e entrega um recurso de glosa para uma
// guia negada total ou parcialmente, dentro do prazo
func (s *BillingService) CreateAppeal(ctx context.Context, claimID, providerID uuid.UUID, req *models.CreateAppealRequest) (*models.AppealResponse, error) {
	claim, err := s.claimRepo.GetByID(claimID)
	if err != nil {
		return nil, err
	}
	if claim.ProviderID != providerID {
		return nil, models.NewAPIError(models.NewNotFoundError("claim not found"))
	}

	if claim.Status != models.ClaimStatusDenied && claim.Status != models.ClaimStatusPartiallyDenied {
		return nil, models.NewStateConflictError(
			fmt.Sprintf("claim %s has no appealable denial (status %s)", claimID, claim.Status))
	}

	fromStatus := claim.Status
	now := time.Now()
	appealID := uuid.New()

	items := make([]models.AppealItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		glosaID, err := uuid.Parse(itemReq.GlosaID)
		if err != nil {
			return nil, models.NewDataValidationError("invalid glosa_id format", err)
		}

		glosa, err := s.claimRepo.GetGlosaByID(glosaID)
		if err != nil {
			return nil, err
		}
		if glosa.ClaimID != claimID {
			return nil, models.NewDataValidationError(
				fmt.Sprintf("glosa %s does not belong to claim %s", glosaID, claimID), nil)
		}
		if now.After(glosa.AppealDeadline) {
			return nil, models.NewDataValidationError(
				fmt.Sprintf("appeal deadline for glosa %s passed on %s", glosaID, glosa.AppealDeadline.Format("2006-01-02")), nil)
		}
		if itemReq.Amount > glosa.DeniedAmount {
			return nil, models.NewDataValidationError(
				fmt.Sprintf("contested amount %.2f exceeds denied amount %.2f", itemReq.Amount, glosa.DeniedAmount), nil)
		}

		justification := itemReq.Justification
		if justification == "" {
			justification = req.Justification
		}

		items = append(items, models.AppealItem{
			ID:              uuid.New(),
			AppealID:        appealID,
			GlosaID:         glosaID,
			ItemSequence:    glosa.ItemSequence,
			ProcedureCode:   glosa.ProcedureCode,
			ContestedAmount: itemReq.Amount,
			Justification:   justification,
			CreatedAt:       now,
		})
	}

	appeal := &models.Appeal{
		ID:            appealID,
		ClaimID:       claimID,
		ProviderID:    providerID,
		Justification: req.Justification,
		Status:        models.AppealStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         items,
	}

	if err := s.claimRepo.CreateAppeal(appeal); err != nil {
		return nil, fmt.Errorf("error creating appeal: %w", err)
	}

	batch, err := s.batchRepo.GetByID(claim.BatchID)
	if err != nil {
		return nil, err
	}
	provider, err := s.providerRepo.GetByID(providerID)
	if err != nil {
		return nil, err
	}

	document, err := s.composer.ComposeAppeal(appeal, claim, batch, provider, batch.Operator)
	if err != nil {
		return nil, err
	}

	signed, err := s.signer.Sign(providerID, document)
	if err != nil {
		return nil, err
	}

	result, err := s.submission.Submit(ctx, batch.Operator, providerID, signed)
	if err != nil {
		// o recurso fica em DRAFT; o envio pode ser repetido
		s.logger.WithField("appeal_id", appealID).Errorf("Appeal submission failed: %v", err)
		return nil, err
	}

	if err := s.claimRepo.UpdateAppealSubmission(appealID, signed, result.ProtocolNumber, models.AppealStatusSubmitted); err != nil {
		return nil, err
	}

	if err := s.lifecycle.TransitionClaim(claimID, fromStatus, models.ClaimStatusAppealed); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"appeal_id": appealID,
		"claim_id":  claimID,
		"items":     len(items),
	}).Info("Appeal submitted successfully")

	return &models.AppealResponse{
		ID:             appealID,
		ClaimID:        claimID,
		Status:         models.AppealStatusSubmitted,
		ClaimStatus:    models.ClaimStatusAppealed,
		ProtocolNumber: result.ProtocolNumber,
	}, nil
}

// GetBatchFiles devolve as referências dos documentos arquivados do lote
func (s *BillingService) GetBatchFiles(id, providerID uuid.UUID) (*models.BatchFilesResponse, error) {
	batch, err := s.batchRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if batch.ProviderID != providerID {
		return nil, models.NewAPIError(models.NewNotFoundError("batch not found"))
	}

	response, err := s.archive.GetBatchFiles(id)
	if err != nil {
		return nil, err
	}

	// fallback para as rotas locais quando não há URL de storage
	if response.SignedXML == nil && batch.SignedDocument != nil {
		response.SignedXML = stringPtr(fmt.Sprintf("/v1/batches/%s/files/xml", id))
	}

	return response, nil
}

// buildClaims valida e monta as guias do request
func buildClaims(batchID, providerID uuid.UUID, reqs []models.ClaimRequest, now time.Time) ([]models.Claim, float64, error) {
	var declaredTotal float64
	claims := make([]models.Claim, 0, len(reqs))

	for _, claimReq := range reqs {
		serviceDate, err := time.Parse("2006-01-02", claimReq.ServiceDate)
		if err != nil {
			return nil, 0, models.NewDataValidationError(
				fmt.Sprintf("claim %s has invalid service_date: %s", claimReq.ClaimNumber, claimReq.ServiceDate), err)
		}

		claimID := uuid.New()
		var claimTotal float64
		items := make([]models.ClaimItem, len(claimReq.Items))
		for i, itemReq := range claimReq.Items {
			lineTotal := itemReq.Quantity * itemReq.UnitAmount
			claimTotal += lineTotal
			items[i] = models.ClaimItem{
				ID:            uuid.New(),
				ClaimID:       claimID,
				Sequence:      i + 1,
				ProcedureCode: itemReq.ProcedureCode,
				Description:   itemReq.Description,
				Quantity:      itemReq.Quantity,
				UnitAmount:    itemReq.UnitAmount,
				TotalAmount:   lineTotal,
				CreatedAt:     now,
			}
		}

		declaredTotal += claimTotal
		claims = append(claims, models.Claim{
			ID:             claimID,
			BatchID:        batchID,
			ProviderID:     providerID,
			ClaimNumber:    claimReq.ClaimNumber,
			CardNumber:     claimReq.CardNumber,
			ServiceDate:    serviceDate,
			DeclaredAmount: claimTotal,
			Status:         models.ClaimStatusDraft,
			CreatedAt:      now,
			UpdatedAt:      now,
			Items:          items,
		})
	}

	return claims, declaredTotal, nil
}

func buildBatchResponse(batch *models.Batch) *models.BatchResponse {
	return &models.BatchResponse{
		ID:          batch.ID,
		BatchNumber: batch.BatchNumber,
		Status:      batch.Status,
		ClaimCount:  len(batch.Claims),
		Totals: models.BatchTotals{
			Declared: batch.DeclaredAmount,
			Approved: batch.ApprovedAmount,
			Denied:   batch.DeniedAmount,
		},
		Links: models.Links{
			Self:  fmt.Sprintf("/v1/batches/%s", batch.ID),
			Files: fmt.Sprintf("/v1/batches/%s/files", batch.ID),
		},
	}
}

// generateBatchNumber gera um número de lote único e legível
func generateBatchNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("L%s-%s", now.Format("20060102"), suffix)
}

func nilIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// stringPtr converte um string em *string
func stringPtr(s string) *string {
	return &s
}
