package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/tiss-service/internal/database"
	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// ArchiveService guarda os documentos do lote em storage compatível com
// S3 e os metadados no banco local. Respostas brutas da operadora são
// preservadas íntegras para revisão manual.
type ArchiveService struct {
	archiveClient *database.ArchiveClient
	documentRepo  *database.DocumentRepository
	logger        *logrus.Logger
}

// NewArchiveService cria uma nova instância do serviço de arquivamento
func NewArchiveService(archiveClient *database.ArchiveClient, documentRepo *database.DocumentRepository, logger *logrus.Logger) *ArchiveService {
	return &ArchiveService{
		archiveClient: archiveClient,
		documentRepo:  documentRepo,
		logger:        logger,
	}
}

// StoreDocument arquiva um documento do lote e grava os metadados
func (s *ArchiveService) StoreDocument(ctx context.Context, batchID uuid.UUID, kind models.DocumentKind, data []byte) (*models.BatchDocument, error) {
	fileName := archiveFileName(batchID, kind)
	contentType := contentTypeFor(kind)

	var url *string
	if s.archiveClient != nil {
		uploaded, err := s.archiveClient.UploadFile(ctx, fileName, data, contentType)
		if err != nil {
			// o storage remoto é best-effort; os dados ficam no banco
			s.logger.WithFields(logrus.Fields{
				"batch_id": batchID,
				"kind":     kind,
			}).Warnf("Error uploading document to archive storage: %v", err)
		} else {
			url = &uploaded
		}
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	doc := &models.BatchDocument{
		ID:          uuid.New(),
		BatchID:     batchID,
		Kind:        kind,
		Data:        data,
		Size:        int64(len(data)),
		URL:         url,
		ContentHash: &hash,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.documentRepo.CreateOrUpdate(doc); err != nil {
		return nil, fmt.Errorf("error saving document metadata: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"kind":     kind,
		"size":     doc.Size,
	}).Info("Batch document archived")

	return doc, nil
}

// GetDocument recupera um documento do lote, preferindo o banco local e
// caindo para o storage remoto quando os dados não estão inline
func (s *ArchiveService) GetDocument(ctx context.Context, batchID uuid.UUID, kind models.DocumentKind) (*models.BatchDocument, error) {
	doc, err := s.documentRepo.GetByBatchAndKind(batchID, kind)
	if err != nil {
		return nil, err
	}

	if len(doc.Data) == 0 && s.archiveClient != nil {
		data, err := s.archiveClient.DownloadFile(ctx, archiveFileName(batchID, kind))
		if err != nil {
			return nil, fmt.Errorf("error downloading archived document: %w", err)
		}
		doc.Data = data
	}

	return doc, nil
}

// GetBatchFiles monta a resposta com as URLs dos documentos do lote
func (s *ArchiveService) GetBatchFiles(batchID uuid.UUID) (*models.BatchFilesResponse, error) {
	docs, err := s.documentRepo.GetByBatchID(batchID)
	if err != nil {
		return nil, err
	}

	response := &models.BatchFilesResponse{Disposition: "inline"}
	for _, doc := range docs {
		switch doc.Kind {
		case models.DocumentKindSignedBatch, models.DocumentKindSignedAppeal:
			response.SignedXML = doc.URL
		case models.DocumentKindRawResponse:
			response.RawResponse = doc.URL
		case models.DocumentKindSummaryPDF:
			response.SummaryPDF = doc.URL
		}
	}

	return response, nil
}

func archiveFileName(batchID uuid.UUID, kind models.DocumentKind) string {
	switch kind {
	case models.DocumentKindSignedBatch:
		return fmt.Sprintf("batches/%s/lote_%s.xml", batchID, batchID)
	case models.DocumentKindSignedAppeal:
		return fmt.Sprintf("batches/%s/recurso_%s.xml", batchID, batchID)
	case models.DocumentKindRawResponse:
		return fmt.Sprintf("batches/%s/resposta_%s.xml", batchID, batchID)
	case models.DocumentKindSummaryPDF:
		return fmt.Sprintf("batches/%s/demonstrativo_%s.pdf", batchID, batchID)
	default:
		return fmt.Sprintf("batches/%s/%s", batchID, kind)
	}
}

func contentTypeFor(kind models.DocumentKind) string {
	if kind == models.DocumentKindSummaryPDF {
		return "application/pdf"
	}
	return "application/xml"
}
