package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentKind representa o tipo de arquivo arquivado de um lote
type DocumentKind string

const (
	DocumentKindSignedBatch  DocumentKind = "SIGNED_BATCH"
	DocumentKindSignedAppeal DocumentKind = "SIGNED_APPEAL"
	DocumentKindRawResponse  DocumentKind = "RAW_RESPONSE"
	DocumentKindSummaryPDF   DocumentKind = "SUMMARY_PDF"
)

// BatchDocument representa um arquivo arquivado de um lote: o XML
// assinado enviado, a resposta bruta da operadora (preservada para
// revisão manual) e o PDF-resumo do demonstrativo
type BatchDocument struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	BatchID     uuid.UUID    `json:"batch_id" db:"batch_id"`
	Kind        DocumentKind `json:"kind" db:"kind"`
	Data        []byte       `json:"-" db:"data"`
	Size        int64        `json:"size" db:"size"`
	URL         *string      `json:"url,omitempty" db:"url"`
	ContentHash *string      `json:"content_hash,omitempty" db:"content_hash"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// BatchFilesResponse representa a resposta para obter arquivos do lote
type BatchFilesResponse struct {
	SignedXML   *string `json:"signed_xml,omitempty"`
	RawResponse *string `json:"raw_response,omitempty"`
	SummaryPDF  *string `json:"summary_pdf,omitempty"`
	Disposition string  `json:"disposition"`
}
