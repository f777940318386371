package document

import (
	"errors"
	"time"

	"github.com/docuflow/document-workflow/internal/core/common/validation"
)

// CreateDocumentDTO is the request payload for uploading a document.
type CreateDocumentDTO struct {
	Title          string     `json:"title" validate:"required"`
	FileURL        string     `json:"file_url" validate:"required"`
	DocumentType   string     `json:"document_type"`
	Class          string     `json:"class"`
	Department     string     `json:"department"`
	Description    string     `json:"description"`
	IsConfidential bool       `json:"is_confidential"`
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	AssignedTo     string     `json:"assigned_to"`
}

func (dto CreateDocumentDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("title", dto.Title).Required().MaxLength(255)
	v.Field("file_url", dto.FileURL).Required()
	v.Field("description", dto.Description).MaxLength(2000)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateDocumentDTO carries a partial update. Only non-nil fields are sent
// to the database, so an update can never null out columns it did not
// mention. Stage and status transitions go through the review operations,
// not through here.
type UpdateDocumentDTO struct {
	Title          *string    `json:"title,omitempty"`
	FileURL        *string    `json:"file_url,omitempty"`
	DocumentType   *string    `json:"document_type,omitempty"`
	Class          *string    `json:"class,omitempty"`
	Department     *string    `json:"department,omitempty"`
	Description    *string    `json:"description,omitempty"`
	IsConfidential *bool      `json:"is_confidential,omitempty"`
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
}

func (dto UpdateDocumentDTO) Empty() bool {
	return dto.Title == nil && dto.FileURL == nil && dto.DocumentType == nil &&
		dto.Class == nil && dto.Department == nil && dto.Description == nil &&
		dto.IsConfidential == nil && dto.EffectiveDate == nil && dto.AssignedTo == nil
}

// RejectDocumentDTO is the request payload for rejecting a document.
// The reason is logged, not persisted on the document row.
type RejectDocumentDTO struct {
	Reason string `json:"reason,omitempty"`
}

// ListFilter narrows a document listing. Zero values mean "no filter".
type ListFilter struct {
	Stage      string
	Status     string
	AssignedTo string
	CreatedBy  string
}

// DocumentResponse is the API shape of a document. It repeats file_url
// under the legacy fileUrl key that older consumers still read.
type DocumentResponse struct {
	Document
	LegacyFileURL string `json:"fileUrl,omitempty"`
}

func (d *Document) ToResponse() DocumentResponse {
	return DocumentResponse{Document: *d, LegacyFileURL: d.FileURL}
}

func ToResponseSlice(docs []*Document) []DocumentResponse {
	result := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		result[i] = d.ToResponse()
	}
	return result
}

// Domain errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrStageMismatch     = errors.New("reviewer role does not match the document's current stage")
	ErrDocumentFinalized = errors.New("document is already approved or completed")
	ErrUnknownStage      = errors.New("document stage is not part of the review sequence")
	ErrUnauthorizedRole  = errors.New("user has no reviewer role for this operation")
)
