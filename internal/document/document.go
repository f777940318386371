package document

import (
	"strings"
	"time"

	documentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/document"
)

type Document struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	FileURL        string     `json:"file_url"`
	DocumentType   string     `json:"document_type"`
	Class          string     `json:"class"`
	Department     string     `json:"department,omitempty"`
	Description    string     `json:"description,omitempty"`
	IsConfidential bool       `json:"is_confidential"`
	EffectiveDate  *time.Time `json:"effective_date,omitempty"`
	CurrentStage   string     `json:"current_stage"`
	Status         string     `json:"status"`
	CreatedBy      string     `json:"created_by"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewedDate   *time.Time `json:"reviewed_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Review stages, in the order a document travels through them.
const (
	StageClerk       = "clerk"
	StageSeniorClerk = "senior_clerk"
	StageAccountant  = "accountant"
	StageAdmin       = "admin"
	StageHOD         = "hod"
)

var StageSequence = []string{
	StageClerk,
	StageSeniorClerk,
	StageAccountant,
	StageAdmin,
	StageHOD,
}

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

const (
	TypePDF    = "pdf"
	TypeImage  = "image"
	TypeExcel  = "excel"
	TypeWord   = "word"
	TypeOthers = "others"
)

const (
	ClassConfidential = "confidential"
	ClassGeneral      = "general"
	ClassUrgent       = "urgent"
)

// Reviewer role names as stored on user accounts.
const (
	RoleClerk       = "Clerk"
	RoleSeniorClerk = "Senior Clerk"
	RoleAccountant  = "Accountant"
	RoleHOD         = "HOD"
	RoleAdmin       = "Admin"
)

// RoleStage maps a reviewer role to the stage it is allowed to act on.
var RoleStage = map[string]string{
	RoleClerk:       StageClerk,
	RoleSeniorClerk: StageSeniorClerk,
	RoleAccountant:  StageAccountant,
	RoleHOD:         StageHOD,
	RoleAdmin:       StageAdmin,
}

// StageIndex returns the position of stage in StageSequence, or -1.
func StageIndex(stage string) int {
	for i, s := range StageSequence {
		if s == stage {
			return i
		}
	}
	return -1
}

func ValidStage(stage string) bool {
	return StageIndex(stage) >= 0
}

func (d *Document) IsFinalized() bool {
	return d.Status == StatusApproved || d.Status == StatusCompleted
}

func (d *Document) CanBeReviewed() bool {
	return !d.IsFinalized()
}

// Advance moves the document one stage forward. At the last stage it
// completes in place instead of advancing.
func (d *Document) Advance() error {
	if d.IsFinalized() {
		return ErrDocumentFinalized
	}
	idx := StageIndex(d.CurrentStage)
	if idx < 0 {
		return ErrUnknownStage
	}
	if idx == len(StageSequence)-1 {
		d.Status = StatusCompleted
	} else {
		d.CurrentStage = StageSequence[idx+1]
	}
	d.UpdatedAt = time.Now()
	return nil
}

// ApproveBy records an approval from reviewerRole and advances the stage.
// A role mapped to a different stage than the document's current one is
// not allowed to act; roles with no mapping pass the guard, matching the
// behavior dashboards have always relied on.
func (d *Document) ApproveBy(reviewerRole string) error {
	if d.IsFinalized() {
		return ErrDocumentFinalized
	}
	if stage, ok := RoleStage[reviewerRole]; ok && stage != d.CurrentStage {
		return ErrStageMismatch
	}
	idx := StageIndex(d.CurrentStage)
	if idx < 0 {
		return ErrUnknownStage
	}
	now := time.Now()
	if idx == len(StageSequence)-1 {
		d.Status = StatusApproved
	} else {
		d.CurrentStage = StageSequence[idx+1]
	}
	d.ReviewedBy = reviewerRole
	d.ReviewedDate = &now
	d.UpdatedAt = now
	return nil
}

// Reject marks the document rejected without touching its stage. There is
// deliberately no guard on the current status: rejection is allowed from
// any state, including already approved or completed documents.
func (d *Document) Reject(reviewerRole string) {
	now := time.Now()
	d.Status = StatusRejected
	d.ReviewedBy = reviewerRole
	d.ReviewedDate = &now
	d.UpdatedAt = now
}

// NormalizeDocumentType canonicalizes free-form type markers (extensions,
// MIME fragments) into one of the fixed document types.
func NormalizeDocumentType(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "pdf"):
		return TypePDF
	case strings.Contains(v, "xls"), strings.Contains(v, "sheet"), strings.Contains(v, "csv"):
		return TypeExcel
	case strings.Contains(v, "doc"):
		return TypeWord
	case strings.Contains(v, "png"), strings.Contains(v, "jpg"), strings.Contains(v, "jpeg"),
		strings.Contains(v, "gif"), strings.Contains(v, "img"), strings.Contains(v, "image"):
		return TypeImage
	default:
		return TypeOthers
	}
}

// NormalizeClass maps legacy letter codes and full names onto the fixed
// class set. Anything unrecognized, including empty input, is general.
func NormalizeClass(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "a", ClassConfidential:
		return ClassConfidential
	case "b", ClassGeneral:
		return ClassGeneral
	case "c", ClassUrgent:
		return ClassUrgent
	default:
		return ClassGeneral
	}
}

// NormalizeStatus lowercases legacy status values ({Pending, Approved,
// Rejected, In Review}) into the canonical set. Nothing past this boundary
// branches on raw casing.
func NormalizeStatus(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return v
	case "in review", "in_review":
		return StatusPending
	case "":
		return StatusPending
	default:
		return StatusPending
	}
}

func ToDataModel(d *Document) *documentDatamodel.Document {
	return &documentDatamodel.Document{
		ID:             d.ID,
		Title:          d.Title,
		FileURL:        d.FileURL,
		DocumentType:   d.DocumentType,
		Class:          d.Class,
		Department:     d.Department,
		Description:    d.Description,
		IsConfidential: d.IsConfidential,
		EffectiveDate:  d.EffectiveDate,
		CurrentStage:   d.CurrentStage,
		Status:         d.Status,
		CreatedBy:      d.CreatedBy,
		AssignedTo:     d.AssignedTo,
		ReviewedBy:     d.ReviewedBy,
		ReviewedDate:   d.ReviewedDate,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func FromDataModel(d *documentDatamodel.Document) *Document {
	return &Document{
		ID:             d.ID,
		Title:          d.Title,
		FileURL:        d.FileURL,
		DocumentType:   d.DocumentType,
		Class:          d.Class,
		Department:     d.Department,
		Description:    d.Description,
		IsConfidential: d.IsConfidential,
		EffectiveDate:  d.EffectiveDate,
		CurrentStage:   d.CurrentStage,
		Status:         NormalizeStatus(d.Status),
		CreatedBy:      d.CreatedBy,
		AssignedTo:     d.AssignedTo,
		ReviewedBy:     d.ReviewedBy,
		ReviewedDate:   d.ReviewedDate,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func FromDataModelSlice(docs []*documentDatamodel.Document) []*Document {
	result := make([]*Document, len(docs))
	for i, d := range docs {
		result[i] = FromDataModel(d)
	}
	return result
}

// Review actions recorded in the audit trail.
const (
	ReviewActionCreated  = "created"
	ReviewActionAdvanced = "advanced"
	ReviewActionApproved = "approved"
	ReviewActionRejected = "rejected"
)

// Review is one entry in a document's append-only review trail.
type Review struct {
	ID           int64     `json:"id"`
	DocumentID   int64     `json:"document_id"`
	Action       string    `json:"action"`
	ReviewerRole string    `json:"reviewer_role,omitempty"`
	FromStage    string    `json:"from_stage,omitempty"`
	ToStage      string    `json:"to_stage,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
