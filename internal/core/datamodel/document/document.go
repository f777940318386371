package document

import "time"

type Document struct {
	ID             int64      `gorm:"primaryKey"`
	Title          string     `gorm:"column:title;not null"`
	FileURL        string     `gorm:"column:file_url"`
	DocumentType   string     `gorm:"column:document_type"`
	Class          string     `gorm:"column:class"`
	Department     string     `gorm:"column:department"`
	Description    string     `gorm:"column:description"`
	IsConfidential bool       `gorm:"column:is_confidential"`
	EffectiveDate  *time.Time `gorm:"column:effective_date;type:date"`
	CurrentStage   string     `gorm:"column:current_stage;default:clerk"`
	Status         string     `gorm:"column:status;default:pending"`
	CreatedBy      string     `gorm:"column:created_by"`
	AssignedTo     string     `gorm:"column:assigned_to"`
	ReviewedBy     string     `gorm:"column:reviewed_by"`
	ReviewedDate   *time.Time `gorm:"column:reviewed_date"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentReview is one row of the append-only review trail.
type DocumentReview struct {
	ID           int64     `gorm:"primaryKey"`
	DocumentID   int64     `gorm:"column:document_id;not null;index"`
	Action       string    `gorm:"column:action;not null"`
	ReviewerRole string    `gorm:"column:reviewer_role"`
	FromStage    string    `gorm:"column:from_stage"`
	ToStage      string    `gorm:"column:to_stage"`
	Status       string    `gorm:"column:status"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DocumentReview) TableName() string {
	return "document_reviews"
}
