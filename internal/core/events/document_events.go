package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeDocumentCreated   = "document.created"
	EventTypeDocumentAdvanced  = "document.advanced"
	EventTypeDocumentApproved  = "document.approved"
	EventTypeDocumentRejected  = "document.rejected"
	EventTypeDocumentCompleted = "document.completed"
)

type DocumentCreatedEvent struct {
	BaseEvent
	DocumentID int64  `json:"document_id"`
	Title      string `json:"title"`
	CreatedBy  string `json:"created_by"`
	Stage      string `json:"stage"`
}

func NewDocumentCreatedEvent(documentID int64, title, createdBy, stage string) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"document_id": documentID,
				"title":       title,
				"created_by":  createdBy,
				"stage":       stage,
			},
		},
		DocumentID: documentID,
		Title:      title,
		CreatedBy:  createdBy,
		Stage:      stage,
	}
}

// DocumentStageChangedEvent covers advancement, approval and completion:
// anything that moves a document through the review pipeline.
type DocumentStageChangedEvent struct {
	BaseEvent
	DocumentID   int64  `json:"document_id"`
	FromStage    string `json:"from_stage"`
	ToStage      string `json:"to_stage"`
	Status       string `json:"status"`
	ReviewerRole string `json:"reviewer_role,omitempty"`
}

func newStageChangedEvent(eventType string, documentID int64, fromStage, toStage, status, reviewerRole string) *DocumentStageChangedEvent {
	return &DocumentStageChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"document_id":   documentID,
				"from_stage":    fromStage,
				"to_stage":      toStage,
				"status":        status,
				"reviewer_role": reviewerRole,
			},
		},
		DocumentID:   documentID,
		FromStage:    fromStage,
		ToStage:      toStage,
		Status:       status,
		ReviewerRole: reviewerRole,
	}
}

func NewDocumentAdvancedEvent(documentID int64, fromStage, toStage, status string) *DocumentStageChangedEvent {
	return newStageChangedEvent(EventTypeDocumentAdvanced, documentID, fromStage, toStage, status, "")
}

func NewDocumentApprovedEvent(documentID int64, fromStage, toStage, status, reviewerRole string) *DocumentStageChangedEvent {
	return newStageChangedEvent(EventTypeDocumentApproved, documentID, fromStage, toStage, status, reviewerRole)
}

func NewDocumentCompletedEvent(documentID int64, fromStage, reviewerRole string) *DocumentStageChangedEvent {
	return newStageChangedEvent(EventTypeDocumentCompleted, documentID, fromStage, fromStage, "completed", reviewerRole)
}

type DocumentRejectedEvent struct {
	BaseEvent
	DocumentID   int64  `json:"document_id"`
	Stage        string `json:"stage"`
	ReviewerRole string `json:"reviewer_role"`
	Reason       string `json:"reason,omitempty"`
}

func NewDocumentRejectedEvent(documentID int64, stage, reviewerRole, reason string) *DocumentRejectedEvent {
	return &DocumentRejectedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDocumentRejected,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"document_id":   documentID,
				"stage":         stage,
				"reviewer_role": reviewerRole,
				"reason":        reason,
			},
		},
		DocumentID:   documentID,
		Stage:        stage,
		ReviewerRole: reviewerRole,
		Reason:       reason,
	}
}
