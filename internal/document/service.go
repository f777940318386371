package document

import (
	"context"
	"log/slog"
	"time"

	"github.com/docuflow/document-workflow/internal/core/events"
)

// Repository interface defines the data access methods for documents
type Repository interface {
	Create(ctx context.Context, doc *Document) (*Document, error)
	GetByID(ctx context.Context, id int64) (*Document, error)
	Update(ctx context.Context, id int64, dto UpdateDocumentDTO) (*Document, error)
	Delete(ctx context.Context, id int64) error
	GetAll(ctx context.Context) ([]*Document, error)
	GetByStage(ctx context.Context, stage string) ([]*Document, error)
	GetByStatus(ctx context.Context, status string) ([]*Document, error)
	GetAssignedTo(ctx context.Context, user string) ([]*Document, error)
	GetCreatedBy(ctx context.Context, user string) ([]*Document, error)
	AdvanceStage(ctx context.Context, id int64) (*Document, error)
	ApproveAndAdvance(ctx context.Context, id int64, reviewerRole string) (*Document, error)
	Reject(ctx context.Context, id int64, reviewerRole string) (*Document, error)
}

// ReviewLog records the audit trail. Failures here never fail the
// operation that triggered the entry.
type ReviewLog interface {
	Append(ctx context.Context, review *Review) error
	ListByDocument(ctx context.Context, documentID int64) ([]*Review, error)
}

// EventPublisher decouples the service from the event bus implementation.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service handles document workflow business logic. Mutations follow an
// optimistic pattern: the in-memory store is updated first so subscribers
// see the change immediately, then the repository call runs, and on
// failure the store is rolled back to its pre-mutation snapshot.
type Service struct {
	repo      Repository
	store     *Store
	reviewLog ReviewLog
	bus       EventPublisher
	logger    *slog.Logger
}

// NewService creates a new document service
func NewService(repo Repository, store *Store, reviewLog ReviewLog, bus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		reviewLog: reviewLog,
		bus:       bus,
		logger:    logger,
	}
}

// Refresh reloads the store from the repository.
func (s *Service) Refresh(ctx context.Context) error {
	docs, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to refresh document store", "error", err)
		return err
	}
	s.store.ReplaceAll(docs)
	s.logger.Info("document store refreshed", "count", len(docs))
	return nil
}

// ListDocuments returns documents matching the filter, newest first.
func (s *Service) ListDocuments(ctx context.Context, filter ListFilter) ([]*Document, error) {
	switch {
	case filter.Stage != "":
		return s.repo.GetByStage(ctx, filter.Stage)
	case filter.Status != "":
		return s.repo.GetByStatus(ctx, filter.Status)
	case filter.AssignedTo != "":
		return s.repo.GetAssignedTo(ctx, filter.AssignedTo)
	case filter.CreatedBy != "":
		return s.repo.GetCreatedBy(ctx, filter.CreatedBy)
	default:
		return s.repo.GetAll(ctx)
	}
}

// GetDocument retrieves a document by ID
func (s *Service) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get document", "error", err, "document_id", id)
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// CreateDocument validates the payload, inserts the document at the clerk
// stage and fans the new list out to store subscribers. The store gains a
// provisional entry before the insert; on failure the entry is rolled
// back, on success it is reconciled with the persisted row.
func (s *Service) CreateDocument(ctx context.Context, createdBy string, dto CreateDocumentDTO) (*Document, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("document validation failed", "error", err, "created_by", createdBy)
		return nil, err
	}

	doc := &Document{
		Title:          dto.Title,
		FileURL:        dto.FileURL,
		DocumentType:   NormalizeDocumentType(dto.DocumentType),
		Class:          NormalizeClass(dto.Class),
		Department:     dto.Department,
		Description:    dto.Description,
		IsConfidential: dto.IsConfidential,
		EffectiveDate:  dto.EffectiveDate,
		CurrentStage:   StageClerk,
		Status:         StatusPending,
		CreatedBy:      createdBy,
		AssignedTo:     dto.AssignedTo,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	snapshot := s.store.CurrentList()
	provisional := s.store.Add(doc)

	persisted, err := s.repo.Create(ctx, doc)
	if err != nil {
		s.store.ReplaceAll(snapshot)
		s.logger.Error("failed to create document", "error", err, "created_by", createdBy)
		return nil, err
	}

	if persisted.ID != provisional.ID {
		s.store.Delete(provisional.ID)
		s.store.Add(persisted)
	} else {
		s.store.Update(persisted)
	}

	s.appendReview(ctx, &Review{
		DocumentID: persisted.ID,
		Action:     ReviewActionCreated,
		ToStage:    persisted.CurrentStage,
		Status:     persisted.Status,
	})
	s.publish(ctx, events.NewDocumentCreatedEvent(persisted.ID, persisted.Title, createdBy, persisted.CurrentStage))

	s.logger.Info("document created successfully",
		"document_id", persisted.ID,
		"created_by", createdBy,
		"stage", persisted.CurrentStage)

	return persisted, nil
}

// UpdateDocument applies a partial update with optimistic store fan-out.
func (s *Service) UpdateDocument(ctx context.Context, id int64, dto UpdateDocumentDTO) (*Document, error) {
	snapshot := s.store.CurrentList()
	if cached := s.store.Get(id); cached != nil {
		optimistic := *cached
		applyUpdate(&optimistic, dto)
		s.store.Update(&optimistic)
	}

	updated, err := s.repo.Update(ctx, id, dto)
	if err != nil {
		s.store.ReplaceAll(snapshot)
		s.logger.Error("failed to update document", "error", err, "document_id", id)
		return nil, err
	}

	s.store.Update(updated)
	return updated, nil
}

// DeleteDocument removes a document unconditionally.
func (s *Service) DeleteDocument(ctx context.Context, id int64) error {
	snapshot := s.store.CurrentList()
	s.store.Delete(id)

	if err := s.repo.Delete(ctx, id); err != nil {
		s.store.ReplaceAll(snapshot)
		s.logger.Error("failed to delete document", "error", err, "document_id", id)
		return err
	}

	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// AdvanceDocument moves a document one stage forward without a reviewer
// check. Admin tooling uses this; reviewer approvals go through
// ApproveDocument.
func (s *Service) AdvanceDocument(ctx context.Context, id int64) (*Document, error) {
	snapshot := s.store.CurrentList()
	fromStage := s.optimisticTransition(id, func(d *Document) error { return d.Advance() })

	updated, err := s.repo.AdvanceStage(ctx, id)
	if err != nil {
		s.store.ReplaceAll(snapshot)
		s.logger.Warn("failed to advance document", "error", err, "document_id", id)
		return nil, err
	}

	s.store.Update(updated)
	s.appendReview(ctx, &Review{
		DocumentID: id,
		Action:     ReviewActionAdvanced,
		FromStage:  fromStage,
		ToStage:    updated.CurrentStage,
		Status:     updated.Status,
	})
	if updated.Status == StatusCompleted {
		s.publish(ctx, events.NewDocumentCompletedEvent(id, updated.CurrentStage, ""))
	} else {
		s.publish(ctx, events.NewDocumentAdvancedEvent(id, fromStage, updated.CurrentStage, updated.Status))
	}

	s.logger.Info("document advanced",
		"document_id", id,
		"from_stage", fromStage,
		"to_stage", updated.CurrentStage,
		"status", updated.Status)

	return updated, nil
}

// ApproveDocument validates the reviewer role against the document's
// current stage and advances it. A failed stage check leaves both the
// store and the database untouched.
func (s *Service) ApproveDocument(ctx context.Context, id int64, reviewerRole string) (*Document, error) {
	snapshot := s.store.CurrentList()
	fromStage := s.optimisticTransition(id, func(d *Document) error { return d.ApproveBy(reviewerRole) })

	updated, err := s.repo.ApproveAndAdvance(ctx, id, reviewerRole)
	if err != nil {
		s.store.ReplaceAll(snapshot)
		s.logger.Warn("failed to approve document",
			"error", err,
			"document_id", id,
			"reviewer_role", reviewerRole)
		return nil, err
	}

	s.store.Update(updated)
	s.appendReview(ctx, &Review{
		DocumentID:   id,
		Action:       ReviewActionApproved,
		ReviewerRole: reviewerRole,
		FromStage:    fromStage,
		ToStage:      updated.CurrentStage,
		Status:       updated.Status,
	})
	if updated.Status == StatusCompleted || updated.Status == StatusApproved {
		s.publish(ctx, events.NewDocumentCompletedEvent(id, updated.CurrentStage, reviewerRole))
	} else {
		s.publish(ctx, events.NewDocumentApprovedEvent(id, fromStage, updated.CurrentStage, updated.Status, reviewerRole))
	}

	s.logger.Info("document approved",
		"document_id", id,
		"reviewer_role", reviewerRole,
		"to_stage", updated.CurrentStage,
		"status", updated.Status)

	return updated, nil
}

// RejectDocument marks the document rejected regardless of its current
// state. The rejection reason goes to the review trail only.
func (s *Service) RejectDocument(ctx context.Context, id int64, reviewerRole string, dto RejectDocumentDTO) (*Document, error) {
	snapshot := s.store.CurrentList()
	s.optimisticTransition(id, func(d *Document) error {
		d.Reject(reviewerRole)
		return nil
	})

	updated, err := s.repo.Reject(ctx, id, reviewerRole)
	if err != nil {
		s.store.ReplaceAll(snapshot)
		s.logger.Warn("failed to reject document",
			"error", err,
			"document_id", id,
			"reviewer_role", reviewerRole)
		return nil, err
	}

	s.store.Update(updated)
	s.appendReview(ctx, &Review{
		DocumentID:   id,
		Action:       ReviewActionRejected,
		ReviewerRole: reviewerRole,
		FromStage:    updated.CurrentStage,
		ToStage:      updated.CurrentStage,
		Status:       updated.Status,
	})
	s.publish(ctx, events.NewDocumentRejectedEvent(id, updated.CurrentStage, reviewerRole, dto.Reason))

	s.logger.Info("document rejected",
		"document_id", id,
		"reviewer_role", reviewerRole,
		"reason", dto.Reason)

	return updated, nil
}

// ListReviews returns the audit trail for one document, newest first.
func (s *Service) ListReviews(ctx context.Context, documentID int64) ([]*Review, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.reviewLog.ListByDocument(ctx, documentID)
}

// optimisticTransition applies the transition to the cached copy so
// subscribers see the change before the repository confirms it. It
// returns the pre-transition stage for the audit trail. A transition the
// domain itself refuses is skipped; the repository call surfaces the
// authoritative error.
func (s *Service) optimisticTransition(id int64, transition func(*Document) error) string {
	cached := s.store.Get(id)
	if cached == nil {
		return ""
	}
	fromStage := cached.CurrentStage
	optimistic := *cached
	if err := transition(&optimistic); err == nil {
		s.store.Update(&optimistic)
	}
	return fromStage
}

func (s *Service) appendReview(ctx context.Context, review *Review) {
	if s.reviewLog == nil {
		return
	}
	if err := s.reviewLog.Append(ctx, review); err != nil {
		s.logger.Warn("failed to append review entry",
			"error", err,
			"document_id", review.DocumentID,
			"action", review.Action)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "error", err, "event_type", event.EventType())
	}
}

func applyUpdate(d *Document, dto UpdateDocumentDTO) {
	if dto.Title != nil {
		d.Title = *dto.Title
	}
	if dto.FileURL != nil {
		d.FileURL = *dto.FileURL
	}
	if dto.DocumentType != nil {
		d.DocumentType = NormalizeDocumentType(*dto.DocumentType)
	}
	if dto.Class != nil {
		d.Class = NormalizeClass(*dto.Class)
	}
	if dto.Department != nil {
		d.Department = *dto.Department
	}
	if dto.Description != nil {
		d.Description = *dto.Description
	}
	if dto.IsConfidential != nil {
		d.IsConfidential = *dto.IsConfidential
	}
	if dto.EffectiveDate != nil {
		d.EffectiveDate = dto.EffectiveDate
	}
	if dto.AssignedTo != nil {
		d.AssignedTo = *dto.AssignedTo
	}
	d.UpdatedAt = time.Now()
}
