package postgres

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	documentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/document"
	"github.com/docuflow/document-workflow/internal/document"
)

// ReviewRepository persists the append-only review trail.
type ReviewRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewReviewRepository(db *gorm.DB, logger *slog.Logger) *ReviewRepository {
	return &ReviewRepository{db: db, logger: logger}
}

func (r *ReviewRepository) Append(ctx context.Context, review *document.Review) error {
	dm := &documentDatamodel.DocumentReview{
		DocumentID:   review.DocumentID,
		Action:       review.Action,
		ReviewerRole: review.ReviewerRole,
		FromStage:    review.FromStage,
		ToStage:      review.ToStage,
		Status:       review.Status,
	}
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	review.ID = dm.ID
	review.CreatedAt = dm.CreatedAt
	return nil
}

func (r *ReviewRepository) ListByDocument(ctx context.Context, documentID int64) ([]*document.Review, error) {
	var rows []*documentDatamodel.DocumentReview
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	reviews := make([]*document.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, &document.Review{
			ID:           row.ID,
			DocumentID:   row.DocumentID,
			Action:       row.Action,
			ReviewerRole: row.ReviewerRole,
			FromStage:    row.FromStage,
			ToStage:      row.ToStage,
			Status:       row.Status,
			CreatedAt:    row.CreatedAt,
		})
	}
	return reviews, nil
}
