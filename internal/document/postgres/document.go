package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	documentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/document"
	"github.com/docuflow/document-workflow/internal/document"
)

// metadataSupport tracks whether the optional metadata columns exist in
// the backing schema. It starts Unknown, is resolved by a single-flight
// probe, and can be forced to Unsupported by an unknown-column failure.
type metadataSupport int

const (
	metadataUnknown metadataSupport = iota
	metadataSupported
	metadataUnsupported
)

// Optional columns older deployments do not have yet.
var metadataColumns = []string{"department", "description", "is_confidential", "effective_date"}

const metadataProbeQuery = "SELECT document_metadata_supported()"

// DocumentRepository implements document.RepositoryAPI using GORM.
type DocumentRepository struct {
	db     *gorm.DB
	logger *slog.Logger

	mu       sync.Mutex
	metadata metadataSupport
	// probed is set once the probe has resolved, or permanently when the
	// probe function itself is missing so we never ask again.
	probed bool
	group  singleflight.Group

	// probeFn is swapped out by tests; the default runs metadataProbeQuery.
	probeFn func(ctx context.Context) (bool, error)
}

func NewDocumentRepository(db *gorm.DB, logger *slog.Logger) *DocumentRepository {
	r := &DocumentRepository{db: db, logger: logger}
	r.probeFn = r.queryMetadataSupport
	return r
}

func (r *DocumentRepository) queryMetadataSupport(ctx context.Context) (bool, error) {
	var supported bool
	err := r.db.WithContext(ctx).Raw(metadataProbeQuery).Scan(&supported).Error
	return supported, err
}

// ensureMetadataProbe resolves the capability state if it is still
// unknown. Concurrent callers share one in-flight probe. A missing probe
// function means the backend will never answer: default to supported and
// stop asking. Any other probe failure leaves the state unresolved so the
// next call retries.
func (r *DocumentRepository) ensureMetadataProbe(ctx context.Context) {
	r.mu.Lock()
	if r.probed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.group.Do("metadata-probe", func() (interface{}, error) {
		r.mu.Lock()
		if r.probed {
			r.mu.Unlock()
			return nil, nil
		}
		r.mu.Unlock()

		supported, err := r.probeFn(ctx)

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			if isUndefinedFunctionErr(err) {
				r.logger.Warn("metadata capability probe not installed, assuming metadata columns exist",
					"error", err)
				r.metadata = metadataSupported
				r.probed = true
				return nil, nil
			}
			r.logger.Error("metadata capability probe failed, will retry on next call", "error", err)
			return nil, err
		}
		if supported {
			r.metadata = metadataSupported
		} else {
			r.metadata = metadataUnsupported
		}
		r.probed = true
		r.logger.Info("metadata capability probe resolved", "supported", supported)
		return nil, nil
	})
}

func (r *DocumentRepository) metadataState() metadataSupport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata
}

// markMetadataUnavailable records that the schema lacks metadata columns.
// Once set, no further write ever sends them.
func (r *DocumentRepository) markMetadataUnavailable(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metadata != metadataUnsupported {
		r.logger.Warn("metadata columns unavailable in schema, falling back for the rest of the process",
			"error", cause)
	}
	r.metadata = metadataUnsupported
	r.probed = true
}

// Create persists a new document. Type and class are normalized before
// the row is built. When the schema lacks the optional metadata columns
// the insert is retried once without them; the returned entity keeps the
// caller's metadata values even though the row does not.
func (r *DocumentRepository) Create(ctx context.Context, d *document.Document) (*document.Document, error) {
	d.DocumentType = document.NormalizeDocumentType(d.DocumentType)
	d.Class = document.NormalizeClass(d.Class)
	if d.CurrentStage == "" {
		d.CurrentStage = document.StageClerk
	}
	if d.Status == "" {
		d.Status = document.StatusPending
	}
	d.Status = document.NormalizeStatus(d.Status)

	r.ensureMetadataProbe(ctx)

	dm := document.ToDataModel(d)
	if r.metadataState() == metadataUnsupported {
		return r.createWithoutMetadata(ctx, dm)
	}

	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		if isMetadataColumnErr(err) {
			r.markMetadataUnavailable(err)
			return r.createWithoutMetadata(ctx, dm)
		}
		return nil, err
	}
	return document.FromDataModel(dm), nil
}

// createWithoutMetadata inserts the row with the metadata columns
// omitted. The datamodel keeps its in-memory metadata values, so the
// entity handed back to the caller stays complete.
func (r *DocumentRepository) createWithoutMetadata(ctx context.Context, dm *documentDatamodel.Document) (*document.Document, error) {
	if err := r.db.WithContext(ctx).Omit(metadataColumns...).Create(dm).Error; err != nil {
		return nil, err
	}
	return document.FromDataModel(dm), nil
}

// GetByID fetches one document. A missing row is reported as (nil, nil),
// not as an error.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*document.Document, error) {
	var dm documentDatamodel.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return document.FromDataModel(&dm), nil
}

// Update applies a partial update. Only fields present in the DTO are
// sent, with the same one-shot metadata fallback as Create.
func (r *DocumentRepository) Update(ctx context.Context, id int64, dto document.UpdateDocumentDTO) (*document.Document, error) {
	updates := map[string]interface{}{}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.FileURL != nil {
		updates["file_url"] = *dto.FileURL
	}
	if dto.DocumentType != nil {
		updates["document_type"] = document.NormalizeDocumentType(*dto.DocumentType)
	}
	if dto.Class != nil {
		updates["class"] = document.NormalizeClass(*dto.Class)
	}
	if dto.Department != nil {
		updates["department"] = *dto.Department
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.IsConfidential != nil {
		updates["is_confidential"] = *dto.IsConfidential
	}
	if dto.EffectiveDate != nil {
		updates["effective_date"] = *dto.EffectiveDate
	}
	if dto.AssignedTo != nil {
		updates["assigned_to"] = *dto.AssignedTo
	}

	if len(updates) == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, document.ErrDocumentNotFound
		}
		return existing, nil
	}
	updates["updated_at"] = time.Now()

	r.ensureMetadataProbe(ctx)
	if r.metadataState() == metadataUnsupported {
		stripMetadata(updates)
	}

	err := r.applyUpdates(ctx, id, updates)
	if err != nil && isMetadataColumnErr(err) {
		r.markMetadataUnavailable(err)
		stripMetadata(updates)
		err = r.applyUpdates(ctx, id, updates)
	}
	if err != nil {
		return nil, err
	}

	updated, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, document.ErrDocumentNotFound
	}
	backfillMetadata(updated, dto)
	return updated, nil
}

func (r *DocumentRepository) applyUpdates(ctx context.Context, id int64, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&documentDatamodel.Document{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return document.ErrDocumentNotFound
	}
	return nil
}

// backfillMetadata reapplies metadata the caller supplied so the entity
// stays complete even when the columns were never persisted.
func backfillMetadata(d *document.Document, dto document.UpdateDocumentDTO) {
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
}

func stripMetadata(updates map[string]interface{}) {
	for _, col := range metadataColumns {
		delete(updates, col)
	}
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&documentDatamodel.Document{}).Error
}

func (r *DocumentRepository) GetAll(ctx context.Context) ([]*document.Document, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q })
}

func (r *DocumentRepository) GetByStage(ctx context.Context, stage string) ([]*document.Document, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("current_stage = ?", stage) })
}

func (r *DocumentRepository) GetByStatus(ctx context.Context, status string) ([]*document.Document, error) {
	status = document.NormalizeStatus(status)
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("status = ?", status) })
}

func (r *DocumentRepository) GetAssignedTo(ctx context.Context, user string) ([]*document.Document, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("assigned_to = ?", user) })
}

func (r *DocumentRepository) GetCreatedBy(ctx context.Context, user string) ([]*document.Document, error) {
	return r.list(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("created_by = ?", user) })
}

// list runs a filtered listing, always newest first.
func (r *DocumentRepository) list(ctx context.Context, filter func(*gorm.DB) *gorm.DB) ([]*document.Document, error) {
	var rows []*documentDatamodel.Document
	err := filter(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return document.FromDataModelSlice(rows), nil
}

// AdvanceStage moves the document one stage forward (or completes it at
// the last stage) and persists the result.
func (r *DocumentRepository) AdvanceStage(ctx context.Context, id int64) (*document.Document, error) {
	d, err := r.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.Advance(); err != nil {
		return nil, err
	}
	err = r.applyUpdates(ctx, id, map[string]interface{}{
		"current_stage": d.CurrentStage,
		"status":        d.Status,
		"updated_at":    d.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ApproveAndAdvance is the only sanctioned progression path for reviewer
// approvals: it validates the reviewer role against the current stage,
// applies the transition and persists it.
func (r *DocumentRepository) ApproveAndAdvance(ctx context.Context, id int64, reviewerRole string) (*document.Document, error) {
	d, err := r.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.ApproveBy(reviewerRole); err != nil {
		return nil, err
	}
	err = r.applyUpdates(ctx, id, map[string]interface{}{
		"current_stage": d.CurrentStage,
		"status":        d.Status,
		"reviewed_by":   d.ReviewedBy,
		"reviewed_date": d.ReviewedDate,
		"updated_at":    d.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Reject marks the document rejected from whatever state it is in.
func (r *DocumentRepository) Reject(ctx context.Context, id int64, reviewerRole string) (*document.Document, error) {
	d, err := r.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Reject(reviewerRole)
	err = r.applyUpdates(ctx, id, map[string]interface{}{
		"status":        d.Status,
		"reviewed_by":   d.ReviewedBy,
		"reviewed_date": d.ReviewedDate,
		"updated_at":    d.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// mustGet is GetByID for mutations, where a missing row is an error.
func (r *DocumentRepository) mustGet(ctx context.Context, id int64) (*document.Document, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, document.ErrDocumentNotFound
	}
	return d, nil
}

// isMetadataColumnErr reports whether err is an unknown-column failure
// that names one of the optional metadata columns.
func isMetadataColumnErr(err error) bool {
	if !isUndefinedColumnErr(err) {
		return false
	}
	msg := err.Error()
	for _, col := range metadataColumns {
		if strings.Contains(msg, col) {
			return true
		}
	}
	return false
}

func isUndefinedColumnErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42703"
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") || strings.Contains(msg, "has no column named")
}

func isUndefinedFunctionErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42883"
	}
	return strings.Contains(err.Error(), "no such function")
}
