package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/docuflow/document-workflow/internal"
	"github.com/docuflow/document-workflow/internal/auth"
	"github.com/docuflow/document-workflow/internal/transport"
	"github.com/docuflow/document-workflow/pkg/logger"
)

type ServiceAPI interface {
	ListDocuments(ctx context.Context, filter ListFilter) ([]*Document, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	CreateDocument(ctx context.Context, createdBy string, dto CreateDocumentDTO) (*Document, error)
	UpdateDocument(ctx context.Context, id int64, dto UpdateDocumentDTO) (*Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	AdvanceDocument(ctx context.Context, id int64) (*Document, error)
	ApproveDocument(ctx context.Context, id int64, reviewerRole string) (*Document, error)
	RejectDocument(ctx context.Context, id int64, reviewerRole string, dto RejectDocumentDTO) (*Document, error)
	ListReviews(ctx context.Context, documentID int64) ([]*Review, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Stage:      q.Get("stage"),
		Status:     q.Get("status"),
		AssignedTo: q.Get("assigned_to"),
		CreatedBy:  q.Get("created_by"),
	}
	if filter.Stage != "" && !ValidStage(filter.Stage) {
		h.WriteError(w, http.StatusBadRequest, "unknown stage")
		return
	}

	docs, err := h.Service.ListDocuments(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ListDocuments: service error", "error", err)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponseSlice(docs))
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.GetDocument(r.Context(), id)
	if err != nil {
		h.Logger.Error("GetDocument: service error", "error", err, "document_id", id)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, doc.ToResponse())
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("CreateDocument: user not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateDocumentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateDocument: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	doc, err := h.Service.CreateDocument(r.Context(), user.Email, dto)
	if err != nil {
		h.Logger.Error("CreateDocument: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.Logger.Info("CreateDocument: document created",
		"document_id", doc.ID,
		"user_id", user.ID,
		"stage", doc.CurrentStage)

	h.WriteJSON(w, http.StatusCreated, doc.ToResponse())
}

func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var dto UpdateDocumentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("UpdateDocument: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.Service.UpdateDocument(r.Context(), id, dto)
	if err != nil {
		h.Logger.Error("UpdateDocument: service error", "error", err, "document_id", id)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, doc.ToResponse())
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteDocument(r.Context(), id); err != nil {
		h.Logger.Error("DeleteDocument: service error", "error", err, "document_id", id)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdvanceDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.AdvanceDocument(r.Context(), id)
	if err != nil {
		h.Logger.Error("AdvanceDocument: service error", "error", err, "document_id", id)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, doc.ToResponse())
}

func (h *Handler) ApproveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	role, ok := h.reviewerRole(w, r)
	if !ok {
		return
	}

	doc, err := h.Service.ApproveDocument(r.Context(), id, role)
	if err != nil {
		h.Logger.Error("ApproveDocument: service error",
			"error", err,
			"document_id", id,
			"reviewer_role", role)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, doc.ToResponse())
}

func (h *Handler) RejectDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}
	role, ok := h.reviewerRole(w, r)
	if !ok {
		return
	}

	var dto RejectDocumentDTO
	if r.Body != nil {
		// body is optional for rejections
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	doc, err := h.Service.RejectDocument(r.Context(), id, role, dto)
	if err != nil {
		h.Logger.Error("RejectDocument: service error",
			"error", err,
			"document_id", id,
			"reviewer_role", role)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, doc.ToResponse())
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	reviews, err := h.Service.ListReviews(r.Context(), id)
	if err != nil {
		h.Logger.Error("ListReviews: service error", "error", err, "document_id", id)
		h.HandleServiceError(w, h.mapDomainError(err))
		return
	}

	h.WriteJSON(w, http.StatusOK, reviews)
}

func (h *Handler) documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.Logger.Error("invalid document ID", "id", idStr)
		h.WriteError(w, http.StatusBadRequest, "invalid document ID")
		return 0, false
	}
	return id, true
}

// reviewerRole picks the caller's reviewer role for the document's
// current stage. Multi-role users act under whichever of their roles the
// workflow maps to a stage; the domain validates the match.
func (h *Handler) reviewerRole(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	role := user.ReviewerRole()
	if role == "" {
		h.HandleServiceError(w, internal.ErrUnauthorizedRole)
		return "", false
	}
	return role, true
}

func (h *Handler) mapDomainError(err error) error {
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return internal.ErrDocumentNotFound
	case errors.Is(err, ErrStageMismatch):
		return internal.ErrStageMismatch
	case errors.Is(err, ErrDocumentFinalized):
		return internal.ErrDocumentFinalized
	case errors.Is(err, ErrUnknownStage):
		return internal.NewValidationError("document stage is not part of the review sequence", internal.ErrCodeValidationFailed)
	case errors.Is(err, ErrUnauthorizedRole):
		return internal.ErrUnauthorizedRole
	default:
		if _, ok := internal.IsAppError(err); ok {
			return err
		}
		return internal.NewDataAccessError(err)
	}
}
