package document_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docuflow/document-workflow/internal/core/events"
	"github.com/docuflow/document-workflow/internal/document"
)

// MockRepository implements document.Repository for testing
type MockRepository struct {
	docs       map[int64]*document.Document
	nextID     int64
	shouldFail bool
	failError  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{docs: make(map[int64]*document.Document), nextID: 100}
}

func (m *MockRepository) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

func (m *MockRepository) Seed(doc *document.Document) {
	copied := *doc
	m.docs[doc.ID] = &copied
}

func (m *MockRepository) Create(ctx context.Context, doc *document.Document) (*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	copied := *doc
	m.nextID++
	copied.ID = m.nextID
	m.docs[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	out := *doc
	return &out, nil
}

func (m *MockRepository) Update(ctx context.Context, id int64, dto document.UpdateDocumentDTO) (*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	if dto.Title != nil {
		doc.Title = *dto.Title
	}
	if dto.Description != nil {
		doc.Description = *dto.Description
	}
	out := *doc
	return &out, nil
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	if m.shouldFail {
		return m.failError
	}
	delete(m.docs, id)
	return nil
}

func (m *MockRepository) GetAll(ctx context.Context) ([]*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*document.Document
	for _, doc := range m.docs {
		copied := *doc
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockRepository) GetByStage(ctx context.Context, stage string) ([]*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*document.Document
	for _, doc := range m.docs {
		if doc.CurrentStage == stage {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockRepository) GetByStatus(ctx context.Context, status string) ([]*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*document.Document
	for _, doc := range m.docs {
		if doc.Status == status {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockRepository) GetAssignedTo(ctx context.Context, user string) ([]*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*document.Document
	for _, doc := range m.docs {
		if doc.AssignedTo == user {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockRepository) GetCreatedBy(ctx context.Context, user string) ([]*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*document.Document
	for _, doc := range m.docs {
		if doc.CreatedBy == user {
			copied := *doc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *MockRepository) AdvanceStage(ctx context.Context, id int64) (*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	if err := doc.Advance(); err != nil {
		return nil, err
	}
	out := *doc
	return &out, nil
}

func (m *MockRepository) ApproveAndAdvance(ctx context.Context, id int64, reviewerRole string) (*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	if err := doc.ApproveBy(reviewerRole); err != nil {
		return nil, err
	}
	out := *doc
	return &out, nil
}

func (m *MockRepository) Reject(ctx context.Context, id int64, reviewerRole string) (*document.Document, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	doc.Reject(reviewerRole)
	out := *doc
	return &out, nil
}

// MockReviewLog collects review entries in memory
type MockReviewLog struct {
	entries    []*document.Review
	shouldFail bool
}

func (m *MockReviewLog) Append(ctx context.Context, review *document.Review) error {
	if m.shouldFail {
		return errors.New("review log unavailable")
	}
	m.entries = append(m.entries, review)
	return nil
}

func (m *MockReviewLog) ListByDocument(ctx context.Context, documentID int64) ([]*document.Review, error) {
	var out []*document.Review
	for _, entry := range m.entries {
		if entry.DocumentID == documentID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// MockPublisher records published events
type MockPublisher struct {
	published []events.Event
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.published = append(m.published, event)
	return nil
}

func (m *MockPublisher) Types() []string {
	out := make([]string, len(m.published))
	for i, e := range m.published {
		out[i] = e.EventType()
	}
	return out
}

var _ = Describe("Document Service", func() {
	var (
		mockRepo  *MockRepository
		reviewLog *MockReviewLog
		publisher *MockPublisher
		store     *document.Store
		service   *document.Service
		ctx       context.Context
	)

	BeforeEach(func() {
		mockRepo = NewMockRepository()
		reviewLog = &MockReviewLog{}
		publisher = &MockPublisher{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = document.NewStore(logger)
		service = document.NewService(mockRepo, store, reviewLog, publisher, logger)
		ctx = context.Background()
	})

	Describe("CreateDocument", func() {
		var dto document.CreateDocumentDTO

		BeforeEach(func() {
			dto = document.CreateDocumentDTO{
				Title:   "Vendor Contract",
				FileURL: "https://files.example.com/contract.pdf",
			}
		})

		It("should persist the document at the clerk stage", func() {
			doc, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.CurrentStage).To(Equal(document.StageClerk))
			Expect(doc.Status).To(Equal(document.StatusPending))
			Expect(doc.CreatedBy).To(Equal("clerk@docuflow.local"))
		})

		It("should reconcile the provisional store entry with the persisted id", func() {
			doc, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).NotTo(HaveOccurred())

			docs := store.CurrentList()
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal(doc.ID))
		})

		It("should roll the store back when the repository fails", func() {
			mockRepo.SetShouldFail(true, errors.New("insert failed"))

			_, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).To(HaveOccurred())
			Expect(store.CurrentList()).To(BeEmpty())
		})

		It("should record a created entry in the review trail", func() {
			doc, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).NotTo(HaveOccurred())

			Expect(reviewLog.entries).To(HaveLen(1))
			Expect(reviewLog.entries[0].Action).To(Equal(document.ReviewActionCreated))
			Expect(reviewLog.entries[0].DocumentID).To(Equal(doc.ID))
		})

		It("should publish a created event", func() {
			_, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher.Types()).To(ConsistOf(events.EventTypeDocumentCreated))
		})

		It("should reject an invalid payload before touching the store", func() {
			dto.Title = ""
			_, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).To(HaveOccurred())
			Expect(store.CurrentList()).To(BeEmpty())
		})

		It("should normalize type and class markers", func() {
			dto.DocumentType = "application/pdf"
			dto.Class = "A"

			doc, err := service.CreateDocument(ctx, "clerk@docuflow.local", dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.DocumentType).To(Equal(document.TypePDF))
			Expect(doc.Class).To(Equal(document.ClassConfidential))
		})
	})

	Describe("ApproveDocument", func() {
		BeforeEach(func() {
			seed := &document.Document{
				ID:           1,
				Title:        "Policy Draft",
				CurrentStage: document.StageClerk,
				Status:       document.StatusPending,
			}
			mockRepo.Seed(seed)
			store.Add(seed)
		})

		It("should advance the stage on a matching reviewer", func() {
			doc, err := service.ApproveDocument(ctx, 1, "Clerk")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.CurrentStage).To(Equal(document.StageSeniorClerk))
			Expect(store.Get(1).CurrentStage).To(Equal(document.StageSeniorClerk))
		})

		It("should leave store and repository untouched on a stage mismatch", func() {
			_, err := service.ApproveDocument(ctx, 1, "HOD")
			Expect(err).To(MatchError(document.ErrStageMismatch))
			Expect(store.Get(1).CurrentStage).To(Equal(document.StageClerk))

			persisted, _ := mockRepo.GetByID(ctx, 1)
			Expect(persisted.CurrentStage).To(Equal(document.StageClerk))
		})

		It("should roll back the optimistic store change on repository failure", func() {
			mockRepo.SetShouldFail(true, errors.New("connection reset"))

			_, err := service.ApproveDocument(ctx, 1, "Clerk")
			Expect(err).To(HaveOccurred())
			Expect(store.Get(1).CurrentStage).To(Equal(document.StageClerk))
		})

		It("should publish a completed event for the final approval", func() {
			final := &document.Document{
				ID:           2,
				Title:        "Final Stage Doc",
				CurrentStage: document.StageHOD,
				Status:       document.StatusPending,
			}
			mockRepo.Seed(final)
			store.Add(final)

			doc, err := service.ApproveDocument(ctx, 2, "HOD")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Status).To(Equal(document.StatusApproved))
			Expect(publisher.Types()).To(ContainElement(events.EventTypeDocumentCompleted))
		})

		It("should record the reviewer role in the review trail", func() {
			_, err := service.ApproveDocument(ctx, 1, "Clerk")
			Expect(err).NotTo(HaveOccurred())

			Expect(reviewLog.entries).To(HaveLen(1))
			entry := reviewLog.entries[0]
			Expect(entry.Action).To(Equal(document.ReviewActionApproved))
			Expect(entry.ReviewerRole).To(Equal("Clerk"))
			Expect(entry.FromStage).To(Equal(document.StageClerk))
			Expect(entry.ToStage).To(Equal(document.StageSeniorClerk))
		})

		It("should not fail the approval when the review log is down", func() {
			reviewLog.shouldFail = true

			doc, err := service.ApproveDocument(ctx, 1, "Clerk")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.CurrentStage).To(Equal(document.StageSeniorClerk))
		})
	})

	Describe("AdvanceDocument", func() {
		BeforeEach(func() {
			seed := &document.Document{
				ID:           1,
				CurrentStage: document.StageAdmin,
				Status:       document.StatusPending,
			}
			mockRepo.Seed(seed)
			store.Add(seed)
		})

		It("should move one stage forward without a reviewer check", func() {
			doc, err := service.AdvanceDocument(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.CurrentStage).To(Equal(document.StageHOD))
			Expect(publisher.Types()).To(ConsistOf(events.EventTypeDocumentAdvanced))
		})

		It("should publish completed when advancing past the last stage", func() {
			_, err := service.AdvanceDocument(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			doc, err := service.AdvanceDocument(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Status).To(Equal(document.StatusCompleted))
			Expect(publisher.Types()).To(ContainElement(events.EventTypeDocumentCompleted))
		})
	})

	Describe("RejectDocument", func() {
		BeforeEach(func() {
			seed := &document.Document{
				ID:           1,
				CurrentStage: document.StageAccountant,
				Status:       document.StatusPending,
			}
			mockRepo.Seed(seed)
			store.Add(seed)
		})

		It("should mark the document rejected and keep the stage", func() {
			doc, err := service.RejectDocument(ctx, 1, "Accountant", document.RejectDocumentDTO{Reason: "missing receipts"})
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Status).To(Equal(document.StatusRejected))
			Expect(doc.CurrentStage).To(Equal(document.StageAccountant))
		})

		It("should publish a rejected event carrying the reason", func() {
			_, err := service.RejectDocument(ctx, 1, "Accountant", document.RejectDocumentDTO{Reason: "missing receipts"})
			Expect(err).NotTo(HaveOccurred())

			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].EventType()).To(Equal(events.EventTypeDocumentRejected))
			Expect(publisher.published[0].Payload()).To(HaveKeyWithValue("reason", "missing receipts"))
		})
	})

	Describe("UpdateDocument", func() {
		BeforeEach(func() {
			seed := &document.Document{ID: 1, Title: "Draft", CurrentStage: document.StageClerk, Status: document.StatusPending}
			mockRepo.Seed(seed)
			store.Add(seed)
		})

		It("should apply the partial update", func() {
			title := "Final"
			doc, err := service.UpdateDocument(ctx, 1, document.UpdateDocumentDTO{Title: &title})
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Title).To(Equal("Final"))
			Expect(store.Get(1).Title).To(Equal("Final"))
		})

		It("should roll back the store on repository failure", func() {
			mockRepo.SetShouldFail(true, errors.New("update failed"))

			title := "Final"
			_, err := service.UpdateDocument(ctx, 1, document.UpdateDocumentDTO{Title: &title})
			Expect(err).To(HaveOccurred())
			Expect(store.Get(1).Title).To(Equal("Draft"))
		})
	})

	Describe("DeleteDocument", func() {
		BeforeEach(func() {
			seed := &document.Document{ID: 1, Title: "Obsolete"}
			mockRepo.Seed(seed)
			store.Add(seed)
		})

		It("should remove the document from store and repository", func() {
			Expect(service.DeleteDocument(ctx, 1)).To(Succeed())
			Expect(store.Get(1)).To(BeNil())

			persisted, _ := mockRepo.GetByID(ctx, 1)
			Expect(persisted).To(BeNil())
		})

		It("should restore the store entry when the repository fails", func() {
			mockRepo.SetShouldFail(true, errors.New("delete failed"))

			Expect(service.DeleteDocument(ctx, 1)).NotTo(Succeed())
			Expect(store.Get(1)).NotTo(BeNil())
		})
	})

	Describe("GetDocument", func() {
		It("should return not found for a missing id", func() {
			_, err := service.GetDocument(ctx, 404)
			Expect(err).To(MatchError(document.ErrDocumentNotFound))
		})
	})

	Describe("ListDocuments", func() {
		BeforeEach(func() {
			mockRepo.Seed(&document.Document{ID: 1, CurrentStage: document.StageClerk, Status: document.StatusPending, AssignedTo: "alice"})
			mockRepo.Seed(&document.Document{ID: 2, CurrentStage: document.StageHOD, Status: document.StatusRejected, CreatedBy: "bob"})
		})

		It("should filter by stage", func() {
			docs, err := service.ListDocuments(ctx, document.ListFilter{Stage: document.StageHOD})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal(int64(2)))
		})

		It("should filter by status", func() {
			docs, err := service.ListDocuments(ctx, document.ListFilter{Status: document.StatusRejected})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})

		It("should filter by assignee", func() {
			docs, err := service.ListDocuments(ctx, document.ListFilter{AssignedTo: "alice"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].ID).To(Equal(int64(1)))
		})

		It("should return everything without a filter", func() {
			docs, err := service.ListDocuments(ctx, document.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})
	})

	Describe("ListReviews", func() {
		It("should refuse a missing document", func() {
			_, err := service.ListReviews(ctx, 404)
			Expect(err).To(MatchError(document.ErrDocumentNotFound))
		})

		It("should return the trail for an existing document", func() {
			mockRepo.Seed(&document.Document{ID: 1, CurrentStage: document.StageClerk})
			reviewLog.entries = append(reviewLog.entries, &document.Review{DocumentID: 1, Action: document.ReviewActionCreated})

			reviews, err := service.ListReviews(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(reviews).To(HaveLen(1))
		})
	})
})
