package postgres_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/docuflow/document-workflow/internal/document"
	documentPostgres "github.com/docuflow/document-workflow/internal/document/postgres"
)

func TestDocumentPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Document Postgres Suite")
}

// SQLiteDocument mirrors the full schema including metadata columns
type SQLiteDocument struct {
	ID             int64      `gorm:"primaryKey"`
	Title          string     `gorm:"column:title;not null"`
	FileURL        string     `gorm:"column:file_url"`
	DocumentType   string     `gorm:"column:document_type"`
	Class          string     `gorm:"column:class"`
	Department     string     `gorm:"column:department"`
	Description    string     `gorm:"column:description"`
	IsConfidential bool       `gorm:"column:is_confidential"`
	EffectiveDate  *time.Time `gorm:"column:effective_date"`
	CurrentStage   string     `gorm:"column:current_stage;default:clerk"`
	Status         string     `gorm:"column:status;default:pending"`
	CreatedBy      string     `gorm:"column:created_by"`
	AssignedTo     string     `gorm:"column:assigned_to"`
	ReviewedBy     string     `gorm:"column:reviewed_by"`
	ReviewedDate   *time.Time `gorm:"column:reviewed_date"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (SQLiteDocument) TableName() string {
	return "documents"
}

// SQLiteLegacyDocument mirrors a schema from before the metadata columns
type SQLiteLegacyDocument struct {
	ID           int64      `gorm:"primaryKey"`
	Title        string     `gorm:"column:title;not null"`
	FileURL      string     `gorm:"column:file_url"`
	DocumentType string     `gorm:"column:document_type"`
	Class        string     `gorm:"column:class"`
	CurrentStage string     `gorm:"column:current_stage;default:clerk"`
	Status       string     `gorm:"column:status;default:pending"`
	CreatedBy    string     `gorm:"column:created_by"`
	AssignedTo   string     `gorm:"column:assigned_to"`
	ReviewedBy   string     `gorm:"column:reviewed_by"`
	ReviewedDate *time.Time `gorm:"column:reviewed_date"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (SQLiteLegacyDocument) TableName() string {
	return "documents"
}

func openTestDB(model interface{}) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())

	// one shared connection: every pooled conn to :memory: would
	// otherwise get its own database
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)

	Expect(db.AutoMigrate(model)).To(Succeed())
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Document Repository", func() {
	var (
		db   *gorm.DB
		repo *documentPostgres.DocumentRepository
		ctx  context.Context
	)

	newDoc := func() *document.Document {
		return &document.Document{
			Title:        "Q3 Budget Report",
			FileURL:      "https://files.example.com/q3.pdf",
			DocumentType: "pdf",
			Class:        "general",
			Department:   "Finance",
			Description:  "Quarterly budget",
		}
	}

	Context("with the full schema", func() {
		BeforeEach(func() {
			db = openTestDB(&SQLiteDocument{})
			repo = documentPostgres.NewDocumentRepository(db, testLogger())
			ctx = context.Background()
		})

		Describe("Create", func() {
			It("should persist a document with defaults applied", func() {
				doc, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				Expect(doc.ID).To(BeNumerically(">", 0))
				Expect(doc.CurrentStage).To(Equal(document.StageClerk))
				Expect(doc.Status).To(Equal(document.StatusPending))
			})

			It("should persist metadata columns", func() {
				doc, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())

				var row SQLiteDocument
				Expect(db.First(&row, doc.ID).Error).To(Succeed())
				Expect(row.Department).To(Equal("Finance"))
				Expect(row.Description).To(Equal("Quarterly budget"))
			})

			It("should normalize free-form type and class markers", func() {
				d := newDoc()
				d.DocumentType = "application/vnd.ms-excel"
				d.Class = "c"

				doc, err := repo.Create(ctx, d)
				Expect(err).NotTo(HaveOccurred())
				Expect(doc.DocumentType).To(Equal(document.TypeExcel))
				Expect(doc.Class).To(Equal(document.ClassUrgent))
			})

			It("should treat a missing probe function as metadata support", func() {
				// sqlite has no document_metadata_supported(), so the
				// default probe fails with an undefined-function error.
				_, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				Expect(repo.Probed()).To(BeTrue())
				Expect(repo.MetadataUnsupported()).To(BeFalse())
			})
		})

		Describe("GetByID", func() {
			It("should return nil without error for a missing row", func() {
				doc, err := repo.GetByID(ctx, 9999)
				Expect(err).NotTo(HaveOccurred())
				Expect(doc).To(BeNil())
			})
		})

		Describe("Update", func() {
			It("should apply only the supplied fields", func() {
				created, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())

				title := "Q3 Budget Report v2"
				updated, err := repo.Update(ctx, created.ID, document.UpdateDocumentDTO{Title: &title})
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Title).To(Equal("Q3 Budget Report v2"))
				Expect(updated.Department).To(Equal("Finance"))
			})

			It("should return not found for a missing id", func() {
				title := "ghost"
				_, err := repo.Update(ctx, 9999, document.UpdateDocumentDTO{Title: &title})
				Expect(err).To(MatchError(document.ErrDocumentNotFound))
			})

			It("should return the current row for an empty update", func() {
				created, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())

				got, err := repo.Update(ctx, created.ID, document.UpdateDocumentDTO{})
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Title).To(Equal(created.Title))
			})
		})

		Describe("listing", func() {
			BeforeEach(func() {
				docs := []*document.Document{
					{Title: "a", FileURL: "u", CurrentStage: document.StageClerk, Status: document.StatusPending, AssignedTo: "alice", CreatedBy: "bob"},
					{Title: "b", FileURL: "u", CurrentStage: document.StageHOD, Status: document.StatusRejected, CreatedBy: "alice"},
				}
				for _, d := range docs {
					_, err := repo.Create(ctx, d)
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("should filter by stage", func() {
				docs, err := repo.GetByStage(ctx, document.StageHOD)
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(HaveLen(1))
				Expect(docs[0].Title).To(Equal("b"))
			})

			It("should normalize legacy status filters", func() {
				docs, err := repo.GetByStatus(ctx, "In Review")
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(HaveLen(1))
				Expect(docs[0].Title).To(Equal("a"))
			})

			It("should filter by assignee and creator", func() {
				assigned, err := repo.GetAssignedTo(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(assigned).To(HaveLen(1))

				created, err := repo.GetCreatedBy(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(HaveLen(1))
				Expect(created[0].Title).To(Equal("b"))
			})
		})

		Describe("review transitions", func() {
			var id int64

			BeforeEach(func() {
				created, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				id = created.ID
			})

			It("should advance and persist the new stage", func() {
				doc, err := repo.AdvanceStage(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(doc.CurrentStage).To(Equal(document.StageSeniorClerk))

				reloaded, err := repo.GetByID(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(reloaded.CurrentStage).To(Equal(document.StageSeniorClerk))
			})

			It("should persist reviewer fields on approval", func() {
				doc, err := repo.ApproveAndAdvance(ctx, id, "Clerk")
				Expect(err).NotTo(HaveOccurred())
				Expect(doc.ReviewedBy).To(Equal("Clerk"))

				reloaded, err := repo.GetByID(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(reloaded.ReviewedBy).To(Equal("Clerk"))
				Expect(reloaded.ReviewedDate).NotTo(BeNil())
			})

			It("should surface a stage mismatch without persisting", func() {
				_, err := repo.ApproveAndAdvance(ctx, id, "HOD")
				Expect(err).To(MatchError(document.ErrStageMismatch))

				reloaded, _ := repo.GetByID(ctx, id)
				Expect(reloaded.CurrentStage).To(Equal(document.StageClerk))
			})

			It("should persist a rejection from any stage", func() {
				doc, err := repo.Reject(ctx, id, "Accountant")
				Expect(err).NotTo(HaveOccurred())
				Expect(doc.Status).To(Equal(document.StatusRejected))
				Expect(doc.CurrentStage).To(Equal(document.StageClerk))
			})

			It("should report not found for mutations on missing rows", func() {
				_, err := repo.AdvanceStage(ctx, 9999)
				Expect(err).To(MatchError(document.ErrDocumentNotFound))
			})
		})

		Describe("capability probe", func() {
			It("should honor a probe that reports support", func() {
				repo.SetProbeFn(func(ctx context.Context) (bool, error) { return true, nil })

				_, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				Expect(repo.MetadataUnsupported()).To(BeFalse())
			})

			It("should go straight to the fallback when the probe reports no support", func() {
				repo.SetProbeFn(func(ctx context.Context) (bool, error) { return false, nil })

				doc, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				Expect(repo.MetadataUnsupported()).To(BeTrue())

				// entity keeps the caller's metadata even though the row lost it
				Expect(doc.Department).To(Equal("Finance"))
				var row SQLiteDocument
				Expect(db.First(&row, doc.ID).Error).To(Succeed())
				Expect(row.Department).To(BeEmpty())
			})

			It("should retry the probe after a transient failure", func() {
				calls := 0
				repo.SetProbeFn(func(ctx context.Context) (bool, error) {
					calls++
					if calls == 1 {
						return false, errors.New("connection refused")
					}
					return true, nil
				})

				_, err := repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				Expect(repo.Probed()).To(BeFalse())

				_, err = repo.Create(ctx, newDoc())
				Expect(err).NotTo(HaveOccurred())
				Expect(repo.Probed()).To(BeTrue())
				Expect(calls).To(Equal(2))
			})

			It("should share one probe between concurrent callers", func() {
				var calls int32
				release := make(chan struct{})
				repo.SetProbeFn(func(ctx context.Context) (bool, error) {
					atomic.AddInt32(&calls, 1)
					<-release
					return true, nil
				})

				var wg sync.WaitGroup
				for i := 0; i < 5; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := repo.Create(ctx, newDoc())
						Expect(err).NotTo(HaveOccurred())
					}()
				}

				Eventually(func() int32 { return atomic.LoadInt32(&calls) }).Should(Equal(int32(1)))
				close(release)
				wg.Wait()
				Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
			})
		})
	})

	Context("with a legacy schema missing metadata columns", func() {
		BeforeEach(func() {
			db = openTestDB(&SQLiteLegacyDocument{})
			repo = documentPostgres.NewDocumentRepository(db, testLogger())
			ctx = context.Background()
		})

		It("should fall back on the first unknown-column failure and stay degraded", func() {
			// probe says supported, but the schema disagrees
			repo.SetProbeFn(func(ctx context.Context) (bool, error) { return true, nil })

			doc, err := repo.Create(ctx, newDoc())
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.MetadataUnsupported()).To(BeTrue())

			// returned entity is still complete
			Expect(doc.Department).To(Equal("Finance"))
			Expect(doc.Description).To(Equal("Quarterly budget"))

			// later writes skip metadata without another failure round-trip
			_, err = repo.Create(ctx, newDoc())
			Expect(err).NotTo(HaveOccurred())
		})

		It("should strip metadata from updates and backfill the entity", func() {
			repo.SetProbeFn(func(ctx context.Context) (bool, error) { return false, nil })

			created, err := repo.Create(ctx, newDoc())
			Expect(err).NotTo(HaveOccurred())

			dept := "Legal"
			title := "Reclassified"
			updated, err := repo.Update(ctx, created.ID, document.UpdateDocumentDTO{
				Title:      &title,
				Department: &dept,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Title).To(Equal("Reclassified"))
			Expect(updated.Department).To(Equal("Legal"))
		})
	})
})
