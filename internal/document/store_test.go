package document_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docuflow/document-workflow/internal/document"
)

var _ = Describe("Store", func() {
	var store *document.Store

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = document.NewStore(logger)
	})

	Describe("Add", func() {
		It("should prepend new documents", func() {
			store.Add(&document.Document{ID: 1, Title: "first"})
			store.Add(&document.Document{ID: 2, Title: "second"})

			docs := store.CurrentList()
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].Title).To(Equal("second"))
			Expect(docs[1].Title).To(Equal("first"))
		})

		It("should assign a locally-unique id when the id is zero", func() {
			store.Add(&document.Document{ID: 7, Title: "persisted"})
			stored := store.Add(&document.Document{Title: "provisional"})

			Expect(stored.ID).To(Equal(int64(8)))
			Expect(store.Get(8)).NotTo(BeNil())
		})

		It("should not mutate the caller's copy", func() {
			doc := &document.Document{Title: "provisional"}
			stored := store.Add(doc)

			Expect(doc.ID).To(BeZero())
			Expect(stored.ID).NotTo(BeZero())
		})
	})

	Describe("Subscribe", func() {
		It("should emit a snapshot on every mutation", func() {
			var emissions [][]*document.Document
			cancel := store.Subscribe(func(docs []*document.Document) {
				emissions = append(emissions, docs)
			})
			defer cancel()

			store.Add(&document.Document{ID: 1})
			store.Update(&document.Document{ID: 1, Title: "renamed"})
			store.Delete(1)

			Expect(emissions).To(HaveLen(3))
			Expect(emissions[0]).To(HaveLen(1))
			Expect(emissions[1][0].Title).To(Equal("renamed"))
			Expect(emissions[2]).To(BeEmpty())
		})

		It("should stop emitting after cancel", func() {
			count := 0
			cancel := store.Subscribe(func(docs []*document.Document) { count++ })

			store.Add(&document.Document{ID: 1})
			cancel()
			store.Add(&document.Document{ID: 2})

			Expect(count).To(Equal(1))
		})

		It("should hand out snapshots that later mutations cannot change", func() {
			var seen []*document.Document
			cancel := store.Subscribe(func(docs []*document.Document) {
				if seen == nil {
					seen = docs
				}
			})
			defer cancel()

			store.Add(&document.Document{ID: 1, Title: "original"})
			store.Update(&document.Document{ID: 1, Title: "changed"})

			Expect(seen[0].Title).To(Equal("original"))
		})

		It("should allow a subscriber to read the store during fan-out", func() {
			var lenDuringEmit int
			cancel := store.Subscribe(func(docs []*document.Document) {
				lenDuringEmit = len(store.CurrentList())
			})
			defer cancel()

			store.Add(&document.Document{ID: 1})
			Expect(lenDuringEmit).To(Equal(1))
		})
	})

	Describe("Update", func() {
		It("should replace the matching entity wholesale", func() {
			store.Add(&document.Document{ID: 1, Title: "draft", Status: document.StatusPending})
			store.Update(&document.Document{ID: 1, Title: "final"})

			got := store.Get(1)
			Expect(got.Title).To(Equal("final"))
			Expect(got.Status).To(BeEmpty())
		})

		It("should ignore updates for unknown ids", func() {
			store.Add(&document.Document{ID: 1})
			store.Update(&document.Document{ID: 99, Title: "ghost"})

			Expect(store.CurrentList()).To(HaveLen(1))
			Expect(store.Get(99)).To(BeNil())
		})
	})

	Describe("ReplaceAll", func() {
		It("should swap the whole list", func() {
			store.Add(&document.Document{ID: 1})
			store.ReplaceAll([]*document.Document{
				{ID: 10}, {ID: 11},
			})

			docs := store.CurrentList()
			Expect(docs).To(HaveLen(2))
			Expect(store.Get(1)).To(BeNil())
		})
	})

	Describe("Get", func() {
		It("should return a copy", func() {
			store.Add(&document.Document{ID: 1, Title: "stored"})

			got := store.Get(1)
			got.Title = "mutated"

			Expect(store.Get(1).Title).To(Equal("stored"))
		})

		It("should return nil for a missing id", func() {
			Expect(store.Get(42)).To(BeNil())
		})
	})
})
