package department_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	departmentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/department"
	"github.com/docuflow/document-workflow/internal/department"
)

func TestDepartmentService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Department Service Suite")
}

// MockRepository implements department.RepositoryAPI for testing
type MockRepository struct {
	departments map[string]*departmentDatamodel.Department
	shouldFail  bool
	failError   error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{departments: make(map[string]*departmentDatamodel.Department)}
}

func (m *MockRepository) SetShouldFail(fail bool, err error) {
	m.shouldFail = fail
	m.failError = err
}

func (m *MockRepository) AddDepartment(dept *department.Department) {
	m.departments[dept.Name] = department.ToDataModel(dept)
}

func (m *MockRepository) GetAll() ([]*departmentDatamodel.Department, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*departmentDatamodel.Department
	for _, d := range m.departments {
		out = append(out, d)
	}
	return out, nil
}

func (m *MockRepository) GetByID(id int64) (*departmentDatamodel.Department, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	for _, d := range m.departments {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) GetByName(name string) (*departmentDatamodel.Department, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	d, ok := m.departments[name]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (m *MockRepository) Create(dept *departmentDatamodel.Department) error {
	if m.shouldFail {
		return m.failError
	}
	m.departments[dept.Name] = dept
	return nil
}

func (m *MockRepository) Update(dept *departmentDatamodel.Department) error {
	if m.shouldFail {
		return m.failError
	}
	m.departments[dept.Name] = dept
	return nil
}

func (m *MockRepository) Delete(id int64) error {
	if m.shouldFail {
		return m.failError
	}
	for name, d := range m.departments {
		if d.ID == id {
			d.IsActive = false
			m.departments[name] = d
			break
		}
	}
	return nil
}

var _ = Describe("Department Service", func() {
	var (
		mockRepo *MockRepository
		service  *department.Service
	)

	BeforeEach(func() {
		mockRepo = NewMockRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = department.NewService(mockRepo, logger)
	})

	Describe("GetAllDepartments", func() {
		Context("when repository has departments", func() {
			BeforeEach(func() {
				mockRepo.AddDepartment(&department.Department{ID: 1, Name: "Finance", Description: "Budgets and invoices", IsActive: true})
				mockRepo.AddDepartment(&department.Department{ID: 2, Name: "Legal", Description: "Contracts", IsActive: true})
				mockRepo.AddDepartment(&department.Department{ID: 3, Name: "Dissolved", Description: "Old unit", IsActive: false})
			})

			It("should return only active departments", func() {
				departments, err := service.GetAllDepartments()
				Expect(err).NotTo(HaveOccurred())
				Expect(departments).To(HaveLen(2))

				names := make([]string, len(departments))
				for i, d := range departments {
					names[i] = d.Name
				}
				Expect(names).To(ConsistOf("Finance", "Legal"))
			})
		})

		Context("when repository returns error", func() {
			BeforeEach(func() {
				mockRepo.SetShouldFail(true, errors.New("database error"))
			})

			It("should return error", func() {
				departments, err := service.GetAllDepartments()
				Expect(err).To(HaveOccurred())
				Expect(departments).To(BeNil())
			})
		})

		Context("when repository is empty", func() {
			It("should return empty slice", func() {
				departments, err := service.GetAllDepartments()
				Expect(err).NotTo(HaveOccurred())
				Expect(departments).To(HaveLen(0))
			})
		})
	})

	Describe("GetDepartmentByName", func() {
		BeforeEach(func() {
			mockRepo.AddDepartment(&department.Department{ID: 1, Name: "Finance", Description: "Budgets", IsActive: true})
			mockRepo.AddDepartment(&department.Department{ID: 2, Name: "Dissolved", IsActive: false})
		})

		It("should return an active department", func() {
			dept, err := service.GetDepartmentByName("Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(dept).NotTo(BeNil())
			Expect(dept.Name).To(Equal("Finance"))
		})

		It("should hide inactive departments", func() {
			dept, err := service.GetDepartmentByName("Dissolved")
			Expect(err).NotTo(HaveOccurred())
			Expect(dept).To(BeNil())
		})

		It("should return nil for an unknown name", func() {
			dept, err := service.GetDepartmentByName("Nowhere")
			Expect(err).NotTo(HaveOccurred())
			Expect(dept).To(BeNil())
		})
	})

	Describe("IsValidDepartment", func() {
		BeforeEach(func() {
			mockRepo.AddDepartment(&department.Department{ID: 1, Name: "Finance", IsActive: true})
		})

		It("should accept an active department", func() {
			Expect(service.IsValidDepartment("Finance")).To(BeTrue())
		})

		It("should reject unknown names", func() {
			Expect(service.IsValidDepartment("Nowhere")).To(BeFalse())
		})

		It("should reject when the repository fails", func() {
			mockRepo.SetShouldFail(true, errors.New("database error"))
			Expect(service.IsValidDepartment("Finance")).To(BeFalse())
		})
	})
})
