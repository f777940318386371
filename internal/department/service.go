package department

import (
	"log/slog"

	departmentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/department"
)

type RepositoryAPI interface {
	GetAll() ([]*departmentDatamodel.Department, error)
	GetByID(id int64) (*departmentDatamodel.Department, error)
	GetByName(name string) (*departmentDatamodel.Department, error)
	Create(dept *departmentDatamodel.Department) error
	Update(dept *departmentDatamodel.Department) error
	Delete(id int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetAllDepartments() ([]DepartmentResponse, error) {
	dataDepartments, err := s.repo.GetAll()
	if err != nil {
		s.logger.Error("failed to get departments from repository", "error", err)
		return nil, err
	}

	var responses []DepartmentResponse
	for _, dataDept := range dataDepartments {
		domainDept := FromDataModel(dataDept)
		if domainDept.IsActiveDepartment() {
			responses = append(responses, domainDept.ToResponse())
		}
	}

	s.logger.Info("retrieved departments", "count", len(responses))
	return responses, nil
}

func (s *Service) GetDepartmentByName(name string) (*DepartmentResponse, error) {
	dataDept, err := s.repo.GetByName(name)
	if err != nil {
		s.logger.Error("failed to get department from repository", "error", err, "name", name)
		return nil, err
	}
	if dataDept == nil {
		return nil, nil
	}

	domainDept := FromDataModel(dataDept)
	if !domainDept.IsActiveDepartment() {
		return nil, nil
	}
	response := domainDept.ToResponse()
	return &response, nil
}

// IsValidDepartment reports whether name is an active department,
// used to validate the department metadata on incoming documents.
func (s *Service) IsValidDepartment(name string) bool {
	dept, err := s.GetDepartmentByName(name)
	if err != nil {
		s.logger.Warn("error checking department validity", "name", name, "error", err)
		return false
	}
	return dept != nil
}
