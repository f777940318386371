package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	departmentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/department"
	documentDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/document"
	userDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/user"
	"github.com/docuflow/document-workflow/internal/document"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, _, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			for _, table := range []string{"document_reviews", "documents", "user_roles", "password_resets", "users", "roles", "departments"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		seedRoles(db)
		seedDepartments(db)
		seedUsers(db)
		seedDocuments(db)

		fmt.Println("Database seeded successfully")
	},
}

var seedRoleList = []struct {
	Name string
	Desc string
}{
	{"Clerk", "First-stage reviewer, receives newly submitted documents"},
	{"Senior Clerk", "Second-stage reviewer"},
	{"Accountant", "Third-stage reviewer, checks financial documents"},
	{"Admin", "Fourth-stage reviewer with administrative access"},
	{"HOD", "Head of department, final sign-off"},
}

func seedRoles(db *gorm.DB) {
	for _, r := range seedRoleList {
		var existing userDatamodel.Role
		err := db.Where("name = ?", r.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err := db.Create(&userDatamodel.Role{Name: r.Name, Description: r.Desc}).Error; err != nil {
			log.Fatalf("failed to insert role %s: %v", r.Name, err)
		}
		fmt.Printf("Seeded role: %s\n", r.Name)
	}
}

func seedDepartments(db *gorm.DB) {
	departments := []struct {
		Name string
		Desc string
	}{
		{"Finance", "Budgets, invoices and payment records"},
		{"Human Resources", "Personnel files and policy documents"},
		{"Operations", "Process manuals and operational reports"},
		{"Legal", "Contracts and compliance documents"},
	}

	for _, d := range departments {
		var existing departmentDatamodel.Department
		err := db.Where("name = ?", d.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err := db.Create(&departmentDatamodel.Department{Name: d.Name, Description: d.Desc, IsActive: true}).Error; err != nil {
			log.Fatalf("failed to insert department %s: %v", d.Name, err)
		}
		fmt.Printf("Seeded department: %s\n", d.Name)
	}
}

func seedUsers(db *gorm.DB) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash seed password: %v", err)
	}

	users := []struct {
		Email      string
		Name       string
		Department string
		Role       string
	}{
		{"clerk@docuflow.local", "Carla Clerk", "Operations", "Clerk"},
		{"senior.clerk@docuflow.local", "Sam Senior", "Operations", "Senior Clerk"},
		{"accountant@docuflow.local", "Alex Accountant", "Finance", "Accountant"},
		{"admin@docuflow.local", "Ada Admin", "Operations", "Admin"},
		{"hod@docuflow.local", "Hana Hod", "Operations", "HOD"},
	}

	for _, u := range users {
		var existing userDatamodel.User
		if err := db.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			continue
		}

		record := userDatamodel.User{
			Email:        u.Email,
			Name:         u.Name,
			PasswordHash: string(hash),
			Department:   u.Department,
			IsActive:     true,
		}
		if err := db.Create(&record).Error; err != nil {
			log.Fatalf("failed to insert user %s: %v", u.Email, err)
		}

		var role userDatamodel.Role
		if err := db.Where("name = ?", u.Role).First(&role).Error; err != nil {
			log.Fatalf("role %s not found for user %s: %v", u.Role, u.Email, err)
		}
		if err := db.Create(&userDatamodel.UserRole{UserID: record.ID, RoleID: role.ID}).Error; err != nil {
			log.Fatalf("failed to grant role %s to %s: %v", u.Role, u.Email, err)
		}

		fmt.Printf("Seeded user: %s (%s)\n", u.Email, u.Role)
	}
}

func seedDocuments(db *gorm.DB) {
	var count int64
	if err := db.Model(&documentDatamodel.Document{}).Count(&count).Error; err != nil {
		log.Fatalf("failed to count documents: %v", err)
	}
	if count > 0 {
		return
	}

	documents := []documentDatamodel.Document{
		{
			Title:        "Q3 Budget Report",
			FileURL:      "https://files.docuflow.local/q3-budget.pdf",
			DocumentType: document.TypePDF,
			Class:        document.ClassGeneral,
			Department:   "Finance",
			Description:  "Quarterly budget summary for review",
			CurrentStage: document.StageClerk,
			Status:       document.StatusPending,
			CreatedBy:    "accountant@docuflow.local",
		},
		{
			Title:          "Vendor Contract Renewal",
			FileURL:        "https://files.docuflow.local/vendor-contract.pdf",
			DocumentType:   document.TypeWord,
			Class:          document.ClassConfidential,
			Department:     "Legal",
			Description:    "Annual renewal of logistics vendor contract",
			IsConfidential: true,
			CurrentStage:   document.StageSeniorClerk,
			Status:         document.StatusPending,
			CreatedBy:      "clerk@docuflow.local",
		},
		{
			Title:        "Remote Work Policy",
			FileURL:      "https://files.docuflow.local/remote-policy.pdf",
			DocumentType: document.TypePDF,
			Class:        document.ClassUrgent,
			Department:   "Human Resources",
			Description:  "Updated remote work guidelines",
			CurrentStage: document.StageHOD,
			Status:       document.StatusPending,
			CreatedBy:    "admin@docuflow.local",
		},
	}

	for i := range documents {
		if err := db.Create(&documents[i]).Error; err != nil {
			log.Fatalf("failed to insert document %q: %v", documents[i].Title, err)
		}
		fmt.Printf("Seeded document: %s\n", documents[i].Title)
	}
}
