package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/docuflow/document-workflow/internal/auth"
	userDatamodel "github.com/docuflow/document-workflow/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetPasswordForEmail(email string) (string, string, error) {
	var passwordHash string
	var userID string
	query := `SELECT id, password_hash FROM users WHERE email = ? AND is_active = true`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userID, &passwordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", fmt.Errorf("user not found")
		}
		return "", "", err
	}
	return passwordHash, userID, nil
}

func (r *Repository) GetUserWithRoles(userID int64) (*auth.User, error) {
	var user auth.User

	query := `SELECT id, email, name, COALESCE(department, '') AS department, is_active FROM users WHERE id = ?`
	row := r.db.Raw(query, userID).Row()
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Department, &user.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}

	roles, err := r.rolesForUser(userID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return &user, nil
}

func (r *Repository) GetUserByEmail(email string) (*auth.User, error) {
	var user auth.User

	query := `SELECT id, email, name, COALESCE(department, '') AS department, is_active FROM users WHERE email = ?`
	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Department, &user.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	roles, err := r.rolesForUser(user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return &user, nil
}

func (r *Repository) rolesForUser(userID int64) ([]string, error) {
	query := `SELECT r.name
	          FROM roles r
	          JOIN user_roles ur ON r.id = ur.role_id
	          WHERE ur.user_id = ?
	          ORDER BY r.id`

	rows, err := r.db.Raw(query, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// CreateUser inserts the user and links the given role in one
// transaction. The role must already exist in the roles table.
func (r *Repository) CreateUser(user *auth.User, passwordHash string, role string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		dm := &userDatamodel.User{
			Email:        user.Email,
			Name:         user.Name,
			Department:   user.Department,
			PasswordHash: passwordHash,
			IsActive:     true,
		}
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		user.ID = dm.ID

		var roleID int64
		row := tx.Raw(`SELECT id FROM roles WHERE name = ?`, role).Row()
		if err := row.Scan(&roleID); err != nil {
			return fmt.Errorf("role %q not found: %w", role, err)
		}

		return tx.Exec(`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, user.ID, roleID).Error
	})
}

func (r *Repository) UpdatePassword(userID int64, passwordHash string) error {
	return r.db.Exec(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), userID,
	).Error
}

func (r *Repository) CreatePasswordReset(userID int64, tokenHash string, expiresAt time.Time) error {
	reset := &userDatamodel.PasswordReset{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	return r.db.Create(reset).Error
}

// ConsumePasswordReset atomically claims an unexpired, unused reset
// token and returns its owner.
func (r *Repository) ConsumePasswordReset(tokenHash string) (int64, error) {
	var userID int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var reset userDatamodel.PasswordReset
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, time.Now()).
			First(&reset).Error
		if err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&userDatamodel.PasswordReset{}).
			Where("id = ?", reset.ID).
			Update("used_at", &now).Error; err != nil {
			return err
		}

		userID = reset.UserID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}
