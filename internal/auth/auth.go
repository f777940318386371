package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ServiceAPI is the auth surface consumed by handlers and middleware.
type ServiceAPI interface {
	Authenticate(dto LoginDTO) (AuthTokens, error)
	RefreshTokens(refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserWithRoles(userID int64) (*User, error)
	Register(dto RegisterDTO) (*User, error)
	ForgotPassword(dto ForgotPasswordDTO) error
	ResetPassword(dto ResetPasswordDTO) error
	HashPassword(password string) (string, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userID string, email string) (token string, err error)
	GenerateRefreshToken(userID string, email string) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// User is the authenticated principal carried through request contexts.
type User struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	IsActive   bool     `json:"is_active"`
}

// Workflow role names, in review order. The Admin role doubles as the
// reviewer for the admin stage and as the administrative superuser.
var workflowRoles = []string{"Clerk", "Senior Clerk", "Accountant", "Admin", "HOD"}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) HasAnyRole(roles []string) bool {
	for _, userRole := range u.Roles {
		for _, required := range roles {
			if userRole == required {
				return true
			}
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole("Admin")
}

// ReviewerRole returns the user's workflow role, or "" when the user
// holds none. Users with several workflow roles act under the earliest
// one in review order; the document domain rejects a role that does not
// match the document's current stage.
func (u *User) ReviewerRole() string {
	for _, role := range workflowRoles {
		if u.HasRole(role) {
			return role
		}
	}
	return ""
}

func (u *User) IsReviewer() bool {
	return u.ReviewerRole() != ""
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserInactive       = errors.New("user is inactive")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrResetTokenInvalid  = errors.New("password reset token is invalid or expired")
	ErrForbidden          = errors.New("forbidden")
)

type ctxKey string

const ContextUserKey ctxKey = "user"

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
