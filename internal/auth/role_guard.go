package auth

import (
	"log/slog"
	"net/http"
)

// RoleAuthorization gates routes on the workflow roles loaded by the
// auth middleware.
type RoleAuthorization struct {
	logger *slog.Logger
}

func NewRoleAuthorization(logger *slog.Logger) *RoleAuthorization {
	return &RoleAuthorization{logger: logger}
}

func (ra *RoleAuthorization) require(check func(u *User) bool, deniedMsg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				ra.logger.Warn("authorization check failed: user not found in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !check(user) {
				ra.logger.WarnContext(r.Context(), deniedMsg,
					"user_id", user.ID,
					"user_roles", user.Roles)
				http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireReviewer admits any user holding a workflow role. The document
// domain still checks that the role matches the document's stage.
func (ra *RoleAuthorization) RequireReviewer() func(http.Handler) http.Handler {
	return ra.require(func(u *User) bool { return u.IsReviewer() },
		"access denied: reviewer role required")
}

func (ra *RoleAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.require(func(u *User) bool { return u.IsAdmin() },
		"access denied: admin role required")
}

func (ra *RoleAuthorization) RequireRole(role string) func(http.Handler) http.Handler {
	return ra.require(func(u *User) bool { return u.HasRole(role) },
		"access denied: role required")
}
