package middleware

import (
	"net/http"

	"github.com/docuflow/document-workflow/internal/auth"
	"github.com/docuflow/document-workflow/pkg/logger"
)

// UserContext attaches the authenticated user's identity to the request
// logger so downstream log lines carry it. Runs after token validation.
func UserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := auth.UserFromContext(r.Context()); ok && user != nil {
			ctx := logger.With(r.Context(), "user_id", user.ID, "user_email", user.Email)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
