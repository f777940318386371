package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"

	"github.com/docuflow/document-workflow/internal/auth"
	"github.com/docuflow/document-workflow/internal/department"
	"github.com/docuflow/document-workflow/internal/document"
	"github.com/docuflow/document-workflow/internal/transport/middleware"
	"github.com/docuflow/document-workflow/internal/transport/swagger"
	"github.com/docuflow/document-workflow/internal/user"
)

type RouterDeps struct {
	DB                *sql.DB
	SqlxDB            *sqlx.DB
	AuthHandler       *auth.Handler
	RoleAuth          *auth.RoleAuthorization
	UserHandler       *user.Handler
	DocumentHandler   *document.Handler
	DepartmentHandler *department.Handler
	AllowedOrigins    string
	Logger            *slog.Logger
}

// RegisterAllRoutes wires the public API surface. Route groups follow the
// access model: public auth and department lookups, then token-protected
// document operations with role guards on review transitions.
func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	router.Use(middleware.CORSWithOrigins(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	healthHandler := NewHealthHandler(deps.DB)
	accessPolicy := auth.NewDocumentAccessPolicy()

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "api/openapi.yml")
	})
	router.Mount("/swagger", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", healthHandler.pingHandler)
		r.Get("/health", healthHandler.healthCheckHandler)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", deps.AuthHandler.Login)
			r.Post("/refresh", deps.AuthHandler.RefreshToken)
			r.Post("/register", deps.AuthHandler.Register)
			r.Post("/forgot-password", deps.AuthHandler.ForgotPassword)
			r.Post("/reset-password", deps.AuthHandler.ResetPassword)
			r.Post("/logout", deps.AuthHandler.Logout)
		})

		r.Get("/departments", deps.DepartmentHandler.GetDepartments)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthHandler.AuthMiddleware)
			r.Use(middleware.UserContext)

			r.Get("/users/me", deps.UserHandler.GetCurrentUser)

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", deps.DocumentHandler.ListDocuments)
				r.Post("/", deps.DocumentHandler.CreateDocument)

				r.Route("/{id}", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(auth.RequireCanViewDocument(deps.SqlxDB, accessPolicy))
						r.Get("/", deps.DocumentHandler.GetDocument)
						r.Get("/reviews", deps.DocumentHandler.ListReviews)
					})

					r.Patch("/", deps.DocumentHandler.UpdateDocument)
					r.With(deps.RoleAuth.RequireAdmin()).Delete("/", deps.DocumentHandler.DeleteDocument)

					r.With(deps.RoleAuth.RequireAdmin()).Patch("/advance", deps.DocumentHandler.AdvanceDocument)
					r.With(deps.RoleAuth.RequireReviewer()).Patch("/approve", deps.DocumentHandler.ApproveDocument)
					r.With(deps.RoleAuth.RequireReviewer()).Patch("/reject", deps.DocumentHandler.RejectDocument)
				})
			})
		})
	})
}
