package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docuflow/document-workflow/internal"
	"github.com/docuflow/document-workflow/internal/auth"
	authpg "github.com/docuflow/document-workflow/internal/auth/postgres"
	"github.com/docuflow/document-workflow/internal/core/events"
	"github.com/docuflow/document-workflow/internal/department"
	deptpg "github.com/docuflow/document-workflow/internal/department/postgres"
	"github.com/docuflow/document-workflow/internal/document"
	docpg "github.com/docuflow/document-workflow/internal/document/postgres"
	"github.com/docuflow/document-workflow/internal/email"
	"github.com/docuflow/document-workflow/internal/notifier"
	"github.com/docuflow/document-workflow/internal/transport"
	"github.com/docuflow/document-workflow/internal/transport/rest"
	"github.com/docuflow/document-workflow/internal/user"
	userpg "github.com/docuflow/document-workflow/internal/user/postgres"
	"github.com/docuflow/document-workflow/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	GormDB   *gorm.DB
	DB       *sqlx.DB
	Router   *chi.Mux
	Notifier *notifier.Client
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Notifier.Shutdown()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	gormDB, sqlxDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	eventBus := events.NewEventBus(log)

	// Document pipeline
	store := document.NewStore(log)
	documentRepo := docpg.NewDocumentRepository(gormDB, log)
	reviewRepo := docpg.NewReviewRepository(gormDB, log)
	documentService := document.NewService(documentRepo, store, reviewRepo, eventBus, log)

	warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := documentService.Refresh(warmCtx); err != nil {
		log.Warn("failed to warm document store, continuing with empty cache", "error", err)
	}

	// Auth
	emailSender, err := buildEmailSender(config.Email, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email sender: %w", err)
	}

	tokenGenerator := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(
		authpg.NewRepository(gormDB),
		tokenGenerator,
		emailSender,
		config.Security.BCryptCost,
		config.Email.FrontendURL,
		log,
	)

	// Webhook notifier consumes document lifecycle events
	notifierClient := notifier.NewClient(notifier.Config{
		WebhookURL:   config.Notifier.WebhookURL,
		APIKey:       config.Notifier.APIKey,
		HTTPTimeout:  config.Notifier.HTTPTimeout,
		MaxWorkers:   config.Notifier.Workers,
		JobQueueSize: config.Notifier.QueueSize,
	}, log)
	notifier.NewEventHandler(notifierClient, log).RegisterEventHandlers(eventBus)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.RouterDeps{
		DB:                sqlxDB.DB,
		SqlxDB:            sqlxDB,
		AuthHandler:       auth.NewHandler(authService),
		RoleAuth:          auth.NewRoleAuthorization(log),
		UserHandler:       user.NewHandler(user.NewService(userpg.NewUserRepository(gormDB))),
		DocumentHandler:   document.NewHandler(documentService),
		DepartmentHandler: department.NewHandler(transport.NewBaseHandler(log), department.NewService(deptpg.NewDepartmentRepository(gormDB), log)),
		AllowedOrigins:    config.Server.AllowedOrigins,
		Logger:            log,
	})

	return &Dependencies{
		Config:   config,
		Logger:   log,
		GormDB:   gormDB,
		DB:       sqlxDB,
		Router:   router,
		Notifier: notifierClient,
	}, nil
}

// initDB opens one database connection pool and exposes it through both
// gorm (repositories) and sqlx (health checks, access middleware).
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, *sqlx.DB, error) {
	var (
		gormDB *gorm.DB
		err    error
	)

	sqlxDriver := "pgx"
	switch cfg.GetDriver() {
	case internal.DriverSQLite:
		gormDB, err = gorm.Open(gormsqlite.Open(cfg.Source), &gorm.Config{})
		sqlxDriver = "sqlite3"
	default:
		gormDB, err = gorm.Open(gormpostgres.Open(cfg.Source), &gorm.Config{})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access db pool: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return gormDB, sqlx.NewDb(sqlDB, sqlxDriver), nil
}

func buildEmailSender(cfg internal.EmailConfig, log *slog.Logger) (email.Sender, error) {
	if cfg.Provider == "ses" {
		return email.NewSESSender(cfg.Region, cfg.FromAddress, cfg.FromName)
	}
	return email.NewNoopSender(log), nil
}
