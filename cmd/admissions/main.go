// ==============================================================================
// SERVICE MAIN ENTRY POINT - cmd/admissions/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"admissions/internal/classifier"
	"admissions/internal/engine"
	"admissions/internal/handler"
	"admissions/internal/middleware"
	"admissions/internal/notification"
	"admissions/internal/permission"
	"admissions/internal/repository/postgres"
	"admissions/internal/status"
	"admissions/internal/storage"
	"admissions/internal/verification"
	"admissions/internal/workflow"
	"admissions/pkg/cache"
	"admissions/pkg/config"
	"admissions/pkg/logger"
	"admissions/pkg/mailer"
	"admissions/pkg/validator"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("admissions-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Connect to Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	defer redisCache.Close()

	// Initialize repositories
	workflowRepo := postgres.NewWorkflowRepository(db)
	applicationRepo := postgres.NewApplicationRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	reviewerRepo := postgres.NewReviewerRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Document storage provider
	var store storage.Provider
	switch cfg.Storage.Provider {
	case "s3":
		store, err = storage.NewS3Provider(context.Background(), cfg.Storage.Bucket, cfg.Storage.Region)
		if err != nil {
			log.Fatal("Failed to initialize S3 storage", map[string]interface{}{"error": err.Error()})
		}
	default:
		store, err = storage.NewLocalProvider(cfg.Storage.BasePath)
		if err != nil {
			log.Fatal("Failed to initialize local storage", map[string]interface{}{"error": err.Error()})
		}
	}

	// Initialize services
	graphCache := workflow.NewRedisGraphCache(redisCache, log)
	workflowStore := workflow.NewStore(workflowRepo, graphCache, log)

	permChecker := permission.NewDatabaseChecker(reviewerRepo, log)
	transitionEngine := engine.NewService(applicationRepo, documentRepo, workflowStore, permChecker, auditRepo, log)

	m := mailer.New(mailer.Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		UseTLS:   cfg.Email.SMTPUseTLS,
		Timeout:  cfg.Email.SMTPTimeout,
	})
	notifier := notification.NewService(m, notification.NewMetadataRecipientResolver(applicationRepo), auditRepo, log)

	projector := status.NewProjector(applicationRepo, workflowStore, notifier, auditRepo, log)
	transitionEngine.SetObserver(projector)

	clf := classifier.NewHTTPClassifier(cfg.Classifier.BaseURL, cfg.Classifier.Timeout, log)
	pipeline := verification.NewService(
		documentRepo,
		applicationRepo,
		workflowStore,
		permChecker,
		store,
		clf,
		transitionEngine,
		auditRepo,
		cfg.Classifier,
		cfg.Upload,
		cfg.Storage.Timeout,
		log,
	)

	// Initialize handlers
	val := validator.New()
	workflowHandler := handler.NewWorkflowHandler(workflowStore, val, log)
	applicationHandler := handler.NewApplicationHandler(applicationRepo, transitionEngine, projector, val, log)
	documentHandler := handler.NewDocumentHandler(pipeline, val, log)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Actor)

	// Routes
	r.HandleFunc("/health", healthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	workflowHandler.RegisterRoutes(api)
	applicationHandler.RegisterRoutes(api)
	documentHandler.RegisterRoutes(api)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Admissions service starting", map[string]interface{}{"port": cfg.Server.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"admissions"}`))
}
