package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/schoolmark/schoolmark/internal/api/http"
	"github.com/schoolmark/schoolmark/internal/audit"
	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/config"
	"github.com/schoolmark/schoolmark/internal/db"
	"github.com/schoolmark/schoolmark/internal/exam"
	"github.com/schoolmark/schoolmark/internal/grading"
	"github.com/schoolmark/schoolmark/internal/rbac"
	"github.com/schoolmark/schoolmark/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh)
	svc := exam.NewService(store, grading.NewEngine(),
		exam.WithRecorder(audit.NewLog(dbh)))

	if err := seedAdmin(ctx, store, cfg); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	var archive storage.Archive
	if cfg.ExportDir != "" {
		dir, err := storage.NewDir(cfg.ExportDir)
		if err != nil {
			log.Fatalf("export dir: %v", err)
		}
		archive = dir
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", api.LoginHandler(store, authSvc))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher test management
		pr.With(rbac.Require("test:create")).
			Post("/tests", api.CreateTestHandler(svc))
		pr.With(rbac.Require("test:edit")).
			Put("/tests/{testID}", api.UpdateTestHandler(svc))
		pr.With(rbac.Require("test:publish")).
			Post("/tests/{testID}/publish", api.PublishTestHandler(svc))
		pr.With(rbac.Require("test:publish")).
			Post("/tests/{testID}/complete", api.CompleteTestHandler(svc))
		pr.With(rbac.Require("test:recalculate")).
			Post("/tests/{testID}/recalculate", api.RecalculateHandler(svc, store, cfg.RecalcWorkers))
		pr.With(rbac.Require("results:export")).
			Get("/tests/{testID}/results/export", api.ExportResultsHandler(store, archive))

		// Shared reads
		pr.With(rbac.Require("test:view")).
			Get("/tests", api.ListTestsHandler(store))
		pr.With(rbac.Require("test:view")).
			Get("/tests/{testID}", api.GetTestHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/results", api.AttemptResultsHandler(svc, store))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/answers/{questionID}", api.RecordAnswerHandler(svc, store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc, store))
	})

	log.Printf("gateway listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}

// seedAdmin ensures a bootstrap admin exists so a fresh deployment can
// log in and create the real accounts.
func seedAdmin(ctx context.Context, store exam.Store, cfg config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassHash == "" {
		return nil
	}
	_, err := store.GetUserByUsername(ctx, cfg.AdminUser)
	if err == nil {
		return nil
	}
	if !errors.Is(err, exam.ErrUserNotFound) && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return store.PutUser(ctx, exam.User{
		ID:       uuid.NewString(),
		Username: cfg.AdminUser,
		PassHash: cfg.AdminPassHash,
		Role:     "admin",
	})
}
