package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	api "github.com/gatehall/gatehall/internal/api/http"
	auth "github.com/gatehall/gatehall/internal/auth/middleware"
	"github.com/gatehall/gatehall/internal/config"
	"github.com/gatehall/gatehall/internal/db"
	"github.com/gatehall/gatehall/internal/exam"
	"github.com/gatehall/gatehall/internal/logger"
	"github.com/gatehall/gatehall/internal/rbac"
	"github.com/gatehall/gatehall/internal/storage"
	"github.com/gatehall/gatehall/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Init(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	store := exam.NewSQLStore(dbh, cfg.DBDriver)

	userStore := users.NewStore(dbh)
	if err := userStore.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}

	var bs storage.BlobStore
	switch cfg.BlobDriver {
	case "minio":
		bs, err = storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		bs, err = storage.NewFSStore(cfg.BlobBasePath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("blob store")
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, api.RequestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, userStore))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Admin surface.
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.CreateExamHandler(store, bs))
		pr.With(rbac.Require("key:ingest")).
			Put("/exams/{examID}/key", api.ReplaceKeyHandler(store, bs))
		pr.With(rbac.Require("exam:view-full")).
			Get("/exams/{examID}/full", api.GetExamFullHandler(store))

		// Student surface.
		pr.With(rbac.Require("exam:view")).
			Get("/exams", api.ListExamsHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}/paper", api.GetPaperHandler(store, bs))

		pr.With(rbac.Require("attempt:create")).
			Post("/exams/{examID}/attempts", api.CreateAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Put("/attempts/{attemptID}/state", api.SaveStateHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/result", api.GetResultHandler(store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	log.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DBDriver).Str("blob", cfg.BlobDriver).Msg("listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
