package http

import (
	"net/http"
	"time"

	"healthsync/internal/auth"
	"healthsync/internal/config"
	"healthsync/internal/http/handler"
	mw "healthsync/internal/http/middleware"
	"healthsync/internal/ingest"
	"healthsync/internal/intents"
	"healthsync/internal/summary"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	// Now is injected by tests; nil means time.Now.
	Now func() time.Time
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.AccessLog(log))
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	if sqlDB, err := d.DB.DB(); err == nil {
		health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(sqlDB, time.Second))
	}
	r.Get("/live", health.LiveEndpoint)
	r.Get("/ready", health.ReadyEndpoint)
	r.Handle("/metrics", promhttp.Handler())

	ingestSvc := &ingest.Service{DB: d.DB, Log: log, Now: d.Now}
	summarySvc := &summary.Service{Rollups: ingestSvc, Now: d.Now}
	intentRepo := &intents.Repo{DB: d.DB, Now: d.Now}

	ingestH := &handler.IngestHandler{Svc: ingestSvc, Log: log}
	summaryH := &handler.SummaryHandler{Svc: summarySvc, Log: log}
	intentH := &handler.IntentHandler{Repo: intentRepo, Log: log, Now: d.Now}
	metaH := &handler.MetaHandler{PublicBaseURL: d.Config.PublicBaseURL}

	verifier := auth.NewVerifier(d.Config.BearerToken, d.Config.BearerTokenBcrypt)

	r.Route("/health", func(r chi.Router) {
		r.Get("/openapi.json", metaH.OpenAPI)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer(verifier))

			r.Post("/ingest", ingestH.Ingest)
			r.Get("/daily", ingestH.Daily)
			r.Get("/raw", ingestH.Raw)

			r.Get("/summary/daily", summaryH.Daily)
			r.Get("/summary/range", summaryH.Range)
			r.Get("/summary/yesterday", summaryH.Yesterday)
			r.Post("/query", summaryH.Query)
			r.Get("/capabilities", metaH.Capabilities)

			r.Post("/write-intents", intentH.Upsert)
			r.Get("/write-intents", intentH.List)
			r.Get("/write-intents/pending", intentH.ListPending)
			r.Post("/write-intents/ack", intentH.Ack)
		})
	})

	return r
}
