package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"roomDesignAi/internal/auth"
	"roomDesignAi/internal/events"
	"roomDesignAi/internal/jobs"
	"roomDesignAi/internal/telemetry"
	"roomDesignAi/internal/vision"
)

// Options wires the HTTP surface. Metrics and Gatherer are optional.
type Options struct {
	Port     string
	Jobs     *jobs.Orchestrator
	Events   *events.Broker
	Vision   vision.Handler
	Auth     auth.Middleware
	Tokens   auth.Handler
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// New constructs the HTTP server with routes and middleware.
func New(opts Options) *http.Server {
	srv := &http.Server{
		Addr:        ":" + opts.Port,
		Handler:     telemetry.WrapHTTP("roomdesign-api", NewRouter(opts)),
		ReadTimeout: 10 * time.Second,
		// Progress streams stay open for the life of a job.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	opts.Logger.Info().Str("addr", srv.Addr).Msg("server ready")
	return srv
}

// NewRouter builds the chi router.
func NewRouter(opts Options) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Middleware)
	}

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	h := jobHandler{jobs: opts.Jobs, events: opts.Events, logger: opts.Logger}

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", opts.Tokens.Token)

		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Identify)
			r.Route("/design-jobs", func(r chi.Router) {
				r.Post("/", h.Create)
				r.Get("/", h.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Get("/result", h.Result)
					r.Post("/cancel", h.Cancel)
					r.Post("/resume", h.Resume)
					r.Get("/events", h.StreamEvents)
					r.Get("/ws", h.Socket)
				})
			})
			r.Route("/vision", func(r chi.Router) {
				r.Post("/analyze", opts.Vision.Analyze)
			})
		})
	})

	return router
}
