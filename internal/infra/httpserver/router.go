package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appmovers "github.com/bryanwahyu/daily-movers/internal/application/movers"
	domai "github.com/bryanwahyu/daily-movers/internal/domain/ai"
	domain "github.com/bryanwahyu/daily-movers/internal/domain/movers"
	"github.com/bryanwahyu/daily-movers/internal/middleware"
)

type Router struct {
	svc *appmovers.Service
	log zerolog.Logger
}

// Options configures the HTTP surface around the pipeline service.
type Options struct {
	APIKey         string
	RateCapacity   int
	RateRefill     int
	HealthCheckers map[string]middleware.HealthChecker
}

func NewRouter(svc *appmovers.Service, log zerolog.Logger, opts Options) http.Handler {
	r := &Router{svc: svc, log: log}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(middleware.MetricsMiddleware)
	if opts.RateCapacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateCapacity, opts.RateRefill))
	}
	mux.Use(middleware.APIKeyAuth(opts.APIKey))

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/runs", r.wrap(r.handleTriggerRun))
		rt.Get("/runs/latest", r.wrap(r.handleLatest))
		rt.Get("/runs/{id}", r.wrap(r.handleGet))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type badRequestError struct{ cause error }

func (e badRequestError) Error() string { return e.cause.Error() }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var badReq badRequestError
			if errors.As(err, &badReq) {
				http.Error(w, badReq.Error(), http.StatusBadRequest)
				return
			}
			var ingErr *domain.IngestionError
			if errors.As(err, &ingErr) {
				http.Error(w, ingErr.Error(), http.StatusBadGateway)
				return
			}
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/runs
// Body: {"date": "2025-01-15", "mode": "movers", "region": "us", "top": 25}
// All fields are optional; defaults come from the pipeline config.
func (r *Router) handleTriggerRun(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Date   string `json:"date"`
		Mode   string `json:"mode"`
		Region string `json:"region"`
		Top    int    `json:"top"`
	}
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequestError{fmt.Errorf("invalid request body: %w", err)}
		}
	}
	if err := middleware.ValidateRegion(body.Region); err != nil {
		return badRequestError{err}
	}
	if err := middleware.ValidateMode(body.Mode); err != nil {
		return badRequestError{err}
	}
	if err := middleware.ValidateTop(body.Top); err != nil {
		return badRequestError{err}
	}
	if err := middleware.ValidateDate(body.Date); err != nil {
		return badRequestError{err}
	}

	cmd := appmovers.TriggerRunCommand{
		Date:   body.Date,
		Mode:   body.Mode,
		Region: body.Region,
		Top:    body.Top,
	}

	// 🚀 Jalankan di background, biar jalan sampai selesai
	go func() {
		middleware.IncrementRuns()
		middleware.IncrementRunsRunning()
		defer middleware.DecrementRunsRunning()

		result, err := r.svc.TriggerRunUntilDone(cmd)
		if err != nil {
			middleware.IncrementRunsFailed()
			r.log.Error().Err(err).
				Str("mode", cmd.Mode).
				Str("region", cmd.Region).
				Msg("background run failed")
			return
		}
		r.log.Info().
			Str("run_id", result.ID).
			Str("status", result.Status).
			Str("digest_url", result.DigestURL).
			Msg("background run finished")
	}()

	// 🔙 langsung balikin respons ke client
	resp := map[string]any{
		"status":   "queued",
		"mode":     cmd.Mode,
		"region":   cmd.Region,
		"message":  "run started in background",
		"queuedAt": time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/runs/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.LatestRuns(req.Context(), limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/runs/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	run, err := r.svc.GetRun(req.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return sql.ErrNoRows
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(run)
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Summary(req.Context(), days)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}
