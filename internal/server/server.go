package server

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/domain"
	"github.com/xela07ax/fraudfusion/internal/engine"
)

// StatsProvider — источник агрегатов для /v1/stats (Postgres).
type StatsProvider interface {
	GetStats(ctx context.Context, since time.Time, lowCoverage float64) (*domain.DecisionStats, error)
}

// Check — проверка зависимости для /readyz (Ping базы, Redis).
type Check func(ctx context.Context) error

type Options struct {
	CORSOrigins []string
	MinCoverage float64       // порог "вырожденного" входа для статистики
	StatsWindow time.Duration // окно /v1/stats по умолчанию
}

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	opts   Options

	scorer *engine.Scorer
	stats  StatsProvider // nil, если база не настроена

	ready  atomic.Bool
	checks map[string]Check
}

// New собирает HTTP-поверхность шлюза. stats может быть nil.
func New(opts Options, scorer *engine.Scorer, stats StatsProvider, logger *zap.Logger) *Server {
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 24 * time.Hour
	}
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.Named("http"),
		opts:   opts,
		scorer: scorer,
		stats:  stats,
		checks: map[string]Check{},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.opts.CORSOrigins))
	r.Use(engine.TracingMiddleware)

	// --- 2. Оценка ---
	r.Post("/predict", s.scorer.HandlePredict)

	// --- 3. Интроспекция и статистика ---
	r.Get("/v1/agents", s.scorer.HandleAgents)
	r.Get("/v1/stats", s.handleStats)

	// --- 4. Пробы для оркестратора ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
}

// AddCheck регистрирует зависимость, без которой шлюз не готов.
// Вызывать до старта сервера.
func (s *Server) AddCheck(name string, c Check) {
	s.checks[name] = c
}

// SetReady: true после загрузки агентов, false на время остановки.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var failed []string
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stats require a configured database"})
		return
	}

	window := s.opts.StatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window must be a positive duration, e.g. 1h"})
			return
		}
		window = d
	}

	stats, err := s.stats.GetStats(r.Context(), time.Now().Add(-window), s.opts.MinCoverage)
	if err != nil {
		s.logger.Error("failed to fetch stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("trace_id", ww.Header().Get(engine.TraceHeader)),
		)
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
