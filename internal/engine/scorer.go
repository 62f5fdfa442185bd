package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/audit"
	"github.com/xela07ax/fraudfusion/internal/domain"
	"github.com/xela07ax/fraudfusion/internal/features"
	"github.com/xela07ax/fraudfusion/internal/fusion"
	"github.com/xela07ax/fraudfusion/internal/model"
)

type ScorerConfig struct {
	DefaultValue   float64 // подстановка для отсутствующих признаков
	MinCoverage    float64 // ниже этой доли признаков агента вход считается вырожденным
	StrictFeatures bool    // отклонять ключи, которых нет ни в одной схеме
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{DefaultValue: features.DefaultValue, MinCoverage: 0.5}
}

// Scorer — ядро /predict: выравнивание -> два агента -> слияние -> аудит.
// Своего состояния между запросами нет; бандл агентов можно атомарно заменить (hot reload).
type Scorer struct {
	bundle  atomic.Pointer[Bundle]
	fuser   *fusion.Fuser
	cfg     ScorerConfig
	metrics *Metrics
	auditor audit.Auditor
	logger  *zap.Logger
}

func NewScorer(bundle *Bundle, fuser *fusion.Fuser, cfg ScorerConfig, metrics *Metrics, auditor audit.Auditor, logger *zap.Logger) (*Scorer, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	if fuser == nil {
		fuser = fusion.NewDefault()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scorer{
		fuser:   fuser,
		cfg:     cfg,
		metrics: metrics,
		auditor: auditor,
		logger:  logger.Named("scorer"),
	}
	s.bundle.Store(bundle)
	return s, nil
}

// Swap подменяет агентов. Запросы, уже взявшие старый бандл, дорабатывают на нем.
func (s *Scorer) Swap(bundle *Bundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}
	s.bundle.Store(bundle)
	return nil
}

func (s *Scorer) Bundle() *Bundle { return s.bundle.Load() }

func (s *Scorer) Score(ctx context.Context, record features.Record) (domain.Assessment, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		s.metrics.TotalRequests.WithLabelValues(status).Inc()
		s.metrics.RequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	b := s.bundle.Load()
	traceID := TraceIDFromContext(ctx)

	// 0. Strict mode: неизвестные ключи считаются ошибкой клиента
	if s.cfg.StrictFeatures {
		if unknown := features.Unknown(record, b.Transaction.Schema, b.Behavior.Schema); len(unknown) > 0 {
			status = "invalid"
			s.metrics.ErrorTotal.WithLabelValues("unknown_feature").Inc()
			return domain.Assessment{}, invalid("unknown features: %s", strings.Join(unknown, ", "))
		}
	}

	// 1. Агенты
	p1, cov1, err := s.runAgent(ctx, b.Transaction, record, traceID)
	if err != nil {
		status = "inference_error"
		return domain.Assessment{}, err
	}
	p2, cov2, err := s.runAgent(ctx, b.Behavior, record, traceID)
	if err != nil {
		status = "inference_error"
		return domain.Assessment{}, err
	}

	// 2. Слияние
	decision := s.fuser.Fuse(p1, p2)
	s.metrics.Decisions.WithLabelValues(strconv.FormatBool(decision.Fraudulent)).Inc()

	res := domain.Assessment{
		Agent1Score: p1,
		Agent2Score: p2,
		FinalScore:  decision.Fused,
		Fraudulent:  decision.Fraudulent,
		ID:          uuid.New().String(),
		TraceID:     traceID,
		Coverage1:   cov1.Ratio(),
		Coverage2:   cov2.Ratio(),
		Threshold:   s.fuser.Threshold(),
		CreatedAt:   start,
		Duration:    time.Since(start),
	}

	// 3. Асинхронный аудит, ответ клиенту не ждет
	if s.auditor != nil {
		s.auditor.Log(audit.Record{
			ID:          res.ID,
			TraceID:     res.TraceID,
			Agent1Score: res.Agent1Score,
			Agent2Score: res.Agent2Score,
			FinalScore:  res.FinalScore,
			Fraudulent:  res.Fraudulent,
			Threshold:   res.Threshold,
			Coverage1:   res.Coverage1,
			Coverage2:   res.Coverage2,
			DurationMs:  float64(res.Duration.Microseconds()) / 1000,
			Timestamp:   res.CreatedAt,
			Payload:     maps.Clone(record),
		})
	}
	return res, nil
}

func (s *Scorer) runAgent(ctx context.Context, a *Agent, record features.Record, traceID string) (float64, features.CoverageReport, error) {
	p, cov, err := a.FraudProbability(ctx, record, s.cfg.DefaultValue)
	if err == nil && (math.IsNaN(p) || math.IsInf(p, 0)) {
		// такой ответ не сериализуется в JSON
		err = fmt.Errorf("%w: score is %v", model.ErrBadDistribution, p)
	}
	if err != nil {
		s.metrics.ErrorTotal.WithLabelValues(inferenceErrorType(err)).Inc()
		return 0, cov, &InferenceError{Agent: a.Name, Err: err}
	}
	s.metrics.AgentScore.WithLabelValues(a.Name).Observe(p)

	// DegenerateInputWarning: не ошибка, но почти наверняка проблема интеграции выше по потоку
	if cov.Ratio() < s.cfg.MinCoverage {
		s.metrics.DegenerateInputs.WithLabelValues(a.Name).Inc()
		s.logger.Warn("degenerate input: most features missing, defaults used",
			zap.String("trace_id", traceID),
			zap.String("agent", a.Name),
			zap.Int("present", cov.Present),
			zap.Int("missing", cov.Missing),
		)
	}

	// Значение вне [0,1] не обрезаем, но отмечаем
	if p < 0 || p > 1 {
		s.logger.Warn("agent score outside [0,1], propagated as is",
			zap.String("trace_id", traceID),
			zap.String("agent", a.Name),
			zap.Float64("score", p),
		)
	}
	return p, cov, nil
}

func inferenceErrorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	}
	if strings.Contains(err.Error(), "rate limit") {
		return "rate_limit"
	}
	return "inference"
}
