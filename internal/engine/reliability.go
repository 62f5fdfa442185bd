package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/fraudfusion/internal/model"
)

type ReliabilityConfig struct {
	RatePerSecond   float64
	Burst           int
	Attempts        uint
	CallTimeout     time.Duration
	MaxHalfOpen     uint32        // пробные запросы в half-open
	BreakerInterval time.Duration // сброс счетчиков в closed
	BreakerTimeout  time.Duration // через сколько CB попробует "закрыться"
	BreakerFailures uint32        // подряд ошибок до открытия
}

func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		RatePerSecond:   100,
		Burst:           20,
		Attempts:        3,
		CallTimeout:     2 * time.Second,
		MaxHalfOpen:     3,
		BreakerInterval: 5 * time.Second,
		BreakerTimeout:  30 * time.Second,
		BreakerFailures: 5,
	}
}

// ReliabilityWrapper оборачивает удаленную модель: лимитер -> предохранитель -> ретраи с таймаутом.
// Сам является model.Classifier, поэтому агент не знает, что модель удаленная.
type ReliabilityWrapper struct {
	name    string
	next    model.Classifier
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	cfg     ReliabilityConfig
}

func NewReliabilityWrapper(name string, next model.Classifier, cfg ReliabilityConfig, metrics *Metrics) *ReliabilityWrapper {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultReliabilityConfig().CallTimeout
	}

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxHalfOpen,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Ошибки вызывающей стороны не говорят о здоровье модельного сервера
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerError(err)
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerGauge(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	}

	return &ReliabilityWrapper{
		name:    name,
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
	}
}

func (w *ReliabilityWrapper) Classes() []string { return w.next.Classes() }

func (w *ReliabilityWrapper) State() gobreaker.State { return w.cb.State() }

func (w *ReliabilityWrapper) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit exceeded: %w", w.name, err)
	}

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		var (
			proba     []float64
			permanent error
		)

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.cfg.Attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Модельный сервер сам сказал, сколько ждать (Retry-After)
				var tErr *model.ThrottleError
				if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
			defer cancel()

			var callErr error
			proba, callErr = w.next.PredictProba(tCtx, x)
			if callErr != nil && isPermanent(callErr) {
				// повтор ничего не изменит: выходим из цикла ретраев
				permanent = callErr
				return nil
			}
			return callErr
		})
		if permanent != nil {
			return nil, permanent
		}
		return proba, retryErr
	})
	if err != nil {
		return nil, err
	}
	return cbResult.([]float64), nil
}

func isCallerError(err error) bool {
	return errors.Is(err, model.ErrFeatureCount)
}

// isPermanent: ошибки, которые повтор не исправит.
func isPermanent(err error) bool {
	return isCallerError(err) || errors.Is(err, model.ErrBadDistribution)
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
