// Package app собирает компоненты шлюза из конфигурации. Общий для fraudgw и fraudctl.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/artifacts"
	"github.com/xela07ax/fraudfusion/internal/audit"
	"github.com/xela07ax/fraudfusion/internal/domain"
	"github.com/xela07ax/fraudfusion/internal/engine"
	"github.com/xela07ax/fraudfusion/internal/fusion"
	"github.com/xela07ax/fraudfusion/internal/infra"
)

// NewRedis возвращает nil, если redis.addr не задан.
func NewRedis(cfg infra.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func agentConfigs(cfg infra.AgentsConfig) map[string]infra.AgentConfig {
	return map[string]infra.AgentConfig{
		domain.AgentTransaction: cfg.Transaction,
		domain.AgentBehavior:    cfg.Behavior,
	}
}

// NewSource выбирает источник артефактов по agents.source.
func NewSource(cfg infra.AgentsConfig, rdb *redis.Client) (artifacts.Source, error) {
	switch cfg.Source {
	case infra.SourceFile:
		return artifacts.NewFileSource(agentConfigs(cfg)), nil
	case infra.SourceRedis:
		if rdb == nil {
			return nil, fmt.Errorf("agents.source=%s requires a redis client", cfg.Source)
		}
		return artifacts.NewRedisSource(rdb, agentConfigs(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown artifact source %q", cfg.Source)
	}
}

func Reliability(cfg infra.ReliabilityConfig) engine.ReliabilityConfig {
	return engine.ReliabilityConfig{
		RatePerSecond:   cfg.RatePerSecond,
		Burst:           cfg.Burst,
		Attempts:        cfg.Attempts,
		CallTimeout:     cfg.CallTimeout,
		MaxHalfOpen:     cfg.MaxHalfOpen,
		BreakerInterval: cfg.BreakerInterval,
		BreakerTimeout:  cfg.BreakerTimeout,
		BreakerFailures: cfg.BreakerFailures,
	}
}

// NewFuser: правило слияния и порог из fusion.*.
func NewFuser(cfg infra.FusionConfig) (*fusion.Fuser, error) {
	var rule fusion.Rule = fusion.Mean{}
	if cfg.Rule == "weighted" {
		w, err := fusion.NewWeighted(cfg.WeightTransaction, cfg.WeightBehavior)
		if err != nil {
			return nil, err
		}
		rule = w
	}
	return fusion.New(rule, cfg.Threshold), nil
}

func ScorerConfig(cfg infra.FusionConfig) engine.ScorerConfig {
	return engine.ScorerConfig{
		DefaultValue:   cfg.DefaultValue,
		MinCoverage:    cfg.MinCoverage,
		StrictFeatures: cfg.StrictFeatures,
	}
}

// Scoring — загруженные агенты и Scorer поверх них.
type Scoring struct {
	Loader *artifacts.Loader
	Scorer *engine.Scorer
}

// BuildScoring грузит оба агента и собирает Scorer.
// Ошибка загрузки имеет тип *artifacts.StartupError: сервис без агентов не поднимается.
func BuildScoring(ctx context.Context, cfg *infra.Config, rdb *redis.Client, metrics *engine.Metrics, auditor audit.Auditor, logger *zap.Logger) (*Scoring, error) {
	if metrics == nil {
		metrics = engine.NewMetrics(nil)
	}
	src, err := NewSource(cfg.Agents, rdb)
	if err != nil {
		return nil, err
	}
	fuser, err := NewFuser(cfg.Fusion)
	if err != nil {
		return nil, err
	}

	loader := artifacts.NewLoader(src, Reliability(cfg.Reliability), metrics, logger)
	bundle, err := loader.LoadBundle(ctx)
	if err != nil {
		return nil, err
	}

	scorer, err := engine.NewScorer(bundle, fuser, ScorerConfig(cfg.Fusion), metrics, auditor, logger)
	if err != nil {
		return nil, err
	}
	return &Scoring{Loader: loader, Scorer: scorer}, nil
}
