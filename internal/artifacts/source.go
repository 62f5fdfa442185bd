// Package artifacts загружает артефакты двух агентов (модель + схема признаков)
// из файлов или Redis и собирает из них engine.Bundle.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/fraudfusion/internal/infra"
)

// Source отдает сырые байты артефактов агента.
type Source interface {
	Model(ctx context.Context, agent string) ([]byte, error)
	Schema(ctx context.Context, agent string) ([]byte, error)
	Name() string
}

// FileSource читает артефакты с диска. Для каждого файла содержимое можно подложить
// через ENV AGENTS_<AGENT>_MODEL_DATA / AGENTS_<AGENT>_SCHEMA_DATA.
type FileSource struct {
	agents map[string]infra.AgentConfig
}

func NewFileSource(agents map[string]infra.AgentConfig) *FileSource {
	return &FileSource{agents: agents}
}

func (s *FileSource) Name() string { return infra.SourceFile }

func (s *FileSource) Model(_ context.Context, agent string) ([]byte, error) {
	cfg, ok := s.agents[agent]
	if !ok {
		return nil, fmt.Errorf("agent %s is not configured", agent)
	}
	return infra.LoadResource(cfg.ModelPath, envDataKey(agent, "model"))
}

func (s *FileSource) Schema(_ context.Context, agent string) ([]byte, error) {
	cfg, ok := s.agents[agent]
	if !ok {
		return nil, fmt.Errorf("agent %s is not configured", agent)
	}
	return infra.LoadResource(cfg.SchemaPath, envDataKey(agent, "schema"))
}

func envDataKey(agent, kind string) string {
	return strings.ToUpper(fmt.Sprintf("agents_%s_%s_data", agent, kind))
}

// Getter — часть redis.Client, нужная для чтения артефактов.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource читает артефакты из ключей fraudfusion:artifacts:<agent>:{model,schema}
// (или из ключей, явно заданных в конфиге).
type RedisSource struct {
	rdb    Getter
	agents map[string]infra.AgentConfig
}

func NewRedisSource(rdb Getter, agents map[string]infra.AgentConfig) *RedisSource {
	return &RedisSource{rdb: rdb, agents: agents}
}

func (s *RedisSource) Name() string { return infra.SourceRedis }

func (s *RedisSource) Model(ctx context.Context, agent string) ([]byte, error) {
	key := s.agents[agent].ModelKey
	if key == "" {
		key = infra.ArtifactModelKey(agent)
	}
	return s.get(ctx, key)
}

func (s *RedisSource) Schema(ctx context.Context, agent string) ([]byte, error) {
	key := s.agents[agent].SchemaKey
	if key == "" {
		key = infra.ArtifactSchemaKey(agent)
	}
	return s.get(ctx, key)
}

func (s *RedisSource) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis key %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}
