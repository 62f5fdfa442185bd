package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xela07ax/fraudfusion/internal/infra"
)

var ErrPublishLocked = errors.New("artifacts: another publish is in progress")

const publishLockTTL = 30 * time.Second

// Снимаем блокировку, только если она всё еще наша: за время MSET TTL мог истечь,
// и ключ уже принадлежит другой выкладке.
const releaseLockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

// Store — часть redis.Client, нужная для публикации артефактов.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	MSet(ctx context.Context, values ...interface{}) *redis.StatusCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Item — пара артефактов одного агента для выкладки.
type Item struct {
	Agent     string
	Model     []byte
	Schema    []byte
	ModelKey  string // пусто: infra.ArtifactModelKey(Agent)
	SchemaKey string
}

// Publish проверяет артефакты и атомарно (MSET) кладет их в Redis.
// notify: разослать шлюзам сигнал перечитать артефакты.
func Publish(ctx context.Context, rdb Store, items []Item, notify bool) error {
	if len(items) == 0 {
		return errors.New("artifacts: nothing to publish")
	}

	// 1. Битый артефакт в Redis положит все шлюзы на следующем старте, поэтому проверяем заранее
	values := make([]interface{}, 0, len(items)*4)
	for _, it := range items {
		if _, _, err := Check(it.Model, it.Schema); err != nil {
			return fmt.Errorf("artifacts: agent %s: %w", it.Agent, err)
		}
		modelKey, schemaKey := it.ModelKey, it.SchemaKey
		if modelKey == "" {
			modelKey = infra.ArtifactModelKey(it.Agent)
		}
		if schemaKey == "" {
			schemaKey = infra.ArtifactSchemaKey(it.Agent)
		}
		values = append(values, modelKey, it.Model, schemaKey, it.Schema)
	}

	// 2. Распределенная блокировка (SetNX), чтобы две выкладки не перемешались
	token := uuid.NewString()
	ok, err := rdb.SetNX(ctx, infra.RedisKeyLockPublish, token, publishLockTTL).Result()
	if err != nil {
		return fmt.Errorf("artifacts: acquire lock: %w", err)
	}
	if !ok {
		return ErrPublishLocked
	}
	defer rdb.Eval(context.WithoutCancel(ctx), releaseLockScript, []string{infra.RedisKeyLockPublish}, token)

	// 3. Модель и схема меняются одной командой: шлюз не увидит новую модель со старой схемой
	if err := rdb.MSet(ctx, values...).Err(); err != nil {
		return fmt.Errorf("artifacts: mset: %w", err)
	}

	if notify {
		if err := rdb.Publish(ctx, infra.RedisChanArtifactReload, "reload").Err(); err != nil {
			return fmt.Errorf("artifacts: notify: %w", err)
		}
	}
	return nil
}
