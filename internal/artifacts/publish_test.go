package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/fraudfusion/internal/infra"
)

// fakeStore держит одну блокировку и повторяет семантику скрипта снятия.
type fakeStore struct {
	lock      string // значение ключа блокировки, "" если свободна
	values    map[string]string
	published []string
	released  int

	onMSet func(s *fakeStore) // вмешательство "посреди" выкладки
}

func (s *fakeStore) locked() bool { return s.lock != "" }

func (s *fakeStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if key != infra.RedisKeyLockPublish || s.locked() {
		return redis.NewBoolResult(false, nil)
	}
	s.lock = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (s *fakeStore) MSet(_ context.Context, values ...interface{}) *redis.StatusCmd {
	if s.values == nil {
		s.values = map[string]string{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		s.values[values[i].(string)] = string(values[i+1].([]byte))
	}
	if s.onMSet != nil {
		s.onMSet(s)
	}
	return redis.NewStatusResult("OK", nil)
}

func (s *fakeStore) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if script != releaseLockScript || len(keys) != 1 || keys[0] != infra.RedisKeyLockPublish || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script call"))
	}
	if s.lock != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	s.lock = ""
	s.released++
	return redis.NewCmdResult(int64(1), nil)
}

func (s *fakeStore) Publish(_ context.Context, channel string, _ interface{}) *redis.IntCmd {
	s.published = append(s.published, channel)
	return redis.NewIntResult(1, nil)
}

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestPublish(t *testing.T) {
	store := &fakeStore{}
	items := []Item{{
		Agent:  "transaction",
		Model:  readTestdata(t, "transaction_model.json"),
		Schema: readTestdata(t, "transaction_features.json"),
	}}

	require.NoError(t, Publish(context.Background(), store, items, true))

	assert.Contains(t, store.values, infra.ArtifactModelKey("transaction"))
	assert.Equal(t, string(items[0].Schema), store.values[infra.ArtifactSchemaKey("transaction")])
	assert.Equal(t, []string{infra.RedisChanArtifactReload}, store.published)
	assert.False(t, store.locked(), "lock released")
	assert.Equal(t, 1, store.released)
}

func TestPublish_RejectsBrokenArtifactsBeforeWriting(t *testing.T) {
	store := &fakeStore{}
	items := []Item{{
		Agent:  "transaction",
		Model:  readTestdata(t, "transaction_model.json"),
		Schema: []byte(`["amount"]`), // модель ждет 2 признака
	}}

	err := Publish(context.Background(), store, items, true)
	require.Error(t, err)
	assert.Empty(t, store.values)
	assert.Empty(t, store.published)
	assert.False(t, store.locked())
}

func TestPublish_Locked(t *testing.T) {
	store := &fakeStore{lock: "other-publisher"}
	items := []Item{{
		Agent:  "behavior",
		Model:  readTestdata(t, "behavior_model.json"),
		Schema: readTestdata(t, "behavior_features.json"),
	}}

	err := Publish(context.Background(), store, items, false)
	assert.ErrorIs(t, err, ErrPublishLocked)
	assert.Empty(t, store.values)
}

func TestPublish_CustomKeysWithoutNotify(t *testing.T) {
	store := &fakeStore{}
	items := []Item{{
		Agent:     "behavior",
		Model:     readTestdata(t, "behavior_model.json"),
		Schema:    readTestdata(t, "behavior_features.json"),
		ModelKey:  "canary:model",
		SchemaKey: "canary:schema",
	}}

	require.NoError(t, Publish(context.Background(), store, items, false))
	assert.Contains(t, store.values, "canary:model")
	assert.Contains(t, store.values, "canary:schema")
	assert.Empty(t, store.published)
}

func TestPublish_Nothing(t *testing.T) {
	assert.Error(t, Publish(context.Background(), &fakeStore{}, nil, false))
}

func TestPublish_KeepsLockTakenOverAfterExpiry(t *testing.T) {
	store := &fakeStore{
		// TTL истек во время MSET, блокировку успел взять другой процесс
		onMSet: func(s *fakeStore) { s.lock = "other-publisher" },
	}
	items := []Item{{
		Agent:  "behavior",
		Model:  readTestdata(t, "behavior_model.json"),
		Schema: readTestdata(t, "behavior_features.json"),
	}}

	require.NoError(t, Publish(context.Background(), store, items, false))
	assert.Equal(t, "other-publisher", store.lock, "foreign lock must survive")
	assert.Zero(t, store.released)
}

func TestPublish_LockTokenIsUnique(t *testing.T) {
	var tokens []string
	for range 2 {
		store := &fakeStore{onMSet: func(s *fakeStore) { tokens = append(tokens, s.lock) }}
		items := []Item{{
			Agent:  "behavior",
			Model:  readTestdata(t, "behavior_model.json"),
			Schema: readTestdata(t, "behavior_features.json"),
		}}
		require.NoError(t, Publish(context.Background(), store, items, false))
	}
	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0], tokens[1])
}
