package artifacts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/engine"
	"github.com/xela07ax/fraudfusion/internal/fusion"
	"github.com/xela07ax/fraudfusion/internal/infra"
)

type fakeSubscription struct {
	ch     chan interface{}
	closed atomic.Bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{ch: make(chan interface{})}
}

func (s *fakeSubscription) ChannelWithSubscriptions(...redis.ChannelOption) <-chan interface{} {
	return s.ch
}

func (s *fakeSubscription) Close() error {
	s.closed.Store(true)
	return nil
}

// fakeSubscriber отдает подписки по очереди.
type fakeSubscriber struct {
	subs  chan *fakeSubscription
	calls atomic.Int32
}

func (f *fakeSubscriber) subscribe(ctx context.Context, channel string) Subscription {
	f.calls.Add(1)
	select {
	case s := <-f.subs:
		return s
	case <-ctx.Done():
		return newFakeSubscription()
	}
}

type countingLoader struct {
	mu     sync.Mutex
	bundle *engine.Bundle
	err    error
	calls  int
}

func (l *countingLoader) LoadBundle(context.Context) (*engine.Bundle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.bundle, l.err
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type watchEnv struct {
	scorer  *engine.Scorer
	initial *engine.Bundle
	next    *engine.Bundle
	loader  *countingLoader
	subs    *fakeSubscriber
	metrics *engine.Metrics
	cancel  context.CancelFunc
	done    chan struct{}
}

func startWatch(t *testing.T, loadErr error, subs ...*fakeSubscription) *watchEnv {
	t.Helper()
	load := func() *engine.Bundle {
		b, err := newLoader(NewFileSource(testdataAgents())).LoadBundle(context.Background())
		require.NoError(t, err)
		return b
	}
	env := &watchEnv{
		initial: load(),
		next:    load(),
		subs:    &fakeSubscriber{subs: make(chan *fakeSubscription, len(subs))},
		metrics: engine.NewMetrics(nil),
		done:    make(chan struct{}),
	}
	for _, s := range subs {
		env.subs.subs <- s
	}
	env.loader = &countingLoader{bundle: env.next, err: loadErr}

	var err error
	env.scorer, err = engine.NewScorer(env.initial, fusion.NewDefault(), engine.DefaultScorerConfig(), nil, nil, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	go func() {
		defer close(env.done)
		Watch(ctx, env.subs.subscribe, infra.RedisChanArtifactReload, env.loader, env.scorer, env.metrics, zap.NewNop())
	}()
	t.Cleanup(func() {
		cancel()
		<-env.done
	})
	return env
}

func subscribed() *redis.Subscription {
	return &redis.Subscription{Kind: "subscribe", Channel: infra.RedisChanArtifactReload, Count: 1}
}

func TestWatch_SignalSwapsBundle(t *testing.T) {
	sub := newFakeSubscription()
	env := startWatch(t, nil, sub)

	sub.ch <- subscribed()
	sub.ch <- &redis.Message{Channel: infra.RedisChanArtifactReload, Payload: "reload"}

	assert.Eventually(t, func() bool { return env.scorer.Bundle() == env.next }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.loader.Calls(), "first subscribe does not reload")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ArtifactReloads.WithLabelValues("ok")))
}

func TestWatch_FailedReloadKeepsBundle(t *testing.T) {
	sub := newFakeSubscription()
	env := startWatch(t, &StartupError{Agent: "behavior", Stage: "model", Err: errors.New("corrupt")}, sub)

	sub.ch <- subscribed()
	sub.ch <- &redis.Message{Channel: infra.RedisChanArtifactReload, Payload: "reload"}

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(env.metrics.ArtifactReloads.WithLabelValues("failed")) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Same(t, env.initial, env.scorer.Bundle())

	// После неудачи подписка жива: следующий сигнал снова обрабатывается
	sub.ch <- &redis.Message{Channel: infra.RedisChanArtifactReload, Payload: "reload"}
	assert.Eventually(t, func() bool { return env.loader.Calls() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, sub.closed.Load())
}

func TestWatch_ResubscribeResyncs(t *testing.T) {
	sub := newFakeSubscription()
	env := startWatch(t, nil, sub)

	sub.ch <- subscribed()
	sub.ch <- &redis.Subscription{Kind: "unsubscribe", Channel: infra.RedisChanArtifactReload}
	// go-redis переподключился и подписался заново
	sub.ch <- subscribed()

	assert.Eventually(t, func() bool { return env.scorer.Bundle() == env.next }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.loader.Calls())
	assert.Equal(t, int32(1), env.subs.calls.Load(), "same subscription is reused")
}

func TestWatch_ReopensClosedSubscription(t *testing.T) {
	first, second := newFakeSubscription(), newFakeSubscription()
	env := startWatch(t, nil, first, second)

	first.ch <- subscribed()
	close(first.ch)
	second.ch <- subscribed()

	assert.Eventually(t, func() bool { return env.scorer.Bundle() == env.next }, 3*time.Second, 10*time.Millisecond)
	assert.True(t, first.closed.Load())
	assert.Equal(t, int32(2), env.subs.calls.Load())
}

func TestWatch_StopsOnCancel(t *testing.T) {
	sub := newFakeSubscription()
	env := startWatch(t, nil, sub)
	sub.ch <- subscribed()

	env.cancel()
	select {
	case <-env.done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.True(t, sub.closed.Load())
	assert.Zero(t, env.loader.Calls())
}
