package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]Record
	err     error
}

func (s *memorySink) WriteBatch(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Record, len(records))
	copy(cp, records)
	s.batches = append(s.batches, cp)
	return s.err
}

func (s *memorySink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func TestTrail_DrainsOnStop(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(sink, Options{FlushInterval: time.Hour}, zap.NewNop())
	trail.Start()

	for i := 0; i < 250; i++ {
		trail.Log(Record{ID: fmt.Sprintf("a-%d", i)})
	}
	trail.Stop()

	got := sink.all()
	require.Len(t, got, 250)
	assert.Equal(t, "a-0", got[0].ID)
	assert.Equal(t, "a-249", got[249].ID)
	assert.False(t, got[0].Timestamp.IsZero(), "timestamp is filled in")

	// пачки не больше BatchSize
	for _, b := range sink.batches {
		assert.LessOrEqual(t, len(b), 100)
	}
}

func TestTrail_FlushesOnTicker(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(sink, Options{FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	trail.Start()
	defer trail.Stop()

	trail.Log(Record{ID: "tick"})

	assert.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTrail_ShedsLoadWhenFull(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(sink, Options{BufferSize: 1}, zap.NewNop())

	// воркер еще не запущен, второй Log не помещается
	trail.Log(Record{ID: "kept"})
	trail.Log(Record{ID: "dropped"})

	trail.Start()
	trail.Stop()

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
}

func TestTrail_LogAfterStopIsDropped(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(sink, Options{}, zap.NewNop())
	trail.Start()
	trail.Stop()

	assert.NotPanics(t, func() { trail.Log(Record{ID: "late"}) })
	assert.NotPanics(t, trail.Stop)
	assert.Empty(t, sink.all())
}

func TestMultiSink_ContinuesOnError(t *testing.T) {
	failing := &memorySink{err: errors.New("db down")}
	ok := &memorySink{}

	err := MultiSink{failing, ok}.WriteBatch(context.Background(), []Record{{ID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Len(t, ok.all(), 1)
}

type fakePublisher struct {
	channel  string
	messages [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.messages = append(p.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestRedisAlertSink_PublishesOnlyFraud(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisAlertSink(pub, "fraudfusion:alerts")

	err := sink.WriteBatch(context.Background(), []Record{
		{ID: "ok", FinalScore: 0.1},
		{ID: "bad", FinalScore: 0.9, Fraudulent: true, Payload: map[string]float64{"amount": 500}},
	})
	require.NoError(t, err)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "fraudfusion:alerts", pub.channel)

	var alert Record
	require.NoError(t, json.Unmarshal(pub.messages[0], &alert))
	assert.Equal(t, "bad", alert.ID)
	assert.Nil(t, alert.Payload)
}

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_WriteBatch(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)

	err := sink.WriteBatch(context.Background(), []Record{
		{ID: "a1", TraceID: "t1", Fraudulent: true},
		{ID: "a2", TraceID: "t2"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	assert.Equal(t, []byte("a1"), w.msgs[0].Key)
	assert.Equal(t, "fraudulent", w.msgs[0].Headers[1].Key)
	assert.Equal(t, []byte("true"), w.msgs[0].Headers[1].Value)

	w.err = errors.New("broker unavailable")
	assert.Error(t, sink.WriteBatch(context.Background(), []Record{{ID: "a3"}}))
}
