package audit

/*
Trail — журнал оценок мошенничества (Assessment Trail).

- Non-blocking: /predict только кладет запись в канал, запись в хранилища
  идет в отдельном воркере и не влияет на время ответа.
- Batching: записи копятся и уходят пачкой по таймеру или при достижении лимита.
- Load Shedding: при переполнении буфера запись отбрасывается с логом, запрос не ждет.
- Drain: Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Sink определяет, куда физически уходят записи
type Sink interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, records []Record) error
}

// Auditor: то, что нужно горячему пути.
type Auditor interface {
	Log(rec Record)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	FlushTimeout  time.Duration
	BufferGauge   prometheus.Gauge // опционально: заполненность буфера
}

func (o *Options) applyDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = 5 * time.Second
	}
}

type Trail struct {
	ch     chan Record
	sink   Sink
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex // защищает closed и закрытие ch от гонки с Log
	closed bool
}

func NewTrail(sink Sink, opts Options, logger *zap.Logger) *Trail {
	opts.applyDefaults()
	return &Trail{
		ch:     make(chan Record, opts.BufferSize),
		sink:   sink,
		opts:   opts,
		logger: logger.With(zap.String("mod", "trail")),
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop запирает вход и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.ch)
	t.mu.Unlock()

	t.logger.Info("stopping trail: flushing buffer...")
	t.wg.Wait()
	t.logger.Info("trail stopped gracefully")
}

func (t *Trail) Log(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.logger.Warn("assessment record dropped: trail is stopping", zap.String("id", rec.ID))
		return
	}

	select {
	case t.ch <- rec:
		if t.opts.BufferGauge != nil {
			t.opts.BufferGauge.Set(float64(len(t.ch)))
		}
	default:
		// Backpressure: не блокируем ответ клиенту
		t.logger.Error("trail_buffer_overflow",
			zap.String("id", rec.ID),
			zap.String("trace_id", rec.TraceID),
			zap.Bool("fraudulent", rec.Fraudulent),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Record, 0, t.opts.BatchSize)
	ticker := time.NewTicker(t.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту уже завершен
		ctx, cancel := context.WithTimeout(context.Background(), t.opts.FlushTimeout)
		if err := t.sink.WriteBatch(ctx, batch); err != nil {
			t.logger.Error("trail flush failed", zap.Int("records", len(batch)), zap.Error(err))
		}
		cancel()
		batch = batch[:0]
		if t.opts.BufferGauge != nil {
			t.opts.BufferGauge.Set(float64(len(t.ch)))
		}
	}

	for {
		select {
		case rec, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): всё, что было в очереди, уже вычитано
				flush()
				t.logger.Info("trail worker finished")
				return
			}
			batch = append(batch, rec)
			if len(batch) >= t.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
