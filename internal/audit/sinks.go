package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MultiSink раздает пачку всем хранилищам. Ошибка одного не мешает остальным.
type MultiSink []Sink

func (m MultiSink) WriteBatch(ctx context.Context, records []Record) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteBatch(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink пишет записи в zap. Используется, когда внешние хранилища не настроены.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("assessments")}
}

func (s *LogSink) WriteBatch(_ context.Context, records []Record) error {
	for _, r := range records {
		s.logger.Info("assessment",
			zap.String("id", r.ID),
			zap.String("trace_id", r.TraceID),
			zap.Float64("agent1_score", r.Agent1Score),
			zap.Float64("agent2_score", r.Agent2Score),
			zap.Float64("final_fraud_score", r.FinalScore),
			zap.Bool("fraudulent", r.Fraudulent),
			zap.Float64("duration_ms", r.DurationMs),
		)
	}
	return nil
}

// Publisher — часть redis.Client, нужная для алертов.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisAlertSink публикует в Pub/Sub только мошеннические решения.
type RedisAlertSink struct {
	rdb     Publisher
	channel string
}

func NewRedisAlertSink(rdb Publisher, channel string) *RedisAlertSink {
	return &RedisAlertSink{rdb: rdb, channel: channel}
}

func (s *RedisAlertSink) WriteBatch(ctx context.Context, records []Record) error {
	for _, r := range records {
		if !r.Fraudulent {
			continue
		}
		// Payload признаков в алерт не кладем, подписчикам хватит оценок
		alert := r
		alert.Payload = nil
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("redis alert: marshal %s: %w", r.ID, err)
		}
		if err := s.rdb.Publish(ctx, s.channel, data).Err(); err != nil {
			return fmt.Errorf("redis alert: publish to %s: %w", s.channel, err)
		}
	}
	return nil
}

// MessageWriter — часть kafka-go Writer, нужная синку.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSink отправляет каждую оценку в топик, ключ равен ID оценки.
type KafkaSink struct {
	w MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (s *KafkaSink) WriteBatch(ctx context.Context, records []Record) error {
	msgs := make([]kafkago.Message, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("kafka: marshal %s: %w", r.ID, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(r.ID),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "trace_id", Value: []byte(r.TraceID)},
				{Key: "fraudulent", Value: []byte(strconv.FormatBool(r.Fraudulent))},
			},
		})
	}
	if err := s.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }
