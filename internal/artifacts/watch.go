package artifacts

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/engine"
)

type BundleLoader interface {
	LoadBundle(ctx context.Context) (*engine.Bundle, error)
}

type BundleSwapper interface {
	Swap(bundle *engine.Bundle) error
}

// Reload перечитывает оба агента и подменяет их. При ошибке остается текущий бандл.
func Reload(ctx context.Context, loader BundleLoader, target BundleSwapper, metrics *engine.Metrics, logger *zap.Logger) error {
	bundle, err := loader.LoadBundle(ctx)
	if err == nil {
		err = target.Swap(bundle)
	}
	if err != nil {
		metrics.ArtifactReloads.WithLabelValues("failed").Inc()
		logger.Error("artifact reload failed, keeping current agents", zap.Error(err))
		return err
	}
	metrics.ArtifactReloads.WithLabelValues("ok").Inc()
	logger.Info("artifacts reloaded")
	return nil
}

// Subscription — часть *redis.PubSub, которую читает Watch.
type Subscription interface {
	ChannelWithSubscriptions(opts ...redis.ChannelOption) <-chan interface{}
	Close() error
}

// Subscriber открывает подписку на канал.
type Subscriber func(ctx context.Context, channel string) Subscription

// RedisSubscriber подписывается через клиент go-redis.
func RedisSubscriber(rdb *redis.Client) Subscriber {
	return func(ctx context.Context, channel string) Subscription {
		return rdb.Subscribe(ctx, channel)
	}
}

// Watch — "живучая" подписка на сигнал перезагрузки артефактов.
// go-redis сам переподключает PubSub и после этого заново присылает подтверждение подписки.
// На каждое подтверждение, кроме самого первого, делаем Reload:
// сигнал мог прийти, пока соединения не было.
func Watch(ctx context.Context, subscribe Subscriber, channel string, loader BundleLoader, target BundleSwapper, metrics *engine.Metrics, logger *zap.Logger) {
	logger = logger.Named("watch")
	resync := false

	for {
		if ctx.Err() != nil {
			return
		}
		sub := subscribe(ctx, channel)
		ch := sub.ChannelWithSubscriptions()

	loop:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, подписываемся заново
				}
				switch m := msg.(type) {
				case *redis.Subscription:
					if m.Kind != "subscribe" {
						continue
					}
					// Первый коннект: бандл только что загружен на старте
					if resync {
						logger.Info("resubscribed, resyncing artifacts", zap.String("chan", m.Channel))
						_ = Reload(ctx, loader, target, metrics, logger)
					}
					resync = true
				case *redis.Message:
					logger.Info("reload signal received", zap.String("payload", m.Payload))
					_ = Reload(ctx, loader, target, metrics, logger)
				}
			}
		}

		sub.Close()
		logger.Warn("subscription closed, retrying", zap.String("chan", channel))
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
