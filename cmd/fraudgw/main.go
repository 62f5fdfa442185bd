package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/app"
	"github.com/xela07ax/fraudfusion/internal/artifacts"
	"github.com/xela07ax/fraudfusion/internal/audit"
	"github.com/xela07ax/fraudfusion/internal/engine"
	"github.com/xela07ax/fraudfusion/internal/infra"
	"github.com/xela07ax/fraudfusion/internal/repository/postgres"
	"github.com/xela07ax/fraudfusion/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml or ./configs/config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fraudgw: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Конфиг и логгер
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	// При SIGINT/SIGTERM cancel() остановит подписчиков
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Инфраструктура: Redis, Postgres, Kafka
	rdb := app.NewRedis(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	var (
		sinks audit.MultiSink
		repo  *postgres.AssessmentRepo
		kafka *audit.KafkaSink
	)
	if cfg.Database.URL != "" {
		repo, err = postgres.NewAssessmentRepo(cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return err
		}
		defer repo.Close()
		if cfg.Database.Migrate {
			if err := repo.Migrate(appCtx); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}
		sinks = append(sinks, repo)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka = audit.NewKafkaSink(audit.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		sinks = append(sinks, kafka)
	}
	if rdb != nil {
		sinks = append(sinks, audit.NewRedisAlertSink(rdb, infra.RedisChanAlerts))
	}
	if len(sinks) == 0 {
		// Хранилищ нет, пишем журнал хотя бы в логах
		sinks = append(sinks, audit.NewLogSink(logger))
	}

	// 4. Журнал оценок
	var (
		trail   *audit.Trail
		auditor audit.Auditor
	)
	if cfg.Audit.Enabled {
		trail = audit.NewTrail(sinks, audit.Options{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
			FlushTimeout:  cfg.Audit.FlushTimeout,
			BufferGauge:   metrics.AuditBufferFill,
		}, logger)
		trail.Start()
		auditor = trail
	}

	// 5. Агенты и Scorer. Без обоих агентов не стартуем
	scoring, err := app.BuildScoring(appCtx, cfg, rdb, metrics, auditor, logger)
	if err != nil {
		if trail != nil {
			trail.Stop()
		}
		var sErr *artifacts.StartupError
		if errors.As(err, &sErr) {
			logger.Error("failed to load agents", zap.String("agent", sErr.Agent), zap.String("stage", sErr.Stage), zap.Error(sErr.Err))
		}
		return err
	}
	if cfg.Agents.Watch {
		go artifacts.Watch(appCtx, artifacts.RedisSubscriber(rdb), infra.RedisChanArtifactReload, scoring.Loader, scoring.Scorer, metrics, logger)
	}

	// 6. HTTP
	var stats server.StatsProvider
	if repo != nil {
		stats = repo
	}
	api := server.New(server.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		MinCoverage: cfg.Fusion.MinCoverage,
	}, scoring.Scorer, stats, logger)
	if repo != nil {
		api.AddCheck("postgres", repo.Ping)
	}
	if rdb != nil {
		api.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	api.SetReady(true)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus
	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}

	// 7. gRPC health. Порт занимаем до старта HTTP, чтобы не откатывать уже запущенное
	var (
		health  *server.Health
		grpcLis net.Listener
	)
	if cfg.GRPC.Addr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPC.Addr); err != nil {
			if trail != nil {
				trail.Stop()
			}
			return fmt.Errorf("grpc listen: %w", err)
		}
		health = server.NewHealth(logger)
	}

	errCh := make(chan error, 3)
	go func() {
		logger.Info("fraud gateway started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	if health != nil {
		health.SetServing(true)
		go func() {
			if err := health.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	// 8. Graceful Shutdown
	select {
	case <-appCtx.Done():
		logger.Info("fraud gateway stopping...")
	case err := <-errCh:
		logger.Error("server failed, stopping", zap.Error(err))
	}

	api.SetReady(false)
	if health != nil {
		health.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	if health != nil {
		health.Stop()
	}

	// Запросов больше нет: дописываем журнал
	if trail != nil {
		trail.Stop()
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Warn("kafka writer close failed", zap.Error(err))
		}
	}

	logger.Info("fraud gateway exited properly")
	return nil
}
