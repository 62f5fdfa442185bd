package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации шлюза и CLI.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	GRPC        GRPCConfig        `mapstructure:"grpc"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Agents      AgentsConfig      `mapstructure:"agents"`
	Fusion      FusionConfig      `mapstructure:"fusion"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"` // фронтенд-дашборд; "*" для любого origin
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCConfig — адрес gRPC health-сервиса. Пустой адрес выключает его.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig описывает подключение к PostgreSQL (журнал оценок). Пустой URL выключает базу.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
	Migrate  bool   `mapstructure:"migrate"` // применить встроенные миграции на старте
}

// RedisConfig описывает подключение к Redis (артефакты, алерты, hot reload).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig — поток оценок для аналитики. Пустой список брокеров выключает Kafka.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

const (
	SourceFile  = "file"
	SourceRedis = "redis"
)

// AgentsConfig описывает, откуда брать артефакты двух агентов.
type AgentsConfig struct {
	Source      string      `mapstructure:"source"` // file | redis
	Watch       bool        `mapstructure:"watch"`  // hot reload по сигналу из Redis
	Transaction AgentConfig `mapstructure:"transaction"`
	Behavior    AgentConfig `mapstructure:"behavior"`
}

// AgentConfig: пути используются для source=file, ключи для source=redis.
// Пустой ключ заменяется ключом по умолчанию из ArtifactModelKey/ArtifactSchemaKey.
type AgentConfig struct {
	ModelPath  string `mapstructure:"model_path"`
	SchemaPath string `mapstructure:"schema_path"`
	ModelKey   string `mapstructure:"model_key"`
	SchemaKey  string `mapstructure:"schema_key"`
}

type FusionConfig struct {
	Rule              string  `mapstructure:"rule"` // mean | weighted
	Threshold         float64 `mapstructure:"threshold"`
	WeightTransaction float64 `mapstructure:"weight_transaction"`
	WeightBehavior    float64 `mapstructure:"weight_behavior"`
	DefaultValue      float64 `mapstructure:"default_value"`
	MinCoverage       float64 `mapstructure:"min_coverage"`
	StrictFeatures    bool    `mapstructure:"strict_features"`
}

// ReliabilityConfig — настройки обвязки удаленных моделей (kind=remote).
type ReliabilityConfig struct {
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	Attempts        uint          `mapstructure:"attempts"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	MaxHalfOpen     uint32        `mapstructure:"cb_max_requests"`
	BreakerInterval time.Duration `mapstructure:"cb_interval"`
	BreakerTimeout  time.Duration `mapstructure:"cb_timeout"`
	BreakerFailures uint32        `mapstructure:"cb_failures"`
}

type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	FlushTimeout  time.Duration `mapstructure:"flush_timeout"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// Если path пустой, ищем config.yaml в . и ./configs.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")    // имя файла без расширения
		v.SetConfigType("yaml")      // формат
		v.AddConfigPath(".")         // ищем в корне
		v.AddConfigPath("./configs") // и в папке с конфигами
	}

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: FUSION_THRESHOLD=0.7 перекроет fusion.threshold
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("grpc.addr", ":50052")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.migrate", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "fraud.assessments")

	v.SetDefault("agents.source", SourceFile)
	v.SetDefault("agents.watch", false)
	v.SetDefault("agents.transaction.model_path", "models/agent1_model.json")
	v.SetDefault("agents.transaction.schema_path", "models/agent1_features.json")
	v.SetDefault("agents.transaction.model_key", "")
	v.SetDefault("agents.transaction.schema_key", "")
	v.SetDefault("agents.behavior.model_path", "models/agent2_model.json")
	v.SetDefault("agents.behavior.schema_path", "models/agent2_features.json")
	v.SetDefault("agents.behavior.model_key", "")
	v.SetDefault("agents.behavior.schema_key", "")

	v.SetDefault("fusion.rule", "mean")
	v.SetDefault("fusion.threshold", 0.5)
	v.SetDefault("fusion.weight_transaction", 0.5)
	v.SetDefault("fusion.weight_behavior", 0.5)
	v.SetDefault("fusion.default_value", 0.0)
	v.SetDefault("fusion.min_coverage", 0.5)
	v.SetDefault("fusion.strict_features", false)

	v.SetDefault("reliability.rate_per_second", 100.0)
	v.SetDefault("reliability.burst", 20)
	v.SetDefault("reliability.attempts", 3)
	v.SetDefault("reliability.call_timeout", 2*time.Second)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 5*time.Second)
	v.SetDefault("reliability.cb_timeout", 30*time.Second)
	v.SetDefault("reliability.cb_failures", 5)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", 10000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 500*time.Millisecond)
	v.SetDefault("audit.flush_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate ловит ошибки конфигурации до загрузки моделей.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}

	f := c.Fusion
	if f.Threshold < 0 || f.Threshold > 1 {
		errs = append(errs, fmt.Errorf("fusion.threshold: %v not in [0,1]", f.Threshold))
	}
	if f.MinCoverage < 0 || f.MinCoverage > 1 {
		errs = append(errs, fmt.Errorf("fusion.min_coverage: %v not in [0,1]", f.MinCoverage))
	}
	switch f.Rule {
	case "mean":
	case "weighted":
		if f.WeightTransaction < 0 || f.WeightBehavior < 0 || f.WeightTransaction+f.WeightBehavior <= 0 {
			errs = append(errs, fmt.Errorf("fusion weights must be non-negative with a positive sum"))
		}
	default:
		errs = append(errs, fmt.Errorf("fusion.rule: unknown rule %q", f.Rule))
	}

	switch c.Agents.Source {
	case SourceFile:
		for name, a := range map[string]AgentConfig{"transaction": c.Agents.Transaction, "behavior": c.Agents.Behavior} {
			if a.ModelPath == "" || a.SchemaPath == "" {
				errs = append(errs, fmt.Errorf("agents.%s: model_path and schema_path are required", name))
			}
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("agents.source=redis requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("agents.source: unknown source %q", c.Agents.Source))
	}
	if c.Agents.Watch && c.Redis.Addr == "" {
		errs = append(errs, errors.New("agents.watch requires redis.addr"))
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}
