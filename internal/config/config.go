package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

const ServiceName = "ticket-booking"

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage string        `yaml:"storage"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Tracing TracingConfig `yaml:"tracing"`
	Booking BookingConfig `yaml:"booking"`
	Payment PaymentConfig `yaml:"payment"`
	Log     LogConfig     `yaml:"log"`
	Seed    []SeedTier    `yaml:"seed"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	ReplicaDSN      string        `yaml:"replica_dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LockWaitTimeout time.Duration `yaml:"lock_wait_timeout"`
}

type RedisConfig struct {
	// Addr empty disables idempotency keys and the catalog cache.
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	// Brokers empty disables order events.
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

type BookingConfig struct {
	TransactionTimeout time.Duration `yaml:"transaction_timeout"`
	IdempotencyTTL     time.Duration `yaml:"idempotency_ttl"`
	CatalogTTL         time.Duration `yaml:"catalog_ttl"`
}

type PaymentConfig struct {
	ApprovalRate float64       `yaml:"approval_rate"`
	Latency      time.Duration `yaml:"latency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// SeedTier is an item class created at startup if it does not exist yet.
// Available defaults to Total when omitted.
type SeedTier struct {
	ID        string `yaml:"id"`
	UnitPrice string `yaml:"unit_price"`
	Available *int   `yaml:"available"`
	Total     int    `yaml:"total"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":50051",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageMySQL,
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/ticketing?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			LockWaitTimeout: 3 * time.Second,
		},
		Redis: RedisConfig{PoolSize: 100},
		Kafka: KafkaConfig{Topic: "orders"},
		Booking: BookingConfig{
			TransactionTimeout: 5 * time.Second,
			IdempotencyTTL:     24 * time.Hour,
			CatalogTTL:         2 * time.Second,
		},
		Payment: PaymentConfig{
			ApprovalRate: 1,
			Latency:      20 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path, if any, and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Storage = getEnv("STORAGE", c.Storage)
	c.MySQL.DSN = getEnv("MYSQL_DSN", c.MySQL.DSN)
	c.MySQL.ReplicaDSN = getEnv("MYSQL_REPLICA_DSN", c.MySQL.ReplicaDSN)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.Tracing.JaegerEndpoint)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if rate := os.Getenv("PAYMENT_APPROVAL_RATE"); rate != "" {
		v, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return fmt.Errorf("PAYMENT_APPROVAL_RATE: %w", err)
		}
		c.Payment.ApprovalRate = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server: at least one of http_addr and grpc_addr is required"))
	}
	switch c.Storage {
	case StorageMySQL:
		if c.MySQL.DSN == "" {
			errs = append(errs, errors.New("mysql: dsn is required"))
		}
		if c.MySQL.LockWaitTimeout < time.Second {
			errs = append(errs, errors.New("mysql: lock_wait_timeout must be at least 1s"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage))
	}
	if c.Booking.TransactionTimeout <= 0 {
		errs = append(errs, errors.New("booking: transaction_timeout must be positive"))
	}
	if c.Payment.ApprovalRate < 0 || c.Payment.ApprovalRate > 1 {
		errs = append(errs, fmt.Errorf("payment: approval_rate %v outside [0,1]", c.Payment.ApprovalRate))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka: topic is required when brokers are set"))
	}
	if _, err := c.SeedItemClasses(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SeedItemClasses converts the seed section into item classes.
func (c *Config) SeedItemClasses() ([]domain.ItemClass, error) {
	items := make([]domain.ItemClass, 0, len(c.Seed))
	for _, tier := range c.Seed {
		price, err := decimal.NewFromString(tier.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("seed %s: unit_price: %w", tier.ID, err)
		}
		available := tier.Total
		if tier.Available != nil {
			available = *tier.Available
		}
		item := domain.ItemClass{
			ID:        tier.ID,
			UnitPrice: price.Round(2),
			Available: available,
			Total:     tier.Total,
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("seed %s: %w", tier.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
