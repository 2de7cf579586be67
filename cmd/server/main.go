package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/ticket-booking/internal/adapter/handler"
	"github.com/rl1809/ticket-booking/internal/adapter/messaging"
	"github.com/rl1809/ticket-booking/internal/adapter/payment"
	"github.com/rl1809/ticket-booking/internal/adapter/storage"
	"github.com/rl1809/ticket-booking/internal/config"
	"github.com/rl1809/ticket-booking/internal/core/service"
	"github.com/rl1809/ticket-booking/internal/observability"
	"github.com/rl1809/ticket-booking/internal/port"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("failed to load config")
	}
	logger := observability.NewLogger(config.ServiceName, cfg.Log.Level, cfg.Log.Pretty)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.JaegerEndpoint != "" {
		tp, err := observability.InitTracerProvider(config.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("tracer shutdown failed")
			}
		}()
		logger.Info().Str("endpoint", cfg.Tracing.JaegerEndpoint).Msg("tracing enabled")
	}

	// Store and ledger reader
	var (
		store  port.DatabaseRepository
		reader port.OrderReader
	)
	switch cfg.Storage {
	case config.StorageMemory:
		mem := storage.NewMemoryAdapter()
		store, reader = mem, mem
		logger.Warn().Msg("using in-memory store, bookings are not durable")
	default:
		db, err := openMySQL(ctx, cfg.MySQL)
		if err != nil {
			return err
		}
		defer db.Close()

		mysqlAdapter := storage.NewMySQLAdapter(db, cfg.MySQL.LockWaitTimeout)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			return err
		}
		store = mysqlAdapter
		logger.Info().Msg("connected to mysql")

		readerDSN := cfg.MySQL.ReplicaDSN
		if readerDSN == "" {
			readerDSN = cfg.MySQL.DSN
		}
		gdb, err := storage.OpenGorm(readerDSN)
		if err != nil {
			return err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			defer sqlDB.Close()
		}
		reader = storage.NewGormOrderReader(gdb)
	}

	seed, err := cfg.SeedItemClasses()
	if err != nil {
		return err
	}
	if len(seed) > 0 {
		if err := store.SeedItemClasses(ctx, seed); err != nil {
			return err
		}
		logger.Info().Int("tiers", len(seed)).Msg("seeded item classes")
	}

	metrics := service.NewMetrics(prometheus.DefaultRegisterer)
	opts := []service.Option{
		service.WithMetrics(metrics),
		service.WithTransactionTimeout(cfg.Booking.TransactionTimeout),
	}

	var cache port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		cache = storage.NewRedisAdapter(rdb, cfg.Booking.IdempotencyTTL, cfg.Booking.CatalogTTL)
		opts = append(opts, service.WithCache(cache))
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		writer := messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer closeWriter(writer, logger)
		opts = append(opts, service.WithPublisher(messaging.NewKafkaPublisher(writer)))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("order events enabled")
	}

	gate := payment.NewSimulatedGate(cfg.Payment.ApprovalRate, cfg.Payment.Latency)
	bookingService := service.NewBookingService(store, reader, gate, logger, opts...)
	catalogService := service.NewCatalogService(store, cache, logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.GRPCAddr != "" {
		grpcServer := grpc.NewServer()
		handler.RegisterBookingServiceServer(grpcServer, handler.NewGRPCHandler(bookingService, catalogService))

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Server.GRPCAddr).Msg("gRPC server listening")
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			logger.Info().Msg("gRPC server stopped")
			return nil
		})
	}

	if cfg.Server.HTTPAddr != "" {
		mux := http.NewServeMux()
		handler.NewHTTPHandler(bookingService, catalogService, logger).RegisterRoutes(mux)
		httpServer := &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("HTTP server listening")
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			err := httpServer.Shutdown(shutdownCtx)
			logger.Info().Msg("HTTP server stopped")
			return err
		})
	}

	return g.Wait()
}

func openMySQL(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func closeWriter(w *kafka.Writer, logger zerolog.Logger) {
	if err := w.Close(); err != nil {
		logger.Warn().Err(err).Msg("kafka writer close failed")
	}
}
