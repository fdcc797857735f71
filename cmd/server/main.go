package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/stockledger/internal/adapter/handler"
	"github.com/rl1809/stockledger/internal/adapter/messaging"
	"github.com/rl1809/stockledger/internal/adapter/storage"
	"github.com/rl1809/stockledger/internal/config"
	"github.com/rl1809/stockledger/internal/core/service"
	"github.com/rl1809/stockledger/internal/platform/observability"
	"github.com/rl1809/stockledger/internal/port"
)

type store interface {
	port.DatabaseRepository
	Migrate(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(config.ServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		URLPath:        cfg.OtelURLPath,
		AuthHeader:     cfg.OtelAuthHeader,
		Insecure:       cfg.OtelInsecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	// Initialize database
	db, st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("connected to database", zap.String("driver", cfg.StoreDriver))

	if cfg.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Initialize Redis
	var rdb *redis.Client
	movementOpts := []service.MovementOption{
		service.WithMovementLogger(logger.Named("movement")),
		service.WithTracer(otel.Tracer("github.com/rl1809/stockledger/internal/core/service")),
	}
	if cfg.RedisAddr != "" {
		rdb, err = storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			db.Close()
			return err
		}
		movementOpts = append(movementOpts, service.WithIdempotency(storage.NewRedisAdapter(rdb)))
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, request ids are not deduplicated")
	}
	if cfg.EventsEnabled() {
		movementOpts = append(movementOpts, service.WithEventQueue(cfg.EventQueueSize))
	}

	// Initialize services
	catalog, err := service.NewCatalogService(st,
		service.WithCatalogLogger(logger.Named("catalog")),
		service.WithCodeCacheSize(cfg.CodeCacheSize),
	)
	if err != nil {
		db.Close()
		return err
	}
	movements := service.NewMovementService(catalog, st, movementOpts...)
	reports := service.NewReportService(catalog, st, st,
		service.WithReportLogger(logger.Named("report")),
		service.WithLocation(cfg.Location),
	)

	// Start event dispatcher
	var publisher port.EventPublisher
	var dispatcher *messaging.Dispatcher
	if cfg.EventsEnabled() {
		publisher = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		dispatcher = messaging.NewDispatcher(publisher, logger.Named("dispatcher"), cfg.EventWorkers)
		dispatcher.Start(movements.Events())
		logger.Info("publishing movement events",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
			zap.Int("workers", cfg.EventWorkers),
		)
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterLedgerServer(grpcServer, handler.NewGRPCHandler(catalog, movements, reports, logger.Named("grpc")))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		db.Close()
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(catalog, movements, reports, st, logger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close the event queue and wait for pending publishes
	movements.Close()
	if dispatcher != nil {
		dispatcher.Wait()
		if err := publisher.Close(); err != nil {
			logger.Warn("close kafka writer", zap.Error(err))
		}
		logger.Info("event dispatcher stopped")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flush traces", zap.Error(err))
	}

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	logger.Info("connections closed")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, store, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, cfg.DBMaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		return db, storage.NewMySQLAdapter(db), nil
	default:
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath, cfg.DBMaxOpenConns)
		if err != nil {
			return nil, nil, err
		}
		return db, storage.NewSQLiteAdapter(db), nil
	}
}
