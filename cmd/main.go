package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/auth"
	"github.com/fjod/go_cart/cart-engine/internal/config"
	h "github.com/fjod/go_cart/cart-engine/internal/http"
	"github.com/fjod/go_cart/cart-engine/internal/logger"
	"github.com/fjod/go_cart/cart-engine/internal/persistence"
	"github.com/fjod/go_cart/cart-engine/internal/poller"
	s "github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open cart store", zap.String("store", cfg.CartStore), zap.Error(err))
	}
	log.Info("cart store ready", zap.String("store", cfg.CartStore))

	carts := s.NewCartService(persistence.NewPersister(store, log), log)
	go carts.RunEviction(ctx, cfg.EvictInterval, cfg.IdleTimeout)

	// HTTP API
	cartHandler := h.NewCartHandler(carts, cfg.RequestTimeout, log)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h.NewRouter(cartHandler, auth.NewAuthenticator(cfg.JWTSecret), log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info("cart engine listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// gRPC health
	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", cfg.GRPCHealthPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go func() {
		log.Info("health server listening", zap.String("port", cfg.GRPCHealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("failed to serve health", zap.Error(err))
		}
	}()

	// Checkout events
	var p *poller.Poller
	if len(cfg.KafkaBrokers) > 0 {
		p = poller.NewPoller(carts, log, cfg.KafkaBrokers...)
		go p.Run(ctx)
		log.Info("checkout poller started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart engine")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	cancel()

	if p != nil {
		if err := p.Close(); err != nil {
			log.Warn("poller close failed", zap.Error(err))
		}
	}
	if err := carts.Close(shutdownCtx); err != nil {
		log.Warn("some carts were not flushed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Warn("store close failed", zap.Error(err))
	}
	log.Info("cart engine stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (persistence.Store, error) {
	switch cfg.CartStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return persistence.NewBreakerStore(persistence.NewRedisStore(client, cfg.RedisTTL), "redis", log), nil

	case config.StoreMongo:
		db, err := persistence.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		store := persistence.NewMongoStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return persistence.NewBreakerStore(store, "mongo", log), nil

	default:
		return persistence.NewBoltStore(cfg.BoltPath)
	}
}
