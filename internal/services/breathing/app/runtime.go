package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/platform/identity"
	"github.com/stillpond/breathe/internal/services/breathing/domain"
	"github.com/stillpond/breathe/internal/services/breathing/storage"
	boltstore "github.com/stillpond/breathe/internal/services/breathing/storage/bolt"
	sqlitestore "github.com/stillpond/breathe/internal/services/breathing/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls breathing service startup and dependencies.
type RuntimeConfig struct {
	Port       int
	HealthPort int
	Driver     string
	DBPath     string
	Strategy   string

	// Routes registers HTTP handlers for the composed service. Injected by
	// the command layer so the runtime stays transport-agnostic.
	Routes func(mux *http.ServeMux, service *Service, verifier identity.Verifier)
}

const (
	defaultPort       = 8094
	defaultHealthPort = 8095
	defaultDB         = "data/breathing.db"

	// DriverSQLite is the durable multi-user store.
	DriverSQLite = "sqlite"
	// DriverBolt is the single-file local store.
	DriverBolt = "bolt"

	shutdownTimeout = 5 * time.Second
)

// Run starts the breathing service: store, HTTP API, and gRPC health server.
// It blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Routes == nil {
		return fmt.Errorf("route registration is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDB
	}
	if strings.TrimSpace(cfg.Driver) == "" {
		cfg.Driver = DriverSQLite
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, strategy, err := openStore(cfg.Driver, cfg.DBPath, cfg.Strategy)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close breathing store: %v", closeErr)
		}
	}()

	verifier, err := identity.LoadVerifierFromEnv(nil)
	if err != nil {
		return fmt.Errorf("load identity verifier: %w", err)
	}
	if !verifier.Configured() {
		log.Printf("identity verifier not configured, running in local single-user mode")
	}

	service := New(store, domain.DefaultParameters(), strategy)
	mux := http.NewServeMux()
	cfg.Routes(mux, service, verifier)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	defer healthListener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("breathing.api", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 2)
	go func() {
		serveErr <- grpcServer.Serve(healthListener)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	log.Printf("breathing api listening on :%d (driver=%s strategy=%s), health on %v", cfg.Port, cfg.Driver, strategy, healthListener.Addr())

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			return fmt.Errorf("serve breathing api: %w", err)
		}
	}

	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown breathing api: %w", err)
	}
	return nil
}

// openStore selects the storage driver and the strategy default that pairs
// with it: trend for the durable store, immediate for the local one.
func openStore(driver, path, strategyName string) (storage.Store, Strategy, error) {
	switch driver {
	case DriverSQLite:
		store, err := sqlitestore.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite store: %w", err)
		}
		return store, resolveStrategy(strategyName, StrategyTrend), nil
	case DriverBolt:
		store, err := boltstore.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("open bolt store: %w", err)
		}
		return store, resolveStrategy(strategyName, StrategyImmediate), nil
	default:
		return nil, "", fmt.Errorf("unknown storage driver %q", driver)
	}
}

func resolveStrategy(raw string, fallback Strategy) Strategy {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	strategy, err := ParseStrategy(raw)
	if err != nil {
		log.Printf("unknown adaptation strategy %q, using %s", raw, fallback)
		return fallback
	}
	return strategy
}
