package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cache-telemetry-service/internal/backend"
	"cache-telemetry-service/internal/config"
	"cache-telemetry-service/internal/core/service"
	"cache-telemetry-service/internal/eventlog"
	rpc "cache-telemetry-service/internal/grpc"
	"cache-telemetry-service/internal/logging"
	"cache-telemetry-service/internal/observability"
	"cache-telemetry-service/internal/traceable"

	_ "net/http/pprof" // Register pprof handlers

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flag.StringVar(&cfg.HTTPAddr, "http_addr", cfg.HTTPAddr, "HTTP Server address")
	flag.StringVar(&cfg.GRPCAddr, "grpc_addr", cfg.GRPCAddr, "gRPC Server address, empty to disable")
	flag.StringVar(&cfg.ReplayFile, "replay", cfg.ReplayFile, "Print the report of an exported event log and exit")
	flag.IntVar(&cfg.EventLog.MaxEventsPerSource, "max_events", cfg.EventLog.MaxEventsPerSource, "Events retained per source, 0 for unbounded")
	flag.StringVar(&cfg.Logging.Level, "log_level", cfg.Logging.Level, "Log level")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := eventlog.New(eventlog.WithMaxEvents(cfg.EventLog.MaxEventsPerSource))
	svc := service.New(log, service.WithLogger(logger))

	if cfg.ReplayFile != "" {
		return replay(cfg.ReplayFile, log, svc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, name := range cfg.EventLog.Sources {
		if err := svc.Register(ctx, name); err != nil {
			return err
		}
	}

	caches, closeCaches, err := openCaches(ctx, cfg, log, logger)
	if err != nil {
		return err
	}
	defer closeCaches()

	registry := prometheus.NewRegistry()
	registry.MustRegister(observability.NewReportCollector(svc.Report))

	h := &handlers{svc: svc, log: log, caches: caches, logger: logger}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.routes(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcServer = grpc.NewServer()
		rpc.Register(grpcServer, rpc.New(svc))
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc server stopped", zap.Error(err))
			}
		}()
		logger.Info("grpc server listening", zap.String("addr", cfg.GRPCAddr))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openCaches builds the traced cache backends enabled in cfg.
func openCaches(ctx context.Context, cfg *config.Config, log *eventlog.Log, logger *zap.Logger) (map[string]*traceable.Cache, func(), error) {
	caches := make(map[string]*traceable.Cache)
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Local.Enabled {
		local, err := backend.NewLocal(cfg.Local.MaxItems, cfg.Local.MaxCost)
		if err != nil {
			return nil, nil, fmt.Errorf("open local cache: %w", err)
		}
		closers = append(closers, func() { _ = local.Close() })
		caches[cfg.Local.Name] = traceable.New(cfg.Local.Name, local, log, traceable.WithLogger(logger))
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("failed to connect to Redis, continuing without it", zap.Error(err))
			_ = client.Close()
		} else {
			closers = append(closers, func() { _ = client.Close() })
			remote := backend.NewRedis(client, backend.DefaultBreakerSettings(cfg.Redis.Name))
			caches[cfg.Redis.Name] = traceable.New(cfg.Redis.Name, remote, log, traceable.WithLogger(logger))
		}
	}

	for name := range caches {
		if err := log.Register(name); err != nil {
			closeAll()
			return nil, nil, err
		}
	}
	return caches, closeAll, nil
}

func replay(path string, log *eventlog.Log, svc *service.ServiceImpl) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	if err := log.Import(f); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	report, err := svc.Collect(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
