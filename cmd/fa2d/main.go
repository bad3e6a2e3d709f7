// Command fa2d serves the FA2 token ledger over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jstz-labs/fa2-ledger/internal/app/httpapi"
	"github.com/jstz-labs/fa2-ledger/internal/app/ledger"
	"github.com/jstz-labs/fa2-ledger/internal/config"
	"github.com/jstz-labs/fa2-ledger/internal/kv"
	kvmemory "github.com/jstz-labs/fa2-ledger/internal/kv/memory"
	kvpostgres "github.com/jstz-labs/fa2-ledger/internal/kv/postgres"
	kvredis "github.com/jstz-labs/fa2-ledger/internal/kv/redis"
	kvsqlite "github.com/jstz-labs/fa2-ledger/internal/kv/sqlite"
	"github.com/jstz-labs/fa2-ledger/internal/metrics"
	"github.com/jstz-labs/fa2-ledger/internal/middleware"
	"github.com/jstz-labs/fa2-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("fa2d", os.Stderr, cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.WithError(err).Error("open store")
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore.Close()
	}
	log.Infof("using %s store backend", cfg.Store.Backend)

	m := metrics.New("fa2d")
	engine := ledger.NewEngine(store, log)

	var handler http.Handler = httpapi.NewHandler(engine, log, m)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		handler = limiter.Handler(handler)
		handler = middleware.CallerIdentity(handler)
	}
	handler = middleware.CORS(handler)

	root := http.NewServeMux()
	root.Handle("/metrics", m.Handler())
	root.Handle("/", handler)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: root,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

// openStore builds the configured kv backend. The returned closer is nil for
// backends with nothing to release.
func openStore(ctx context.Context, cfg config.StoreConfig) (kv.Store, io.Closer, error) {
	// Allow slow backends a bounded connection window.
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.Backend {
	case config.BackendMemory:
		return kvmemory.New(), nil, nil
	case config.BackendSQLite:
		store, err := kvsqlite.Open(connectCtx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.BackendPostgres:
		store, err := kvpostgres.Open(connectCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.BackendRedis:
		store, err := kvredis.Open(connectCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
