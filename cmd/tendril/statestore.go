package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/seed"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var statestoreCmd = &cobra.Command{
	Use:   "statestore",
	Short: "Run a development state store",
	Long: `Starts a versioned key-value store speaking the state store protocol, backed by
memory or Redis. Functions reach it through the X-State-Store-URL header or
"tendril serve --state-store-url".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg).With("component", "statestore")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore(ctx, cfg.StateStore)
		if err != nil {
			return err
		}
		defer closeStore()

		if cfg.StateStore.Seed != "" {
			n, err := seed.LoadFile(ctx, store, cfg.StateStore.Seed)
			if err != nil {
				return err
			}
			logger.Info("seeded state store", "file", cfg.StateStore.Seed, "entries", n)
		}

		if cfg.StateStore.Token == "" {
			logger.Warn("state store is running without a token")
		}

		handler := httpAdapter.NewHandler(store,
			httpAdapter.WithToken(cfg.StateStore.Token),
			httpAdapter.WithServerLogger(logger),
		)
		return serveStore(ctx, logger, cfg.StateStore.Addr, handler)
	},
}

// openStore builds the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.StateStoreConfig) (ports.VersionedStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewStore(), func() {}, nil
	case "redis":
		store, err := redisAdapter.NewFromURL(cfg.RedisURL, redisAdapter.WithTTL(cfg.TTL))
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown state store backend %q", cfg.Backend)
	}
}

func serveStore(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("state store listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		logger.Info("state store stopped")
		return nil
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(statestoreCmd)
	statestoreCmd.Flags().String("addr", ":8090", "Address to listen on")
	statestoreCmd.Flags().String("backend", "memory", "Storage backend (memory, redis)")
	statestoreCmd.Flags().String("redis-url", "redis://localhost:6379/0", "Redis URL for the redis backend")
	statestoreCmd.Flags().String("token", "", "Token required in X-State-Token")
	statestoreCmd.Flags().String("seed", "", "YAML file with initial entries")
	statestoreCmd.Flags().Duration("ttl", 0, "Expire entries this long after their last write (redis)")

	_ = vcfg.BindPFlag("statestore.addr", statestoreCmd.Flags().Lookup("addr"))
	_ = vcfg.BindPFlag("statestore.backend", statestoreCmd.Flags().Lookup("backend"))
	_ = vcfg.BindPFlag("statestore.redis_url", statestoreCmd.Flags().Lookup("redis-url"))
	_ = vcfg.BindPFlag("statestore.token", statestoreCmd.Flags().Lookup("token"))
	_ = vcfg.BindPFlag("statestore.seed", statestoreCmd.Flags().Lookup("seed"))
	_ = vcfg.BindPFlag("statestore.ttl", statestoreCmd.Flags().Lookup("ttl"))
}
