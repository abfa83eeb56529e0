package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/internal/demo"
	"github.com/aretw0/tendril/internal/logging"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/dispatch"
	"github.com/aretw0/tendril/pkg/logship"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/state"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a demo function",
	Long: `Starts a function server exposing one of the built-in demo functions on "/",
a readiness check on "/_/ready" and metrics on "/metrics".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("function")
		handler, ok := demo.Functions[name]
		if !ok {
			return fmt.Errorf("unknown function %q (available: %s)", name, strings.Join(demo.Names(), ", "))
		}

		logger := newLogger(cfg).With("function", name)
		storeURL, _ := cmd.Flags().GetString("state-store-url")

		opts, err := functionOptions(cfg, logger, storeURL)
		if err != nil {
			return err
		}
		fn, err := tendril.New(handler, opts...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return fn.Serve(ctx)
	},
}

// functionOptions maps the configuration onto the function server.
// A non-empty storeURL pins every invocation to that state store instead of
// the one named by the engine.
func functionOptions(cfg *config.Config, logger *slog.Logger, storeURL string) ([]tendril.Option, error) {
	clientOpts := []httpAdapter.ClientOption{
		httpAdapter.WithTimeout(cfg.State.Timeout),
		httpAdapter.WithClientLogger(logger),
	}
	if cfg.State.InsecureSkipVerify {
		clientOpts = append(clientOpts, httpAdapter.WithInsecureSkipVerify())
	}

	stores := dispatch.RemoteStores(clientOpts...)
	if storeURL != "" {
		stores = dispatch.FixedStore(httpAdapter.NewClient(storeURL, cfg.StateStore.Token, clientOpts...))
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogLevel(logging.ParseLevel(cfg.Log.Level)),
		dispatch.WithShipperOptions(
			logship.WithCapacity(cfg.Log.BufferCapacity),
			logship.WithFlushInterval(cfg.Log.FlushInterval),
			logship.WithUploadTimeout(cfg.Log.UploadTimeout),
			logship.WithRedactedKeys(cfg.Log.RedactKeys...),
		),
		dispatch.WithStores(stores),
		dispatch.WithStateOptions(state.WithMaxAttempts(cfg.State.MaxAttempts)),
	}

	enc, ok, err := cfg.State.Encryption()
	if err != nil {
		return nil, err
	}
	if ok {
		encrypt, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithStoreMiddleware(encrypt))
	}

	opts := []tendril.Option{
		tendril.WithAddr(cfg.Addr),
		tendril.WithLogger(logger),
		tendril.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		tendril.WithShutdownDelay(cfg.ShutdownDelay),
		tendril.WithDispatchOptions(dispatchOpts...),
	}
	if !cfg.Metrics.Enabled {
		opts = append(opts, tendril.WithoutMetrics())
	}
	return opts, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("function", "f", "echo", "Demo function to serve ("+strings.Join(demo.Names(), ", ")+")")
	serveCmd.Flags().StringP("addr", "a", ":8082", "Address to listen on")
	serveCmd.Flags().String("state-store-url", "", "Use this state store for every invocation")

	_ = vcfg.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}
