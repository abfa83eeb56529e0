package tendril

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/dispatch"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAddr is the listen address of a function.
	DefaultAddr = ":8082"
	// DefaultTimeout bounds reading a request and writing its response.
	DefaultTimeout = 10 * time.Second
)

// Function is the HTTP surface of one workflow function: it accepts
// invocations on "/", answers readiness checks and exposes metrics.
type Function struct {
	handler      dispatch.Handler
	dispatcher   *dispatch.Dispatcher
	dispatchOpts []dispatch.Option
	logger       *slog.Logger

	addr          string
	readTimeout   time.Duration
	writeTimeout  time.Duration
	shutdownDelay time.Duration

	registry *prometheus.Registry
	metrics  *observability.Metrics
	noMetric bool

	connections atomic.Int64
}

// Option defines a functional option for configuring the Function.
type Option func(*Function)

// WithAddr sets the listen address used by Serve.
func WithAddr(addr string) Option {
	return func(f *Function) {
		f.addr = addr
	}
}

// WithLogger sets the process logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Function) {
		f.logger = logger
	}
}

// WithTimeouts sets the read and write timeouts of the server.
// The write timeout also bounds graceful shutdown.
func WithTimeouts(read, write time.Duration) Option {
	return func(f *Function) {
		if read > 0 {
			f.readTimeout = read
		}
		if write > 0 {
			f.writeTimeout = write
		}
	}
}

// WithShutdownDelay keeps serving for d after Serve's context is cancelled,
// so the engine stops routing to the instance before connections are closed.
func WithShutdownDelay(d time.Duration) Option {
	return func(f *Function) {
		f.shutdownDelay = d
	}
}

// WithRegistry registers the runtime metrics with reg and serves reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(f *Function) {
		f.registry = reg
	}
}

// WithoutMetrics disables the metrics collectors and the /metrics route.
func WithoutMetrics() Option {
	return func(f *Function) {
		f.noMetric = true
	}
}

// WithDispatchOptions configures the dispatcher (state stores, log shipping...).
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(f *Function) {
		f.dispatchOpts = append(f.dispatchOpts, opts...)
	}
}

// New creates a Function serving handler.
func New(handler dispatch.Handler, opts ...Option) (*Function, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	f := &Function{
		handler:      handler,
		addr:         DefaultAddr,
		readTimeout:  DefaultTimeout,
		writeTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = logging.NewNop()
	}

	if !f.noMetric {
		if f.registry == nil {
			f.registry = prometheus.NewRegistry()
		}
		f.metrics = observability.NewMetrics("tendril")
		if err := f.metrics.Register(f.registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(f.logger),
		dispatch.WithMetrics(f.metrics),
	}
	f.dispatcher = dispatch.New(append(dispatchOpts, f.dispatchOpts...)...)

	return f, nil
}

// Dispatcher returns the dispatcher behind the invocation route.
func (f *Function) Dispatcher() *dispatch.Dispatcher {
	return f.dispatcher
}

// Connections returns the number of HTTP connections currently open.
func (f *Function) Connections() int64 {
	return f.connections.Load()
}

// Handler returns the router of the function.
func (f *Function) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/", f.dispatcher.HTTPHandler(f.handler).ServeHTTP)
	r.Get("/_/ready", f.ready)
	if f.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{}))
	}

	return r
}

type readyResponse struct {
	Status         string `json:"status"`
	NumConnections int64  `json:"num_connections"`
}

func (f *Function) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(readyResponse{
		Status:         "ready",
		NumConnections: f.Connections(),
	})
}

func (f *Function) trackConn(_ net.Conn, state http.ConnState) {
	var n int64
	switch state {
	case http.StateNew:
		n = f.connections.Add(1)
	case http.StateClosed, http.StateHijacked:
		n = f.connections.Add(-1)
	default:
		return
	}
	f.metrics.SetConnections(n)
}

// Serve listens on the configured address and serves until ctx is cancelled.
func (f *Function) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.addr, err)
	}
	return f.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (f *Function) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:        f.Handler(),
		ReadTimeout:    f.readTimeout,
		WriteTimeout:   f.writeTimeout,
		MaxHeaderBytes: 1 << 20,
		ConnState:      f.trackConn,
		ErrorLog:       slog.NewLogLogger(f.logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f.logger.Info("function listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		if f.shutdownDelay > 0 {
			f.logger.Info("shutdown requested, draining", "delay", f.shutdownDelay)
			time.Sleep(f.shutdownDelay)
		}

		// Give outstanding invocations the write timeout to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), f.writeTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", f.writeTimeout, err)
		}
		f.logger.Info("function stopped")
		return nil
	})

	return g.Wait()
}
