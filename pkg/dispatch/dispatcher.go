package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/logship"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// StoreFactory returns the state store of an invocation.
type StoreFactory func(ic domain.InvocationContext) (ports.VersionedStore, error)

// FixedStore serves every invocation from the same store.
func FixedStore(store ports.VersionedStore) StoreFactory {
	return func(domain.InvocationContext) (ports.VersionedStore, error) {
		return store, nil
	}
}

// RemoteStores connects to the store the engine names in the invocation headers.
// All invocations share one connection pool.
func RemoteStores(opts ...httpAdapter.ClientOption) StoreFactory {
	pool := httpAdapter.NewPool(opts...)
	return func(ic domain.InvocationContext) (ports.VersionedStore, error) {
		if ic.StateStoreURL == "" {
			return nil, ErrNoStateStore
		}
		return pool.Client(ic.StateStoreURL, ic.StateStoreToken), nil
	}
}

// UploaderFactory returns the log destination of an invocation (nil discards).
type UploaderFactory func(ic domain.InvocationContext) ports.LogUploader

// Dispatcher turns one raw invocation into a response envelope.
// It is safe for concurrent use; invocations share nothing but the
// configured store factory and process logger.
type Dispatcher struct {
	logger    *slog.Logger
	level     slog.Level
	shipOpts  []logship.Option
	uploaders UploaderFactory
	stores    StoreFactory
	storeMW   []middleware.Middleware
	stateOpts []state.Option
	metrics   *observability.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the process logger. Delivery failures of the log shipper
// and invocation outcomes go there.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithLogLevel sets the minimum level of records shipped to the engine.
func WithLogLevel(level slog.Level) Option {
	return func(d *Dispatcher) {
		d.level = level
	}
}

// WithShipperOptions configures every per-invocation log shipper.
func WithShipperOptions(opts ...logship.Option) Option {
	return func(d *Dispatcher) {
		d.shipOpts = append(d.shipOpts, opts...)
	}
}

// WithUploaders replaces how log destinations are derived from invocations.
func WithUploaders(f UploaderFactory) Option {
	return func(d *Dispatcher) {
		d.uploaders = f
	}
}

// WithStores replaces how state stores are derived from invocations.
func WithStores(f StoreFactory) Option {
	return func(d *Dispatcher) {
		d.stores = f
	}
}

// WithStoreMiddleware wraps every store returned by the store factory,
// whichever factory is configured.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) {
		d.storeMW = append(d.storeMW, mws...)
	}
}

// WithStateOptions applies opts to every state client handed to handlers.
func WithStateOptions(opts ...state.Option) Option {
	return func(d *Dispatcher) {
		d.stateOpts = append(d.stateOpts, opts...)
	}
}

// WithMetrics records invocation outcomes and forwards the collectors to
// state clients and log shippers.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:    logging.NewNop(),
		level:     slog.LevelInfo,
		uploaders: logship.NewUploaders().For,
		stores:    RemoteStores(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.storeMW) > 0 {
		stores, mws := d.stores, d.storeMW
		d.stores = func(ic domain.InvocationContext) (ports.VersionedStore, error) {
			store, err := stores(ic)
			if err != nil {
				return nil, err
			}
			return middleware.Chain(store, mws...), nil
		}
	}
	return d
}

// Dispatch runs handler once for the raw request and returns the response
// body and status. It never panics and never returns a malformed body.
func (d *Dispatcher) Dispatch(ctx context.Context, handler Handler, body []byte, header http.Header) ([]byte, int) {
	payload, status, _ := d.dispatch(ctx, handler, body, header)
	return payload, status
}

func (d *Dispatcher) dispatch(ctx context.Context, handler Handler, body []byte, header http.Header) ([]byte, int, string) {
	start := time.Now()

	// 1. Invocation context
	ic := domain.InvocationFromHeaders(header)
	id := uuid.NewString()

	// 2. Per-invocation log sink, closed on every path
	shipOpts := append([]logship.Option{
		logship.WithErrorLogger(d.logger),
		logship.WithMetrics(d.metrics),
	}, d.shipOpts...)
	shipper := logship.New(d.uploaders(ic), shipOpts...)
	defer shipper.Close()

	processHandler := d.logger.Handler().WithAttrs([]slog.Attr{
		slog.String("activity_id", ic.ActivityID),
		slog.String("invocation_id", id),
	})
	inv := &Invocation{
		ID:        id,
		Context:   ic,
		Logger:    slog.New(logship.Tee(logship.NewHandler(shipper, d.level), processHandler)),
		stores:    d.stores,
		stateOpts: append([]state.Option{state.WithMetrics(d.metrics)}, d.stateOpts...),
	}

	// 3. Run
	result := d.invoke(ctx, handler, body, inv)

	// 4. Envelope
	payload, err := json.Marshal(result.Envelope())
	if err != nil {
		inv.Logger.Error("failed to encode response", "error", err)
		result = domain.Failedf("failed to encode response: %v", err)
		payload, _ = json.Marshal(result.Envelope())
	}

	elapsed := time.Since(start)
	d.metrics.ObserveInvocation(result.Kind.String(), elapsed)
	d.logger.Info("invocation finished",
		"activity_id", ic.ActivityID,
		"invocation_id", id,
		"outcome", result.Kind.String(),
		"duration", elapsed,
	)

	return payload, result.StatusCode(), id
}

func (d *Dispatcher) invoke(ctx context.Context, handler Handler, body []byte, inv *Invocation) (res domain.Result) {
	defer func() {
		if v := recover(); v != nil {
			stack := cleanStack(goerrors.CaptureStackTrace(0))
			inv.Logger.Error("panic in function", "panic", fmt.Sprint(v))
			res = domain.Failed(fmt.Sprintf("Panic in function: %v", v))
			res.Stack = stack.String()
		}
	}()

	obj, err := parseBody(body)
	if err != nil {
		inv.Logger.Error("invalid request body", "error", err)
		return domain.Failedf("invalid request body: %v", err)
	}
	inv.Request = domain.NewRequest(obj, inv.Context)

	if handler == nil {
		return domain.Failed("no handler registered")
	}
	return handler(ctx, inv)
}

func parseBody(body []byte) (domain.Object, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Object{}, nil
	}
	var obj domain.Object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = domain.Object{}
	}
	return obj, nil
}

// cleanStack drops the frames of the recovery machinery so the trace starts
// at the panicking call.
func cleanStack(st goerrors.StackTrace) goerrors.StackTrace {
	for i, f := range st {
		if f.Function == "runtime.gopanic" && i+1 < len(st) {
			return st[i+1:]
		}
	}
	return st
}
