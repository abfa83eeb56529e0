// Package invoker drives a function from the engine side: it re-invokes the
// function with request.previous on retry-with-state and backs off on
// transient signals until the step reaches a terminal outcome.
//
// It owns no durable state and applies one fixed policy; it exists to
// exercise functions from tests and the command line.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/state"
	"github.com/go-resty/resty/v2"
)

const (
	// DefaultMaxContinuations bounds retry-with-state re-invocations.
	DefaultMaxContinuations = 100
	// DefaultMaxTransient bounds re-invocations after transient signals.
	DefaultMaxTransient = 5
)

var (
	// ErrTooManyContinuations is returned when the function keeps asking to be
	// invoked again past the configured limit.
	ErrTooManyContinuations = errors.New("too many continuations")
	// ErrTransientExhausted is returned when transient signals persist past the limit.
	ErrTransientExhausted = errors.New("transient failures exhausted")
)

// Outcome summarizes a driven step.
type Outcome struct {
	// Result is the last outcome returned by the function.
	Result        domain.Result
	Invocations   int
	Continuations int
	Transients    int
}

// Invoker posts invocations to one function endpoint.
type Invoker struct {
	rest             *resty.Client
	url              string
	logger           *slog.Logger
	maxContinuations int
	maxTransient     int
	backoff          state.RetryStrategy
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithMaxContinuations bounds retry-with-state re-invocations.
func WithMaxContinuations(n int) Option {
	return func(i *Invoker) {
		i.maxContinuations = n
	}
}

// WithMaxTransient bounds re-invocations after transient signals.
func WithMaxTransient(n int) Option {
	return func(i *Invoker) {
		i.maxTransient = n
	}
}

// WithBackoff sets the delay before re-invoking after a transient signal.
func WithBackoff(s state.RetryStrategy) Option {
	return func(i *Invoker) {
		i.backoff = s
	}
}

// WithTimeout bounds a single invocation.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		i.rest.SetTimeout(d)
	}
}

// WithLogger logs every invocation outcome.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		i.logger = logger
		i.rest.SetLogger(logging.Printf{Logger: logger})
	}
}

// New creates an Invoker for the function listening at url.
func New(url string, opts ...Option) *Invoker {
	i := &Invoker{
		rest: resty.New().
			SetTimeout(60*time.Second).
			SetHeader("Content-Type", "application/json").
			SetLogger(logging.Printf{Logger: logging.NewNop()}),
		url:              url,
		logger:           logging.NewNop(),
		maxContinuations: DefaultMaxContinuations,
		maxTransient:     DefaultMaxTransient,
		backoff: state.ExponentialBackoff{
			Base:   500 * time.Millisecond,
			Factor: 2,
			Max:    30 * time.Second,
			Jitter: 0.2,
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run invokes the function with request until it succeeds or fails.
// Retry-with-state payloads are fed back as request.previous. A Failed
// outcome is returned without error; errors report transport problems or
// exhausted limits, in which case the Outcome holds the last result seen.
func (i *Invoker) Run(ctx context.Context, request domain.Object, ic domain.InvocationContext) (Outcome, error) {
	var out Outcome
	body := request.Clone()
	if body == nil {
		body = domain.Object{}
	}
	delete(body, domain.KeyMetadata)

	for {
		res, err := i.Invoke(ctx, body, ic)
		if err != nil {
			return out, err
		}
		out.Invocations++
		out.Result = res

		i.logger.Info("invocation returned",
			"activity_id", ic.ActivityID,
			"invocation", out.Invocations,
			"outcome", res.Kind.String(),
			"message", res.Message,
		)

		switch res.Kind {
		case domain.KindRetryWithState:
			if out.Continuations >= i.maxContinuations {
				return out, fmt.Errorf("%w: %d", ErrTooManyContinuations, out.Continuations)
			}
			out.Continuations++
			body[domain.KeyPrevious] = map[string]any(res.State)

		case domain.KindTransient:
			if out.Transients >= i.maxTransient {
				return out, fmt.Errorf("%w after %d attempts: %s", ErrTransientExhausted, out.Transients+1, res.Message)
			}
			delay := i.backoff.SleepDuration(out.Transients, res.Err())
			out.Transients++

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, ctx.Err()
			case <-timer.C:
			}

		default:
			return out, nil
		}
	}
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	ErrorCode  int             `json:"errorCode"`
	Message    string          `json:"message"`
	StackTrace string          `json:"stackTrace"`
}

// Invoke sends a single invocation and decodes the response envelope.
func (i *Invoker) Invoke(ctx context.Context, body domain.Object, ic domain.InvocationContext) (domain.Result, error) {
	resp, err := i.rest.R().
		SetContext(ctx).
		SetHeaderMultiValues(ic.Header()).
		SetBody(body).
		Post(i.url)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to invoke %s: %w", i.url, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return domain.Result{}, fmt.Errorf("invalid response from %s (status %d): %w", i.url, resp.StatusCode(), err)
	}

	if resp.IsSuccess() {
		var data any
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return domain.Result{}, fmt.Errorf("invalid response data: %w", err)
			}
		}
		return domain.Success(data), nil
	}

	if env.ErrorCode == 0 {
		return domain.Result{}, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode(), i.url, resp.String())
	}

	res := domain.Result{Kind: domain.KindFromCode(env.ErrorCode), Message: env.Message, Stack: env.StackTrace}
	if res.Kind == domain.KindRetryWithState {
		var st domain.Object
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &st); err != nil {
				return domain.Result{}, fmt.Errorf("invalid continuation payload: %w", err)
			}
		}
		if st == nil {
			st = domain.Object{}
		}
		res.State = st
	}
	return res, nil
}
