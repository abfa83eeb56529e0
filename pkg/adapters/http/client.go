package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/go-resty/resty/v2"
)

// Client implements ports.VersionedStore against a remote state store.
type Client struct {
	rest     *resty.Client
	endpoint string
	token    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the timeout of a single request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.rest.SetTimeout(d)
	}
}

// WithRetryCount sets how many times reads and deletes are retried on
// transport errors and 5xx responses. Conditional writes are never retried.
func WithRetryCount(n int) ClientOption {
	return func(c *Client) {
		c.rest.SetRetryCount(n)
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.rest.SetTransport(rt)
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify() ClientOption {
	return func(c *Client) {
		c.rest.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // opt-in for dev stores
	}
}

// WithClientLogger routes client diagnostics (retries, failures) to logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.rest.SetLogger(logging.Printf{Logger: logger})
	}
}

// Pool hands out clients that share one resty client and its connections.
// The endpoint and token travel with each request, so one Pool serves every
// invocation of the process.
type Pool struct {
	rest *resty.Client
}

// NewPool creates a pool configured by opts.
func NewPool(opts ...ClientOption) *Pool {
	rest := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryIdempotent).
		SetLogger(logging.Printf{Logger: logging.NewNop()})

	c := &Client{rest: rest}
	for _, opt := range opts {
		opt(c)
	}
	return &Pool{rest: rest}
}

// Client returns a client for the store at endpoint, authenticated with token.
func (p *Pool) Client(endpoint, token string) *Client {
	return &Client{rest: p.rest, endpoint: endpoint, token: token}
}

// NewClient creates a client with its own pool.
func NewClient(endpoint, token string, opts ...ClientOption) *Client {
	return NewPool(opts...).Client(endpoint, token)
}

// retryIdempotent retries everything except PUT: a conditional write whose
// response was lost may already be applied.
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil {
		return err != nil
	}
	if r.Request.Method == resty.MethodPut {
		return false
	}
	return err != nil || r.StatusCode() >= http.StatusInternalServerError
}

func (c *Client) request(ctx context.Context, ns domain.Namespace) *resty.Request {
	return c.rest.R().
		SetContext(ctx).
		SetHeader(HeaderStateToken, c.token).
		SetHeaders(map[string]string{
			HeaderOrganizationID: ns.OrganizationID,
			HeaderProjectID:      ns.ProjectID,
			HeaderEnvironmentID:  ns.EnvironmentID,
		})
}

// Get retrieves the entry. A 404 is an absent entry.
func (c *Client) Get(ctx context.Context, ns domain.Namespace, key string) (domain.Entry, error) {
	resp, err := c.request(ctx, ns).
		SetQueryParams(map[string]string{
			paramScope:          ns.Scope.String(),
			paramOrganizationID: ns.OrganizationID,
			paramProjectID:      ns.ProjectID,
			paramEnvironmentID:  ns.EnvironmentID,
			paramKey:            key,
		}).
		SetResult(&EntryResponse{}).
		SetError(&ErrorResponse{}).
		Get(c.endpoint)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to get state: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return domain.Entry{Key: key, Version: domain.NoVersion}, nil
	}
	if resp.IsError() {
		return domain.Entry{}, responseError("get", resp)
	}

	body := resp.Result().(*EntryResponse)
	return domain.Entry{Key: key, Value: body.Value, Version: body.Version}, nil
}

// CompareAndSwap performs the conditional PUT. A 409 is a version conflict.
func (c *Client) CompareAndSwap(ctx context.Context, ns domain.Namespace, key string, value any, expected uint32) (uint32, error) {
	resp, err := c.request(ctx, ns).
		SetBody(PutEntryJSONRequestBody{Scope: ns, Key: key, Value: value, Version: expected}).
		SetResult(&WriteResponse{}).
		SetError(&ErrorResponse{}).
		Put(c.endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to put state: %w", err)
	}

	if resp.StatusCode() == http.StatusConflict {
		return 0, domain.ErrVersionConflict
	}
	if resp.IsError() {
		return 0, responseError("put", resp)
	}

	return resp.Result().(*WriteResponse).Version, nil
}

// Delete removes the entry.
func (c *Client) Delete(ctx context.Context, ns domain.Namespace, key string) error {
	resp, err := c.request(ctx, ns).
		SetBody(DeleteEntryJSONRequestBody{Scope: ns, Key: key}).
		SetError(&ErrorResponse{}).
		Delete(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	if resp.IsError() {
		return responseError("delete", resp)
	}
	return nil
}

func responseError(op string, resp *resty.Response) error {
	msg := resp.Status()
	if e, ok := resp.Error().(*ErrorResponse); ok && e != nil && e.Error != "" {
		msg = e.Error
	}
	return fmt.Errorf("failed to %s state: status %d: %s", op, resp.StatusCode(), msg)
}
