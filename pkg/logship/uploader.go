package logship

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/go-resty/resty/v2"
)

// HTTPUploader posts log batches to the engine as a multipart file named "stdout".
type HTTPUploader struct {
	rest  *resty.Client
	url   string
	token string
}

// UploaderOption configures an HTTPUploader.
type UploaderOption func(*HTTPUploader)

// WithRetries retries uploads that fail at the transport level.
func WithRetries(n int) UploaderOption {
	return func(u *HTTPUploader) {
		u.rest.SetRetryCount(n)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) UploaderOption {
	return func(u *HTTPUploader) {
		u.rest = resty.NewWithClient(hc).SetLogger(logging.Printf{Logger: logging.NewNop()})
	}
}

func newRest() *resty.Client {
	return resty.New().
		SetTimeout(30 * time.Second).
		SetLogger(logging.Printf{Logger: logging.NewNop()})
}

// NewHTTPUploader creates an uploader for endpoint+path authenticated with the workflow token.
func NewHTTPUploader(endpoint, path, token string, opts ...UploaderOption) *HTTPUploader {
	u := &HTTPUploader{
		rest:  newRest(),
		url:   joinURL(endpoint, path),
		token: token,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Uploaders hands out per-invocation uploaders that share one resty client,
// so connections to the engine are pooled across invocations.
type Uploaders struct {
	rest *resty.Client
}

// NewUploaders creates the shared client configured by opts.
func NewUploaders(opts ...UploaderOption) *Uploaders {
	u := &HTTPUploader{rest: newRest()}
	for _, opt := range opts {
		opt(u)
	}
	return &Uploaders{rest: u.rest}
}

// For returns the uploader of an invocation, or nil when the engine did
// not provide an upload location. A shipper without uploader discards records on flush.
func (u *Uploaders) For(ic domain.InvocationContext) ports.LogUploader {
	if ic.EngineEndpoint == "" || ic.LogUploadPath == "" {
		return nil
	}
	return &HTTPUploader{
		rest:  u.rest,
		url:   joinURL(ic.EngineEndpoint, ic.LogUploadPath),
		token: ic.WorkflowToken,
	}
}

// URL returns the upload target.
func (u *HTTPUploader) URL() string {
	return u.url
}

// Upload sends content as the "content" part of a multipart form.
func (u *HTTPUploader) Upload(ctx context.Context, content []byte) error {
	resp, err := u.rest.R().
		SetContext(ctx).
		SetHeader(domain.HeaderWorkflowToken, u.token).
		SetQueryParam("append", "true").
		SetMultipartField("content", "stdout", "text/plain", bytes.NewReader(content)).
		Post(u.url)
	if err != nil {
		return fmt.Errorf("failed to upload logs: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("failed to upload logs: status %d", resp.StatusCode())
	}
	return nil
}

func joinURL(endpoint, path string) string {
	if path == "" {
		return endpoint
	}
	return strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(path, "/")
}
