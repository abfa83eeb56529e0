package logship

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultCapacity is the number of records buffered before an automatic flush.
const DefaultCapacity = 10

// DefaultUploadTimeout bounds a single upload.
const DefaultUploadTimeout = 10 * time.Second

// Shipper buffers the log records of one invocation and uploads them in batches.
// Upload failures are reported to the error logger and never returned.
type Shipper struct {
	uploader ports.LogUploader
	capacity int
	interval time.Duration
	timeout  time.Duration
	errLog   *slog.Logger
	metrics  *observability.Metrics
	redact   []string

	mu      sync.Mutex
	buf     []string
	pending []batch
	closed  bool

	// uploadMu serializes uploads so batches arrive in the order they were cut.
	uploadMu sync.Mutex

	closeOnce sync.Once
	stop      chan struct{}
	ticker    sync.WaitGroup
}

type batch struct {
	content string
	records int
}

// Option configures a Shipper.
type Option func(*Shipper)

// WithCapacity sets how many records are buffered before a flush. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Shipper) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithFlushInterval flushes periodically in the background. Zero disables it.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Shipper) {
		s.interval = d
	}
}

// WithUploadTimeout bounds each upload.
func WithUploadTimeout(d time.Duration) Option {
	return func(s *Shipper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithErrorLogger sets the side channel that receives delivery failures.
func WithErrorLogger(logger *slog.Logger) Option {
	return func(s *Shipper) {
		s.errLog = logger
	}
}

// WithMetrics records flush outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Shipper) {
		s.metrics = m
	}
}

// WithRedactedKeys masks attributes whose key matches one of patterns in
// records written through a Handler. Patterns follow path.Match and are
// compared case-insensitively against the attribute key without its group.
func WithRedactedKeys(patterns ...string) Option {
	return func(s *Shipper) {
		for _, p := range patterns {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				s.redact = append(s.redact, p)
			}
		}
	}
}

// New creates a shipper delivering to uploader.
func New(uploader ports.LogUploader, opts ...Option) *Shipper {
	s := &Shipper{
		uploader: uploader,
		capacity: DefaultCapacity,
		timeout:  DefaultUploadTimeout,
		errLog:   logging.NewNop(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = make([]string, 0, s.capacity)

	if s.interval > 0 {
		s.ticker.Add(1)
		go s.tick()
	}
	return s
}

func (s *Shipper) tick() {
	defer s.ticker.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Flush(context.Background())
		}
	}
}

// Append buffers a record. When the buffer is already full it is flushed
// first, so a full buffer costs exactly one upload. The upload runs outside
// the buffer lock.
func (s *Shipper) Append(record string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.errLog.Debug("log record dropped after close", "record", record)
		return
	}
	full := len(s.buf) >= s.capacity
	if full {
		s.cutLocked()
	}
	s.buf = append(s.buf, record)
	s.mu.Unlock()

	if full {
		s.drain(context.Background())
	}
}

// Flush uploads the buffered records, if any, and clears the buffer.
func (s *Shipper) Flush(ctx context.Context) {
	s.mu.Lock()
	s.cutLocked()
	s.mu.Unlock()
	s.drain(ctx)
}

// cutLocked moves the buffer to the pending queue.
func (s *Shipper) cutLocked() {
	if len(s.buf) == 0 {
		return
	}
	s.pending = append(s.pending, batch{
		content: strings.Join(s.buf, "\n") + "\n",
		records: len(s.buf),
	})
	s.buf = make([]string, 0, s.capacity)
}

// drain uploads pending batches in order. It returns once every batch cut
// before the call has been uploaded.
func (s *Shipper) drain(ctx context.Context) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.upload(ctx, next)
	}
}

func (s *Shipper) upload(ctx context.Context, b batch) {
	if s.uploader == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.uploader.Upload(ctx, []byte(b.content))
	s.metrics.ObserveFlush(b.records, err)
	if err != nil {
		s.errLog.Error("failed to upload logs", "error", err, "records", b.records)
	}
}

// Len returns the number of buffered records.
func (s *Shipper) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Close stops background flushing and uploads what is left.
// It is safe to call more than once.
func (s *Shipper) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.ticker.Wait()

		s.mu.Lock()
		s.cutLocked()
		s.closed = true
		s.mu.Unlock()
		s.drain(context.Background())
	})
}
