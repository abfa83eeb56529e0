package logship_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/logship"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingUploader keeps every uploaded batch.
type recordingUploader struct {
	mu      sync.Mutex
	batches []string
	err     error
}

func (u *recordingUploader) Upload(_ context.Context, content []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.batches = append(u.batches, string(content))
	return u.err
}

func (u *recordingUploader) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.batches)
}

func (u *recordingUploader) lines() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []string
	for _, b := range u.batches {
		out = append(out, strings.Split(strings.TrimSuffix(b, "\n"), "\n")...)
	}
	return out
}

func TestShipper_FlushesWhenFull(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up, logship.WithCapacity(3))

	for i := 1; i <= 3; i++ {
		s.Append(fmt.Sprintf("record-%d", i))
	}
	assert.Equal(t, 0, up.calls(), "a buffer at capacity is not flushed yet")

	s.Append("record-4")
	require.Equal(t, 1, up.calls(), "the append past capacity triggers exactly one flush")
	assert.Equal(t, "record-1\nrecord-2\nrecord-3\n", up.batches[0])
	assert.Equal(t, 1, s.Len(), "the new record is buffered after the flush")

	s.Close()
	assert.Equal(t, 2, up.calls())
	assert.Equal(t, "record-4\n", up.batches[1])
}

func TestShipper_CloseFlushesOnce(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up, logship.WithCapacity(10))

	s.Append("a")
	s.Append("b")
	s.Close()
	s.Close()

	assert.Equal(t, 1, up.calls())
	assert.Equal(t, []string{"a", "b"}, up.lines())
}

func TestShipper_EmptyCloseDoesNotUpload(t *testing.T) {
	up := &recordingUploader{}
	logship.New(up).Close()
	assert.Equal(t, 0, up.calls())
}

func TestShipper_UploadFailureIsSwallowed(t *testing.T) {
	var side bytes.Buffer
	up := &recordingUploader{err: errors.New("engine unreachable")}
	s := logship.New(up,
		logship.WithCapacity(1),
		logship.WithErrorLogger(slog.New(slog.NewTextHandler(&side, nil))),
	)

	s.Append("one")
	s.Append("two")
	assert.Equal(t, 1, s.Len(), "the buffer is cleared even when delivery fails")

	s.Close()
	assert.Equal(t, 2, up.calls())
	assert.Contains(t, side.String(), "failed to upload logs")
	assert.Contains(t, side.String(), "engine unreachable")
}

func TestShipper_ConcurrentAppend(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up, logship.WithCapacity(7))

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.Append(fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()
	s.Close()

	assert.Len(t, up.lines(), 200, "every record is delivered exactly once")
}

func TestShipper_FlushInterval(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up, logship.WithCapacity(100), logship.WithFlushInterval(10*time.Millisecond))
	defer s.Close()

	s.Append("tick")
	assert.Eventually(t, func() bool { return up.calls() == 1 }, time.Second, 5*time.Millisecond)
}

func TestShipper_AppendAfterCloseIsDropped(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up)
	s.Close()

	s.Append("late")
	s.Flush(context.Background())
	assert.Equal(t, 0, up.calls())
}

func TestShipper_NilUploaderDiscards(t *testing.T) {
	s := logship.New(nil, logship.WithCapacity(1))
	s.Append("a")
	s.Append("b")
	s.Close()
	assert.Equal(t, 0, s.Len())
}

// blockingUploader holds every upload until release is closed.
type blockingUploader struct {
	recordingUploader
	started chan struct{}
	release chan struct{}
}

func (u *blockingUploader) Upload(ctx context.Context, content []byte) error {
	select {
	case u.started <- struct{}{}:
	default:
	}
	<-u.release
	return u.recordingUploader.Upload(ctx, content)
}

func TestShipper_AppendDoesNotWaitForUpload(t *testing.T) {
	up := &blockingUploader{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := logship.New(up, logship.WithCapacity(10))

	s.Append("first")
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		s.Flush(context.Background())
	}()
	<-up.started

	appended := make(chan struct{})
	go func() {
		defer close(appended)
		s.Append("second")
		s.Append("third")
	}()
	select {
	case <-appended:
	case <-time.After(time.Second):
		t.Fatal("Append blocked behind an in-flight upload")
	}
	assert.Equal(t, 2, s.Len())

	close(up.release)
	<-flushed
	s.Close()

	require.Equal(t, 2, up.calls())
	assert.Equal(t, "first\n", up.batches[0])
	assert.Equal(t, "second\nthird\n", up.batches[1])
}

func TestShipper_BatchesKeepOrderUnderConcurrentFlush(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up, logship.WithCapacity(1))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.Flush(context.Background())
			}
		}()
	}
	for i := 0; i < 100; i++ {
		s.Append(fmt.Sprintf("%03d", i))
	}
	wg.Wait()
	s.Close()

	lines := up.lines()
	require.Len(t, lines, 100)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("%03d", i), line)
	}
}
