package logship_test

import (
	"errors"
	"log/slog"
	"regexp"
	"testing"

	"github.com/aretw0/tendril/pkg/logship"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Format(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up)
	logger := slog.New(logship.NewHandler(s, slog.LevelInfo))

	logger.Info("stack created", "stack", "alpha", "attempt", 2)
	logger.Debug("hidden")
	logger.With("activity", "a 1").WithGroup("req").Warn("slow", "ms", 1500, "error", errors.New("timeout"))
	s.Close()

	lines := up.lines()
	require.Len(t, lines, 2)

	pattern := regexp.MustCompile(`^time=\S+ level=INFO path=handler_test\.go line=\d+ msg="stack created" stack=alpha attempt=2$`)
	assert.Regexp(t, pattern, lines[0])
	assert.Regexp(t, `level=WARN .* msg=slow activity="a 1" req\.ms=1500 req\.error=timeout$`, lines[1])
}

func TestHandler_RedactedKeys(t *testing.T) {
	up := &recordingUploader{}
	s := logship.New(up, logship.WithRedactedKeys("password", "*token*", " "))
	logger := slog.New(logship.NewHandler(s, slog.LevelInfo))

	logger.With("Workflow_Token", "abc").Info("login",
		"user", "ada",
		slog.Group("auth", "password", "hunter2", "method", "basic"),
	)
	s.Close()

	lines := up.lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Workflow_Token=***")
	assert.Contains(t, lines[0], "user=ada")
	assert.Contains(t, lines[0], "auth.password=***")
	assert.Contains(t, lines[0], "auth.method=basic")
	assert.NotContains(t, lines[0], "hunter2")
	assert.NotContains(t, lines[0], "abc")
}

func TestTee(t *testing.T) {
	first, second := &recordingUploader{}, &recordingUploader{}
	s1, s2 := logship.New(first), logship.New(second)

	logger := slog.New(logship.Tee(
		logship.NewHandler(s1, slog.LevelInfo),
		logship.NewHandler(s2, slog.LevelError),
	))
	logger.Info("info")
	logger.Error("error")
	s1.Close()
	s2.Close()

	assert.Len(t, first.lines(), 2)
	assert.Len(t, second.lines(), 1)
}
