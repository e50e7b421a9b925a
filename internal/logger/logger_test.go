package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessync/internal/logger"
)

func newBufferLogger(buf *bytes.Buffer, level logger.Level) *logger.Logger {
	return logger.New(
		logger.WithOutput(buf),
		logger.WithLevel(level),
		logger.WithColors(false),
	)
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.DEBUG},
		{"INFO", logger.INFO},
		{"warn", logger.WARN},
		{"Warning", logger.WARN},
		{"error", logger.ERROR},
		{" error ", logger.ERROR},
		{"nonsense", logger.INFO},
		{"", logger.INFO},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, logger.ParseLevel(tc.in), "input %q", tc.in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, logger.WARN)

	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")
	l.Error("kept as well")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "kept as well")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestPrefixAndFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, logger.DEBUG).WithPrefix("sync")

	l.Info("saved %d games for %s", 3, "alice")

	out := buf.String()
	assert.Contains(t, out, "[sync]")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "saved 3 games for alice")
	assert.Contains(t, out, "logger_test.go:")
}

func TestFieldsSortedAndInherited(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, logger.DEBUG)
	l := base.WithField("profile", "alice").WithFields(map[string]any{
		"source": "lichess",
		"games":  12,
	})

	l.Info("sync complete")

	line := buf.String()
	require.Contains(t, line, "games=12")
	require.Contains(t, line, "profile=alice")
	require.Contains(t, line, "source=lichess")
	assert.Less(t, strings.Index(line, "games="), strings.Index(line, "profile="))
	assert.Less(t, strings.Index(line, "profile="), strings.Index(line, "source="))

	// Deriving must not leak fields back into the parent.
	buf.Reset()
	base.Info("bare")
	assert.NotContains(t, buf.String(), "profile=")
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, logger.DEBUG).WithField("request_id", "r-1")

	ctx := logger.NewContext(context.Background(), l)
	logger.FromContext(ctx).Info("handled")

	assert.Contains(t, buf.String(), "request_id=r-1")
	assert.NotNil(t, logger.FromContext(context.Background()))
}
