package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", false)

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.With("mmp_id", "M-1").WithGroup("budget").Info("allocated", "cents", 1500, slog.Group("src", "kind", "top_up"))
	out := buf.String()
	assert.Contains(t, out, "INFO  allocated")
	assert.Contains(t, out, "mmp_id=M-1")
	assert.Contains(t, out, "budget.cents=1500")
	assert.Contains(t, out, "budget.src.kind=top_up")
	assert.NotContains(t, out, "\033[")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}
