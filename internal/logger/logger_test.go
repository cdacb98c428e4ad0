package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"run_id", "r1", "OPENAI_API_KEY", "sk-123", "db_password", "x", "dangling"})
	assert.Equal(t, []interface{}{"run_id", "r1", "OPENAI_API_KEY", redacted, "db_password", redacted, "dangling"}, got)
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("run_id", "r1").Info("batch done", "batch", 2, "token", "abc")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "batch done", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "r1", fields["run_id"])
	assert.EqualValues(t, 2, fields["batch"])
	assert.Equal(t, redacted, fields["token"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New("production", "loud")
	assert.Error(t, err)

	l, err := New("development", "info")
	require.NoError(t, err)
	assert.NotNil(t, l.SugaredLogger)
}
