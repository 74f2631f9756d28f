package common

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLoggerLevels tests level mapping
func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected logrus.Level
	}{
		{LogLevelDebug, logrus.DebugLevel},
		{LogLevelInfo, logrus.InfoLevel},
		{LogLevelWarn, logrus.WarnLevel},
		{LogLevelError, logrus.ErrorLevel},
		{LogLevelFatal, logrus.FatalLevel},
		{LogLevel("bogus"), logrus.InfoLevel},
	}
	for _, tt := range tests {
		cfg := DefaultLoggerConfig()
		cfg.Level = tt.level
		logger := NewLogger(cfg)
		assert.Equal(t, tt.expected, logger.GetLevel())
	}
}

// TestContextLoggerFields tests field accumulation and immutability
func TestContextLoggerFields(t *testing.T) {
	base := NewContextLogger(nil, map[string]interface{}{"service": "airweave"})
	derived := base.WithField("component", "resolver").WithSyncJob("sync-1", "job-1")

	require.NotNil(t, derived)
	assert.Equal(t, 1, len(base.fields), "parent logger must be untouched")
	assert.Equal(t, "sync-1", derived.fields["sync_id"])
	assert.Equal(t, "job-1", derived.fields["job_id"])
	assert.Equal(t, "airweave", derived.fields["service"])
}

// TestOutputSplitterRouting tests that info and error lines are both written
func TestOutputSplitterRouting(t *testing.T) {
	splitter := &OutputSplitter{}

	n, err := splitter.Write([]byte(`time="x" level=info msg="ok"`))
	require.NoError(t, err)
	assert.Positive(t, n)

	n, err = splitter.Write([]byte(`time="x" level=error msg="bad"`))
	require.NoError(t, err)
	assert.Positive(t, n)
}
