package common

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, LogConfig{Level: "debug", Format: "json"})

	ctx := WithJob(WithRequestID(context.Background(), "req-1"), "b-1", "j-1")
	LoggerFrom(ctx, base).Debug("hello")

	out := buf.String()
	assert.Contains(t, out, `"batch_id":"b-1"`)
	assert.Contains(t, out, `"job_id":"j-1"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogConfig{Level: "warn", Format: "text"})
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
