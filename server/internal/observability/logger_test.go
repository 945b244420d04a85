package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	reqCtx := NewRequestContext(base, "session-1")
	require.NotEmpty(t, reqCtx.RequestID)
	ctx := WithRequestContext(context.Background(), reqCtx)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)

	Logger(ctx).Info("handled", slog.Int(LogFieldMessageLen, 3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, reqCtx.RequestID, line[LogFieldRequestID])
	assert.Equal(t, "session-1", line[LogFieldSessionID])
	assert.EqualValues(t, 3, line[LogFieldMessageLen])
	assert.GreaterOrEqual(t, reqCtx.DurationMs(), int64(0))
}

func TestLoggerWithoutRequestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Same(t, slog.Default(), Logger(context.Background()))
}
