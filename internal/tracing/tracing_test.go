package tracing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()

	assert.True(t, strings.HasPrefix(a, "req_"))
	assert.NotEqual(t, a, b)
}

func TestRequestContextRoundTrip(t *testing.T) {
	start := time.Now()
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req_abc")
	ctx = WithTraceID(ctx, "trace_xyz")
	ctx = WithStartTime(ctx, start)

	info := GetRequestInfo(ctx)
	assert.Equal(t, "req_abc", info.RequestID)
	assert.Equal(t, "trace_xyz", info.TraceID)
	assert.Equal(t, start, info.StartTime)
}

func TestEmptyContext(t *testing.T) {
	info := GetRequestInfo(context.Background())
	assert.Empty(t, info.RequestID)
	assert.Empty(t, info.TraceID)
	assert.True(t, info.StartTime.IsZero())
	assert.Equal(t, time.Duration(0), Duration(context.Background()))
}

func TestDuration(t *testing.T) {
	ctx := WithStartTime(context.Background(), time.Now().Add(-50*time.Millisecond))
	assert.GreaterOrEqual(t, Duration(ctx), 50*time.Millisecond)
}
