package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContextWithID(logger, "req-1", "rate_game")
	reqCtx.UserID = "u1"

	reqCtx.Info("rated", slog.String(LogFieldGameID, "42"))
	reqCtx.Error("save failed", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "operation=rate_game")
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "game_id=42")
	assert.Contains(t, out, "error=boom")
}

func TestRequestContextGeneratesID(t *testing.T) {
	reqCtx := NewRequestContext(nil, "get_preferences")
	assert.Len(t, reqCtx.RequestID, 36)
	assert.NotNil(t, reqCtx.Logger)
	assert.GreaterOrEqual(t, reqCtx.Duration(), time.Duration(0))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.NotNil(t, Logger(context.Background()))

	var buf bytes.Buffer
	reqCtx := NewRequestContextWithID(slog.New(slog.NewTextHandler(&buf, nil)), "req-2", "recommendations")
	ctx := WithRequestContext(context.Background(), reqCtx)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)

	Logger(ctx).Info("hello")
	assert.Contains(t, buf.String(), "request_id=req-2")
}

func TestMetricsRecorders(t *testing.T) {
	before := testutil.ToFloat64(RecommendationGateTotal.WithLabelValues(GateFresh))
	RecordGateOutcome(GateFresh)
	assert.Equal(t, before+1, testutil.ToFloat64(RecommendationGateTotal.WithLabelValues(GateFresh)))

	before = testutil.ToFloat64(GameCacheTotal.WithLabelValues("miss"))
	RecordGameCache(false)
	assert.Equal(t, before+1, testutil.ToFloat64(GameCacheTotal.WithLabelValues("miss")))

	before = testutil.ToFloat64(PreferenceWritesTotal.WithLabelValues(WriteFallback))
	RecordPreferenceWrite(WriteFallback)
	assert.Equal(t, before+1, testutil.ToFloat64(PreferenceWritesTotal.WithLabelValues(WriteFallback)))

	before = testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/preferences", "200"))
	RecordHTTPRequest("GET", "/api/v1/preferences", 200, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/preferences", "200")))
}
