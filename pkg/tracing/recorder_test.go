package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditHash_Deterministic(t *testing.T) {
	a := AuditHash("corr-1", "tenant-1", 1500, "", "")
	b := AuditHash("corr-1", "tenant-1", 1500, "", "")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestAuditHash_DurationChangesHash(t *testing.T) {
	a := AuditHash("corr-1", "tenant-1", 1500, "", "")
	b := AuditHash("corr-1", "tenant-1", 1501, "", "")

	assert.NotEqual(t, a, b)
}

func TestAuditHash_ErrorInfoChangesHash(t *testing.T) {
	clean := AuditHash("corr-1", "tenant-1", 1500, "", "")
	errored := AuditHash("corr-1", "tenant-1", 1500, "*errors.errorString", "blob write failed")

	assert.NotEqual(t, clean, errored)
}

func TestAuditHash_TenantChangesHash(t *testing.T) {
	a := AuditHash("corr-1", "tenant-1", 1500, "", "")
	b := AuditHash("corr-1", "tenant-2", 1500, "", "")

	assert.NotEqual(t, a, b)
}

func TestRecorder_EndSpanSuccess(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRecorder(zap.New(core))

	sc := SpanContext{CorrelationID: "corr-1", TenantID: "tenant-1"}
	_, h := r.StartSpan(context.Background(), PhasePrepare, sc)

	r.EndSpanSuccess(h, sc)

	require.True(t, h.closed.Load())
	completed := logs.FilterMessage("Span completed").All()
	require.Len(t, completed, 1)
}

func TestRecorder_DoubleEndIsNoOp(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRecorder(zap.New(core))

	sc := SpanContext{CorrelationID: "corr-1", TenantID: "tenant-1"}
	_, h := r.StartSpan(context.Background(), PhasePrepare, sc)

	r.EndSpanSuccess(h, sc)
	r.EndSpanSuccess(h, sc)
	r.EndSpanError(h, sc, errors.New("late failure"))

	assert.Len(t, logs.FilterMessage("Span completed").All(), 1)
	assert.Len(t, logs.FilterMessage("Span failed").All(), 0)
	assert.Len(t, logs.FilterMessage("Span already closed, ignoring duplicate end").All(), 2)
}

func TestRecorder_EndSpanError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRecorder(zap.New(core))

	sc := SpanContext{CorrelationID: "corr-1", TenantID: "tenant-1"}
	_, h := r.StartSpan(context.Background(), PhaseAnalyze, sc)

	r.EndSpanError(h, sc, errors.New("model unavailable"))

	require.True(t, h.closed.Load())
	assert.Len(t, logs.FilterMessage("Span failed").All(), 1)
}

func TestRecorder_SLABreachLogsWarning(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRecorder(zap.New(core))

	sc := SpanContext{CorrelationID: "corr-1", TenantID: "tenant-1"}
	_, h := r.StartSpan(context.Background(), PhasePrepare, sc)
	h.startedAt = time.Now().Add(-3 * time.Second) // prepare SLA is 2s

	r.EndSpanSuccess(h, sc)

	warnings := logs.FilterMessage("Span exceeded SLA threshold").All()
	require.Len(t, warnings, 1)
	// Breach is observational: the span still completed successfully.
	assert.Len(t, logs.FilterMessage("Span completed").All(), 1)
}

func TestPhase_SLAThresholds(t *testing.T) {
	assert.Equal(t, 60*time.Second, PhaseRequest.SLAThreshold())
	assert.Equal(t, 2*time.Second, PhasePrepare.SLAThreshold())
	assert.Equal(t, 30*time.Second, PhaseAnalyze.SLAThreshold())
	assert.Equal(t, 15*time.Second, PhaseIndex.SLAThreshold())
	assert.Equal(t, 5*time.Second, OpEmbedding.SLAThreshold())
}
