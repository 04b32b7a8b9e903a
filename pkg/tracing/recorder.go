// Package tracing records hierarchical spans for the ingestion pipeline.
// Every phase carries an advisory SLA threshold, and every closed span
// carries a deterministic audit hash over its final attributes so span
// records are tamper-evident downstream.
package tracing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Phase names one stage of an ingestion, or one LLM sub-operation within
// the analyze stage.
type Phase string

const (
	PhaseRequest Phase = "ingest.request"
	PhasePrepare Phase = "ingest.prepare"
	PhaseAnalyze Phase = "ingest.analyze"
	PhaseIndex   Phase = "ingest.index"

	OpIndustryDetection Phase = "ingest.llm.industry_detection"
	OpLanguageDetection Phase = "ingest.llm.language_detection"
	OpModelExtraction   Phase = "ingest.llm.model_extraction"
	OpCognitiveContext  Phase = "ingest.llm.cognitive_context"
	OpEmbedding         Phase = "ingest.llm.embedding"
)

// slaThresholds are advisory duration ceilings per phase. Exceeding one
// logs a warning; it never cancels or fails the span.
var slaThresholds = map[Phase]time.Duration{
	PhaseRequest:        60 * time.Second,
	PhasePrepare:        2 * time.Second,
	PhaseAnalyze:        30 * time.Second,
	PhaseIndex:          15 * time.Second,
	OpIndustryDetection: 10 * time.Second,
	OpLanguageDetection: 5 * time.Second,
	OpModelExtraction:   10 * time.Second,
	OpCognitiveContext:  10 * time.Second,
	OpEmbedding:         5 * time.Second,
}

// SLAThreshold returns the advisory duration ceiling for the phase.
func (p Phase) SLAThreshold() time.Duration {
	return slaThresholds[p]
}

// SpanContext carries the identity attributes attached to every span.
type SpanContext struct {
	CorrelationID string
	TenantID      string
	UserID        string
	FileHash      string
	FileName      string
}

// SpanHandle tracks one open span. A handle is closed exactly once, by
// either EndSpanSuccess or EndSpanError; a second close is a logged no-op.
type SpanHandle struct {
	span      trace.Span
	phase     Phase
	startedAt time.Time
	closed    atomic.Bool
}

// Recorder opens and closes ingestion spans.
type Recorder struct {
	tracer trace.Tracer
	logger *zap.Logger
}

// NewRecorder creates a Recorder using the global tracer provider.
func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{
		tracer: otel.Tracer("ingestion-pipeline"),
		logger: logger.Named("tracing"),
	}
}

// StartSpan opens a span for the given phase.
func (r *Recorder) StartSpan(ctx context.Context, phase Phase, sc SpanContext) (context.Context, *SpanHandle) {
	ctx, span := r.tracer.Start(ctx, string(phase), trace.WithAttributes(
		attribute.String("correlation.id", sc.CorrelationID),
		attribute.String("tenant.id", sc.TenantID),
		attribute.String("user.id", sc.UserID),
		attribute.String("file.hash", sc.FileHash),
		attribute.String("file.name", sc.FileName),
		attribute.Int64("sla.threshold_ms", phase.SLAThreshold().Milliseconds()),
	))

	r.logger.Debug("Span created",
		zap.String("phase", string(phase)),
		zap.String("correlation_id", sc.CorrelationID),
		zap.String("tenant_id", sc.TenantID))

	return ctx, &SpanHandle{
		span:      span,
		phase:     phase,
		startedAt: time.Now(),
	}
}

// EndSpanSuccess closes a span as successful and attaches its audit hash.
func (r *Recorder) EndSpanSuccess(h *SpanHandle, sc SpanContext, extra ...attribute.KeyValue) {
	if !h.closed.CompareAndSwap(false, true) {
		r.logger.Warn("Span already closed, ignoring duplicate end",
			zap.String("phase", string(h.phase)),
			zap.String("correlation_id", sc.CorrelationID))
		return
	}

	durationMs := time.Since(h.startedAt).Milliseconds()

	h.span.SetAttributes(append(extra,
		attribute.Int64("duration.ms", durationMs),
		attribute.String("status", "success"),
		attribute.String("audit.hash", AuditHash(sc.CorrelationID, sc.TenantID, durationMs, "", "")),
	)...)
	h.span.SetStatus(codes.Ok, "")
	h.span.End()

	r.checkSLA(h.phase, sc, durationMs)

	r.logger.Info("Span completed",
		zap.String("phase", string(h.phase)),
		zap.String("correlation_id", sc.CorrelationID),
		zap.String("tenant_id", sc.TenantID),
		zap.Int64("duration_ms", durationMs))
}

// EndSpanError closes a span as failed, recording the error and the audit
// hash over the error's type and message.
func (r *Recorder) EndSpanError(h *SpanHandle, sc SpanContext, err error) {
	if !h.closed.CompareAndSwap(false, true) {
		r.logger.Warn("Span already closed, ignoring duplicate end",
			zap.String("phase", string(h.phase)),
			zap.String("correlation_id", sc.CorrelationID))
		return
	}

	durationMs := time.Since(h.startedAt).Milliseconds()
	errName := fmt.Sprintf("%T", err)

	h.span.SetAttributes(
		attribute.Int64("duration.ms", durationMs),
		attribute.String("status", "error"),
		attribute.String("error.type", errName),
		attribute.String("error.message", err.Error()),
		attribute.String("audit.hash", AuditHash(sc.CorrelationID, sc.TenantID, durationMs, errName, err.Error())),
	)
	h.span.SetStatus(codes.Error, err.Error())
	h.span.RecordError(err)
	h.span.End()

	r.checkSLA(h.phase, sc, durationMs)

	r.logger.Error("Span failed",
		zap.String("phase", string(h.phase)),
		zap.String("correlation_id", sc.CorrelationID),
		zap.String("tenant_id", sc.TenantID),
		zap.Int64("duration_ms", durationMs),
		zap.Error(err))
}

func (r *Recorder) checkSLA(phase Phase, sc SpanContext, durationMs int64) {
	threshold := phase.SLAThreshold()
	if threshold <= 0 || durationMs <= threshold.Milliseconds() {
		return
	}

	r.logger.Warn("Span exceeded SLA threshold",
		zap.String("phase", string(phase)),
		zap.String("correlation_id", sc.CorrelationID),
		zap.String("tenant_id", sc.TenantID),
		zap.Int64("duration_ms", durationMs),
		zap.Int64("threshold_ms", threshold.Milliseconds()),
		zap.Int64("excess_ms", durationMs-threshold.Milliseconds()))
}

// AuditHash computes the tamper-evidence digest of a closed span. It is a
// pure function of the span's final attributes: two spans with identical
// correlation id, tenant, duration and error info always hash the same.
func AuditHash(correlationID, tenantID string, durationMs int64, errName, errMsg string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s", correlationID, tenantID, durationMs, errName, errMsg)
	return hex.EncodeToString(h.Sum(nil))
}
