package logging

import (
	"context"
	"log/slog"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

// Shared field names. Every component logs these keys with the same
// spelling so records can be correlated across the daemon, the queue,
// and job execution.
const (
	FieldComponent     = "component"
	FieldItemID        = "item_id"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldLane          = "lane"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
)

// Common event_type values.
const (
	EventDetected   = "detected"
	EventStabilized = "stabilized"
	EventQueued     = "queued"
	EventDispatched = "dispatched"
	EventProgress   = "progress"
	EventCompleted  = "completed"
	EventFailed     = "failed"
	EventRetried    = "retried"
)

// ContextFields extracts correlation identifiers stored on the context
// into logger attributes.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]Attr, 0, 5)
	if itemID, ok := services.ItemIDFromContext(ctx); ok {
		fields = append(fields, String(FieldItemID, itemID))
	}
	if jobID, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, String(FieldJobID, jobID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, String(FieldStage, stage))
	}
	if lane, ok := services.LaneFromContext(ctx); ok {
		fields = append(fields, String(FieldLane, lane))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, String(FieldCorrelationID, requestID))
	}
	return fields
}

// WithContext derives a logger carrying the context's correlation
// fields. Nil loggers stay nil so call sites can chain safely.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return nil
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
