package errorhandler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-api-errors/internal/apierror"
)

// recordOnSpan annotates the active request span, if any. Only 5xx mark the
// span as failed; client errors are expected outcomes.
func recordOnSpan(ctx context.Context, e *apierror.Error, requestID string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(e, trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("error.kind", e.Kind().String()),
		attribute.String("error.code", e.Details().Code),
	))
	if e.StatusCode() >= 500 {
		span.SetStatus(codes.Error, e.Kind().Name())
	}
}
