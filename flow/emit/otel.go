package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span.
//
// Span name is the event message; session id, step, node id, and all Meta
// fields become attributes. Events carrying an "error" meta field set the
// span's error status.
//
//	tracer := otel.Tracer("lessonforge")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter over the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as an immediately-ended span. Events represent
// points in time, not durations; node latency rides in Meta["duration_ms"].
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", event.SessionID),
		attribute.Int("session.step", event.Step),
		attribute.String("node.id", event.NodeID),
	)
	for k, v := range event.Meta {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String("meta."+k, val))
		case int:
			span.SetAttributes(attribute.Int("meta."+k, val))
		case int64:
			span.SetAttributes(attribute.Int64("meta."+k, val))
		case float64:
			span.SetAttributes(attribute.Float64("meta."+k, val))
		case bool:
			span.SetAttributes(attribute.Bool("meta."+k, val))
		default:
			span.SetAttributes(attribute.String("meta."+k, fmt.Sprintf("%v", val)))
		}
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
