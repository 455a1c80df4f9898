package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver turns task lifecycle events into OpenTelemetry spans. It is
// grounded on graph/emit/otel.go in the dshills-langgraph-go example repo:
// one span per unit of work, standard attributes set from event fields,
// metadata folded in as attributes, and error status derived from an
// "error" data key.
//
// Unlike that file's per-Event span (each event there is a complete point
// in time), a task here spans from EventTaskStart to EventTaskComplete, so
// this observer keeps the open span keyed by (batch, replica) between the
// two calls.
type OTelObserver struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewOTelObserver creates an OTelObserver using the given tracer, typically
// obtained via otel.Tracer("simkernel").
func NewOTelObserver(tracer trace.Tracer) *OTelObserver {
	return &OTelObserver{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

func spanKey(event Event) string {
	batch, _ := event.Data["batch"].(string)
	replica, _ := event.Data["replica"].(int)
	return fmt.Sprintf("%s/%d", batch, replica)
}

// OnEvent implements Observer.
func (o *OTelObserver) OnEvent(ctx context.Context, event Event) {
	switch event.Type {
	case EventTaskStart:
		_, span := o.tracer.Start(ctx, "task.run")
		o.addAttributes(span, event)

		o.mu.Lock()
		o.spans[spanKey(event)] = span
		o.mu.Unlock()

	case EventTaskSync, EventTaskBackup, EventTaskRecoverFail:
		o.mu.Lock()
		span, ok := o.spans[spanKey(event)]
		o.mu.Unlock()
		if ok {
			span.AddEvent(string(event.Type))
		}

	case EventTaskComplete:
		key := spanKey(event)

		o.mu.Lock()
		span, ok := o.spans[key]
		delete(o.spans, key)
		o.mu.Unlock()

		if !ok {
			return
		}

		o.addAttributes(span, event)
		if errMsg, ok := event.Data["error"].(string); ok && errMsg != "" {
			span.SetStatus(codes.Error, errMsg)
			span.RecordError(fmt.Errorf("%s", errMsg))
		}
		span.End()
	}
}

func (o *OTelObserver) addAttributes(span trace.Span, event Event) {
	attrs := make([]attribute.KeyValue, 0, len(event.Data)+1)
	attrs = append(attrs, attribute.String("simkernel.source", event.Source))

	for k, v := range event.Data {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.SetAttributes(attrs...)
}
