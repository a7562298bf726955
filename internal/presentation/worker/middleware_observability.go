package workerpresentation

import (
	"context"
	"sort"

	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const attrEventID = "event_id"

// WithEventContext puts a delivery-scoped logger on ctx. It always carries an event_id
// (generated unless attrs has one) and the trace ids when a span is active. Other attrs are
// appended in key order and must stay low-cardinality, such as "event" or "use_case".
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.OrNop(tel).Logger()
	}

	id := attrs[attrEventID]
	if id == "" {
		id = uuid.NewString()
	}
	fields := []observability.Field{observability.F(attrEventID, id)}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if k != attrEventID && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, observability.F(k, attrs[k]))
	}
	return logctx.With(ctx, base.With(fields...))
}
