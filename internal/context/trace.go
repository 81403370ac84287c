package context

import (
	stdcontext "context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext carries the trace ID that log lines of one request share.
type TraceContext struct {
	TraceID string

	stdCtx stdcontext.Context
}

type traceKey struct{}

// NewTraceContext creates a TraceContext bound to parent. When parent already
// carries a valid OpenTelemetry span its trace ID is reused, otherwise a fresh
// one is generated.
func NewTraceContext(parent stdcontext.Context) TraceContext {
	if parent == nil {
		parent = stdcontext.Background()
	}
	tc := TraceContext{TraceID: uuid.NewString()}
	if sc := trace.SpanContextFromContext(parent); sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
	}
	tc.stdCtx = stdcontext.WithValue(parent, traceKey{}, tc.TraceID)
	return tc
}

// Context returns the standard context this TraceContext is bound to.
func (tc TraceContext) Context() stdcontext.Context {
	if tc.stdCtx == nil {
		return stdcontext.Background()
	}
	return tc.stdCtx
}

// TraceIDFromContext returns the trace ID stored by NewTraceContext, if any.
func TraceIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
