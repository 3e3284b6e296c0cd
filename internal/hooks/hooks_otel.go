package hooks

import (
	"bytes"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// recordOutput attaches non-empty hook output streams to span as events,
// truncated to maxOutputBytes.
func recordOutput(span trace.Span, streams map[string]*bytes.Buffer) {
	for _, name := range []string{"stdout", "stderr"} {
		buf := streams[name]
		if buf == nil || buf.Len() == 0 {
			continue
		}
		span.AddEvent("hook."+name, trace.WithAttributes(
			attribute.String("orch.hook.output", truncateOutput(buf.String())),
			attribute.Int("orch.hook.output_bytes", buf.Len()),
		))
	}
}
