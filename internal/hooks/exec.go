package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runHook runs hookPath as `hook <spec-id> <event>` with the event envelope on
// stdin. When ctx ends first the hook is killed (with its process group where
// the platform has one) and ctx.Err() is returned.
func runHook(ctx context.Context, hookPath, event, specID string, stdin []byte) (retErr error) {
	ctx, span := otel.Tracer("github.com/moai-adk/orchestrator/hooks").Start(ctx, "hook.exec",
		trace.WithAttributes(
			attribute.String("hook.event", event),
			attribute.String("hook.path", hookPath),
			attribute.String("orch.spec_id", specID),
		),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	var stdout, stderr bytes.Buffer
	// #nosec G204 -- hookPath comes from the project hooks directory
	cmd := exec.Command(hookPath, specID, event)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	isolate(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start hook %s: %w", event, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case <-ctx.Done():
		if kerr := kill(cmd); kerr != nil {
			err = kerr
		} else {
			err = ctx.Err()
		}
		<-done
	case werr := <-done:
		if werr != nil {
			err = fmt.Errorf("hook %s: %w", event, werr)
		}
	}
	recordOutput(span, map[string]*bytes.Buffer{"stdout": &stdout, "stderr": &stderr})
	return err
}
