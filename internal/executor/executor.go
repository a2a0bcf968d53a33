// Package executor resolves parsed intents against the capability registry
// and runs them. It never returns a Go error to the caller: every outcome,
// including capability failure and interruption, is an ExecutionResult the
// orchestrator can route.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nova/internal/capability"
	"nova/internal/intent"
	"nova/internal/observability"
)

// ExecutionResult is the settled outcome of one intent.
type ExecutionResult struct {
	IntentID string
	Action   string
	Success  bool
	// Skipped marks an intent that never ran: unmet condition or an
	// unavailable dependency. Set by the orchestrator, not by Execute.
	Skipped  bool
	Data     map[string]any
	Error    string
	Duration time.Duration
}

// Interrupted reports whether the result came from task cancellation.
func (r ExecutionResult) Interrupted() bool {
	return !r.Success && r.Error == "Interrupted"
}

// Executor dispatches intents to registered capabilities.
type Executor struct {
	registry *capability.Registry
	logger   *observability.Logger
}

func New(registry *capability.Registry, logger *observability.Logger) *Executor {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute runs a single intent to completion. Unknown actions fail with
// "Action not found"; a cancelled ctx yields an "Interrupted" result whether
// cancellation hit before dispatch or mid-call.
func (e *Executor) Execute(ctx context.Context, it intent.ParsedIntent) ExecutionResult {
	result := ExecutionResult{IntentID: it.ID, Action: it.Action}

	if ctx.Err() != nil {
		result.Error = "Interrupted"
		return result
	}

	c, ok := e.registry.Get(it.Action)
	if !ok {
		result.Error = "Action not found"
		return result
	}

	start := time.Now()
	data, err := e.run(ctx, c, it.Parameters)
	result.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			result.Error = "Interrupted"
			return result
		}
		e.logger.WarnContext(ctx, "capability failed",
			"action", it.Action, "intent_id", it.ID, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Data = data
	return result
}

// run isolates capability panics so one bad action cannot take down the
// task goroutine.
func (e *Executor) run(ctx context.Context, c capability.Capability, params map[string]any) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability panicked: %v", r)
		}
	}()
	return c.Execute(ctx, params)
}
