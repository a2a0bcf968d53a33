package orchestrator

import (
	stdcontext "context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"nova/internal/async"
	"nova/internal/bus"
	"nova/internal/condition"
	"nova/internal/context"
	"nova/internal/errors"
	"nova/internal/executor"
	"nova/internal/intent"
	"nova/internal/modality"
	"nova/internal/observability"
	"nova/internal/protocol"
	"nova/internal/tts"
)

const ackText = "On it."

// Skip reasons recorded on unexecuted intents. A dependency skip is explained
// to the user; an unmet condition is the planned quiet outcome.
const (
	skipReasonDependency = "dependency unavailable"
	skipReasonCondition  = "condition not met"
)

// task is the orchestrator's mutable record of one client turn. All fields
// are guarded by the orchestrator mutex except those set before the task
// goroutine starts.
type task struct {
	id          string
	clientID    string
	state       TaskState
	intents     []intent.ParsedIntent
	results     map[string]executor.ExecutionResult
	startedAt   time.Time
	completedAt time.Time
	cancel      stdcontext.CancelFunc
}

// Orchestrator owns one live task per client and runs the
// parse → acknowledge → execute → emit pipeline for each input.
type Orchestrator struct {
	parser   *intent.Parser
	exec     *executor.Executor
	contexts *context.Manager
	emitter  Emitter
	synth    tts.Synthesizer
	events   *bus.Bus
	logger    *observability.Logger
	tracer    *observability.TracerProvider
	metrics   *Metrics
	collector *observability.MetricsCollector
	hints     modality.Hints

	mu    sync.Mutex
	tasks map[string]*task
}

// Options carries the optional collaborators of an Orchestrator.
type Options struct {
	Synthesizer tts.Synthesizer
	Tracer      *observability.TracerProvider
	Metrics     *Metrics
	Collector   *observability.MetricsCollector
	Logger      *observability.Logger
	Hints       modality.Hints
}

// New wires an Orchestrator. parser, exec, contexts, emitter, and events are
// required; everything in opts falls back to a working default.
func New(parser *intent.Parser, exec *executor.Executor, contexts *context.Manager, emitter Emitter, events *bus.Bus, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = observability.NewTracerProvider(observability.TracingConfig{})
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}
	synth := opts.Synthesizer
	if synth == nil {
		synth = tts.Mock{}
	}
	collector := opts.Collector
	if collector == nil {
		collector, _ = observability.NewMetricsCollector(observability.MetricsConfig{})
	}
	return &Orchestrator{
		parser:    parser,
		exec:      exec,
		contexts:  contexts,
		emitter:   emitter,
		synth:     synth,
		events:    events,
		logger:    logger,
		tracer:    tracer,
		metrics:   metrics,
		collector: collector,
		hints:     opts.Hints,
		tasks:     make(map[string]*task),
	}
}

// HandleInput starts a task for one utterance and returns immediately; the
// pipeline runs on the task's own goroutine. An input arriving while the
// client's previous task is still live interrupts that task first and then
// replaces it, exactly as if the client had sent an explicit interrupt.
func (o *Orchestrator) HandleInput(clientID, text string) string {
	taskCtx, cancel := stdcontext.WithCancel(stdcontext.Background())
	t := &task{
		id:        uuid.NewString(),
		clientID:  clientID,
		state:     StatePending,
		results:   make(map[string]executor.ExecutionResult),
		startedAt: time.Now(),
		cancel:    cancel,
	}
	taskCtx = observability.ContextWithClientID(taskCtx, clientID)
	taskCtx = observability.ContextWithTraceID(taskCtx, t.id)

	var replacedTaskID string
	o.mu.Lock()
	if prev := o.tasks[clientID]; prev != nil && !prev.state.Terminal() {
		o.finishLocked(prev, StateInterrupted)
		prev.cancel()
		replacedTaskID = prev.id
	}
	o.tasks[clientID] = t
	o.mu.Unlock()

	if replacedTaskID != "" {
		o.emitter.SendProgress(clientID, progressPayload(replacedTaskID, StateInterrupted, ""))
		o.events.Emit(TopicTaskInterrupted, TaskEvent{ClientID: clientID, TaskID: replacedTaskID, State: StateInterrupted})
	}

	async.Go(o.logger, "task-"+t.id, func() {
		defer cancel()
		o.runTask(taskCtx, t, text)
	})
	return t.id
}

// HandleInterrupt cancels the client's live task, if any. Already-dispatched
// capability calls observe the cancellation and settle as Interrupted;
// already-emitted results stand.
func (o *Orchestrator) HandleInterrupt(clientID string) {
	o.mu.Lock()
	t := o.tasks[clientID]
	if t == nil || t.state.Terminal() {
		o.mu.Unlock()
		return
	}
	o.finishLocked(t, StateInterrupted)
	t.cancel()
	taskID := t.id
	o.mu.Unlock()

	o.emitter.SendProgress(clientID, progressPayload(taskID, StateInterrupted, ""))
	o.events.Emit(TopicTaskInterrupted, TaskEvent{ClientID: clientID, TaskID: taskID, State: StateInterrupted})
}

// HandleTaskStatusRequest answers a task_status query over the progress
// channel.
func (o *Orchestrator) HandleTaskStatusRequest(clientID, taskID string) {
	status := o.TaskStatus(clientID)
	if status == nil || (taskID != "" && status.TaskID != taskID) {
		o.emitter.SendError(clientID, errorPayload("TASK_NOT_FOUND", "I don't have a task with that id."))
		return
	}
	o.emitter.SendProgress(clientID, progressPayload(status.TaskID, status.State,
		fmt.Sprintf("%d of %d intents settled", len(status.Results), len(status.Intents))))
}

// HandleContextUpdate applies a client-pushed context change.
func (o *Orchestrator) HandleContextUpdate(ctx stdcontext.Context, clientID, updateType string, data map[string]any) {
	if err := o.contexts.ApplyUpdate(ctx, clientID, updateType, data); err != nil {
		o.logger.WarnContext(ctx, "context update rejected", "client_id", clientID, "type", updateType, "error", err)
		o.emitter.SendError(clientID, errorPayload("CONTEXT_UPDATE_FAILED", errors.UserMessage(err)))
	}
}

// EndSession drops session-scoped context when a client disconnects.
func (o *Orchestrator) EndSession(clientID string) {
	o.contexts.EndSession(clientID)
}

// TaskStatus returns the client's most recent task, terminal or not, or nil
// if the client never had one.
func (o *Orchestrator) TaskStatus(clientID string) *TaskStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.tasks[clientID]
	if t == nil {
		return nil
	}

	status := &TaskStatus{
		TaskID:    t.id,
		State:     t.state,
		Intents:   append([]intent.ParsedIntent(nil), t.intents...),
		Results:   make(map[string]executor.ExecutionResult, len(t.results)),
		StartedAt: t.startedAt,
	}
	for id, r := range t.results {
		status.Results[id] = r
	}
	if !t.completedAt.IsZero() {
		completed := t.completedAt
		status.CompletedAt = &completed
	}
	return status
}

func (o *Orchestrator) runTask(ctx stdcontext.Context, t *task, text string) {
	o.metrics.IncActiveTasks()
	defer o.metrics.DecActiveTasks()

	ctx, span := o.tracer.StartSpan(ctx, observability.SpanTaskRun, observability.TaskAttrs(t.id)...)
	defer span.End()

	snapshot, err := o.contexts.Snapshot(ctx, t.clientID, text)
	if err != nil {
		// A degraded snapshot is better than a dead turn.
		o.logger.WarnContext(ctx, "context snapshot failed", "error", err)
		snapshot = nil
	}

	parseCtx, parseSpan := o.tracer.StartSpan(ctx, observability.SpanIntentParse)
	parseStart := time.Now()
	plan, err := o.parser.Parse(parseCtx, text, snapshot)
	parseSpan.End()
	o.collector.RecordParse(ctx, parseStatus(plan, err), time.Since(parseStart))
	if err != nil {
		o.logger.ErrorContext(ctx, "parse failed", "error", err)
		o.emitter.SendError(t.clientID, errorPayload("PARSE_FAILED", errors.UserMessage(err)))
		if o.finish(t, StateFailed) {
			o.events.Emit(TopicTaskFailed, TaskEvent{ClientID: t.clientID, TaskID: t.id, State: StateFailed})
		}
		return
	}

	if plan.Clarification != nil {
		o.emitter.SendClarify(t.clientID, clarifyPayload(plan.Clarification))
		o.finish(t, StateCompleted)
		return
	}

	o.mu.Lock()
	t.intents = plan.Intents
	if t.state.Terminal() {
		// Interrupted while parsing; keep the terminal state.
		o.mu.Unlock()
		return
	}
	t.state = StateRunning
	o.mu.Unlock()

	if plan.RequiresAcknowledgment {
		o.emitter.SendAck(t.clientID, protocol.AckPayload{Text: ackText, Audio: o.synthesize(ctx, ackText)})
	}
	o.events.Emit(TopicTaskStarted, TaskEvent{ClientID: t.clientID, TaskID: t.id, State: StateRunning})

	byID := make(map[string]*intent.ParsedIntent, len(plan.Intents))
	for i := range plan.Intents {
		byID[plan.Intents[i].ID] = &plan.Intents[i]
	}

	for waveIdx, wave := range plan.ExecutionOrder {
		if ctx.Err() != nil {
			break
		}
		if len(plan.ExecutionOrder) > 1 {
			o.emitter.SendProgress(t.clientID, progressPayload(t.id, StateRunning,
				fmt.Sprintf("wave %d of %d", waveIdx+1, len(plan.ExecutionOrder))))
		}
		o.runWave(ctx, t, wave, waveIdx, byID)
	}

	if ctx.Err() != nil {
		// HandleInterrupt (or an implicit replace) already marked the task
		// and notified the client.
		o.finish(t, StateInterrupted)
		return
	}
	if o.finish(t, StateCompleted) {
		o.emitter.SendProgress(t.clientID, progressPayload(t.id, StateCompleted, ""))
		o.events.Emit(TopicTaskCompleted, TaskEvent{ClientID: t.clientID, TaskID: t.id, State: StateCompleted})
	}
}

// runWave settles every intent in one wave. Skips are decided first from the
// already-settled earlier waves; the remainder run concurrently, and each
// result is emitted to the client as soon as it settles rather than when the
// wave does.
func (o *Orchestrator) runWave(ctx stdcontext.Context, t *task, wave []string, waveIdx int, byID map[string]*intent.ParsedIntent) {
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanWaveRun,
		attribute.Int(observability.AttrWave, waveIdx+1))
	defer span.End()

	var runnable []*intent.ParsedIntent
	for _, id := range wave {
		it := byID[id]
		if skip, reason := o.shouldSkip(it, t); skip {
			result := executor.ExecutionResult{
				IntentID: it.ID,
				Action:   it.Action,
				Skipped:  true,
				Error:    reason,
			}
			o.recordResult(ctx, t, result)
			o.emitResult(ctx, t, it, result)
			continue
		}
		runnable = append(runnable, it)
	}

	var wg sync.WaitGroup
	for _, it := range runnable {
		wg.Add(1)
		go func(it *intent.ParsedIntent) {
			defer wg.Done()
			execCtx, execSpan := o.tracer.StartSpan(ctx, observability.SpanIntentExecute,
				observability.IntentAttrs(it.ID, it.Action)...)
			result := o.exec.Execute(execCtx, *it)
			execSpan.End()
			o.recordResult(execCtx, t, result)
			o.emitResult(ctx, t, it, result)
		}(it)
	}
	wg.Wait()
}

// shouldSkip applies the cascade rules: a failed, skipped, or interrupted
// dependency makes the intent unavailable; an unmet condition skips it.
func (o *Orchestrator) shouldSkip(it *intent.ParsedIntent, t *task) (bool, string) {
	o.mu.Lock()
	results := make(map[string]executor.ExecutionResult, len(it.Dependencies))
	for _, dep := range it.Dependencies {
		results[dep] = t.results[dep]
	}
	o.mu.Unlock()

	for _, dep := range it.Dependencies {
		if r := results[dep]; !r.Success {
			return true, skipReasonDependency
		}
	}
	if it.Conditional && it.ConditionExpr != "" {
		scope := conditionScope(it.Dependencies, results)
		ok, err := condition.Eval(it.ConditionExpr, scope)
		if err != nil {
			o.logger.Warn("condition evaluation failed",
				"intent_id", it.ID, "expr", it.ConditionExpr, "error", err)
			return true, skipReasonCondition
		}
		if !ok {
			return true, skipReasonCondition
		}
	}
	return false, ""
}

// conditionScope exposes each dependency's result data under its intent id
// and under its action, both full and with the verb prefix stripped, so
// "weather.isRainy" finds the get_weather result.
func conditionScope(deps []string, results map[string]executor.ExecutionResult) map[string]any {
	scope := make(map[string]any, len(deps)*3)
	for _, dep := range deps {
		r := results[dep]
		data := r.Data
		scope[dep] = data
		if r.Action != "" {
			scope[r.Action] = data
			if _, short, ok := strings.Cut(r.Action, "_"); ok && short != "" {
				if _, taken := scope[short]; !taken {
					scope[short] = data
				}
			}
		}
	}
	return scope
}

func (o *Orchestrator) recordResult(ctx stdcontext.Context, t *task, result executor.ExecutionResult) {
	o.mu.Lock()
	t.results[result.IntentID] = result
	o.mu.Unlock()
	o.metrics.ObserveIntent(result.Action, outcomeLabel(result), result.Duration)
	o.collector.RecordIntentExecution(ctx, result.Action, outcomeLabel(result), result.Duration)
}

func parseStatus(plan *intent.ParseResult, err error) string {
	switch {
	case err != nil:
		return "failure"
	case plan.Clarification != nil:
		return "clarification"
	default:
		return "success"
	}
}

func outcomeLabel(result executor.ExecutionResult) string {
	switch {
	case result.Success:
		return "success"
	case result.Skipped:
		return "skipped"
	case result.Interrupted():
		return "interrupted"
	default:
		return "failure"
	}
}

func (o *Orchestrator) finish(t *task, state TaskState) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finishLocked(t, state)
}

func (o *Orchestrator) finishLocked(t *task, state TaskState) bool {
	if t.state.Terminal() {
		return false
	}
	t.state = state
	t.completedAt = time.Now()
	o.metrics.ObserveTaskDuration(state, t.completedAt.Sub(t.startedAt))
	return true
}

func (o *Orchestrator) synthesize(ctx stdcontext.Context, text string) []byte {
	result, err := o.synth.Synthesize(ctx, text)
	if err != nil {
		o.logger.WarnContext(ctx, "speech synthesis failed", "error", err)
		return nil
	}
	return result.Audio
}

func progressPayload(taskID string, state TaskState, message string) protocol.ProgressPayload {
	return protocol.ProgressPayload{TaskID: taskID, Status: string(state), Message: message}
}

func errorPayload(code, message string) protocol.ErrorPayload {
	return protocol.ErrorPayload{Code: code, Message: message}
}

func clarifyPayload(c *intent.Clarification) protocol.ClarifyPayload {
	return protocol.ClarifyPayload{Question: c.Question, Options: c.Options}
}
