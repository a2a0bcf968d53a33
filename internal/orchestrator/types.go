// Package orchestrator drives the per-client task state machine: parse the
// utterance, acknowledge or clarify, execute dependency waves, decide output
// modality, and emit results as they settle.
package orchestrator

import (
	"time"

	"nova/internal/executor"
	"nova/internal/intent"
	"nova/internal/protocol"
)

// TaskState is the lifecycle position of one task. The last three states are
// terminal.
type TaskState string

const (
	StatePending     TaskState = "pending"
	StateRunning     TaskState = "running"
	StateCompleted   TaskState = "completed"
	StateFailed      TaskState = "failed"
	StateInterrupted TaskState = "interrupted"
)

// Terminal reports whether s is final.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateInterrupted
}

// TaskStatus is a point-in-time snapshot of a client's most recent task,
// safe to hand outside the orchestrator.
type TaskStatus struct {
	TaskID      string
	State       TaskState
	Intents     []intent.ParsedIntent
	Results     map[string]executor.ExecutionResult
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Emitter is the push side of the wire transport. All sends are
// fire-and-forget; a send to a client that is no longer live is a no-op.
type Emitter interface {
	SendAck(clientID string, payload protocol.AckPayload)
	SendSpeech(clientID string, payload protocol.SpeechPayload)
	SendDocument(clientID string, payload protocol.DocumentPayload)
	SendProgress(clientID string, payload protocol.ProgressPayload)
	SendError(clientID string, payload protocol.ErrorPayload)
	SendClarify(clientID string, payload protocol.ClarifyPayload)
}

// Bus topics published by the orchestrator.
const (
	TopicTaskStarted     = "task.started"
	TopicTaskCompleted   = "task.completed"
	TopicTaskFailed      = "task.failed"
	TopicTaskInterrupted = "task.interrupted"
	TopicIntentResult    = "intent.result"
)

// TaskEvent announces a task lifecycle transition on the bus.
type TaskEvent struct {
	ClientID string
	TaskID   string
	State    TaskState
}

// IntentResultEvent announces one settled intent on the bus.
type IntentResultEvent struct {
	ClientID string
	TaskID   string
	Intent   intent.ParsedIntent
	Result   executor.ExecutionResult
}
