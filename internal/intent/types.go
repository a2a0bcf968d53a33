// Package intent turns one user utterance plus context into a dependency
// graph of typed intents and an execution-order plan. Semantic decomposition
// is delegated to a language-understanding provider; this package owns wave
// layering and the acknowledgment decision.
package intent

import (
	stdcontext "context"

	"nova/internal/context"
)

// ParsedIntent is one discrete action derived from an utterance. IDs are
// unique within a single parse result, and dependencies reference only
// sibling intents from the same parse.
type ParsedIntent struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty"`
	Conditional   bool           `json:"conditional,omitempty"`
	ConditionExpr string         `json:"conditionExpr,omitempty"`
}

// Clarification is a question posed back to the user when the utterance is
// too ambiguous to act on.
type Clarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// ParseResult is the full plan for one turn. Either Intents is populated or
// Clarification is; never both meaningfully.
type ParseResult struct {
	Intents                []ParsedIntent `json:"intents"`
	ExecutionOrder         [][]string     `json:"executionOrder"`
	RequiresAcknowledgment bool           `json:"requiresAcknowledgment"`
	Clarification          *Clarification `json:"clarificationNeeded,omitempty"`
}

// ProviderResult is the raw decomposition returned by the
// language-understanding provider, before wave layering.
type ProviderResult struct {
	Intents       []ParsedIntent `json:"intents"`
	Clarification *Clarification `json:"clarificationNeeded,omitempty"`
}

// Provider is the external language-understanding boundary.
type Provider interface {
	ParseIntent(ctx stdcontext.Context, text string, snapshot *context.Snapshot) (*ProviderResult, error)
}

// fastActions answer quickly enough that a spoken acknowledgment would only
// add filler. Anything outside this set gets an immediate ack while the work
// proceeds.
var fastActions = map[string]bool{
	"get_time":    true,
	"get_date":    true,
	"get_weather": true,
	"simple_math": true,
}

// IsFastAction reports whether action belongs to the fixed fast-action set.
func IsFastAction(action string) bool {
	return fastActions[action]
}
