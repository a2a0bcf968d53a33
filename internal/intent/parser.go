package intent

import (
	stdcontext "context"
	"fmt"
	"sort"

	"nova/internal/context"
	"nova/internal/errors"
	"nova/internal/observability"
)

// Parser plans one turn: provider decomposition, wave layering, and the
// acknowledgment decision.
type Parser struct {
	provider Provider
	logger   *observability.Logger
}

// NewParser builds a Parser around a language-understanding provider.
func NewParser(provider Provider, logger *observability.Logger) *Parser {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Parser{provider: provider, logger: logger}
}

// Parse produces the execution plan for one utterance. Provider failures are
// surfaced as a ParseError for the turn and are not retried here.
func (p *Parser) Parse(ctx stdcontext.Context, text string, snapshot *context.Snapshot) (*ParseResult, error) {
	decomposed, err := p.provider.ParseIntent(ctx, text, snapshot)
	if err != nil {
		return nil, errors.NewParseError(err, "I couldn't understand that request.")
	}

	if decomposed.Clarification != nil {
		return &ParseResult{Clarification: decomposed.Clarification}, nil
	}

	order, err := PlanWaves(decomposed.Intents)
	if err != nil {
		return nil, errors.NewParseError(err, "I couldn't plan that request.")
	}

	result := &ParseResult{
		Intents:                decomposed.Intents,
		ExecutionOrder:         order,
		RequiresAcknowledgment: requiresAcknowledgment(decomposed.Intents),
	}
	p.logger.DebugContext(ctx, "parsed utterance",
		"intents", len(result.Intents),
		"waves", len(result.ExecutionOrder),
		"ack", result.RequiresAcknowledgment,
	)
	return result, nil
}

// requiresAcknowledgment applies the deterministic policy: only a single
// fast-action intent skips the ack.
func requiresAcknowledgment(intents []ParsedIntent) bool {
	if len(intents) == 1 && IsFastAction(intents[0].Action) {
		return false
	}
	return true
}

// PlanWaves layers intents into ordered waves: an intent with no dependencies
// lands in wave 1, otherwise one wave past its deepest dependency. Intents
// sharing a wave are mutually independent. Unknown dependency references and
// cycles are planning errors.
func PlanWaves(intents []ParsedIntent) ([][]string, error) {
	if len(intents) == 0 {
		return nil, nil
	}

	byID := make(map[string]*ParsedIntent, len(intents))
	for i := range intents {
		it := &intents[i]
		if it.ID == "" {
			return nil, fmt.Errorf("intent with empty id")
		}
		if _, dup := byID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate intent id %q", it.ID)
		}
		byID[it.ID] = it
	}
	for _, it := range intents {
		for _, dep := range it.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("intent %q depends on unknown intent %q", it.ID, dep)
			}
		}
	}

	waves := make(map[string]int, len(intents))
	assigned := 0
	for assigned < len(intents) {
		progressed := false
		for _, it := range intents {
			if _, done := waves[it.ID]; done {
				continue
			}
			wave := 1
			ready := true
			for _, dep := range it.Dependencies {
				depWave, ok := waves[dep]
				if !ok {
					ready = false
					break
				}
				if depWave+1 > wave {
					wave = depWave + 1
				}
			}
			if ready {
				waves[it.ID] = wave
				assigned++
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among intents")
		}
	}

	maxWave := 0
	for _, w := range waves {
		if w > maxWave {
			maxWave = w
		}
	}
	order := make([][]string, maxWave)
	for _, it := range intents {
		w := waves[it.ID]
		order[w-1] = append(order[w-1], it.ID)
	}
	for _, wave := range order {
		sort.Strings(wave)
	}
	return order, nil
}
