package intent

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"nova/internal/context"
	"nova/internal/llm"
	"nova/internal/observability"
)

const decompositionSystemPrompt = `You decompose a user utterance into discrete intents for a voice assistant.

Respond with JSON only, no prose, in this shape:
{
  "intents": [
    {
      "id": "i1",
      "action": "get_weather",
      "parameters": {"location": "here"},
      "dependencies": [],
      "conditional": false,
      "conditionExpr": ""
    }
  ],
  "clarificationNeeded": null
}

Rules:
- "dependencies" lists ids of other intents in this same response whose
  results this intent needs.
- Set "conditional": true and fill "conditionExpr" with a dotted-path boolean
  expression over a dependency's result (for example "weather.isRainy") when
  the intent should only run if that condition holds.
- If the utterance is too ambiguous to act on, return an empty "intents"
  array and set "clarificationNeeded" to {"question": "...", "options": ["..."]}.
- Prefer these action names when they fit: get_time, get_date, get_weather,
  simple_math, get_news, web_search, fetch_page, set_reminder, remember,
  write_document.`

// LLMProvider implements Provider on a chat-completion model. Model output is
// expected to be strict JSON; malformed output goes through jsonrepair before
// the turn is declared unparseable.
type LLMProvider struct {
	client llm.Client
	logger *observability.Logger
}

// NewLLMProvider builds the language-understanding boundary on an llm.Client.
func NewLLMProvider(client llm.Client, logger *observability.Logger) *LLMProvider {
	if logger == nil {
		logger = observability.Nop()
	}
	return &LLMProvider{client: client, logger: logger}
}

func (p *LLMProvider) ParseIntent(ctx stdcontext.Context, text string, snapshot *context.Snapshot) (*ProviderResult, error) {
	user, err := buildUserPrompt(text, snapshot)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: decompositionSystemPrompt},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("language provider: %w", err)
	}

	result, err := decodeProviderResult(resp.Content)
	if err != nil {
		p.logger.WarnContext(ctx, "provider returned unparseable decomposition", "error", err)
		return nil, err
	}
	return result, nil
}

func buildUserPrompt(text string, snapshot *context.Snapshot) (string, error) {
	var b strings.Builder
	b.WriteString("Utterance: ")
	b.WriteString(text)
	if snapshot != nil {
		ctxJSON, err := json.Marshal(snapshot)
		if err != nil {
			return "", fmt.Errorf("encode context snapshot: %w", err)
		}
		b.WriteString("\n\nContext:\n")
		b.Write(ctxJSON)
	}
	return b.String(), nil
}

// decodeProviderResult parses model output, stripping code fences and
// repairing almost-JSON before giving up.
func decodeProviderResult(content string) (*ProviderResult, error) {
	cleaned := stripCodeFence(content)

	var result ProviderResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return nil, fmt.Errorf("decode decomposition: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return nil, fmt.Errorf("decode repaired decomposition: %w", err)
		}
	}

	if result.Clarification != nil && result.Clarification.Question == "" {
		result.Clarification = nil
	}
	return &result, nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
