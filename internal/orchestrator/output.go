package orchestrator

import (
	stdcontext "context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nova/internal/errors"
	"nova/internal/executor"
	"nova/internal/intent"
	"nova/internal/modality"
	"nova/internal/protocol"
)

// emitResult routes one settled result to the client as soon as it is
// available. A failure speaks its action-derived error code; an intent
// skipped because a dependency failed gets a spoken explanation so a partial
// task never goes silent. Condition-not-met skips and interrupted results
// emit nothing.
func (o *Orchestrator) emitResult(ctx stdcontext.Context, t *task, it *intent.ParsedIntent, result executor.ExecutionResult) {
	if result.Skipped {
		if result.Error == skipReasonDependency {
			text := fmt.Sprintf("I skipped %s because an earlier step failed.",
				strings.ReplaceAll(it.Action, "_", " "))
			o.emitter.SendSpeech(t.clientID, protocol.SpeechPayload{
				Text:  text,
				Audio: o.synthesize(ctx, text),
			})
		}
		return
	}
	if result.Interrupted() {
		return
	}

	o.events.Emit(TopicIntentResult, IntentResultEvent{
		ClientID: t.clientID,
		TaskID:   t.id,
		Intent:   *it,
		Result:   result,
	})

	if !result.Success {
		actionErr := errors.NewActionError(it.Action, stderrors.New(result.Error))
		o.emitter.SendError(t.clientID, errorPayload(actionErr.Code(), errors.UserMessage(actionErr)))
		return
	}
	o.emitSuccess(ctx, t, it, result)
}

func (o *Orchestrator) emitSuccess(ctx stdcontext.Context, t *task, it *intent.ParsedIntent, result executor.ExecutionResult) {
	decision := modality.Decide(result, classify(it, result), o.hints)

	if decision.Voice {
		text := decision.Highlights
		if text == "" {
			text = spokenText(result)
		}
		o.emitter.SendSpeech(t.clientID, protocol.SpeechPayload{
			Text:  text,
			Audio: o.synthesize(ctx, text),
		})
	}

	if decision.Document {
		path, err := writeDocument(it, result, decision)
		if err != nil {
			o.logger.WarnContext(ctx, "document write failed",
				"intent_id", it.ID, "action", it.Action, "error", err)
			return
		}
		o.emitter.SendDocument(t.clientID, protocol.DocumentPayload{
			Path: path,
			Type: string(decision.DocumentType),
		})
	}
}

// classify maps a successful result to the content type the modality table
// expects. The fast-action set stays voice-only; document-bearing or
// long-form results escalate.
func classify(it *intent.ParsedIntent, result executor.ExecutionResult) modality.ContentType {
	if !result.Success {
		return modality.ContentError
	}
	if _, ok := result.Data["code"].(string); ok {
		return modality.ContentCode
	}
	if _, ok := result.Data["records"]; ok {
		return modality.ContentData
	}
	if intent.IsFastAction(it.Action) {
		return modality.ContentSimpleAnswer
	}
	switch it.Action {
	case "write_document", "get_news", "web_search", "fetch_page":
		return modality.ContentComplexResult
	}
	if text, ok := result.Data["text"].(string); ok && len(text) > 240 {
		return modality.ContentComplexResult
	}
	return modality.ContentSimpleAnswer
}

// spokenText picks the speakable sentence out of a result.
func spokenText(result executor.ExecutionResult) string {
	for _, key := range []string{"spoken", "summary", "text"} {
		if v, ok := result.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return "Done."
}

// writeDocument materializes a document-bearing result on disk and returns
// the written path.
func writeDocument(it *intent.ParsedIntent, result executor.ExecutionResult, decision modality.Decision) (string, error) {
	content, ext, err := documentContent(result, decision.DocumentType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(decision.DocumentLocation, 0o755); err != nil {
		return "", fmt.Errorf("create document dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s", it.Action, time.Now().Format("20060102-150405"), ext)
	path := filepath.Join(decision.DocumentLocation, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

func documentContent(result executor.ExecutionResult, docType modality.DocumentType) ([]byte, string, error) {
	switch docType {
	case modality.DocumentCode:
		if code, ok := result.Data["code"].(string); ok {
			ext := ".txt"
			if lang, ok := result.Data["language"].(string); ok && lang != "" {
				ext = "." + lang
			}
			return []byte(code), ext, nil
		}
		return nil, "", fmt.Errorf("code result carries no code field")
	case modality.DocumentData:
		payload := any(result.Data)
		if records, ok := result.Data["records"]; ok {
			payload = records
		}
		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("encode data document: %w", err)
		}
		return body, ".json", nil
	default:
		for _, key := range []string{"document", "markdown", "text", "summary"} {
			if v, ok := result.Data[key].(string); ok && v != "" {
				return []byte(v), ".md", nil
			}
		}
		return nil, "", fmt.Errorf("result carries no document body")
	}
}
