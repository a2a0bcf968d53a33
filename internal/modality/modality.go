// Package modality maps a settled execution result and its content
// classification to output channels: spoken response, written document, or
// both. Decide is a pure function over a fixed table; the caller supplies
// the content type, nothing is inferred here.
package modality

import (
	"os"
	"path/filepath"
	"strings"

	"nova/internal/executor"
)

// ContentType classifies a result for channel selection.
type ContentType string

const (
	ContentSimpleAnswer  ContentType = "simple_answer"
	ContentComplexResult ContentType = "complex_result"
	ContentCode          ContentType = "code"
	ContentData          ContentType = "data"
	ContentError         ContentType = "error"
)

// DocumentType tells the client how to render a written artifact.
type DocumentType string

const (
	DocumentMarkdown DocumentType = "markdown"
	DocumentCode     DocumentType = "code"
	DocumentData     DocumentType = "data"
)

const highlightsLimit = 500

// Hints carries caller context that steers document placement.
type Hints struct {
	// ProjectPath places code output inside the active project.
	ProjectPath string
	// IsLog routes data output to the per-user log directory.
	IsLog bool
	// HomeDir overrides the resolved home directory, mainly for tests.
	HomeDir string
}

// Decision is the chosen output channel set for one result.
type Decision struct {
	Voice            bool
	Document         bool
	DocumentType     DocumentType
	DocumentLocation string
	AutoOpen         bool
	// Highlights is a short spoken recap, populated only for complex
	// results.
	Highlights string
}

// Decide applies the channel table:
//
//	simple_answer  → voice only
//	complex_result → voice + markdown document on the desktop, auto-opened
//	code           → voice + code document in the project (or desktop), auto-opened
//	data           → voice + data document in logs/downloads, never auto-opened
//	error          → voice only
func Decide(result executor.ExecutionResult, contentType ContentType, hints Hints) Decision {
	switch contentType {
	case ContentComplexResult:
		return Decision{
			Voice:            true,
			Document:         true,
			DocumentType:     DocumentMarkdown,
			DocumentLocation: desktopDir(hints),
			AutoOpen:         true,
			Highlights:       extractHighlights(result),
		}
	case ContentCode:
		location := hints.ProjectPath
		if location == "" {
			location = desktopDir(hints)
		}
		return Decision{
			Voice:            true,
			Document:         true,
			DocumentType:     DocumentCode,
			DocumentLocation: location,
			AutoOpen:         true,
		}
	case ContentData:
		location := downloadsDir(hints)
		if hints.IsLog {
			location = logDir(hints)
		}
		return Decision{
			Voice:            true,
			Document:         true,
			DocumentType:     DocumentData,
			DocumentLocation: location,
			AutoOpen:         false,
		}
	default:
		// simple_answer, error, and anything unclassified stay voice-only.
		return Decision{Voice: true}
	}
}

// extractHighlights builds a spoken recap from the result's own text fields,
// clipped below the highlights limit at a word boundary.
func extractHighlights(result executor.ExecutionResult) string {
	var text string
	for _, key := range []string{"spoken", "summary", "text"} {
		if v, ok := result.Data[key].(string); ok && v != "" {
			text = v
			break
		}
	}
	if text == "" {
		return ""
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) < highlightsLimit {
		return text
	}
	clipped := text[:highlightsLimit-4]
	if idx := strings.LastIndexByte(clipped, ' '); idx > 0 {
		clipped = clipped[:idx]
	}
	return clipped + "..."
}

func homeDir(hints Hints) string {
	if hints.HomeDir != "" {
		return hints.HomeDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func desktopDir(hints Hints) string {
	return filepath.Join(homeDir(hints), "Desktop")
}

func downloadsDir(hints Hints) string {
	return filepath.Join(homeDir(hints), "Downloads")
}

func logDir(hints Hints) string {
	return filepath.Join(homeDir(hints), ".nova", "logs")
}
