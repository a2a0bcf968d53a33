package modality

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"nova/internal/executor"
)

func TestDecideSimpleAnswerVoiceOnly(t *testing.T) {
	d := Decide(executor.ExecutionResult{Success: true}, ContentSimpleAnswer, Hints{})
	assert.True(t, d.Voice)
	assert.False(t, d.Document)
	assert.False(t, d.AutoOpen)
	assert.Empty(t, d.Highlights)
}

func TestDecideErrorVoiceOnly(t *testing.T) {
	d := Decide(executor.ExecutionResult{Error: "provider unreachable"}, ContentError, Hints{})
	assert.True(t, d.Voice)
	assert.False(t, d.Document)
}

func TestDecideComplexResult(t *testing.T) {
	result := executor.ExecutionResult{
		Success: true,
		Data:    map[string]any{"summary": "Three headlines today, all about the launch."},
	}
	d := Decide(result, ContentComplexResult, Hints{HomeDir: "/home/ada"})
	assert.True(t, d.Voice)
	assert.True(t, d.Document)
	assert.Equal(t, DocumentMarkdown, d.DocumentType)
	assert.Equal(t, filepath.Join("/home/ada", "Desktop"), d.DocumentLocation)
	assert.True(t, d.AutoOpen)
	assert.Equal(t, "Three headlines today, all about the launch.", d.Highlights)
	assert.Less(t, len(d.Highlights), 500)
}

func TestDecideComplexResultClipsHighlights(t *testing.T) {
	long := strings.Repeat("every word counts ", 60)
	d := Decide(executor.ExecutionResult{
		Success: true,
		Data:    map[string]any{"text": long},
	}, ContentComplexResult, Hints{HomeDir: "/home/ada"})
	assert.Less(t, len(d.Highlights), 500)
	assert.True(t, strings.HasSuffix(d.Highlights, "..."))
}

func TestDecideCodePlacement(t *testing.T) {
	d := Decide(executor.ExecutionResult{Success: true}, ContentCode, Hints{
		HomeDir:     "/home/ada",
		ProjectPath: "/home/ada/src/darkstar",
	})
	assert.Equal(t, DocumentCode, d.DocumentType)
	assert.Equal(t, "/home/ada/src/darkstar", d.DocumentLocation)
	assert.True(t, d.AutoOpen)
	assert.Empty(t, d.Highlights)

	d = Decide(executor.ExecutionResult{Success: true}, ContentCode, Hints{HomeDir: "/home/ada"})
	assert.Equal(t, filepath.Join("/home/ada", "Desktop"), d.DocumentLocation)
}

func TestDecideDataNeverAutoOpens(t *testing.T) {
	d := Decide(executor.ExecutionResult{Success: true}, ContentData, Hints{HomeDir: "/home/ada"})
	assert.True(t, d.Document)
	assert.Equal(t, DocumentData, d.DocumentType)
	assert.Equal(t, filepath.Join("/home/ada", "Downloads"), d.DocumentLocation)
	assert.False(t, d.AutoOpen)

	d = Decide(executor.ExecutionResult{Success: true}, ContentData, Hints{HomeDir: "/home/ada", IsLog: true})
	assert.Equal(t, filepath.Join("/home/ada", ".nova", "logs"), d.DocumentLocation)
	assert.False(t, d.AutoOpen)
}
