package intent

import (
	"testing"

	"nova/internal/context"
)

func snapshotWithMemory(t *testing.T) *context.Snapshot {
	t.Helper()
	return &context.Snapshot{
		RelevantMemory: map[string]any{"preference.units": "metric"},
	}
}
