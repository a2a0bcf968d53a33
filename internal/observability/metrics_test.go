package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledCollectorRecordsAreNoOps(t *testing.T) {
	collector, err := NewMetricsCollector(MetricsConfig{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	require.NotPanics(t, func() {
		collector.RecordParse(ctx, "success", 10*time.Millisecond)
		collector.RecordIntentExecution(ctx, "get_time", "success", time.Millisecond)
		collector.ClientConnected(ctx, 1)
		collector.RecordDroppedMessage(ctx, "speech")
	})
}
