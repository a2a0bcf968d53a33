package context

import (
	stdcontext "context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova/internal/memory"
)

func TestSnapshotBoundsRecentIntents(t *testing.T) {
	now := time.Now()
	mgr := NewManager(memory.NewInMemoryStore(), WithClock(func() time.Time { return now }))

	for i := 0; i < 5; i++ {
		mgr.RecordIntent("client-1", RecentIntent{Intent: "q", Action: "get_time", Success: true})
	}

	snap, err := mgr.Snapshot(stdcontext.Background(), "client-1", "and now?")
	require.NoError(t, err)
	assert.Len(t, snap.RecentIntents, 3)
}

func TestSnapshotDropsStaleIntents(t *testing.T) {
	current := time.Now()
	mgr := NewManager(memory.NewInMemoryStore(), WithClock(func() time.Time { return current }))

	mgr.RecordIntent("c", RecentIntent{Action: "get_weather", Timestamp: current.Add(-2 * time.Minute)})
	mgr.RecordIntent("c", RecentIntent{Action: "get_time", Timestamp: current.Add(-10 * time.Second)})

	snap, err := mgr.Snapshot(stdcontext.Background(), "c", "what about tomorrow?")
	require.NoError(t, err)
	require.Len(t, snap.RecentIntents, 1)
	assert.Equal(t, "get_time", snap.RecentIntents[0].Action)
}

func TestSnapshotIsolatesClients(t *testing.T) {
	mgr := NewManager(memory.NewInMemoryStore())
	mgr.RecordIntent("a", RecentIntent{Action: "get_time"})

	snap, err := mgr.Snapshot(stdcontext.Background(), "b", "hello")
	require.NoError(t, err)
	assert.Empty(t, snap.RecentIntents)
}

func TestActiveResourceReplacedWholesaleAndEndsWithSession(t *testing.T) {
	mgr := NewManager(memory.NewInMemoryStore())

	mgr.SetActiveResource("c", &ActiveResource{Type: "document", Path: "/tmp/a.md"})
	mgr.SetActiveResource("c", &ActiveResource{Type: "project", Path: "/src/nova"})

	res := mgr.ActiveResource("c")
	require.NotNil(t, res)
	assert.Equal(t, "project", res.Type)

	mgr.EndSession("c")
	assert.Nil(t, mgr.ActiveResource("c"))
}

func TestSnapshotSelectsRelevantMemory(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := stdcontext.Background()
	require.NoError(t, store.Set(ctx, "user.name", "Ada"))
	require.NoError(t, store.Set(ctx, "preference.units", "metric"))
	require.NoError(t, store.Set(ctx, "person.miguel", "coworker"))
	require.NoError(t, store.Set(ctx, "project.darkstar", map[string]any{"path": "/src/darkstar"}))

	mgr := NewManager(store)

	snap, err := mgr.Snapshot(ctx, "c", "remind Miguel about the meeting")
	require.NoError(t, err)

	assert.Contains(t, snap.RelevantMemory, "user.name")
	assert.Contains(t, snap.RelevantMemory, "preference.units")
	assert.Contains(t, snap.RelevantMemory, "person.miguel")
	assert.NotContains(t, snap.RelevantMemory, "project.darkstar")
}

func TestSnapshotRespectsTokenBudget(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := stdcontext.Background()
	require.NoError(t, store.Set(ctx, "user.bio", "a very long biography "+string(make([]byte, 0))))
	mgr := NewManager(store, WithSnapshotBudget(1))

	snap, err := mgr.Snapshot(ctx, "c", "hi")
	require.NoError(t, err)
	assert.Empty(t, snap.RelevantMemory)
}

func TestApplyUpdateFocusAndMemory(t *testing.T) {
	store := memory.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := stdcontext.Background()

	err := mgr.ApplyUpdate(ctx, "c", "focus", map[string]any{"type": "file", "path": "/tmp/x"})
	require.NoError(t, err)
	res := mgr.ActiveResource("c")
	require.NotNil(t, res)
	assert.Equal(t, "/tmp/x", res.Path)

	err = mgr.ApplyUpdate(ctx, "c", "memory", map[string]any{"preference.voice": "calm"})
	require.NoError(t, err)
	value, ok, err := store.Get(ctx, "preference.voice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "calm", value)

	err = mgr.ApplyUpdate(ctx, "c", "bogus", nil)
	assert.Error(t, err)
}
