package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapability struct {
	meta      Metadata
	healthErr error
	checked   bool
}

func (f *fakeCapability) Metadata() Metadata { return f.meta }

func (f *fakeCapability) Execute(context.Context, map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

type checkedCapability struct {
	fakeCapability
}

func (c *checkedCapability) HealthCheck(context.Context) error {
	c.checked = true
	return c.healthErr
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(context.Background(), &fakeCapability{meta: Metadata{ID: "get_time"}}))

	got, ok := r.Get("get_time")
	assert.True(t, ok)
	assert.Equal(t, "get_time", got.Metadata().ID)

	_, ok = r.Get("get_date")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(context.Background(), &fakeCapability{meta: Metadata{ID: "get_time"}}))
	err := r.Register(context.Background(), &fakeCapability{meta: Metadata{ID: "get_time"}})
	assert.Error(t, err)
}

func TestRegistryRejectsEmptyID(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(context.Background(), &fakeCapability{}))
}

func TestRegistryEnforcesDependencies(t *testing.T) {
	r := NewRegistry()
	dependent := &fakeCapability{meta: Metadata{ID: "write_document", Dependencies: []string{"fetch_page"}}}

	err := r.Register(context.Background(), dependent)
	assert.Error(t, err)

	require.NoError(t, r.Register(context.Background(), &fakeCapability{meta: Metadata{ID: "fetch_page"}}))
	assert.NoError(t, r.Register(context.Background(), dependent))
}

func TestRegistryRunsHealthCheck(t *testing.T) {
	r := NewRegistry()

	healthy := &checkedCapability{fakeCapability{meta: Metadata{ID: "get_weather"}}}
	require.NoError(t, r.Register(context.Background(), healthy))
	assert.True(t, healthy.checked)

	sick := &checkedCapability{fakeCapability{
		meta:      Metadata{ID: "get_news"},
		healthErr: errors.New("provider unreachable"),
	}}
	err := r.Register(context.Background(), sick)
	require.Error(t, err)
	_, ok := r.Get("get_news")
	assert.False(t, ok)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"simple_math", "get_time", "get_date"} {
		require.NoError(t, r.Register(context.Background(), &fakeCapability{meta: Metadata{ID: id}}))
	}

	metas := r.List()
	require.Len(t, metas, 3)
	assert.Equal(t, "get_date", metas[0].ID)
	assert.Equal(t, "get_time", metas[1].ID)
	assert.Equal(t, "simple_math", metas[2].ID)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(context.Background(), &fakeCapability{meta: Metadata{ID: "get_time"}}))
	r.Unregister("get_time")
	_, ok := r.Get("get_time")
	assert.False(t, ok)

	// Removing something absent is a no-op.
	r.Unregister("get_time")
}
