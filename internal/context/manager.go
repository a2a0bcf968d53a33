// Package context assembles the three-tier context a parse call sees:
// short-term recent intents, the session's active resource, and a bounded
// slice of long-term memory. Snapshots are deterministic so the same inputs
// always produce the same parser context.
package context

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"nova/internal/memory"
	"nova/internal/token"
)

const (
	defaultMaxRecent      = 3
	defaultRecentWindow   = 60 * time.Second
	defaultSnapshotBudget = 1024 // tokens of serialized long-term memory
)

// RecentIntent is one short-term history entry used to resolve follow-ups.
type RecentIntent struct {
	Intent    string    `json:"intent"`
	Action    string    `json:"action"`
	Result    any       `json:"result,omitempty"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// ActiveResource is the single resource a client session is focused on.
type ActiveResource struct {
	Type        string         `json:"type"`
	Path        string         `json:"path,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ActivatedAt time.Time      `json:"activatedAt"`
}

// Snapshot is the bounded context handed to the intent parser.
type Snapshot struct {
	RecentIntents  []RecentIntent  `json:"recentIntents"`
	ActiveResource *ActiveResource `json:"activeResource"`
	RelevantMemory map[string]any  `json:"relevantMemory"`
}

// Manager tracks per-client short-term and session state and selects the
// relevant subset of long-term memory for each turn.
type Manager struct {
	store memory.Store

	mu     sync.RWMutex
	recent map[string][]RecentIntent
	active map[string]*ActiveResource

	maxRecent      int
	recentWindow   time.Duration
	snapshotBudget int

	now func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithRecentLimit overrides how many recent intents a snapshot may carry.
func WithRecentLimit(n int) Option {
	return func(m *Manager) { m.maxRecent = n }
}

// WithRecentWindow overrides the short-term recency window.
func WithRecentWindow(d time.Duration) Option {
	return func(m *Manager) { m.recentWindow = d }
}

// WithSnapshotBudget overrides the token budget for relevant memory.
func WithSnapshotBudget(tokens int) Option {
	return func(m *Manager) { m.snapshotBudget = tokens }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager on top of a durable memory store.
func NewManager(store memory.Store, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		recent:         make(map[string][]RecentIntent),
		active:         make(map[string]*ActiveResource),
		maxRecent:      defaultMaxRecent,
		recentWindow:   defaultRecentWindow,
		snapshotBudget: defaultSnapshotBudget,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordIntent appends one executed intent to a client's short-term history.
func (m *Manager) RecordIntent(clientID string, entry RecentIntent) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.recent[clientID], entry)
	// Keep a little slack beyond maxRecent; Snapshot applies the hard bound.
	if keep := m.maxRecent * 2; len(history) > keep {
		history = history[len(history)-keep:]
	}
	m.recent[clientID] = history
}

// SetActiveResource replaces the client's session resource wholesale.
func (m *Manager) SetActiveResource(clientID string, res *ActiveResource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res == nil {
		delete(m.active, clientID)
		return
	}
	if res.ActivatedAt.IsZero() {
		res.ActivatedAt = m.now()
	}
	m.active[clientID] = res
}

// ActiveResource returns the client's current session resource, or nil.
func (m *Manager) ActiveResource(clientID string) *ActiveResource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[clientID]
}

// EndSession drops session-scoped state on disconnect. Short-term history is
// kept; the recency window ages it out and a reconnect may continue the
// conversation.
func (m *Manager) EndSession(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, clientID)
}

// Remember writes one long-term memory entry; the write is complete only once
// the store confirms durability.
func (m *Manager) Remember(ctx context.Context, key string, value any) error {
	return m.store.Set(ctx, key, value)
}

// Forget removes one long-term memory entry.
func (m *Manager) Forget(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

// ApplyUpdate handles a context_update pushed by the client.
func (m *Manager) ApplyUpdate(ctx context.Context, clientID, updateType string, data map[string]any) error {
	switch updateType {
	case "focus":
		res := &ActiveResource{ActivatedAt: m.now()}
		if t, ok := data["type"].(string); ok {
			res.Type = t
		}
		if p, ok := data["path"].(string); ok {
			res.Path = p
		}
		if meta, ok := data["metadata"].(map[string]any); ok {
			res.Metadata = meta
		}
		m.SetActiveResource(clientID, res)
		return nil
	case "memory":
		for key, value := range data {
			if err := m.Remember(ctx, key, value); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown context update type %q", updateType)
	}
}

// Snapshot builds the bounded context for one turn. Long-term selection is
// deterministic: keys are visited in sorted order and kept when their
// namespace or entity name appears in the utterance, with user and preference
// entries always eligible, until the token budget is spent.
func (m *Manager) Snapshot(ctx context.Context, clientID, utterance string) (*Snapshot, error) {
	snap := &Snapshot{RelevantMemory: make(map[string]any)}

	now := m.now()
	m.mu.RLock()
	for _, entry := range m.recent[clientID] {
		if now.Sub(entry.Timestamp) <= m.recentWindow {
			snap.RecentIntents = append(snap.RecentIntents, entry)
		}
	}
	if res := m.active[clientID]; res != nil {
		copied := *res
		snap.ActiveResource = &copied
	}
	m.mu.RUnlock()

	if extra := len(snap.RecentIntents) - m.maxRecent; extra > 0 {
		snap.RecentIntents = snap.RecentIntents[extra:]
	}

	keys, err := m.store.Keys(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list memory keys: %w", err)
	}
	sort.Strings(keys)

	words := utteranceWords(utterance)
	budget := m.snapshotBudget
	for _, key := range keys {
		if !m.keyRelevant(key, words) {
			continue
		}
		value, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read memory %s: %w", key, err)
		}
		if !ok {
			continue
		}
		cost := token.Estimate(key) + token.Estimate(fmt.Sprint(value))
		if cost > budget {
			break
		}
		budget -= cost
		snap.RelevantMemory[key] = value
	}

	return snap, nil
}

func (m *Manager) keyRelevant(key string, words map[string]bool) bool {
	ns := memory.Namespace(key)
	// Identity and preferences shape almost every turn.
	if ns == memory.NamespaceUser || ns == memory.NamespacePreference {
		return true
	}
	if words[ns] {
		return true
	}
	_, name, _ := strings.Cut(key, ".")
	for _, part := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}) {
		if words[part] {
			return true
		}
	}
	return false
}

func utteranceWords(utterance string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(utterance)) {
		words[strings.Trim(w, ".,!?;:'\"")] = true
	}
	return words
}
