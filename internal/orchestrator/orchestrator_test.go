package orchestrator

import (
	stdcontext "context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova/internal/bus"
	"nova/internal/capability"
	"nova/internal/context"
	"nova/internal/executor"
	"nova/internal/intent"
	"nova/internal/memory"
	"nova/internal/protocol"
)

const testClient = "client-1"

// recordingEmitter captures everything pushed toward a client.
type recordingEmitter struct {
	mu       sync.Mutex
	acks     []protocol.AckPayload
	speech   []protocol.SpeechPayload
	docs     []protocol.DocumentPayload
	progress []protocol.ProgressPayload
	errs     []protocol.ErrorPayload
	clarify  []protocol.ClarifyPayload
}

func (e *recordingEmitter) SendAck(_ string, p protocol.AckPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acks = append(e.acks, p)
}

func (e *recordingEmitter) SendSpeech(_ string, p protocol.SpeechPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speech = append(e.speech, p)
}

func (e *recordingEmitter) SendDocument(_ string, p protocol.DocumentPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs = append(e.docs, p)
}

func (e *recordingEmitter) SendProgress(_ string, p protocol.ProgressPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, p)
}

func (e *recordingEmitter) SendError(_ string, p protocol.ErrorPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, p)
}

func (e *recordingEmitter) SendClarify(_ string, p protocol.ClarifyPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clarify = append(e.clarify, p)
}

func (e *recordingEmitter) counts() (acks, speech, docs, errs, clarify int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.acks), len(e.speech), len(e.docs), len(e.errs), len(e.clarify)
}

// planProvider returns a fixed decomposition for every utterance.
type planProvider struct {
	result *intent.ProviderResult
	err    error
}

func (p *planProvider) ParseIntent(stdcontext.Context, string, *context.Snapshot) (*intent.ProviderResult, error) {
	return p.result, p.err
}

// testCapability is a scripted capability for orchestration tests.
type testCapability struct {
	id    string
	data  map[string]any
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (c *testCapability) Metadata() capability.Metadata {
	return capability.Metadata{ID: c.id, Version: "0.0.1"}
}

func (c *testCapability) Execute(ctx stdcontext.Context, _ map[string]any) (map[string]any, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.data, c.err
}

func (c *testCapability) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fixture struct {
	orch    *Orchestrator
	emitter *recordingEmitter
	events  *bus.Bus
}

func newFixture(t *testing.T, provider intent.Provider, caps ...*testCapability) *fixture {
	t.Helper()

	registry := capability.NewRegistry()
	for _, c := range caps {
		require.NoError(t, registry.Register(stdcontext.Background(), c))
	}

	emitter := &recordingEmitter{}
	events := bus.New(nil)
	orch := New(
		intent.NewParser(provider, nil),
		executor.New(registry, nil),
		context.NewManager(memory.NewInMemoryStore()),
		emitter,
		events,
		Options{Metrics: MustNewMetrics(prometheus.NewRegistry())},
	)
	return &fixture{orch: orch, emitter: emitter, events: events}
}

func (f *fixture) waitTerminal(t *testing.T) *TaskStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		status := f.orch.TaskStatus(testClient)
		return status != nil && status.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return f.orch.TaskStatus(testClient)
}

func TestSingleFastActionSpeechOnly(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "get_time"}},
	}}
	f := newFixture(t, provider, &testCapability{
		id:   "get_time",
		data: map[string]any{"spoken": "It's 3 PM."},
	})

	f.orch.HandleInput(testClient, "what time is it?")
	status := f.waitTerminal(t)

	assert.Equal(t, StateCompleted, status.State)
	acks, speech, docs, errs, _ := f.emitter.counts()
	assert.Zero(t, acks, "fast single action needs no acknowledgment")
	assert.Equal(t, 1, speech)
	assert.Zero(t, docs)
	assert.Zero(t, errs)

	f.emitter.mu.Lock()
	assert.Equal(t, "It's 3 PM.", f.emitter.speech[0].Text)
	assert.NotEmpty(t, f.emitter.speech[0].Audio)
	f.emitter.mu.Unlock()
}

func TestSlowActionGetsAcknowledgment(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "web_search"}},
	}}
	f := newFixture(t, provider, &testCapability{
		id:   "web_search",
		data: map[string]any{"spoken": "Found it."},
	})

	f.orch.HandleInput(testClient, "search for gophers")
	f.waitTerminal(t)

	acks, speech, _, _, _ := f.emitter.counts()
	assert.Equal(t, 1, acks)
	assert.Equal(t, 1, speech)
}

func TestClarificationCompletesWithoutExecution(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Clarification: &intent.Clarification{Question: "Which city?", Options: []string{"Paris", "Lyon"}},
	}}
	weatherCap := &testCapability{id: "get_weather"}
	f := newFixture(t, provider, weatherCap)

	f.orch.HandleInput(testClient, "weather there")
	status := f.waitTerminal(t)

	assert.Equal(t, StateCompleted, status.State)
	acks, speech, _, _, clarify := f.emitter.counts()
	assert.Equal(t, 1, clarify)
	assert.Zero(t, acks)
	assert.Zero(t, speech)
	assert.Zero(t, weatherCap.callCount())
}

func TestConditionalSkipWhenNotRainy(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{
			{ID: "i1", Action: "get_weather"},
			{ID: "i2", Action: "set_reminder", Dependencies: []string{"i1"},
				Conditional: true, ConditionExpr: "weather.isRainy"},
		},
	}}
	reminder := &testCapability{id: "set_reminder", data: map[string]any{"spoken": "Reminder set."}}
	f := newFixture(t, provider,
		&testCapability{id: "get_weather", data: map[string]any{"spoken": "Sunny out.", "isRainy": false}},
		reminder,
	)

	f.orch.HandleInput(testClient, "weather, and remind me about an umbrella if it's rainy")
	status := f.waitTerminal(t)

	assert.Equal(t, StateCompleted, status.State)
	assert.Zero(t, reminder.callCount())
	require.Contains(t, status.Results, "i2")
	assert.True(t, status.Results["i2"].Skipped)
	assert.Equal(t, "condition not met", status.Results["i2"].Error)

	_, speech, _, _, _ := f.emitter.counts()
	assert.Equal(t, 1, speech, "skipped intent must not speak")
}

func TestConditionalRunsWhenRainy(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{
			{ID: "i1", Action: "get_weather"},
			{ID: "i2", Action: "set_reminder", Dependencies: []string{"i1"},
				Conditional: true, ConditionExpr: "weather.isRainy"},
		},
	}}
	reminder := &testCapability{id: "set_reminder", data: map[string]any{"spoken": "Reminder set."}}
	f := newFixture(t, provider,
		&testCapability{id: "get_weather", data: map[string]any{"spoken": "Rainy.", "isRainy": true}},
		reminder,
	)

	f.orch.HandleInput(testClient, "weather, and remind me about an umbrella if it's rainy")
	f.waitTerminal(t)

	assert.Equal(t, 1, reminder.callCount())
	_, speech, _, _, _ := f.emitter.counts()
	assert.Equal(t, 2, speech)
}

func TestFailedDependencyCascadesSkip(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{
			{ID: "i1", Action: "get_weather"},
			{ID: "i2", Action: "set_reminder", Dependencies: []string{"i1"}},
			{ID: "i3", Action: "get_time"},
		},
	}}
	reminder := &testCapability{id: "set_reminder"}
	f := newFixture(t, provider,
		&testCapability{id: "get_weather", err: assert.AnError},
		reminder,
		&testCapability{id: "get_time", data: map[string]any{"spoken": "It's noon."}},
	)

	f.orch.HandleInput(testClient, "weather, reminder, and the time")
	status := f.waitTerminal(t)

	assert.Equal(t, StateCompleted, status.State)
	assert.Zero(t, reminder.callCount())
	assert.Equal(t, "dependency unavailable", status.Results["i2"].Error)
	assert.True(t, status.Results["i3"].Success, "independent sibling unaffected")

	// The partial failure must stay audible: the sibling's answer, an error
	// for the failed step, and a spoken explanation for the skipped one.
	_, speech, _, errs, _ := f.emitter.counts()
	require.Equal(t, 2, speech)
	require.Equal(t, 1, errs)
	f.emitter.mu.Lock()
	assert.Equal(t, "WEATHER_FAILED", f.emitter.errs[0].Code)
	assert.Contains(t, f.emitter.speech[1].Text, "set reminder",
		"skip explanation names the skipped action")
	f.emitter.mu.Unlock()
}

func TestTopLevelFailureEmitsError(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "get_weather"}},
	}}
	f := newFixture(t, provider, &testCapability{id: "get_weather", err: assert.AnError})

	f.orch.HandleInput(testClient, "weather?")
	f.waitTerminal(t)

	_, speech, _, errs, _ := f.emitter.counts()
	assert.Zero(t, speech)
	require.Equal(t, 1, errs)
	f.emitter.mu.Lock()
	assert.Equal(t, "WEATHER_FAILED", f.emitter.errs[0].Code)
	f.emitter.mu.Unlock()
}

func TestUnknownActionReportsActionNotFound(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "launch_rocket"}},
	}}
	f := newFixture(t, provider)

	f.orch.HandleInput(testClient, "launch the rocket")
	status := f.waitTerminal(t)

	assert.Equal(t, "Action not found", status.Results["i1"].Error)
	_, _, _, errs, _ := f.emitter.counts()
	assert.Equal(t, 1, errs)
}

func TestParseFailureFailsTask(t *testing.T) {
	provider := &planProvider{err: assert.AnError}
	f := newFixture(t, provider)

	f.orch.HandleInput(testClient, "hello")
	status := f.waitTerminal(t)

	assert.Equal(t, StateFailed, status.State)
	_, _, _, errs, _ := f.emitter.counts()
	require.Equal(t, 1, errs)
	f.emitter.mu.Lock()
	assert.Equal(t, "PARSE_FAILED", f.emitter.errs[0].Code)
	f.emitter.mu.Unlock()
}

func TestInterruptMidTask(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{
			{ID: "i1", Action: "web_search"},
			{ID: "i2", Action: "write_document", Dependencies: []string{"i1"}},
		},
	}}
	writer := &testCapability{id: "write_document", data: map[string]any{"document": "# Report"}}
	f := newFixture(t, provider,
		&testCapability{id: "web_search", delay: 5 * time.Second, data: map[string]any{"spoken": "Found."}},
		writer,
	)

	f.orch.HandleInput(testClient, "research and write it up")
	require.Eventually(t, func() bool {
		status := f.orch.TaskStatus(testClient)
		return status != nil && status.State == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	f.orch.HandleInterrupt(testClient)
	status := f.waitTerminal(t)

	assert.Equal(t, StateInterrupted, status.State)
	assert.Zero(t, writer.callCount(), "later wave must not start")
	_, speech, docs, _, _ := f.emitter.counts()
	assert.Zero(t, speech, "interrupted in-flight intent emits nothing")
	assert.Zero(t, docs)
}

func TestNewInputReplacesRunningTask(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "web_search"}},
	}}
	f := newFixture(t, provider, &testCapability{
		id:    "web_search",
		delay: 50 * time.Millisecond,
		data:  map[string]any{"spoken": "Found."},
	})

	first := f.orch.HandleInput(testClient, "search one")
	require.Eventually(t, func() bool {
		status := f.orch.TaskStatus(testClient)
		return status != nil && status.State == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	second := f.orch.HandleInput(testClient, "search two")
	assert.NotEqual(t, first, second)

	status := f.waitTerminal(t)
	assert.Equal(t, second, status.TaskID)
	assert.Equal(t, StateCompleted, status.State)
}

func TestTaskStatusNilWithoutHistory(t *testing.T) {
	f := newFixture(t, &planProvider{result: &intent.ProviderResult{}})
	assert.Nil(t, f.orch.TaskStatus("stranger"))
}

func TestTaskStatusSurvivesTerminalState(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "get_time"}},
	}}
	f := newFixture(t, provider, &testCapability{id: "get_time", data: map[string]any{"spoken": "Noon."}})

	f.orch.HandleInput(testClient, "time?")
	f.waitTerminal(t)

	status := f.orch.TaskStatus(testClient)
	require.NotNil(t, status)
	assert.Equal(t, StateCompleted, status.State)
	require.NotNil(t, status.CompletedAt)
	assert.True(t, status.Results["i1"].Success)
}

func TestDocumentEmittedForComplexResult(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "get_news"}},
	}}
	f := newFixture(t, provider, &testCapability{
		id: "get_news",
		data: map[string]any{
			"spoken":   "Three stories today.",
			"document": "# Headlines\n\n- one\n- two\n- three",
		},
	})
	f.orch.hints.HomeDir = t.TempDir()

	f.orch.HandleInput(testClient, "what's in the news?")
	f.waitTerminal(t)

	_, speech, docs, _, _ := f.emitter.counts()
	assert.Equal(t, 1, speech)
	require.Equal(t, 1, docs)
	f.emitter.mu.Lock()
	doc := f.emitter.docs[0]
	f.emitter.mu.Unlock()
	assert.Equal(t, "markdown", doc.Type)
	assert.FileExists(t, doc.Path)
}

func TestIntentResultEventsReachTheBus(t *testing.T) {
	provider := &planProvider{result: &intent.ProviderResult{
		Intents: []intent.ParsedIntent{{ID: "i1", Action: "get_time"}},
	}}
	f := newFixture(t, provider, &testCapability{id: "get_time", data: map[string]any{"spoken": "Noon."}})

	var mu sync.Mutex
	var seen []IntentResultEvent
	f.events.Subscribe(TopicIntentResult, func(event any) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, event.(IntentResultEvent))
	})

	f.orch.HandleInput(testClient, "time?")
	f.waitTerminal(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "i1", seen[0].Intent.ID)
	assert.True(t, seen[0].Result.Success)
}
