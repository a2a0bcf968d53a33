package llm

import "context"

// MockClient returns canned responses, for tests and dry runs.
type MockClient struct {
	Responses []string
	Err       error

	calls int
	// Requests records every request seen, newest last.
	Requests []CompletionRequest
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	content := ""
	if len(m.Responses) > 0 {
		idx := m.calls
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		content = m.Responses[idx]
	}
	m.calls++
	return &CompletionResponse{Content: content}, nil
}
