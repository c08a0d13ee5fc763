package oracle

import (
	"context"
	"sync"
)

// MockClient is a canned-response Client for tests and offline runs.
// Responses are returned in the order they were queued; once the queue is
// drained every request answers with an empty JSON array, which downstream
// parsing treats as zero candidates.
type MockClient struct {
	err       error
	responses []string
	prompts   []string
	mu        sync.Mutex
}

// NewMockClient creates a mock client with the given queued responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{
		responses: responses,
	}
}

// Complete records the prompt and returns the next queued response.
func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)

	if m.err != nil {
		return "", m.err
	}

	if len(m.responses) == 0 {
		return "[]", nil
	}

	response := m.responses[0]
	m.responses = m.responses[1:]
	return response, nil
}

// FailWith makes every subsequent request return err.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Enqueue appends responses to the queue.
func (m *MockClient) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// Prompts returns a copy of all recorded prompts for verification in tests.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	prompts := make([]string, len(m.prompts))
	copy(prompts, m.prompts)
	return prompts
}

// CallCount returns the number of times Complete was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Close implements Client.
func (m *MockClient) Close() error {
	return nil
}
