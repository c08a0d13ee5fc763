package registry

import "context"

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	// SearchFn can be set by tests to control behavior.
	SearchFn func(ctx context.Context, query string, limit int) ([]Match, error)

	// Call tracking
	SearchCalls []SearchCall
}

// SearchCall records the parameters of a Search call.
type SearchCall struct {
	Query string
	Limit int
}

// NewMockClient creates a new mock registry client.
func NewMockClient() *MockClient {
	return &MockClient{
		SearchCalls: []SearchCall{},
	}
}

// Search implements Client.Search.
func (m *MockClient) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	m.SearchCalls = append(m.SearchCalls, SearchCall{Query: query, Limit: limit})

	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, limit)
	}

	return []Match{}, nil
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.SearchCalls = []SearchCall{}
}

// Ensure MockClient implements the Client interface.
var _ Client = (*MockClient)(nil)
