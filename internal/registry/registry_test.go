package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/identity"
	"github.com/kontoworks/konto/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points a client at the test server with retry delays short
// enough to exercise the retry path without slowing the suite down.
func newTestClient(t *testing.T, server *httptest.Server, cfg Config, own *identity.Own) *HTTPClient {
	t.Helper()
	if cfg.BaseURL == "" {
		cfg.BaseURL = server.URL
	}
	client, err := NewClient(cfg, own, discardLogger())
	require.NoError(t, err)
	client.httpClient = server.Client()
	client.retryOpts = service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
	return client
}

func writeResults(w http.ResponseWriter, entries ...Entry) {
	_ = json.NewEncoder(w).Encode(searchResponse{Results: entries})
}

func TestNewClient_ValidatesConfig(t *testing.T) {
	tests := []struct {
		wantErrIs error
		name      string
		config    Config
		wantErr   bool
	}{
		{
			name:   "valid config",
			config: Config{BaseURL: "http://localhost:8080"},
		},
		{
			name:      "missing base URL",
			config:    Config{},
			wantErr:   true,
			wantErrIs: common.ErrMissingConfig,
		},
		{
			name:      "base URL without scheme",
			config:    Config{BaseURL: "registry.example"},
			wantErr:   true,
			wantErrIs: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config, nil, discardLogger())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func TestSearch_RanksHitsByNameSimilarity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Stadtwerke München", r.URL.Query().Get("q"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))

		// Registry order deliberately scrambled; ranking is local.
		writeResults(w,
			Entry{ID: "reg-3", Name: "Netflix International"},
			Entry{ID: "reg-1", Name: "Stadtwerke Muenchen GmbH", VATID: "DE129273398", City: "München"},
			Entry{ID: "reg-2", Name: "Stadtwerke Augsburg"},
		)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{}, nil)

	matches, err := client.Search(context.Background(), "Stadtwerke München", 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "Stadtwerke Muenchen GmbH", matches[0].Entry.Name)
	assert.Equal(t, "reg-1", matches[0].Entry.ID)
	// Folded query and name differ only by the " gmbh" suffix.
	assert.InDelta(t, 1.0-5.0/24.0, matches[0].Similarity, 0.001)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	assert.Greater(t, matches[1].Similarity, matches[2].Similarity)
	assert.Equal(t, "Stadtwerke Augsburg", matches[1].Entry.Name)
}

func TestSearch_DropsOwnCompanyRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResults(w,
			Entry{ID: "reg-1", Name: "Muster Consulting UG", VATID: "DE812526315"},
			Entry{ID: "reg-2", Name: "Muster Consulting GmbH", VATID: "DE999999999"},
		)
	}))
	defer server.Close()

	own := identity.New("DE 812 526 315", nil, nil)
	client := newTestClient(t, server, Config{}, own)

	matches, err := client.Search(context.Background(), "Muster Consulting", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "reg-2", matches[0].Entry.ID)
}

func TestSearch_LimitCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResults(w,
			Entry{ID: "reg-1", Name: "Alpha Logistik"},
			Entry{ID: "reg-2", Name: "Beta Logistik"},
			Entry{ID: "reg-3", Name: "Gamma Logistik"},
			Entry{ID: "reg-4", Name: "Delta Logistik"},
			Entry{ID: "reg-5", Name: "Alpha Logistik GmbH"},
		)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{}, nil)

	matches, err := client.Search(context.Background(), "Alpha Logistik", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Alpha Logistik", matches[0].Entry.Name)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeResults(w)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{}, nil)

	_, err := client.Search(context.Background(), "   ", 10)
	require.Error(t, err)

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, int32(0), requests.Load())
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeResults(w, Entry{ID: "reg-1", Name: "Hosting24 AG"})
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{}, nil)

	matches, err := client.Search(context.Background(), "Hosting24", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int32(3), requests.Load())
}

func TestSearch_RateLimitExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{}, nil)

	_, err := client.Search(context.Background(), "Hosting24", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(3), requests.Load())
}

func TestSearch_MalformedResponseFailsFast(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{}, nil)

	_, err := client.Search(context.Background(), "Hosting24", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
	assert.Equal(t, int32(1), requests.Load(), "a broken response contract must not be retried")
}

func TestSearch_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer reg-key", r.Header.Get("Authorization"))
		writeResults(w)
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{APIKey: "reg-key"}, nil)

	matches, err := client.Search(context.Background(), "Hosting24", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSimilarity_NormalizesBeforeComparing(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Müller GmbH", "MUELLER GMBH"))
	assert.Equal(t, 0.0, similarity("", "Mueller"))
	assert.Equal(t, 0.0, similarity("Mueller", ""))
	assert.Greater(t, similarity("Mueller", "Muller"), 0.8)
}

func TestMockClient_TracksCalls(t *testing.T) {
	mock := NewMockClient()
	mock.SearchFn = func(_ context.Context, query string, _ int) ([]Match, error) {
		return []Match{{Entry: Entry{ID: "reg-1", Name: query}, Similarity: 1}}, nil
	}

	matches, err := mock.Search(context.Background(), "Alpha", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.Len(t, mock.SearchCalls, 1)
	assert.Equal(t, SearchCall{Query: "Alpha", Limit: 5}, mock.SearchCalls[0])

	mock.Reset()
	assert.Empty(t, mock.SearchCalls)
}
