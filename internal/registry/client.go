package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/identity"
	"github.com/kontoworks/konto/internal/service"
)

// DefaultSearchLimit caps lookup results when the caller passes no limit.
const DefaultSearchLimit = 10

// Config holds the connection settings for the registry endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("registry base URL is required: %w", common.ErrMissingConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid registry base URL %q: %w", c.BaseURL, common.ErrInvalidConfig)
	}
	return nil
}

// HTTPClient queries a JSON search endpoint and ranks the hits locally.
type HTTPClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	own        *identity.Own
	baseURL    string
	apiKey     string
	retryOpts  service.RetryOptions
}

// NewClient creates a registry client from the given configuration. own may
// be nil when the user has not configured their own identifiers.
func NewClient(cfg Config, own *identity.Own, logger *slog.Logger) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		own:     own,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Search implements Client. Transient registry failures are retried; a rate
// limit backs off to the maximum delay before the next attempt.
func (c *HTTPClient) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.NewUserError("a search term is required", nil)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var entries []Entry
	err := common.WithRetry(ctx, func() error {
		var fetchErr error
		entries, fetchErr = c.fetch(ctx, query)
		return fetchErr
	}, c.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("registry search for %q failed: %w", query, err)
	}

	matches := rank(query, entries, c.own, limit)
	c.logger.Debug("registry search completed",
		"query", query,
		"entries", len(entries),
		"hits", len(matches))
	return matches, nil
}

func (c *HTTPClient) fetch(ctx context.Context, query string) ([]Entry, error) {
	params := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("registry request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read registry response: %w", err), Retryable: true}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("registry error (status %d): %w", resp.StatusCode, common.ErrRateLimit)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &common.RetryableError{Err: fmt.Errorf("registry error (status %d)", resp.StatusCode), Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &common.RetryableError{Err: fmt.Errorf("registry error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))), Retryable: false}
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to parse registry response: %w", err), Retryable: false}
	}
	return response.Results, nil
}

// searchResponse represents the registry search response structure.
type searchResponse struct {
	Results []Entry `json:"results"`
}

// Ensure HTTPClient implements the Client interface.
var _ Client = (*HTTPClient)(nil)
