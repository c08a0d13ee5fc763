package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/service"
)

// NewClient creates an oracle client based on the provided configuration.
// The returned client wraps the raw provider with rate limiting and retry,
// so callers issue requests without further ceremony.
func NewClient(cfg Config, logger *slog.Logger) (Client, error) {
	provider, err := newProviderClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &throttledClient{
		client:      provider,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// newProviderClient creates the raw provider client for the configured backend.
func newProviderClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "claudecode":
		return newClaudeCodeClient(cfg)
	case "mock":
		// Offline runs: every request parses to zero candidates.
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Provider)
	}
}

// throttledClient wraps a provider with rate limiting and retry.
type throttledClient struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// Complete sends a prompt through the rate limiter and retries failures.
func (c *throttledClient) Complete(ctx context.Context, prompt string) (string, error) {
	// Rate limiting
	if err := c.rateLimiter.wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	var result string

	// Use common retry logic
	err := common.WithRetry(ctx, func() error {
		response, completeErr := c.client.Complete(ctx, prompt)
		if completeErr != nil {
			c.logger.Warn("oracle request attempt failed",
				"error", completeErr,
				"prompt_len", len(prompt))
			return &common.RetryableError{Err: completeErr, Retryable: true}
		}

		if strings.TrimSpace(response) == "" {
			return &common.RetryableError{Err: common.ErrEmptyResponse, Retryable: true}
		}

		result = response
		return nil
	}, c.retryOpts)

	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}

	return result, nil
}

// Close stops the rate limiter and releases the underlying provider.
func (c *throttledClient) Close() error {
	c.rateLimiter.Close()
	return c.client.Close()
}
