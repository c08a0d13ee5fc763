package oracle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("unsupported provider", func(t *testing.T) {
		_, err := NewClient(Config{Provider: "palantir"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported oracle provider")
	})

	t.Run("provider name is case insensitive", func(t *testing.T) {
		client, err := NewClient(Config{Provider: "Mock"}, nil)
		require.NoError(t, err)
		defer func() { _ = client.Close() }()

		got, err := client.Complete(context.Background(), "anything")
		require.NoError(t, err)
		assert.Equal(t, "[]", got)
	})

	t.Run("anthropic without key", func(t *testing.T) {
		_, err := NewClient(Config{Provider: "anthropic"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create oracle client")
	})
}

func TestThrottledClient_RetriesEmptyResponses(t *testing.T) {
	mock := NewMockClient("", "", "ok")
	client := &throttledClient{
		client: mock,
		logger: slog.Default(),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
		rateLimiter: newRateLimiter(0),
	}
	defer func() { _ = client.Close() }()

	got, err := client.Complete(context.Background(), "propose patterns")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, mock.CallCount())
}

func TestThrottledClient_GivesUpAfterMaxAttempts(t *testing.T) {
	mock := NewMockClient()
	mock.FailWith(errors.New("connection refused"))

	client := &throttledClient{
		client: mock,
		logger: slog.Default(),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
		rateLimiter: newRateLimiter(0),
	}
	defer func() { _ = client.Close() }()

	_, err := client.Complete(context.Background(), "propose patterns")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 3, mock.CallCount())
}
