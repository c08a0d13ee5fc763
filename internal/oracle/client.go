package oracle

import (
	"context"
	"time"
)

// Client defines the interface for oracle providers.
//
// Complete sends one prompt and returns the raw text of the reply. Callers
// own the prompt contents and the parsing of the reply; helpers for cleaning
// up model output live in parse.go.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Config holds configuration for the oracle client.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	ClaudeCodePath string
	MaxRetries     int
	RetryDelay     time.Duration
	RateLimit      int
	Temperature    float64
	MaxTokens      int
}

// systemPrompt frames every request. Pattern proposals and reviews both need
// machine-readable replies, so the framing bans prose and markdown up front.
const systemPrompt = "You are a precise analysis engine inside a bookkeeping system. " +
	"Follow the instructions in the request exactly and respond with ONLY the answer in the requested format. " +
	"Do not include explanatory text, markdown formatting, or commentary before or after it."
