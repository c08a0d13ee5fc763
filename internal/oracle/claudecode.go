package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kontoworks/konto/internal/common"
)

// claudeCodeClient implements the Client interface using the Claude Code CLI.
type claudeCodeClient struct {
	cliPath  string
	model    string
	maxTurns int
}

// newClaudeCodeClient creates a new Claude Code CLI client.
func newClaudeCodeClient(cfg Config) (Client, error) {
	cliPath := cfg.ClaudeCodePath
	if cliPath == "" {
		cliPath = "claude"
	}

	if _, err := exec.LookPath(cliPath); err != nil {
		return nil, fmt.Errorf("claude CLI not found at %s: ensure @anthropic-ai/claude-code is installed", cliPath)
	}

	model := cfg.Model
	if model == "" {
		model = "sonnet"
	}

	return &claudeCodeClient{
		cliPath:  cliPath,
		model:    model,
		maxTurns: 1, // Single turn per request
	}, nil
}

// Complete runs the CLI with the prompt and returns the result text.
func (c *claudeCodeClient) Complete(ctx context.Context, prompt string) (string, error) {
	fullPrompt := systemPrompt + "\n\n" + prompt

	// Bound the subprocess if the caller did not.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}

	args := []string{
		"-p", fullPrompt,
		"--output-format", "json",
		"--model", c.model,
		"--max-turns", strconv.Itoa(c.maxTurns),
	}

	cmd := exec.CommandContext(ctx, c.cliPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("claude code error: %s", stderr.String())
		}
		return "", fmt.Errorf("failed to execute claude: %w", err)
	}

	var response claudeCodeResponse
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		// Older CLI builds print plain text without the JSON envelope.
		text := strings.TrimSpace(stdout.String())
		if text == "" {
			return "", fmt.Errorf("no content in response: %w", common.ErrEmptyResponse)
		}
		return text, nil
	}

	if response.IsError {
		return "", fmt.Errorf("claude code reported an error: %s", response.Result)
	}

	if strings.TrimSpace(response.Result) == "" {
		return "", fmt.Errorf("no content in response: %w", common.ErrEmptyResponse)
	}

	return response.Result, nil
}

// Close implements Client. Each request runs its own subprocess.
func (c *claudeCodeClient) Close() error {
	return nil
}

// claudeCodeResponse represents the JSON envelope printed by the CLI.
type claudeCodeResponse struct {
	Result    string  `json:"result"`
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	IsError   bool    `json:"is_error"`
	TotalCost float64 `json:"total_cost_usd"`
}
