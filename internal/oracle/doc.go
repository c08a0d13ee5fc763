// Package oracle provides the language-model completion client used by the
// pattern learning pipeline. It supports multiple providers including OpenAI,
// Anthropic and the Claude Code CLI, with retry logic and rate limiting.
package oracle
