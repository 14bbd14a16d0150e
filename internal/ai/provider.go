/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ai drives a tool-calling conversation with an LLM provider that
// inspects a Kubernetes cluster through kubectl.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/osagberg/kube-debug-assistant/internal/kubectl"
)

// ErrNotConfigured is returned when a provider has no API key.
var ErrNotConfigured = errors.New("AI provider not configured")

// ErrUnknownProvider is returned by NewAdapter for unsupported provider names.
var ErrUnknownProvider = errors.New("unknown AI provider")

// ProviderName identifies an LLM backend.
type ProviderName string

const (
	ProviderNameOpenAI    ProviderName = "openai"
	ProviderNameAnthropic ProviderName = "anthropic"
)

// NoResponseText is returned as the final answer when a completion carries
// neither tool calls nor text.
const NoResponseText = "No response text found"

// Adapter translates the common conversation model into one provider's
// tool-calling protocol.
type Adapter interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic")
	Name() string

	// InitializeMessages seeds a conversation with the user's first query.
	// Providers that model system instructions as a message get the system
	// prompt as the first message; the others carry it in each request.
	InitializeMessages(query string) []Message

	// ToolDefinition returns the run_kubectl declaration in the provider's
	// native shape, ready to be marshaled into a request.
	ToolDefinition() any

	// CreateCompletion sends the full conversation to the provider. Errors
	// are transport or backend faults.
	CreateCompletion(ctx context.Context, messages []Message) (Completion, error)

	// HandleToolResponse executes every tool call in resp and returns the
	// request/result message pairs to append, or the final text when the
	// completion requested no tool calls.
	HandleToolResponse(ctx context.Context, resp Completion) (hasToolCalls bool, newMessages []Message, finalText string)
}

// Completion is one raw provider reply. Only the adapter that produced it
// can interpret it.
type Completion interface {
	// TokensUsed returns the tokens billed for the call, if reported.
	TokensUsed() int
}

// CommandExecutor runs one inspection command.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) kubectl.Result
}

// APIError is a non-success reply from a provider API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "API error: " + e.Message
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the provider throttled the request.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == 429
}

// Config holds AI provider configuration
type Config struct {
	// Provider is the AI provider to use ("openai", "anthropic")
	Provider string `json:"provider"`

	// APIKey is the API key for the provider. A value of the form "$NAME"
	// is read from the environment variable NAME.
	APIKey string `json:"apiKey,omitempty"`

	// Endpoint is an optional custom API endpoint
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the model to use (e.g., "gpt-4o", "claude-sonnet-4-5-20250929")
	Model string `json:"model,omitempty"`

	// MaxTokens is the maximum tokens for responses
	MaxTokens int `json:"maxTokens,omitempty"`

	// Timeout is the request timeout in seconds
	Timeout int `json:"timeout,omitempty"`

	// SystemPrompt overrides the built-in system prompt.
	SystemPrompt string `json:"systemPrompt,omitempty"`

	// RedactOutput redacts secrets from command output before it is sent
	// to the provider.
	RedactOutput bool `json:"redactOutput,omitempty"`

	// RedactPatterns are extra regular expressions redacted along with
	// the built-in credential patterns.
	RedactPatterns []string `json:"redactPatterns,omitempty"`
}

// DefaultConfig returns a default configuration for the OpenAI provider
func DefaultConfig() Config {
	return Config{
		Provider:  string(ProviderNameOpenAI),
		MaxTokens: 4096,
		Timeout:   90,
	}
}
