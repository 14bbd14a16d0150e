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

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	defaultAnthropicEndpoint  = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion       = "2023-06-01"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicAdapter speaks the Anthropic messages tool-use protocol.
type AnthropicAdapter struct {
	apiKey       string
	endpoint     string
	model        string
	maxTokens    int
	systemPrompt string
	client       *http.Client
	tool         anthropicChatTool
	tools        toolRunner
}

// NewAnthropicAdapter creates an Anthropic adapter that runs tool calls through executor.
func NewAnthropicAdapter(config Config, executor CommandExecutor) *AnthropicAdapter {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}

	model := config.Model
	if model == "" {
		model = DefaultModel(ProviderNameAnthropic)
	}

	// max_tokens is mandatory in the messages API.
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	prompt := config.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	def := KubectlTool()
	a := &AnthropicAdapter{
		apiKey:       config.APIKey,
		endpoint:     endpoint,
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: prompt,
		client:       &http.Client{Timeout: requestTimeout(config)},
		tool: anthropicChatTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		},
		tools: toolRunner{executor: executor, sanitizer: outputSanitizer(config)},
	}
	return a
}

// Name returns the provider identifier
func (a *AnthropicAdapter) Name() string {
	return string(ProviderNameAnthropic)
}

// Model returns the model requests are sent to.
func (a *AnthropicAdapter) Model() string {
	return a.model
}

// InitializeMessages seeds the conversation with the query alone. The system
// prompt travels in every request's system field.
func (a *AnthropicAdapter) InitializeMessages(query string) []Message {
	return []Message{UserMessage(query)}
}

// ToolDefinition returns the run_kubectl tool declaration.
func (a *AnthropicAdapter) ToolDefinition() any {
	return a.tool
}

type anthropicChatRequest struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	System    string                 `json:"system,omitempty"`
	Messages  []anthropicChatMessage `json:"messages"`
	Tools     []anthropicChatTool    `json:"tools,omitempty"`
}

type anthropicChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type anthropicChatTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicChatContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicChatResponse struct {
	ID         string                      `json:"id"`
	Content    []anthropicChatContentBlock `json:"content"`
	StopReason string                      `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// TokensUsed implements Completion.
func (r *anthropicChatResponse) TokensUsed() int {
	return r.Usage.InputTokens + r.Usage.OutputTokens
}

// CreateCompletion sends the conversation and the run_kubectl tool to Anthropic.
func (a *AnthropicAdapter) CreateCompletion(ctx context.Context, messages []Message) (Completion, error) {
	if a.apiKey == "" {
		return nil, ErrNotConfigured
	}

	reqBody := anthropicChatRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    a.systemPrompt,
		Messages:  buildAnthropicMessages(messages),
		Tools:     []anthropicChatTool{a.tool},
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
	var resp anthropicChatResponse
	if err := postJSON(ctx, a.client, a.endpoint, headers, reqBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HandleToolResponse runs the tool_use blocks of resp, or returns its first
// text block when there are none. Text accompanying tool_use blocks is dropped.
func (a *AnthropicAdapter) HandleToolResponse(ctx context.Context, resp Completion) (bool, []Message, string) {
	r, ok := resp.(*anthropicChatResponse)
	if !ok || r == nil {
		return false, nil, NoResponseText
	}

	var requests []ToolRequest
	for _, block := range r.Content {
		if block.Type == "tool_use" {
			requests = append(requests, newToolRequest(block.ID, block.Name, string(block.Input)))
		}
	}
	if len(requests) > 0 {
		return true, a.tools.run(ctx, requests), ""
	}

	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			return false, nil, block.Text
		}
	}
	return false, nil, NoResponseText
}

// buildAnthropicMessages converts the conversation into Anthropic messages.
// System messages are skipped; tool results become tool_result blocks in user
// messages, consecutive results merged into one message.
func buildAnthropicMessages(messages []Message) []anthropicChatMessage {
	var result []anthropicChatMessage

	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			content, _ := json.Marshal(m.Text)
			result = append(result, anthropicChatMessage{Role: "user", Content: content})

		case RoleAssistant:
			var blocks []anthropicChatContentBlock
			if m.HasToolRequests() {
				for _, tr := range m.ToolRequests {
					blocks = append(blocks, anthropicChatContentBlock{
						Type:  "tool_use",
						ID:    tr.ID,
						Name:  tr.Name,
						Input: toolInput(tr.Arguments),
					})
				}
			} else {
				blocks = append(blocks, anthropicChatContentBlock{Type: "text", Text: m.Text})
			}
			blockJSON, _ := json.Marshal(blocks)
			result = append(result, anthropicChatMessage{Role: "assistant", Content: blockJSON})

		case RoleTool:
			newBlock := anthropicChatContentBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolRequestID,
				Content:   wireText(m.Text),
				IsError:   strings.HasPrefix(m.Text, "Error: "),
			}
			if n := len(result); n > 0 && result[n-1].Role == "user" && isBlockList(result[n-1].Content) {
				var existing []anthropicChatContentBlock
				_ = json.Unmarshal(result[n-1].Content, &existing)
				existing = append(existing, newBlock)
				blockJSON, _ := json.Marshal(existing)
				result[n-1].Content = blockJSON
			} else {
				blockJSON, _ := json.Marshal([]anthropicChatContentBlock{newBlock})
				result = append(result, anthropicChatMessage{Role: "user", Content: blockJSON})
			}
		}
	}

	return result
}

// toolInput returns the raw arguments when they are a JSON object, and an
// empty object otherwise; tool_use input must always be an object.
func toolInput(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return json.RawMessage("{}")
}

func isBlockList(content json.RawMessage) bool {
	return len(content) > 0 && content[0] == '['
}
