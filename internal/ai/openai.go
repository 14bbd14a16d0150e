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
	"net/http"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIAdapter speaks the OpenAI chat-completions tool-calling protocol.
type OpenAIAdapter struct {
	apiKey       string
	endpoint     string
	model        string
	maxTokens    int
	systemPrompt string
	client       *http.Client
	tool         openAIChatTool
	tools        toolRunner
}

// NewOpenAIAdapter creates an OpenAI adapter that runs tool calls through executor.
func NewOpenAIAdapter(config Config, executor CommandExecutor) *OpenAIAdapter {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	model := config.Model
	if model == "" {
		model = DefaultModel(ProviderNameOpenAI)
	}

	prompt := config.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	def := KubectlTool()
	a := &OpenAIAdapter{
		apiKey:       config.APIKey,
		endpoint:     endpoint,
		model:        model,
		maxTokens:    config.MaxTokens,
		systemPrompt: prompt,
		client:       &http.Client{Timeout: requestTimeout(config)},
		tool: openAIChatTool{
			Type: "function",
			Function: openAIChatFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		},
		tools: toolRunner{executor: executor, sanitizer: outputSanitizer(config)},
	}
	return a
}

// Name returns the provider identifier
func (a *OpenAIAdapter) Name() string {
	return string(ProviderNameOpenAI)
}

// Model returns the model requests are sent to.
func (a *OpenAIAdapter) Model() string {
	return a.model
}

// InitializeMessages seeds the conversation with the system prompt and the query.
func (a *OpenAIAdapter) InitializeMessages(query string) []Message {
	return []Message{SystemMessage(a.systemPrompt), UserMessage(query)}
}

// ToolDefinition returns the run_kubectl function declaration.
func (a *OpenAIAdapter) ToolDefinition() any {
	return a.tool
}

type openAIChatRequest struct {
	Model      string              `json:"model"`
	Messages   []openAIChatMessage `json:"messages"`
	Tools      []openAIChatTool    `json:"tools,omitempty"`
	ToolChoice string              `json:"tool_choice,omitempty"`
	MaxTokens  int                 `json:"max_tokens,omitempty"`
}

// openAIChatMessage leaves Content nil for assistant turns that only carry
// tool calls, which the API expects as null.
type openAIChatMessage struct {
	Role       string               `json:"role"`
	Content    *string              `json:"content"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIChatToolCall `json:"tool_calls,omitempty"`
}

type openAIChatTool struct {
	Type     string             `json:"type"`
	Function openAIChatFunction `json:"function"`
}

type openAIChatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIChatToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function openAIChatFunctionCall `json:"function"`
}

type openAIChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIChatChoice struct {
	Message struct {
		Content   *string              `json:"content"`
		ToolCalls []openAIChatToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Choices []openAIChatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TokensUsed implements Completion.
func (r *openAIChatResponse) TokensUsed() int {
	return r.Usage.TotalTokens
}

// CreateCompletion sends the conversation and the run_kubectl tool to OpenAI.
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, messages []Message) (Completion, error) {
	if a.apiKey == "" {
		return nil, ErrNotConfigured
	}

	reqBody := openAIChatRequest{
		Model:      a.model,
		Messages:   toOpenAIMessages(messages),
		Tools:      []openAIChatTool{a.tool},
		ToolChoice: "auto",
		MaxTokens:  a.maxTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	var resp openAIChatResponse
	if err := postJSON(ctx, a.client, a.endpoint, headers, reqBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HandleToolResponse runs the tool calls of resp, or returns its text when
// there are none.
func (a *OpenAIAdapter) HandleToolResponse(ctx context.Context, resp Completion) (bool, []Message, string) {
	r, ok := resp.(*openAIChatResponse)
	if !ok || r == nil || len(r.Choices) == 0 {
		return false, nil, NoResponseText
	}

	msg := r.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		requests := make([]ToolRequest, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			requests = append(requests, newToolRequest(tc.ID, tc.Function.Name, tc.Function.Arguments))
		}
		return true, a.tools.run(ctx, requests), ""
	}

	if msg.Content == nil || *msg.Content == "" {
		return false, nil, NoResponseText
	}
	return false, nil, *msg.Content
}

func toOpenAIMessages(messages []Message) []openAIChatMessage {
	out := make([]openAIChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem, RoleUser:
			out = append(out, openAIChatMessage{Role: string(m.Role), Content: strPtr(m.Text)})
		case RoleAssistant:
			if !m.HasToolRequests() {
				out = append(out, openAIChatMessage{Role: string(m.Role), Content: strPtr(m.Text)})
				continue
			}
			calls := make([]openAIChatToolCall, 0, len(m.ToolRequests))
			for _, tr := range m.ToolRequests {
				calls = append(calls, openAIChatToolCall{
					ID:       tr.ID,
					Type:     "function",
					Function: openAIChatFunctionCall{Name: tr.Name, Arguments: tr.Arguments},
				})
			}
			out = append(out, openAIChatMessage{Role: string(m.Role), ToolCalls: calls})
		case RoleTool:
			out = append(out, openAIChatMessage{
				Role:       string(m.Role),
				Content:    strPtr(wireText(m.Text)),
				ToolCallID: m.ToolRequestID,
			})
		}
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
