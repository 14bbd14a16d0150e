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

// Role tags the variant of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation. Which fields are set depends on
// Role:
//   - RoleSystem, RoleUser: Text
//   - RoleAssistant: Text or ToolRequests, never both
//   - RoleTool: ToolRequestID and Text
//
// Use the constructors rather than building messages by hand.
type Message struct {
	Role          Role          `json:"role"`
	Text          string        `json:"text,omitempty"`
	ToolRequests  []ToolRequest `json:"toolRequests,omitempty"`
	ToolRequestID string        `json:"toolRequestId,omitempty"`
}

// ToolRequest is a tool invocation requested by the model.
type ToolRequest struct {
	// ID is the provider-issued identifier the result must echo.
	ID string `json:"id"`
	// Name is the requested tool, normally run_kubectl.
	Name string `json:"name"`
	// Command is the kubectl command text, empty if the arguments were unusable.
	Command string `json:"command"`
	// Arguments is the raw argument payload as the provider sent it.
	Arguments string `json:"arguments"`
}

// SystemMessage returns a system instruction message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Text: text}
}

// UserMessage returns a user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantText returns an assistant turn carrying a final answer.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// AssistantToolRequests returns an assistant turn carrying tool requests.
func AssistantToolRequests(requests ...ToolRequest) Message {
	return Message{Role: RoleAssistant, ToolRequests: requests}
}

// ToolResult returns the result of the tool request with the given id.
func ToolResult(requestID, text string) Message {
	return Message{Role: RoleTool, ToolRequestID: requestID, Text: text}
}

// HasToolRequests reports whether m is an assistant turn requesting tools.
func (m Message) HasToolRequests() bool {
	return m.Role == RoleAssistant && len(m.ToolRequests) > 0
}
