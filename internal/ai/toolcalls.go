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
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// emptyToolOutput stands in for an empty tool result on the wire; both APIs
// reject empty content blocks.
const emptyToolOutput = "(no output)"

// kubectlArgs is the argument payload of a run_kubectl call.
type kubectlArgs struct {
	Command string `json:"command"`
}

// parseKubectlArgs extracts the command from a raw JSON argument payload.
func parseKubectlArgs(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("missing arguments")
	}
	var args kubectlArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", fmt.Errorf("missing required argument %q", "command")
	}
	return args.Command, nil
}

// newToolRequest builds a ToolRequest from a provider's raw call, keeping
// the raw arguments and synthesizing an id when the provider sent none.
func newToolRequest(id, name, rawArgs string) ToolRequest {
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	command, _ := parseKubectlArgs(rawArgs)
	return ToolRequest{ID: id, Name: name, Command: command, Arguments: rawArgs}
}

// toolRunner executes the tool requests of one completion.
type toolRunner struct {
	executor  CommandExecutor
	sanitizer *Sanitizer
}

// run executes each request in order and returns, for every request, the
// assistant message carrying it followed by the tool result answering it.
func (r toolRunner) run(ctx context.Context, requests []ToolRequest) []Message {
	msgs := make([]Message, 0, 2*len(requests))
	for _, req := range requests {
		msgs = append(msgs, AssistantToolRequests(req), ToolResult(req.ID, r.result(ctx, req)))
	}
	return msgs
}

func (r toolRunner) result(ctx context.Context, req ToolRequest) string {
	if req.Name != KubectlToolName {
		log.Info("Model requested unknown tool", "tool", req.Name, "id", req.ID)
		return fmt.Sprintf("Error: unknown tool %q", req.Name)
	}
	if _, err := parseKubectlArgs(req.Arguments); err != nil {
		log.Info("Model sent unusable tool arguments", "id", req.ID, "error", err.Error())
		return "Error: " + err.Error()
	}
	if r.executor == nil {
		return "Error: no command executor configured"
	}

	log.Info("Running kubectl command", "command", req.Command, "id", req.ID)
	text := r.executor.Execute(ctx, req.Command).Output()
	if r.sanitizer != nil {
		var n int
		if text, n = r.sanitizer.Redact(text); n > 0 {
			log.V(1).Info("Redacted command output", "id", req.ID, "values", n)
		}
	}
	return text
}

// wireText substitutes the placeholder for empty tool output.
func wireText(text string) string {
	if text == "" {
		return emptyToolOutput
	}
	return text
}
