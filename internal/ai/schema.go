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

// KubectlToolName is the name of the single tool offered to the model.
const KubectlToolName = "run_kubectl"

const kubectlToolDescription = "Run a kubectl command to inspect the kubernetes cluster"

const defaultSystemPrompt = `You are a Kubernetes cluster debugging assistant.
You have read-only access to the cluster through kubectl commands.
Analyze issues and provide clear explanations.
When you need information, use kubectl commands through the provided function.`

// ToolDef describes a tool independent of any provider's wire format.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// KubectlTool returns the provider-neutral run_kubectl definition.
func KubectlTool() ToolDef {
	return ToolDef{
		Name:        KubectlToolName,
		Description: kubectlToolDescription,
		Parameters:  KubectlToolSchema(),
	}
}

// KubectlToolSchema returns the JSON Schema of the run_kubectl arguments.
func KubectlToolSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The kubectl command to run (without 'kubectl' prefix)",
			},
		},
		"required": []string{"command"},
	}
}
