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
	"errors"
	"testing"
)

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		wantName  string
		wantType  string
		wantError error
	}{
		{name: "openai", provider: "openai", wantName: "openai", wantType: "*ai.OpenAIAdapter"},
		{name: "anthropic", provider: "anthropic", wantName: "anthropic", wantType: "*ai.AnthropicAdapter"},
		{name: "case insensitive", provider: "  Anthropic ", wantName: "anthropic", wantType: "*ai.AnthropicAdapter"},
		{name: "unknown", provider: "gemini", wantError: ErrUnknownProvider},
		{name: "empty", provider: "", wantError: ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewAdapter(Config{Provider: tt.provider, APIKey: "test-key"}, &fakeExecutor{})
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("NewAdapter() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAdapter() error = %v", err)
			}
			if adapter.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", adapter.Name(), tt.wantName)
			}
			if got := typeName(adapter); got != tt.wantType {
				t.Errorf("adapter type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func typeName(a Adapter) string {
	switch a.(type) {
	case *OpenAIAdapter:
		return "*ai.OpenAIAdapter"
	case *AnthropicAdapter:
		return "*ai.AnthropicAdapter"
	default:
		return "unknown"
	}
}

func TestNewAdapter_EnvVarAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		envName  string
		envValue string
		wantErr  error
	}{
		{
			name:     "env var reference resolves to existing var",
			apiKey:   "$TEST_KUBEDEBUG_KEY_EXISTS",
			envName:  "TEST_KUBEDEBUG_KEY_EXISTS",
			envValue: "resolved-key",
		},
		{
			name:    "env var reference resolves to missing var",
			apiKey:  "$TEST_KUBEDEBUG_KEY_MISSING",
			wantErr: ErrNotConfigured,
		},
		{
			name:   "literal API key stays literal",
			apiKey: "literal-key-value",
		},
		{
			name:    "empty key",
			apiKey:  "",
			wantErr: ErrNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envName != "" {
				t.Setenv(tt.envName, tt.envValue)
			}

			adapter, err := NewAdapter(Config{Provider: "openai", APIKey: tt.apiKey}, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewAdapter() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAdapter() error = %v", err)
			}
			want := tt.apiKey
			if tt.envName != "" {
				want = tt.envValue
			}
			if got := adapter.(*OpenAIAdapter).apiKey; got != want {
				t.Errorf("apiKey = %q, want %q", got, want)
			}
		})
	}
}

func TestNewAdapter_ModelDefaults(t *testing.T) {
	a, err := NewAdapter(Config{Provider: "anthropic", APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if got := a.(*AnthropicAdapter).Model(); got != DefaultModel(ProviderNameAnthropic) {
		t.Errorf("Model() = %q, want catalog default", got)
	}

	a, err = NewAdapter(Config{Provider: "anthropic", APIKey: "k", Model: "claude-haiku-4-5-20251001"}, nil)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if got := a.(*AnthropicAdapter).Model(); got != "claude-haiku-4-5-20251001" {
		t.Errorf("Model() = %q, want configured model", got)
	}
}

func TestSupportedProviders(t *testing.T) {
	got := SupportedProviders()
	if len(got) != 2 || got[0] != "anthropic" || got[1] != "openai" {
		t.Errorf("SupportedProviders() = %v, want [anthropic openai]", got)
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("TEST_KUBEDEBUG_RESOLVE", "from-env")
	if got := ResolveAPIKey("$TEST_KUBEDEBUG_RESOLVE"); got != "from-env" {
		t.Errorf("ResolveAPIKey() = %q, want from-env", got)
	}
	if got := ResolveAPIKey("sk-literal"); got != "sk-literal" {
		t.Errorf("ResolveAPIKey() = %q, want literal", got)
	}
}
