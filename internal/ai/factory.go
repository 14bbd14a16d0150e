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
	"fmt"
	"os"
	"slices"
	"strings"
)

type adapterConstructor func(Config, CommandExecutor) Adapter

var adapterConstructors = map[ProviderName]adapterConstructor{
	ProviderNameOpenAI: func(c Config, e CommandExecutor) Adapter {
		return NewOpenAIAdapter(c, e)
	},
	ProviderNameAnthropic: func(c Config, e CommandExecutor) Adapter {
		return NewAnthropicAdapter(c, e)
	},
}

// SupportedProviders returns the provider names NewAdapter accepts, sorted.
func SupportedProviders() []string {
	names := make([]string, 0, len(adapterConstructors))
	for name := range adapterConstructors {
		names = append(names, string(name))
	}
	slices.Sort(names)
	return names
}

// NewAdapter creates the adapter for config.Provider (case-insensitive),
// wired to executor. An API key of the form "$NAME" is read from the
// environment variable NAME.
func NewAdapter(config Config, executor CommandExecutor) (Adapter, error) {
	name := ProviderName(strings.ToLower(strings.TrimSpace(config.Provider)))
	construct, ok := adapterConstructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProvider, config.Provider,
			strings.Join(SupportedProviders(), ", "))
	}

	resolved := config
	resolved.Provider = string(name)
	resolved.APIKey = ResolveAPIKey(config.APIKey)
	if resolved.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key for %s", ErrNotConfigured, name)
	}
	if _, err := NewSanitizer(config.RedactPatterns...); err != nil {
		return nil, err
	}
	if resolved.Model == "" {
		resolved.Model = DefaultModel(name)
	}

	log.V(1).Info("Creating AI adapter", "provider", name, "model", resolved.Model)
	return construct(resolved, executor), nil
}

// ResolveAPIKey returns key, or the value of the environment variable it
// names when it has the form "$NAME".
func ResolveAPIKey(key string) string {
	if envVar, ok := strings.CutPrefix(key, "$"); ok {
		return os.Getenv(envVar)
	}
	return key
}
