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

// ModelStatus indicates whether a model is actively supported.
type ModelStatus string

const (
	ModelStatusActive     ModelStatus = "active"
	ModelStatusDeprecated ModelStatus = "deprecated"
)

// ModelEntry describes a single tool-calling model.
type ModelEntry struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Status ModelStatus `json:"status"`
	// Default marks the model used when none is configured.
	Default bool `json:"default,omitempty"`
	// CostPer1K is the approximate blended input+output USD cost per 1K tokens.
	CostPer1K float64 `json:"costPer1K"`
}

// ModelCatalog maps providers to their known models.
type ModelCatalog map[ProviderName][]ModelEntry

// DefaultCatalog returns the built-in model catalog.
func DefaultCatalog() ModelCatalog {
	return ModelCatalog{
		ProviderNameAnthropic: {
			{ID: "claude-sonnet-4-5-20250929", Label: "Claude Sonnet 4.5", Status: ModelStatusActive, Default: true, CostPer1K: 0.005},
			{ID: "claude-haiku-4-5-20251001", Label: "Claude Haiku 4.5", Status: ModelStatusActive, CostPer1K: 0.00125},
			{ID: "claude-opus-4-1-20250805", Label: "Claude Opus 4.1", Status: ModelStatusActive, CostPer1K: 0.025},
			{ID: "claude-3-5-sonnet-20241022", Label: "Claude 3.5 Sonnet (Legacy)", Status: ModelStatusDeprecated, CostPer1K: 0.005},
		},
		ProviderNameOpenAI: {
			{ID: "gpt-4o", Label: "GPT-4o", Status: ModelStatusActive, Default: true, CostPer1K: 0.00375},
			{ID: "gpt-4o-mini", Label: "GPT-4o Mini", Status: ModelStatusActive, CostPer1K: 0.00075},
			{ID: "gpt-4.1", Label: "GPT-4.1", Status: ModelStatusActive, CostPer1K: 0.003},
			{ID: "gpt-4.1-mini", Label: "GPT-4.1 Mini", Status: ModelStatusActive, CostPer1K: 0.001},
		},
	}
}

// ForProvider returns the models for a specific provider, or nil if not found.
func (c ModelCatalog) ForProvider(provider ProviderName) []ModelEntry {
	return c[provider]
}

// Lookup returns the entry for model, if the catalog knows it.
func (c ModelCatalog) Lookup(provider ProviderName, model string) (ModelEntry, bool) {
	for _, m := range c[provider] {
		if m.ID == model {
			return m, true
		}
	}
	return ModelEntry{}, false
}

// DefaultModel returns the model used for provider when none is configured,
// or "" for an unknown provider.
func DefaultModel(provider ProviderName) string {
	models := DefaultCatalog()[provider]
	for _, m := range models {
		if m.Default {
			return m.ID
		}
	}
	if len(models) > 0 {
		return models[0].ID
	}
	return ""
}

// CostPer1KTokens returns the approximate blended cost per 1K tokens for a model.
// Falls back to the provider's default model if the model is not in the catalog.
func CostPer1KTokens(provider ProviderName, model string) float64 {
	catalog := DefaultCatalog()
	if m, ok := catalog.Lookup(provider, model); ok {
		return m.CostPer1K
	}
	if m, ok := catalog.Lookup(provider, DefaultModel(provider)); ok {
		return m.CostPer1K
	}
	return 0
}

// EstimateCost returns the approximate USD cost of tokens on model.
func EstimateCost(provider ProviderName, model string, tokens int) float64 {
	return float64(tokens) / 1000 * CostPer1KTokens(provider, model)
}
