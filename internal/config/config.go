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

// Package config loads the assistant's YAML configuration and applies
// KUBEDEBUG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/osagberg/kube-debug-assistant/internal/ai"
	"github.com/osagberg/kube-debug-assistant/internal/kubectl"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KUBEDEBUG_"

// InputMode selects how the shell reads a query.
type InputMode string

const (
	// InputModeMultiline reads until two consecutive empty lines.
	InputModeMultiline InputMode = "multiline"
	// InputModeSingle submits every line.
	InputModeSingle InputMode = "single"
)

// APIKeys holds one key per provider. A value of the form "$NAME" is read
// from the environment variable NAME when the adapter is created.
type APIKeys struct {
	OpenAI    string `json:"openai,omitempty"`
	Anthropic string `json:"anthropic,omitempty"`
}

// KubectlConfig configures the command execution bridge.
type KubectlConfig struct {
	Binary       string          `json:"binary,omitempty"`
	Context      string          `json:"context,omitempty"`
	Kubeconfig   string          `json:"kubeconfig,omitempty"`
	Timeout      metav1.Duration `json:"timeout,omitempty"`
	LogKeepLines int             `json:"log_keep_lines,omitempty"`
	// Policy is a CEL expression deciding which commands may run. Empty
	// selects the built-in read-only policy; "true" allows everything.
	Policy string `json:"policy,omitempty"`
}

// CircuitBreakerConfig configures the completion circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int             `json:"failure_threshold,omitempty"`
	ResetTimeout     metav1.Duration `json:"reset_timeout,omitempty"`
}

// Config is the assistant configuration.
type Config struct {
	Provider    string    `json:"provider,omitempty"`
	// LLMProvider is the legacy spelling of Provider.
	LLMProvider string    `json:"llm_provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	APIKeys     APIKeys   `json:"api_keys,omitempty"`
	Debug       bool      `json:"debug,omitempty"`
	InputMode   InputMode `json:"input_mode,omitempty"`

	Endpoint       string          `json:"endpoint,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Timeout        metav1.Duration `json:"timeout,omitempty"`
	SystemPrompt   string          `json:"system_prompt,omitempty"`
	RedactOutput   bool            `json:"redact_output,omitempty"`
	RedactPatterns []string        `json:"redact_patterns,omitempty"`

	Kubectl KubectlConfig `json:"kubectl,omitempty"`

	MaxIterations      int                  `json:"max_iterations,omitempty"`
	SessionTokenBudget int64                `json:"session_token_budget,omitempty"`
	RequestsPerSecond  float64              `json:"requests_per_second,omitempty"`
	CircuitBreaker     CircuitBreakerConfig `json:"circuit_breaker,omitempty"`
}

// Default returns the configuration used when no file is present. Provider
// is left empty so that a legacy llm_provider key can fill it; Load falls
// back to openai.
func Default() *Config {
	return &Config{
		APIKeys: APIKeys{
			OpenAI:    "$OPENAI_API_KEY",
			Anthropic: "$ANTHROPIC_API_KEY",
		},
		InputMode: InputModeMultiline,
		MaxTokens: 4096,
		Timeout:   metav1.Duration{Duration: 90 * time.Second},
		Kubectl: KubectlConfig{
			Binary:       "kubectl",
			Timeout:      metav1.Duration{Duration: 60 * time.Second},
			LogKeepLines: kubectl.DefaultKeepLines,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     metav1.Duration{Duration: time.Minute},
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Provider) == "" {
		c.Provider = c.LLMProvider
	}
	c.LLMProvider = ""
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = string(ai.ProviderNameOpenAI)
	}
	c.InputMode = InputMode(strings.ToLower(string(c.InputMode)))
	if c.InputMode == "" {
		c.InputMode = InputModeMultiline
	}
}

// envOverride binds one environment variable to a setter.
type envOverride struct {
	name string
	set  func(c *Config, v string) error
}

var envOverrides = []envOverride{
	{"PROVIDER", func(c *Config, v string) error { c.Provider = v; return nil }},
	{"MODEL", func(c *Config, v string) error { c.Model = v; return nil }},
	{"OPENAI_API_KEY", func(c *Config, v string) error { c.APIKeys.OpenAI = v; return nil }},
	{"ANTHROPIC_API_KEY", func(c *Config, v string) error { c.APIKeys.Anthropic = v; return nil }},
	{"ENDPOINT", func(c *Config, v string) error { c.Endpoint = v; return nil }},
	{"INPUT_MODE", func(c *Config, v string) error { c.InputMode = InputMode(v); return nil }},
	{"KUBECTL_CONTEXT", func(c *Config, v string) error { c.Kubectl.Context = v; return nil }},
	{"KUBECONFIG", func(c *Config, v string) error { c.Kubectl.Kubeconfig = v; return nil }},
	{"DEBUG", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Debug = b
		return err
	}},
	{"REDACT_OUTPUT", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.RedactOutput = b
		return err
	}},
	{"MAX_ITERATIONS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.MaxIterations = n
		return err
	}},
	{"SESSION_TOKEN_BUDGET", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.SessionTokenBudget = n
		return err
	}},
}

// applyEnv applies KUBEDEBUG_* overrides.
func (c *Config) applyEnv() error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(EnvPrefix + o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.set(c, v); err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, o.name, v, err)
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	known := false
	for _, p := range ai.SupportedProviders() {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("provider %q is not one of %s", c.Provider,
			strings.Join(ai.SupportedProviders(), ", ")))
	}
	switch c.InputMode {
	case InputModeMultiline, InputModeSingle:
	default:
		errs = append(errs, fmt.Errorf("input_mode %q must be %q or %q", c.InputMode, InputModeMultiline, InputModeSingle))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("max_tokens must not be negative"))
	}
	if c.Timeout.Duration < 0 || c.Kubectl.Timeout.Duration < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Timeout.Duration > 0 && c.Timeout.Duration < time.Second {
		errs = append(errs, fmt.Errorf("timeout %s must be at least 1s", c.Timeout.Duration))
	}
	if c.Kubectl.LogKeepLines < 0 {
		errs = append(errs, errors.New("kubectl.log_keep_lines must not be negative"))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, errors.New("max_iterations must not be negative"))
	}
	if c.SessionTokenBudget < 0 {
		errs = append(errs, errors.New("session_token_budget must not be negative"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	if _, err := ai.NewSanitizer(c.RedactPatterns...); err != nil {
		errs = append(errs, fmt.Errorf("redact_patterns: %w", err))
	}
	if _, err := kubectl.NewPolicy(c.Kubectl.Policy); err != nil {
		errs = append(errs, fmt.Errorf("kubectl.policy: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// APIKey returns the configured key for the selected provider.
func (c *Config) APIKey() string {
	switch ai.ProviderName(c.Provider) {
	case ai.ProviderNameOpenAI:
		return c.APIKeys.OpenAI
	case ai.ProviderNameAnthropic:
		return c.APIKeys.Anthropic
	default:
		return ""
	}
}

// AIConfig returns the adapter configuration for the selected provider.
func (c *Config) AIConfig() ai.Config {
	return ai.Config{
		Provider:       c.Provider,
		APIKey:         c.APIKey(),
		Endpoint:       c.Endpoint,
		Model:          c.Model,
		MaxTokens:      c.MaxTokens,
		Timeout:        int(c.Timeout.Seconds()),
		SystemPrompt:   c.SystemPrompt,
		RedactOutput:   c.RedactOutput,
		RedactPatterns: c.RedactPatterns,
	}
}

// KubectlOptions returns the executor options, compiling the policy.
func (c *Config) KubectlOptions() (kubectl.Options, error) {
	policy, err := kubectl.NewPolicy(c.Kubectl.Policy)
	if err != nil {
		return kubectl.Options{}, fmt.Errorf("compile kubectl policy: %w", err)
	}
	return kubectl.Options{
		Binary:     c.Kubectl.Binary,
		Context:    c.Kubectl.Context,
		Kubeconfig: c.Kubectl.Kubeconfig,
		Timeout:    c.Kubectl.Timeout.Duration,
		KeepLines:  c.Kubectl.LogKeepLines,
		Policy:     policy,
	}, nil
}
