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
	"regexp"
	"slices"
)

// SensitivePatterns matches credentials that commonly show up in kubectl
// output: secret data, kubeconfig material, tokens in env vars and logs.
// Cluster addresses are deliberately left intact since debugging needs them.
var SensitivePatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret|password|passwd|pwd)[=:\s]+[^\s]+`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.]+`),

	// AWS credentials
	regexp.MustCompile(`(?i)aws[_-]?(access[_-]?key|secret|session)[=:\s]+[^\s]+`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

	// Kubeconfig embedded credentials
	regexp.MustCompile(`(?i)(client-key-data|client-certificate-data|certificate-authority-data)[:\s]+[^\s]+`),

	// Base64 values in Secret and ConfigMap data
	regexp.MustCompile(`(?i)(data|value|secret)[:\s]*[a-zA-Z0-9+/=]{40,}`),

	// Certificate/key content
	regexp.MustCompile(`-----BEGIN [A-Z ]+-----[\s\S]*?-----END [A-Z ]+-----`),

	// Connection strings
	regexp.MustCompile(`(?i)(mongodb|postgres|postgresql|mysql|redis|amqp)://[^\s]+`),

	// JWT tokens (service account tokens among them)
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
}

// RedactionPlaceholder replaces every redacted value.
const RedactionPlaceholder = "[REDACTED]"

// Sanitizer redacts credentials from command output before it leaves the
// machine.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

// NewSanitizer returns a sanitizer using SensitivePatterns followed by the
// extra expressions.
func NewSanitizer(extra ...string) (*Sanitizer, error) {
	s := &Sanitizer{patterns: slices.Clone(SensitivePatterns)}
	for _, expr := range extra {
		if err := s.AddPattern(expr); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddPattern appends a redaction expression.
func (s *Sanitizer) AddPattern(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid redact pattern %q: %w", expr, err)
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// Redact replaces every match and reports how many values were replaced.
func (s *Sanitizer) Redact(input string) (string, int) {
	n := 0
	for _, re := range s.patterns {
		input = re.ReplaceAllStringFunc(input, func(string) string {
			n++
			return RedactionPlaceholder
		})
	}
	return input, n
}

// SanitizeString removes sensitive data from a string.
func (s *Sanitizer) SanitizeString(input string) string {
	out, _ := s.Redact(input)
	return out
}

// outputSanitizer builds the sanitizer an adapter applies to tool output,
// nil when redaction is off. Patterns were validated by NewAdapter; one
// that fails here is skipped.
func outputSanitizer(config Config) *Sanitizer {
	if !config.RedactOutput {
		return nil
	}
	s, _ := NewSanitizer()
	for _, expr := range config.RedactPatterns {
		if err := s.AddPattern(expr); err != nil {
			log.Error(err, "Skipping redact pattern")
		}
	}
	return s
}
