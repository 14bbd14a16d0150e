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
	"fmt"
	"sync/atomic"
)

// ErrBudgetExceeded is returned when a session has spent its token budget.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// TokenBudget caps the tokens a session may consume across all its
// completion calls. Token counts are only known after a call returns, so the
// budget is checked before a call and charged after it; the last call may
// overshoot the limit.
type TokenBudget struct {
	used atomic.Int64
	max  int64
}

// NewTokenBudget creates a token budget. Pass 0 for unlimited (nil budget).
func NewTokenBudget(maxTokens int64) *TokenBudget {
	if maxTokens <= 0 {
		return nil
	}
	return &TokenBudget{max: maxTokens}
}

// Check returns an error wrapping ErrBudgetExceeded once the limit is reached.
func (b *TokenBudget) Check() error {
	if b == nil {
		return nil
	}
	if used := b.used.Load(); used >= b.max {
		return fmt.Errorf("%w: session (%d/%d tokens)", ErrBudgetExceeded, used, b.max)
	}
	return nil
}

// Record charges tokens against the budget.
func (b *TokenBudget) Record(tokens int) {
	if b == nil || tokens <= 0 {
		return
	}
	b.used.Add(int64(tokens))
}

// Used returns the tokens charged so far.
func (b *TokenBudget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}

// Limit returns the configured maximum, 0 when unlimited.
func (b *TokenBudget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.max
}

// Remaining returns the tokens left before the budget is exhausted.
func (b *TokenBudget) Remaining() int64 {
	if b == nil {
		return 0
	}
	if r := b.max - b.used.Load(); r > 0 {
		return r
	}
	return 0
}
