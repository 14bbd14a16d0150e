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
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("empty query")

	// ErrMaxIterations is returned when a query needs more completion calls
	// than the session allows.
	ErrMaxIterations = errors.New("maximum tool-calling iterations reached")
)

// SessionState is the phase of the conversation loop.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateAwaitingCompletion
	StateExecutingTools
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingCompletion:
		return "awaiting-completion"
	case StateExecutingTools:
		return "executing-tools"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// EventType identifies a progress event.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventContent    EventType = "content"
	EventError      EventType = "error"
)

// Event reports progress of a query.
type Event struct {
	Type EventType
	// Iteration is the 1-based completion call the event belongs to.
	Iteration int
	// Command is set for tool_call and tool_result events.
	Command string
	// Text is the tool output or the final answer.
	Text string
	// Err is set for error events.
	Err error
}

// Usage summarizes what a session has consumed.
type Usage struct {
	Provider         string
	Model            string
	Completions      int
	Tokens           int
	EstimatedCostUSD float64
	// BudgetLimit is the session token budget, 0 when unlimited.
	BudgetLimit      int64
	BudgetUsed       int64
	BudgetRemaining  int64
}

// Session owns one conversation and drives the tool-calling loop against
// an Adapter. Queries are processed one at a time.
type Session struct {
	id      string
	adapter Adapter
	logger  logr.Logger

	maxIterations int
	onEvent       func(Event)
	breaker       *CircuitBreaker
	limiter       *rate.Limiter
	budget        *TokenBudget

	mu          sync.Mutex
	messages    []Message
	completions int
	tokens      int

	state atomic.Int32
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMaxIterations caps the completion calls per query. Zero means unbounded.
func WithMaxIterations(n int) SessionOption {
	return func(s *Session) {
		s.maxIterations = n
	}
}

// WithEventHandler registers a progress callback. It runs on the goroutine
// calling ProcessQuery and must not call back into the session.
func WithEventHandler(f func(Event)) SessionOption {
	return func(s *Session) {
		s.onEvent = f
	}
}

// WithCircuitBreaker guards completion calls with cb.
func WithCircuitBreaker(cb *CircuitBreaker) SessionOption {
	return func(s *Session) {
		s.breaker = cb
	}
}

// WithRateLimiter makes every completion call wait on l first.
func WithRateLimiter(l *rate.Limiter) SessionOption {
	return func(s *Session) {
		s.limiter = l
	}
}

// WithTokenBudget stops the session once b is spent.
func WithTokenBudget(b *TokenBudget) SessionOption {
	return func(s *Session) {
		s.budget = b
	}
}

// WithLogger sets the session logger.
func WithLogger(l logr.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates an empty session over adapter.
func NewSession(adapter Adapter, opts ...SessionOption) *Session {
	s := &Session{
		id:      uuid.NewString(),
		adapter: adapter,
		logger:  log.WithName("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithValues("session", s.id, "provider", adapter.Name())
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current loop phase. It does not block on a running query.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// ProcessQuery answers query, letting the model run as many kubectl commands
// as it asks for. The first query of a conversation is seeded through the
// adapter; later ones are appended as user messages. If the query fails the
// conversation is restored to what it was before the call.
func (s *Session) ProcessQuery(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	checkpoint := len(s.messages)
	prevState := s.State()
	if s.messages == nil {
		s.messages = s.adapter.InitializeMessages(query)
	} else {
		s.messages = append(s.messages, UserMessage(query))
	}

	answer, err := s.loop(ctx)
	if err != nil {
		s.rollback(checkpoint, prevState)
		s.logger.Error(err, "Query failed, conversation rolled back", "messages", checkpoint)
		s.emit(Event{Type: EventError, Err: err})
		return "", err
	}
	return answer, nil
}

func (s *Session) loop(ctx context.Context) (string, error) {
	for iteration := 1; ; iteration++ {
		if s.maxIterations > 0 && iteration > s.maxIterations {
			return "", fmt.Errorf("%w (%d)", ErrMaxIterations, s.maxIterations)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s.setState(StateAwaitingCompletion)
		s.emit(Event{Type: EventThinking, Iteration: iteration})

		resp, err := s.complete(ctx)
		if err != nil {
			return "", err
		}

		s.setState(StateExecutingTools)
		hasToolCalls, newMessages, finalText := s.adapter.HandleToolResponse(ctx, resp)
		if hasToolCalls {
			s.recordToolMessages(iteration, newMessages)
			s.messages = append(s.messages, newMessages...)
			continue
		}

		s.messages = append(s.messages, AssistantText(finalText))
		s.setState(StateReady)
		RecordQueryIterations(iteration)
		s.logger.V(1).Info("Query answered", "iterations", iteration, "messages", len(s.messages))
		s.emit(Event{Type: EventContent, Iteration: iteration, Text: finalText})
		return finalText, nil
	}
}

// complete performs one guarded completion call.
func (s *Session) complete(ctx context.Context) (Completion, error) {
	name := s.adapter.Name()

	if err := s.budget.Check(); err != nil {
		RecordBudgetExceeded()
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if s.breaker != nil && !s.breaker.Allow() {
		RecordCompletion(name, resultRejected, 0, 0)
		return nil, ErrCircuitOpen
	}

	start := time.Now()
	resp, err := s.adapter.CreateCompletion(ctx, s.messages)
	duration := time.Since(start)
	if s.breaker != nil {
		s.breaker.Record(err)
	}
	if err != nil {
		result := resultError
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			result = resultRateLimited
		}
		RecordCompletion(name, result, 0, duration)
		return nil, fmt.Errorf("%s completion: %w", name, err)
	}

	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed()
	}
	s.completions++
	s.tokens += tokens
	s.budget.Record(tokens)
	RecordCompletion(name, resultSuccess, tokens, duration)
	s.logger.V(1).Info("Completion received", "tokens", tokens, "duration", duration.String())
	return resp, nil
}

func (s *Session) recordToolMessages(iteration int, msgs []Message) {
	requests := make(map[string]string)
	count := 0
	for _, m := range msgs {
		switch {
		case m.HasToolRequests():
			for _, tr := range m.ToolRequests {
				count++
				requests[tr.ID] = tr.Command
				s.emit(Event{Type: EventToolCall, Iteration: iteration, Command: tr.Command})
			}
		case m.Role == RoleTool:
			s.emit(Event{Type: EventToolResult, Iteration: iteration, Command: requests[m.ToolRequestID], Text: m.Text})
		}
	}
	RecordToolCalls(s.adapter.Name(), count)
}

func (s *Session) rollback(checkpoint int, prev SessionState) {
	if checkpoint == 0 {
		s.messages = nil
		s.setState(StateUninitialized)
		return
	}
	clear(s.messages[checkpoint:])
	s.messages = s.messages[:checkpoint]
	s.setState(prev)
}

func (s *Session) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

// Reset drops the conversation. Usage counters and the token budget are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.setState(StateUninitialized)
	s.logger.V(1).Info("Conversation reset")
}

// History returns a copy of the conversation, or nil if it is empty.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Usage reports the completions, tokens and estimated cost of the session.
func (s *Session) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := Usage{
		Provider:        s.adapter.Name(),
		Completions:     s.completions,
		Tokens:          s.tokens,
		BudgetLimit:     s.budget.Limit(),
		BudgetUsed:      s.budget.Used(),
		BudgetRemaining: s.budget.Remaining(),
	}
	if m, ok := s.adapter.(interface{ Model() string }); ok {
		u.Model = m.Model()
	}
	u.EstimatedCostUSD = EstimateCost(ProviderName(u.Provider), u.Model, u.Tokens)
	return u
}
