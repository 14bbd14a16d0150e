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

package main

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/peterh/liner"

	"github.com/osagberg/kube-debug-assistant/internal/ai"
	"github.com/osagberg/kube-debug-assistant/internal/history"
)

// assistant is the part of *ai.Session the shell drives.
type assistant interface {
	ProcessQuery(ctx context.Context, query string) (string, error)
	Reset()
	History() []ai.Message
	Usage() ai.Usage
}

// pendingAssistant is an assistant being built in the background.
type pendingAssistant struct {
	ready chan struct{}
	a     assistant
	err   error
}

func startAssistant(build func() (assistant, error)) *pendingAssistant {
	p := &pendingAssistant{ready: make(chan struct{})}
	go func() {
		defer close(p.ready)
		p.a, p.err = build()
	}()
	return p
}

// wait blocks until the assistant is built, calling notice first if it
// is not ready yet.
func (p *pendingAssistant) wait(notice func()) (assistant, error) {
	select {
	case <-p.ready:
	default:
		notice()
		<-p.ready
	}
	return p.a, p.err
}

type shell struct {
	input    *inputReader
	out      *renderer
	pending  *pendingAssistant
	// commands is the audit log of executed commands, may be nil.
	commands *history.CommandLog

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Run reads and answers queries until exit, EOF or an aborted prompt. It
// returns an error only when the assistant could not be built or input
// failed.
func (s *shell) Run(ctx context.Context) error {
	for {
		query, err := s.input.ReadQuery()
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if query == "" {
			continue
		}
		if query == cmdExit {
			return nil
		}
		if query == cmdCommands {
			s.out.Commands(s.commands)
			continue
		}

		a, err := s.pending.wait(func() { s.out.Notice("Finalizing initialization...") })
		if err != nil {
			return err
		}

		switch query {
		case cmdReset:
			a.Reset()
			s.out.Notice("Conversation reset.")
		case cmdHistory:
			s.out.History(a.History())
		case cmdUsage:
			s.out.Usage(a.Usage())
		default:
			s.ask(ctx, a, query)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *shell) ask(ctx context.Context, a assistant, query string) {
	qctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	answer, err := a.ProcessQuery(qctx, query)

	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	switch {
	case errors.Is(err, context.Canceled):
		s.out.Warn("Query cancelled.")
	case err != nil:
		s.out.Error(err)
	default:
		s.out.Answer(answer)
	}
}

// Interrupt cancels the in-flight query and reports whether there was one.
func (s *shell) Interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}
