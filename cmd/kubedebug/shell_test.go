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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/osagberg/kube-debug-assistant/internal/ai"
	"github.com/osagberg/kube-debug-assistant/internal/config"
	"github.com/osagberg/kube-debug-assistant/internal/history"
)

type fakeAssistant struct {
	queries []string
	resets  int
	answer  string
	err     error
	// block makes ProcessQuery wait for cancellation.
	block   bool
	started chan struct{}
}

func (f *fakeAssistant) ProcessQuery(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	if f.block {
		close(f.started)
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

func (f *fakeAssistant) Reset() { f.resets++ }

func (f *fakeAssistant) History() []ai.Message {
	return []ai.Message{
		ai.UserMessage("why is web crashing?"),
		ai.AssistantToolRequests(ai.ToolRequest{ID: "call_1", Name: ai.KubectlToolName, Command: "get pods"}),
		ai.ToolResult("call_1", "web-1   0/1   CrashLoopBackOff\nweb-2   1/1   Running"),
		ai.AssistantText("web-1 is crash looping."),
	}
}

func (f *fakeAssistant) Usage() ai.Usage {
	return ai.Usage{Provider: "openai", Model: "gpt-4o", Completions: 2, Tokens: 12345, EstimatedCostUSD: 0.0463, BudgetLimit: 100000, BudgetUsed: 12345, BudgetRemaining: 87655}
}

func newTestShell(lines []string, a assistant, buildErr error) (*shell, *bytes.Buffer) {
	var buf bytes.Buffer
	out := newRenderer(&buf, false)
	return &shell{
		input: newInputReader(&scriptedLines{lines: lines}, config.InputModeSingle),
		out:   out,
		pending: startAssistant(func() (assistant, error) {
			return a, buildErr
		}),
	}, &buf
}

func TestShell_Commands(t *testing.T) {
	fake := &fakeAssistant{answer: "web-1 is crash looping."}
	sh, buf := newTestShell([]string{"why is web crashing?", "", "history", "usage", "reset", "exit", "never read"}, fake, nil)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fake.queries) != 1 || fake.queries[0] != "why is web crashing?" {
		t.Errorf("queries = %q", fake.queries)
	}
	if fake.resets != 1 {
		t.Errorf("resets = %d, want 1", fake.resets)
	}

	got := buf.String()
	for _, want := range []string{
		"web-1 is crash looping.",
		"kubectl get pods",
		"web-1   0/1   CrashLoopBackOff ...",
		"12,345",
		"token budget: 12,345 of 100,000, 87,655 remaining",
		"Conversation reset.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShell_QueryErrorContinues(t *testing.T) {
	fake := &fakeAssistant{err: &ai.APIError{StatusCode: 500, Message: "boom"}}
	sh, buf := newTestShell([]string{"first", "second"}, fake, nil)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fake.queries) != 2 {
		t.Errorf("queries = %q, want both processed", fake.queries)
	}
	if !strings.Contains(buf.String(), "Error: API error (status 500): boom") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestShell_BuildError(t *testing.T) {
	sh, _ := newTestShell([]string{"hello"}, nil, ai.ErrNotConfigured)
	if err := sh.Run(context.Background()); !errors.Is(err, ai.ErrNotConfigured) {
		t.Errorf("Run() error = %v, want ErrNotConfigured", err)
	}
}

func TestShell_ExitBeforeReady(t *testing.T) {
	release := make(chan struct{})
	var buf bytes.Buffer
	sh := &shell{
		input: newInputReader(&scriptedLines{lines: []string{"exit"}}, config.InputModeSingle),
		out:   newRenderer(&buf, false),
		pending: startAssistant(func() (assistant, error) {
			<-release
			return &fakeAssistant{}, nil
		}),
	}
	defer close(release)

	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.Contains(buf.String(), "Finalizing") {
		t.Error("exit should not wait for initialization")
	}
}

func TestPendingAssistant_NoticeWhenNotReady(t *testing.T) {
	release := make(chan struct{})
	p := startAssistant(func() (assistant, error) {
		<-release
		return &fakeAssistant{}, nil
	})

	noticed := false
	a, err := p.wait(func() {
		noticed = true
		close(release)
	})
	if err != nil || a == nil {
		t.Fatalf("wait() = %v, %v", a, err)
	}
	if !noticed {
		t.Fatal("notice not called while the assistant was being built")
	}

	// Once ready, wait returns without a notice.
	noticed = false
	if _, err := p.wait(func() { noticed = true }); err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if noticed {
		t.Error("notice called after the assistant was ready")
	}
}

func TestShell_Interrupt(t *testing.T) {
	fake := &fakeAssistant{block: true, started: make(chan struct{})}
	sh, buf := newTestShell(nil, fake, nil)

	if sh.Interrupt() {
		t.Error("Interrupt() = true with no query in flight")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sh.ask(context.Background(), fake, "watch everything")
	}()
	<-fake.started
	if !sh.Interrupt() {
		t.Fatal("Interrupt() = false with a query in flight")
	}
	<-done

	if !strings.Contains(buf.String(), "Query cancelled.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestHandleSignals(t *testing.T) {
	tests := []struct {
		name          string
		sig           os.Signal
		wantTerminate bool
	}{
		{name: "SIGINT cancels the query only", sig: os.Interrupt, wantTerminate: false},
		{name: "SIGTERM cancels and terminates", sig: syscall.SIGTERM, wantTerminate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAssistant{block: true, started: make(chan struct{})}
			sh, buf := newTestShell(nil, fake, nil)

			done := make(chan struct{})
			go func() {
				defer close(done)
				sh.ask(context.Background(), fake, "watch everything")
			}()
			<-fake.started

			sigs := make(chan os.Signal, 1)
			terminated := false
			handled := make(chan struct{})
			go func() {
				defer close(handled)
				handleSignals(sigs, sh, func() { terminated = true })
			}()

			sigs <- tt.sig
			<-done
			if !tt.wantTerminate {
				close(sigs)
			}
			<-handled

			if terminated != tt.wantTerminate {
				t.Errorf("terminated = %v, want %v", terminated, tt.wantTerminate)
			}
			if !strings.Contains(buf.String(), "Query cancelled.") {
				t.Errorf("output = %q", buf.String())
			}
		})
	}
}

func TestShell_CommandsLog(t *testing.T) {
	log := history.NewCommandLog(10)
	log.Add(history.CommandRecord{Command: "get pods -A", Duration: 120 * time.Millisecond, OutputBytes: 2048})
	log.Add(history.CommandRecord{Command: "get pod missing", ExitCode: 1})

	sh, buf := newTestShell([]string{"commands"}, nil, ai.ErrNotConfigured)
	sh.commands = log

	// commands does not need the assistant, so the build error never surfaces.
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := buf.String()
	for _, want := range []string{"kubectl get pods -A", "120ms, 2.0 kB", "kubectl get pod missing", "exit 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShell_CommandsLogEmpty(t *testing.T) {
	sh, buf := newTestShell([]string{"commands"}, &fakeAssistant{}, nil)
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(buf.String(), "(no commands run yet)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing default path is skipped", func(t *testing.T) {
		cfg, err := loadConfig(filepath.Join(dir, "config.yaml"), false, "", "", "")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Provider != "openai" {
			t.Errorf("Provider = %q, want default", cfg.Provider)
		}
	})

	t.Run("missing explicit path fails", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(dir, "absent.yaml"), true, "", "", ""); err == nil {
			t.Error("loadConfig() error = nil, want error")
		}
	})

	t.Run("flags override the file", func(t *testing.T) {
		path := filepath.Join(dir, "flags.yaml")
		if err := os.WriteFile(path, []byte("provider: openai\nmodel: gpt-4o\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := loadConfig(path, true, "anthropic", "claude-haiku-4-5-20251001", "single")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Provider != "anthropic" || cfg.Model != "claude-haiku-4-5-20251001" || cfg.InputMode != config.InputModeSingle {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("invalid flag value fails validation", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(dir, "config.yaml"), false, "", "", "vim"); err == nil {
			t.Error("loadConfig() error = nil, want error")
		}
	})
}
