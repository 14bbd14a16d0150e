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
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/osagberg/kube-debug-assistant/internal/config"
)

// Shell commands recognized on the first line of input.
const (
	cmdExit     = "exit"
	cmdReset    = "reset"
	cmdHistory  = "history"
	cmdUsage    = "usage"
	cmdCommands = "commands"
)

// lineSource yields one line of user input per call. *liner.State
// satisfies it; tests use a scripted source.
type lineSource interface {
	Prompt(prompt string) (string, error)
}

// inputReader assembles queries from a lineSource.
type inputReader struct {
	src        lineSource
	mode       config.InputMode
	prompt     string
	contPrompt string
}

func newInputReader(src lineSource, mode config.InputMode) *inputReader {
	return &inputReader{
		src:        src,
		mode:       mode,
		prompt:     promptStyle.Render("kubedebug> "),
		contPrompt: promptStyle.Render("       ... "),
	}
}

func isShellCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case cmdExit, cmdReset, cmdHistory, cmdUsage, cmdCommands:
		return true
	}
	return false
}

// ReadQuery returns the next query, or a shell command in lower case. In
// multiline mode input ends at two consecutive empty lines or at EOF; a
// shell command on the first line is returned at once. io.EOF is returned
// only when nothing was read.
func (r *inputReader) ReadQuery() (string, error) {
	first, err := r.src.Prompt(r.prompt)
	if err != nil {
		return "", err
	}
	if isShellCommand(first) {
		return strings.ToLower(strings.TrimSpace(first)), nil
	}
	if r.mode == config.InputModeSingle {
		return strings.TrimSpace(first), nil
	}

	lines := []string{first}
	empty := 0
	if strings.TrimSpace(first) == "" {
		empty = 1
	}
	for empty < 2 {
		line, err := r.src.Prompt(r.contPrompt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "" {
			empty++
		} else {
			empty = 0
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// terminal wraps liner with a persistent history file.
type terminal struct {
	*liner.State
	historyFile string
}

func newTerminal() *terminal {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	t := &terminal{State: line, historyFile: filepath.Join(dir, "kubedebug", "history")}
	if f, err := os.Open(t.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	return t
}

// Prompt reads one line and records non-empty lines in the history.
func (t *terminal) Prompt(prompt string) (string, error) {
	line, err := t.State.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		t.AppendHistory(line)
	}
	return line, nil
}

// Close saves the history and restores the terminal.
func (t *terminal) Close() error {
	if err := os.MkdirAll(filepath.Dir(t.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(t.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = t.WriteHistory(f)
			_ = f.Close()
		}
	}
	return t.State.Close()
}
