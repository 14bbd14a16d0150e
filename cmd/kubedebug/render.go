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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/osagberg/kube-debug-assistant/internal/ai"
	"github.com/osagberg/kube-debug-assistant/internal/history"
)

// recentCommands is how many audit records the commands command prints.
const recentCommands = 20

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	roleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
)

// renderer prints answers, falling back to plain text when stdout is not
// a terminal or glamour cannot be initialized.
type renderer struct {
	out io.Writer
	md  *glamour.TermRenderer
}

func newRenderer(out io.Writer, markdown bool) *renderer {
	r := &renderer{out: out}
	if !markdown {
		return r
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		r.md = md
	}
	return r
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func (r *renderer) Answer(text string) {
	if r.md != nil {
		if rendered, err := r.md.Render(text); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintln(r.out, text)
}

func (r *renderer) Error(err error) {
	fmt.Fprintln(r.out, errorStyle.Render("Error: "+err.Error()))
}

func (r *renderer) Notice(text string) {
	fmt.Fprintln(r.out, dimStyle.Render(text))
}

func (r *renderer) Warn(text string) {
	fmt.Fprintln(r.out, warnStyle.Render(text))
}

// Event prints query progress.
func (r *renderer) Event(e ai.Event) {
	switch e.Type {
	case ai.EventToolCall:
		fmt.Fprintln(r.out, dimStyle.Render("$ kubectl "+e.Command))
	case ai.EventThinking:
		if e.Iteration > 1 {
			fmt.Fprintln(r.out, dimStyle.Render(fmt.Sprintf("thinking (step %d)...", e.Iteration)))
		}
	}
}

// History prints the conversation one message per block.
func (r *renderer) History(msgs []ai.Message) {
	if len(msgs) == 0 {
		r.Notice("(empty conversation)")
		return
	}
	for _, m := range msgs {
		switch {
		case m.HasToolRequests():
			cmds := make([]string, 0, len(m.ToolRequests))
			for _, req := range m.ToolRequests {
				cmds = append(cmds, "kubectl "+req.Command)
			}
			fmt.Fprintf(r.out, "%s %s\n", roleStyle.Render("[assistant]"), strings.Join(cmds, "; "))
		case m.Role == ai.RoleTool:
			fmt.Fprintf(r.out, "%s %s\n", roleStyle.Render("[tool]"), dimStyle.Render(firstLine(m.Text)))
		default:
			fmt.Fprintf(r.out, "%s %s\n", roleStyle.Render("["+string(m.Role)+"]"), m.Text)
		}
	}
}

// Usage prints token consumption and the estimated cost.
func (r *renderer) Usage(u ai.Usage) {
	fmt.Fprintf(r.out, "provider: %s  model: %s\n", u.Provider, u.Model)
	fmt.Fprintf(r.out, "completions: %d  tokens: %s  estimated cost: $%.4f\n",
		u.Completions, humanize.Comma(int64(u.Tokens)), u.EstimatedCostUSD)
	if u.BudgetLimit > 0 {
		fmt.Fprintf(r.out, "token budget: %s of %s, %s remaining\n",
			humanize.Comma(u.BudgetUsed), humanize.Comma(u.BudgetLimit), humanize.Comma(u.BudgetRemaining))
	}
}

// Commands prints the most recent executed commands.
func (r *renderer) Commands(log *history.CommandLog) {
	var records []history.CommandRecord
	if log != nil {
		records = log.Last(recentCommands)
	}
	if len(records) == 0 {
		r.Notice("(no commands run yet)")
		return
	}
	for _, rec := range records {
		status := dimStyle.Render("ok")
		if rec.Failed() {
			status = errorStyle.Render(fmt.Sprintf("exit %d", rec.ExitCode))
		}
		fmt.Fprintf(r.out, "%s  kubectl %s  %s  %s\n",
			dimStyle.Render(rec.Timestamp.Format("15:04:05")), rec.Command, status,
			dimStyle.Render(fmt.Sprintf("%s, %s", rec.Duration.Round(time.Millisecond), humanize.Bytes(uint64(rec.OutputBytes)))))
	}
}

func firstLine(s string) string {
	line, rest, found := strings.Cut(s, "\n")
	if found && rest != "" {
		return line + " ..."
	}
	return line
}
