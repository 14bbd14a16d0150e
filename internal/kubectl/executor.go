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

// Package kubectl runs read-only kubectl commands on behalf of the assistant
// and shapes their output for an LLM conversation.
package kubectl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

var log = logf.Log.WithName("kubectl")

// Exit codes synthesized for failures that never produced a process exit status.
const (
	ExitCodeDenied   = 126
	ExitCodeSpawn    = 127
	ExitCodeTimeout  = 124
	ExitCodeCanceled = 130
)

const (
	defaultBinary  = "kubectl"
	defaultTimeout = 60 * time.Second

	// waitDelay bounds how long Wait blocks on pipes held open by children
	// of the shell after the shell itself was killed.
	waitDelay = 2 * time.Second
)

// Result is the outcome of one executed command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Succeeded reports whether the command exited with status 0.
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Output renders the result the way it is reported back to the model:
// stdout on success, otherwise "Error: " followed by stderr.
func (r Result) Output() string {
	if r.Succeeded() {
		return r.Stdout
	}
	return "Error: " + r.Stderr
}

// Options configures an Executor. Zero values select defaults.
type Options struct {
	// Binary is the kubectl binary to invoke (default "kubectl").
	Binary string
	// Context is passed as --context when set.
	Context string
	// Kubeconfig is passed as --kubeconfig when set.
	Kubeconfig string
	// Timeout bounds each command (default 60s).
	Timeout time.Duration
	// KeepLines is the number of head and tail lines kept for log commands
	// (default DefaultKeepLines).
	KeepLines int
	// Policy filters commands before execution. Nil allows everything.
	Policy *Policy
}

// Executor runs kubectl commands one at a time.
type Executor struct {
	binary     string
	context    string
	kubeconfig string
	timeout    time.Duration
	keepLines  int
	policy     *Policy
}

// NewExecutor creates an Executor from options.
func NewExecutor(opts Options) *Executor {
	binary := opts.Binary
	if binary == "" {
		binary = defaultBinary
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	keep := opts.KeepLines
	if keep <= 0 {
		keep = DefaultKeepLines
	}
	return &Executor{
		binary:     binary,
		context:    opts.Context,
		kubeconfig: opts.Kubeconfig,
		timeout:    timeout,
		keepLines:  keep,
		policy:     opts.Policy,
	}
}

// Normalize returns the command without its kubectl prefix, NFKC
// normalized and trimmed. It is idempotent.
func Normalize(command string) string {
	cmd := strings.TrimSpace(norm.NFKC.String(command))
	for {
		rest, ok := strings.CutPrefix(cmd, defaultBinary)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			return cmd
		}
		cmd = strings.TrimSpace(rest)
	}
}

// CommandLine returns the shell command line that Execute would run for
// command.
func (e *Executor) CommandLine(command string) string {
	var b strings.Builder
	b.WriteString(shellQuote(e.binary))
	if e.kubeconfig != "" {
		b.WriteString(" --kubeconfig=")
		b.WriteString(shellQuote(e.kubeconfig))
	}
	if e.context != "" {
		b.WriteString(" --context=")
		b.WriteString(shellQuote(e.context))
	}
	if cmd := Normalize(command); cmd != "" {
		b.WriteByte(' ')
		b.WriteString(cmd)
	}
	return b.String()
}

// Execute runs one kubectl command and waits for it. Failures of any kind
// are reported through the returned Result and never as a Go error: a bad
// command is something the model should see and recover from.
func (e *Executor) Execute(ctx context.Context, command string) Result {
	start := time.Now()
	cmd := Normalize(command)

	if cmd == "" {
		recordExecution(OutcomeDenied, 0)
		return Result{Stderr: "empty command", ExitCode: ExitCodeDenied}
	}

	allowed, err := e.policy.Allow(ParseInvocation(cmd))
	if err != nil {
		log.Error(err, "Policy evaluation failed", "command", cmd)
		recordExecution(OutcomeDenied, 0)
		return Result{
			Stderr:   fmt.Sprintf("command rejected: policy evaluation failed: %v", err),
			ExitCode: ExitCodeDenied,
		}
	}
	if !allowed {
		log.Info("Command rejected by read-only policy", "command", cmd)
		recordExecution(OutcomeDenied, 0)
		return Result{
			Stderr:   fmt.Sprintf("command rejected by read-only policy: kubectl %s", cmd),
			ExitCode: ExitCodeDenied,
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	line := e.CommandLine(cmd)
	log.Info("Executing kubectl command", "command", "kubectl "+cmd)

	proc := exec.CommandContext(cmdCtx, "sh", "-c", line)
	proc.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	runErr := proc.Run()
	duration := time.Since(start)

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	outcome := OutcomeSuccess

	switch {
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.ExitCode = ExitCodeTimeout
		result.Stderr = joinStderr(result.Stderr, "command timed out after "+e.timeout.String())
		outcome = OutcomeTimeout
	case ctx.Err() != nil:
		result.ExitCode = ExitCodeCanceled
		result.Stderr = joinStderr(result.Stderr, "command cancelled")
		outcome = OutcomeCanceled
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			outcome = OutcomeFailed
		} else {
			result.ExitCode = ExitCodeSpawn
			result.Stderr = joinStderr(result.Stderr, runErr.Error())
			outcome = OutcomeSpawn
		}
	}

	if IsLogCommand(cmd) {
		stdoutLen, stderrLen := len(result.Stdout), len(result.Stderr)
		result.Stdout = Truncate(result.Stdout, e.keepLines)
		result.Stderr = Truncate(result.Stderr, e.keepLines)
		if len(result.Stdout) != stdoutLen || len(result.Stderr) != stderrLen {
			recordTruncation()
		}
	}

	recordExecution(outcome, duration)
	log.V(1).Info("Command finished", "command", cmd, "exitCode", result.ExitCode,
		"duration", duration.String(), "stdoutBytes", len(result.Stdout), "stderrBytes", len(result.Stderr))
	log.V(1).Info("Command output", "stdout", result.Stdout, "stderr", result.Stderr)

	return result
}

func joinStderr(stderr, msg string) string {
	if strings.TrimSpace(stderr) == "" {
		return msg
	}
	return strings.TrimRight(stderr, "\n") + "\n" + msg
}

// shellQuote quotes s for sh unless it only contains safe characters.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("-_./:=@", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
