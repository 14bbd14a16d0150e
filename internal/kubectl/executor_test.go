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

package kubectl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeKubectl writes an executable shell script standing in for kubectl.
func fakeKubectl(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubectl")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake kubectl: %v", err)
	}
	return path
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"get pods", "get pods"},
		{"kubectl get pods", "get pods"},
		{"  kubectl   get pods  ", "get pods"},
		{"kubectl kubectl get pods", "get pods"},
		{"kubectl", ""},
		{"kubectl-neat get pod x", "kubectl-neat get pod x"},
		// Fullwidth letters normalize to ASCII.
		{"ｇｅｔ pods", "get pods"},
	}
	for _, tt := range tests {
		got := Normalize(tt.input)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if again := Normalize(got); again != got {
			t.Errorf("Normalize is not idempotent: %q -> %q", got, again)
		}
	}
}

func TestExecutor_CommandLine(t *testing.T) {
	e := NewExecutor(Options{Binary: "/opt/bin/kubectl", Context: "kind-dev"})

	want := "/opt/bin/kubectl --context=kind-dev get pods"
	for _, cmd := range []string{"get pods", "kubectl get pods"} {
		if got := e.CommandLine(cmd); got != want {
			t.Errorf("CommandLine(%q) = %q, want %q", cmd, got, want)
		}
	}

	e = NewExecutor(Options{Binary: "/path with space/kubectl", Kubeconfig: "/tmp/o'neil.yaml"})
	got := e.CommandLine("version")
	want = `'/path with space/kubectl' --kubeconfig='/tmp/o'\''neil.yaml' version`
	if got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestExecutor_Success(t *testing.T) {
	bin := fakeKubectl(t, `echo "args: $*"`)
	e := NewExecutor(Options{Binary: bin})

	result := e.Execute(context.Background(), "kubectl get pods -A")
	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, stderr = %q", result.ExitCode, result.Stderr)
	}
	if result.Stdout != "args: get pods -A\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.Output() != result.Stdout {
		t.Errorf("Output() = %q, want stdout", result.Output())
	}
}

func TestExecutor_NonZeroExit(t *testing.T) {
	bin := fakeKubectl(t, `echo 'Error from server (NotFound): pods "web" not found' >&2; exit 1`)
	e := NewExecutor(Options{Binary: bin})

	result := e.Execute(context.Background(), "get pod web")
	if result.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", result.ExitCode)
	}
	want := "Error: Error from server (NotFound): pods \"web\" not found\n"
	if result.Output() != want {
		t.Errorf("Output() = %q, want %q", result.Output(), want)
	}
}

func TestExecutor_MissingBinary(t *testing.T) {
	e := NewExecutor(Options{Binary: filepath.Join(t.TempDir(), "does-not-exist")})

	result := e.Execute(context.Background(), "get pods")
	if result.Succeeded() {
		t.Fatal("expected failure for missing binary")
	}
	if result.Stderr == "" {
		t.Error("expected stderr describing the failure")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	bin := fakeKubectl(t, `sleep 5`)
	e := NewExecutor(Options{Binary: bin, Timeout: 100 * time.Millisecond})

	start := time.Now()
	result := e.Execute(context.Background(), "get pods --watch")
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Execute() took %v, timeout was not enforced", elapsed)
	}
	if result.ExitCode != ExitCodeTimeout {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, ExitCodeTimeout)
	}
	if !strings.Contains(result.Stderr, "timed out") {
		t.Errorf("Stderr = %q, want timeout description", result.Stderr)
	}
}

func TestExecutor_Canceled(t *testing.T) {
	bin := fakeKubectl(t, `sleep 5`)
	e := NewExecutor(Options{Binary: bin, Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result := e.Execute(ctx, "get pods")
	if result.ExitCode != ExitCodeCanceled {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, ExitCodeCanceled)
	}
}

func TestExecutor_PolicyRejects(t *testing.T) {
	bin := fakeKubectl(t, `echo should-not-run`)
	e := NewExecutor(Options{Binary: bin, Policy: MustNewPolicy("")})

	result := e.Execute(context.Background(), "kubectl delete pod web")
	if result.ExitCode != ExitCodeDenied {
		t.Fatalf("ExitCode = %d, want %d", result.ExitCode, ExitCodeDenied)
	}
	if result.Stdout != "" {
		t.Errorf("Stdout = %q, command must not run", result.Stdout)
	}
	if !strings.Contains(result.Stderr, "read-only policy") {
		t.Errorf("Stderr = %q", result.Stderr)
	}
}

func TestExecutor_EmptyCommand(t *testing.T) {
	e := NewExecutor(Options{Binary: fakeKubectl(t, `echo ran`)})
	result := e.Execute(context.Background(), "kubectl ")
	if result.Succeeded() {
		t.Error("empty command should not succeed")
	}
}

func TestExecutor_TruncatesLogs(t *testing.T) {
	bin := fakeKubectl(t, `i=1; while [ $i -le 500 ]; do echo "log line $i"; i=$((i+1)); done; echo "warn" >&2`)
	e := NewExecutor(Options{Binary: bin, KeepLines: 10})

	result := e.Execute(context.Background(), "logs web")
	if !strings.HasPrefix(result.Stdout, truncatedHeader) {
		t.Fatalf("log output was not truncated: %q", result.Stdout[:40])
	}
	// 500 lines plus the empty line after the final newline.
	if !strings.Contains(result.Stdout, "[481 lines removed]") {
		t.Errorf("unexpected summary in %q", result.Stdout)
	}
	if result.Stderr != "warn\n" {
		t.Errorf("short stderr should be unchanged, got %q", result.Stderr)
	}

	result = e.Execute(context.Background(), "get pods")
	if strings.HasPrefix(result.Stdout, truncatedHeader) {
		t.Error("non-log commands must not be truncated")
	}
}
