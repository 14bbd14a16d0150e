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

// Package history keeps a bounded audit log of the commands the assistant
// ran against the cluster.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/osagberg/kube-debug-assistant/internal/kubectl"
)

// DefaultCapacity is the number of commands kept when none is configured.
const DefaultCapacity = 200

// CommandRecord describes one executed command.
type CommandRecord struct {
	Timestamp   time.Time     `json:"timestamp"`
	Command     string        `json:"command"`
	ExitCode    int           `json:"exitCode"`
	Duration    time.Duration `json:"duration"`
	OutputBytes int           `json:"outputBytes"`
}

// Failed reports whether the command exited non-zero.
func (r CommandRecord) Failed() bool {
	return r.ExitCode != 0
}

// CommandLog is a fixed-size circular buffer of command records. The
// oldest record is overwritten once it is full.
type CommandLog struct {
	mu       sync.RWMutex
	buf      []CommandRecord
	capacity int
	head     int
	count    int
}

// NewCommandLog creates a log holding up to capacity records.
func NewCommandLog(capacity int) *CommandLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CommandLog{
		buf:      make([]CommandRecord, capacity),
		capacity: capacity,
	}
}

// Add appends a record.
func (l *CommandLog) Add(r CommandRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.head] = r
	l.head = (l.head + 1) % l.capacity
	if l.count < l.capacity {
		l.count++
	}
}

// Last returns up to n most recent records, oldest first.
func (l *CommandLog) Last(n int) []CommandRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > l.count {
		n = l.count
	}
	if n <= 0 {
		return nil
	}

	out := make([]CommandRecord, n)
	start := (l.head - n + l.capacity) % l.capacity
	for i := range n {
		out[i] = l.buf[(start+i)%l.capacity]
	}
	return out
}

// Len returns the number of records held.
func (l *CommandLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Executor runs one command.
type Executor interface {
	Execute(ctx context.Context, command string) kubectl.Result
}

// RecordingExecutor records every command it forwards.
type RecordingExecutor struct {
	next Executor
	log  *CommandLog
	now  func() time.Time
}

// NewRecordingExecutor wraps next so that each command lands in log.
func NewRecordingExecutor(next Executor, log *CommandLog) *RecordingExecutor {
	return &RecordingExecutor{next: next, log: log, now: time.Now}
}

// Execute runs the command and records its outcome.
func (r *RecordingExecutor) Execute(ctx context.Context, command string) kubectl.Result {
	start := r.now()
	res := r.next.Execute(ctx, command)
	r.log.Add(CommandRecord{
		Timestamp:   start,
		Command:     command,
		ExitCode:    res.ExitCode,
		Duration:    r.now().Sub(start),
		OutputBytes: len(res.Stdout) + len(res.Stderr),
	})
	return res
}
