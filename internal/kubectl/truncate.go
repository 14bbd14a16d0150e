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
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultKeepLines is the number of lines kept at each end of a truncated log.
const DefaultKeepLines = 100

const (
	truncatedHeader = "=== LOG OUTPUT TRUNCATED ==="
	truncatedFooter = "=== END OF TRUNCATED LOG OUTPUT ==="
)

// Truncate shortens long command output to its first and last keep lines.
// Output with at most 2*keep lines is returned unchanged. Otherwise the
// result is a header marker, the head, a summary with the exact number of
// omitted lines, the tail and a footer marker. Lines are split on "\n", so
// a trailing newline counts as a final empty line.
func Truncate(output string, keep int) string {
	if keep <= 0 {
		keep = DefaultKeepLines
	}

	lines := strings.Split(output, "\n")
	if len(lines) <= 2*keep {
		return output
	}

	removed := len(lines) - 2*keep

	var b strings.Builder
	b.Grow(len(output) / 2)
	b.WriteString(truncatedHeader)
	b.WriteByte('\n')
	for _, line := range lines[:keep] {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "... [%s lines removed] ...\n", humanize.Comma(int64(removed)))
	for _, line := range lines[len(lines)-keep:] {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(truncatedFooter)
	return b.String()
}

// IsLogCommand reports whether a normalized command retrieves container
// logs. It is a substring match, so a resource whose name contains "logs"
// is classified as a log command too.
func IsLogCommand(command string) bool {
	return strings.Contains(command, "logs")
}
