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
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// DefaultPolicyExpression admits read-only kubectl verbs, rejects shell
// control operators and only lets output be piped into text filters that
// cannot write files or spawn programs.
const DefaultPolicyExpression = `!unsafe &&
(verb in ["get", "describe", "logs", "top", "explain", "events", "api-resources", "api-versions", "version", "cluster-info"] ||
 (verb == "auth" && subverb == "can-i") ||
 (verb == "rollout" && subverb in ["status", "history"]) ||
 (verb == "config" && subverb in ["get-contexts", "current-context"])) &&
filters.all(f, f in ["grep", "egrep", "head", "tail", "wc", "sort", "uniq", "cut", "jq"]) &&
!pipeline.exists(p, p[0] == "sort" && p.exists(a, a.matches("^['\"]*(-[A-Za-z]*o|--)"))) &&
!pipeline.exists(p, p[0] == "uniq" && p.filter(a, !a.matches("^-.")).size() > 2)`

// celCostLimit bounds the runtime cost of a single policy evaluation.
const celCostLimit = 100_000

const celEvalTimeout = 5 * time.Second

// unsafeOperators are shell constructs that could chain or redirect into a
// command other than kubectl and its filters.
var unsafeOperators = []string{";", "&", "`", "$(", ">", "<", "\n"}

// Invocation is the parsed shape of a kubectl command line.
type Invocation struct {
	// Command is the normalized command without the kubectl prefix.
	Command string
	// Verb is the first non-flag argument, e.g. "get".
	Verb string
	// Subverb is the first non-flag argument after Verb, e.g. "status" in
	// "rollout status deployment/web".
	Subverb string
	// Args are the whitespace separated arguments before the first pipe.
	Args []string
	// Filters are the program names the output is piped into.
	Filters []string
	// Pipeline holds the fields of each filter stage, program name first.
	Pipeline [][]string
	// Unsafe is set when the command contains a shell control operator.
	Unsafe bool
}

// flagsWithValue lists global flags whose value is a separate argument and
// must not be mistaken for the verb.
var flagsWithValue = map[string]bool{
	"-n": true, "--namespace": true,
	"--context": true, "--cluster": true, "--user": true,
	"--kubeconfig": true, "-s": true, "--server": true,
	"--as": true, "--as-group": true, "--request-timeout": true,
}

// ParseInvocation splits a normalized command into verb, arguments and
// pipe filters. Quoting is not interpreted.
func ParseInvocation(command string) Invocation {
	inv := Invocation{Command: command}
	for _, op := range unsafeOperators {
		if strings.Contains(command, op) {
			inv.Unsafe = true
			break
		}
	}
	if strings.Contains(command, "||") {
		inv.Unsafe = true
	}

	segments := strings.Split(command, "|")
	inv.Args = strings.Fields(segments[0])
	for _, seg := range segments[1:] {
		fields := strings.Fields(seg)
		if len(fields) == 0 {
			inv.Unsafe = true
			continue
		}
		inv.Filters = append(inv.Filters, fields[0])
		inv.Pipeline = append(inv.Pipeline, fields)
	}

	var words []string
	for i := 0; i < len(inv.Args) && len(words) < 2; i++ {
		arg := inv.Args[i]
		if strings.HasPrefix(arg, "-") {
			if flagsWithValue[arg] {
				i++
			}
			continue
		}
		words = append(words, arg)
	}
	if len(words) > 0 {
		inv.Verb = words[0]
	}
	if len(words) > 1 {
		inv.Subverb = words[1]
	}
	return inv
}

// Policy decides whether a command may be executed.
type Policy struct {
	program cel.Program
}

// NewPolicy compiles a CEL policy expression. The expression sees the
// variables command, verb and subverb (string), args and filters (list of
// string), pipeline (list of list of string) and unsafe (bool) and must
// return a bool.
// An empty expression selects DefaultPolicyExpression.
func NewPolicy(expr string) (*Policy, error) {
	if strings.TrimSpace(expr) == "" {
		expr = DefaultPolicyExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("command", cel.StringType),
		cel.Variable("verb", cel.StringType),
		cel.Variable("subverb", cel.StringType),
		cel.Variable("args", cel.ListType(cel.StringType)),
		cel.Variable("filters", cel.ListType(cel.StringType)),
		cel.Variable("pipeline", cel.ListType(cel.ListType(cel.StringType))),
		cel.Variable("unsafe", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("policy expression must return bool, got %s", t)
	}

	prg, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return &Policy{program: prg}, nil
}

// MustNewPolicy compiles a policy or panics.
func MustNewPolicy(expr string) *Policy {
	p, err := NewPolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Allow evaluates the policy against an invocation. A nil policy allows
// everything.
func (p *Policy) Allow(inv Invocation) (bool, error) {
	if p == nil {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), celEvalTimeout)
	defer cancel()

	args := inv.Args
	if args == nil {
		args = []string{}
	}
	filters := inv.Filters
	if filters == nil {
		filters = []string{}
	}
	pipeline := inv.Pipeline
	if pipeline == nil {
		pipeline = [][]string{}
	}

	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"command":  inv.Command,
		"verb":     inv.Verb,
		"subverb":  inv.Subverb,
		"args":     args,
		"filters":  filters,
		"pipeline": pipeline,
		"unsafe":   inv.Unsafe,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", out.Value())
	}
	return val, nil
}
