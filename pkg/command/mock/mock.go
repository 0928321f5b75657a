// Package mock provides a recording command.Executor for testing without
// Xcode installed.
package mock

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/devicelab-dev/simrun/pkg/command"
)

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
	Env  []string
}

// String renders the call the same way command.Command does.
func (c Call) String() string {
	return command.Command{Name: c.Name, Args: c.Args}.String()
}

// Response is what a matched invocation produces.
type Response struct {
	Stdout string
	Err    error
}

// Handler computes the response for a call.
type Handler func(call Call) Response

type rule struct {
	match   string
	handler Handler
}

// Executor records every command and answers from registered rules.
// Rules match when the rendered command line contains the rule's pattern;
// later rules take precedence over earlier ones.
type Executor struct {
	mu    sync.Mutex
	calls []Call
	rules []rule
}

// New creates an Executor where every command succeeds with no output.
func New() *Executor {
	return &Executor{}
}

// On registers a handler for commands containing match.
func (e *Executor) On(match string, h Handler) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{match: match, handler: h})
	return e
}

// Respond makes commands containing match print stdout and succeed.
func (e *Executor) Respond(match, stdout string) *Executor {
	return e.On(match, func(Call) Response { return Response{Stdout: stdout} })
}

// Fail makes commands containing match exit with code.
func (e *Executor) Fail(match string, code int) *Executor {
	return e.On(match, func(c Call) Response {
		return Response{Err: command.ErrorFor(command.Command{Name: c.Name, Args: c.Args}, code)}
	})
}

// Run implements command.Executor.
func (e *Executor) Run(ctx context.Context, cmd command.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	call := Call{
		Name: cmd.Name,
		Args: append([]string(nil), cmd.Args...),
		Env:  append([]string(nil), cmd.Env...),
	}

	e.mu.Lock()
	e.calls = append(e.calls, call)
	var h Handler
	line := call.String()
	for i := len(e.rules) - 1; i >= 0; i-- {
		if strings.Contains(line, e.rules[i].match) {
			h = e.rules[i].handler
			break
		}
	}
	e.mu.Unlock()

	if h == nil {
		return nil
	}
	resp := h(call)
	if resp.Stdout != "" && cmd.Stdout != nil {
		if _, err := io.WriteString(cmd.Stdout, resp.Stdout); err != nil {
			return err
		}
	}
	return resp.Err
}

// Calls returns every recorded invocation in order.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Commands returns the rendered command lines in order.
func (e *Executor) Commands() []string {
	var out []string
	for _, c := range e.Calls() {
		out = append(out, c.String())
	}
	return out
}

// Count returns how many recorded commands contain match.
func (e *Executor) Count(match string) int {
	n := 0
	for _, c := range e.Commands() {
		if strings.Contains(c, match) {
			n++
		}
	}
	return n
}

// Index returns the position of the first command containing match, or -1.
func (e *Executor) Index(match string) int {
	for i, c := range e.Commands() {
		if strings.Contains(c, match) {
			return i
		}
	}
	return -1
}
