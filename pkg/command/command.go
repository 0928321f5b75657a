// Package command runs the external tools simrun drives (xcode-select, simctl,
// open, pkill) and classifies their failures.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/devicelab-dev/simrun/pkg/core"
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Command describes a single external invocation.
type Command struct {
	Name   string
	Args   []string
	Env    []string // Added on top of the host environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs and error details.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Executor runs a command to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// Output runs name with args and returns its standard output.
func Output(ctx context.Context, e Executor, name string, args ...string) (string, error) {
	var stdout bytes.Buffer
	err := e.Run(ctx, Command{Name: name, Args: args, Stdout: &stdout})
	return stdout.String(), err
}

// Exec is the os/exec backed Executor.
type Exec struct {
	log logrus.FieldLogger
}

// NewExec creates an Executor that spawns real processes.
func NewExec(log logrus.FieldLogger) *Exec {
	return &Exec{log: logger.OrDiscard(log)}
}

// Run starts cmd and blocks until it exits. A non-zero exit or a failure to
// start is reported as an external command error carrying the command line
// and exit code.
func (e *Exec) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout

	// Keep stderr for the error message unless the caller streams it.
	var stderr bytes.Buffer
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	} else {
		cmd.Stderr = &stderr
	}

	e.log.WithField("cmd", c.String()).Debug("Running command")
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return commandError(c, err, strings.TrimSpace(stderr.String()))
}

func commandError(c Command, err error, stderr string) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	details := map[string]interface{}{
		"command":   c.String(),
		"exit_code": code,
	}
	if stderr != "" {
		details["stderr"] = stderr
	}
	return ErrorFor(c, code).WithCause(err).WithDetails(details)
}

// ErrorFor builds the external command error for c exiting with code.
func ErrorFor(c Command, code int) *core.Error {
	msg := fmt.Sprintf("%s exited with error code %d", c.String(), code)
	if code < 0 {
		msg = fmt.Sprintf("%s could not be run", c.String())
	}
	return core.ErrCommandFailed.WithMessage(msg).WithDetails(map[string]interface{}{
		"command":   c.String(),
		"exit_code": code,
	})
}

// ExitCode extracts the exit code recorded on an external command error.
func ExitCode(err error) (int, bool) {
	var e *core.Error
	if !errors.As(err, &e) || e.Category != core.ErrCategoryExternalCommand {
		return 0, false
	}
	code, ok := e.Details["exit_code"].(int)
	return code, ok
}
