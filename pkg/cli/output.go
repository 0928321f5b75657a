package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var (
	// stdout receives progress lines and the app's console.
	stdout io.Writer = os.Stdout

	// interactive is true when stdout is a terminal; spinners are only shown then.
	interactive = term.IsTerminal(int(os.Stdout.Fd()))

	// colorsEnabled determines if ANSI colors should be used
	colorsEnabled = interactive && os.Getenv("NO_COLOR") == ""
)

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// printSetupStep prints a setup step in progress
func printSetupStep(msg string) {
	fmt.Fprintf(stdout, "  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

// printSetupSuccess prints a success message for setup
func printSetupSuccess(msg string) {
	fmt.Fprintf(stdout, "  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

func printSetupWarning(msg string) {
	fmt.Fprintf(stdout, "  %s⚠%s %s\n", color(colorYellow), color(colorReset), msg)
}

// withSpinner runs fn behind a spinner on a terminal, or after a plain step
// line otherwise.
func withSpinner(msg string, fn func() error) error {
	if !interactive {
		printSetupStep(msg)
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(stdout))
	s.Suffix = " " + msg
	s.Start()
	err := fn()
	s.Stop()
	return err
}
