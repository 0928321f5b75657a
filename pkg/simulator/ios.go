package simulator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/devicelab-dev/simrun/pkg/command"
	"github.com/devicelab-dev/simrun/pkg/core"
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/sirupsen/logrus"
)

// RuntimeNamespace prefixes every iOS runtime identifier.
const RuntimeNamespace = "com.apple.CoreSimulator.SimRuntime.iOS-"

// CheckHost fails unless simrun is running on macOS.
func CheckHost() error {
	if runtime.GOOS != "darwin" {
		return core.ErrUnsupportedHost.WithDetails(map[string]interface{}{"goos": runtime.GOOS})
	}
	return nil
}

// DeveloperDir returns the active Xcode developer directory from xcode-select.
func DeveloperDir(ctx context.Context, exec command.Executor) (string, error) {
	out, err := command.Output(ctx, exec, "xcode-select", "-p")
	if err != nil {
		return "", fmt.Errorf("failed to locate Xcode developer directory: %w", err)
	}
	return strings.TrimRight(out, " \t\r\n"), nil
}

// SimctlPath returns the simctl binary inside a developer directory.
func SimctlPath(developerDir string) string {
	return filepath.Join(developerDir, "usr", "bin", "simctl")
}

// SimulatorAppPath returns Simulator.app inside a developer directory.
func SimulatorAppPath(developerDir string) string {
	return filepath.Join(developerDir, "Applications", "Simulator.app")
}

// RuntimeIdentifier builds the iOS runtime identifier for a version, e.g.
// "17.2" -> "com.apple.CoreSimulator.SimRuntime.iOS-17-2".
func RuntimeIdentifier(version string) string {
	return RuntimeNamespace + strings.ReplaceAll(version, ".", "-")
}

// extractOSVersion extracts version from runtime string.
// e.g., "com.apple.CoreSimulator.SimRuntime.iOS-17-2" → "17.2"
func extractOSVersion(runtime string) string {
	for _, prefix := range []string{"iOS-", "watchOS-", "tvOS-", "xrOS-"} {
		if idx := strings.LastIndex(runtime, prefix); idx != -1 {
			return strings.ReplaceAll(runtime[idx+len(prefix):], "-", ".")
		}
	}
	return ""
}

// IsBooted reports whether a `simctl list devices` text listing shows udid
// as booted. Lines look like:
//
//	iPhone 15 (E946FA1C-26AB-465C-A7AC-24750D520BEA) (Booted)
func IsBooted(listing, udid string) bool {
	for _, line := range strings.Split(listing, "\n") {
		if strings.Contains(line, udid) && strings.Contains(line, string(StateBooted)) {
			return true
		}
	}
	return false
}

// Simctl runs simctl subcommands.
type Simctl struct {
	path string
	exec command.Executor
	log  logrus.FieldLogger
}

// NewSimctl creates a Simctl for the binary at path.
func NewSimctl(path string, exec command.Executor, log logrus.FieldLogger) *Simctl {
	return &Simctl{path: path, exec: exec, log: logger.OrDiscard(log)}
}

// Path returns the simctl binary path.
func (s *Simctl) Path() string {
	return s.path
}

func (s *Simctl) output(ctx context.Context, args ...string) (string, error) {
	return command.Output(ctx, s.exec, s.path, args...)
}

func (s *Simctl) run(ctx context.Context, args ...string) error {
	return s.exec.Run(ctx, command.Command{Name: s.path, Args: args})
}

// Catalog lists device types, runtimes and devices.
//
// simctl's own search terms are only case-insensitive description matches, so
// the whole listing is parsed and filtered here instead.
func (s *Simctl) Catalog(ctx context.Context) (*Catalog, error) {
	out, err := s.output(ctx, "list", "-j")
	if err != nil {
		return nil, err
	}
	return ParseCatalog([]byte(out))
}

// Boot requests that a simulator boot. It does not wait for the boot to finish.
func (s *Simctl) Boot(ctx context.Context, udid string) error {
	return s.run(ctx, "boot", udid)
}

// Create creates a simulator and returns its UDID. runtimeID may be empty to
// let simctl pick the newest compatible runtime.
func (s *Simctl) Create(ctx context.Context, name, deviceTypeID, runtimeID string) (string, error) {
	args := []string{"create", name, deviceTypeID}
	if runtimeID != "" {
		args = append(args, runtimeID)
	}
	out, err := s.output(ctx, args...)
	if err != nil {
		return "", err
	}
	udid := strings.TrimRight(out, " \t\r\n")
	if udid == "" {
		return "", core.ErrCommandFailed.WithMessage("simctl create printed no UDID")
	}
	return udid, nil
}

// Shutdown requests that a simulator shut down.
func (s *Simctl) Shutdown(ctx context.Context, udid string) error {
	return s.exec.Run(ctx, command.Command{Name: s.path, Args: []string{"shutdown", udid}, Stderr: io.Discard})
}

// Delete permanently removes a simulator.
func (s *Simctl) Delete(ctx context.Context, udid string) error {
	return s.run(ctx, "delete", udid)
}

// Install installs an app bundle onto a simulator.
func (s *Simctl) Install(ctx context.Context, udid, appPath string) error {
	return s.run(ctx, "install", udid, appPath)
}

// LaunchOptions configures `simctl launch`.
type LaunchOptions struct {
	UDID       string
	BundleID   string
	ConsolePty bool     // Attach the app's console to simctl's pseudo-terminal
	Env        []string // SIMCTL_CHILD_ prefixed variables
	Stdout     io.Writer
	Stderr     io.Writer
}

// Launch starts an installed app and blocks until simctl returns. With
// ConsolePty that is when the app exits.
func (s *Simctl) Launch(ctx context.Context, opts LaunchOptions) error {
	args := []string{"launch"}
	if opts.ConsolePty {
		args = append(args, "--console-pty")
	}
	args = append(args, opts.UDID, opts.BundleID)

	return s.exec.Run(ctx, command.Command{
		Name:   s.path,
		Args:   args,
		Env:    opts.Env,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
}

// ListDevices returns the human-readable `simctl list devices` listing.
func (s *Simctl) ListDevices(ctx context.Context) (string, error) {
	return s.output(ctx, "list", "devices")
}
