package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/devicelab-dev/simrun/pkg/command"
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/devicelab-dev/simrun/pkg/simulator"
	"github.com/sirupsen/logrus"
)

// Simulator is the part of simctl the runner drives.
type Simulator interface {
	Install(ctx context.Context, udid, appPath string) error
	Launch(ctx context.Context, opts simulator.LaunchOptions) error
}

// Options configures a Runner.
type Options struct {
	ConsolePty bool            // Stream the app's console until it exits
	EnvPrefix  string          // Host variable prefix forwarded to the app
	Environ    func() []string // Host environment; os.Environ when nil
	Stdout     io.Writer
	Stderr     io.Writer
}

// Runner installs and launches apps.
type Runner struct {
	sim  Simulator
	opts Options
	log  logrus.FieldLogger
}

// NewRunner creates a Runner.
func NewRunner(sim Simulator, opts Options, log logrus.FieldLogger) *Runner {
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Runner{sim: sim, opts: opts, log: logger.OrDiscard(log)}
}

// Run extracts appPath, installs it on udid and launches it. appName defaults
// to the base name of appPath. The app exiting with a non-zero status is
// logged, not returned: it ends the run like any other app exit.
func (r *Runner) Run(ctx context.Context, udid, appPath, appName string) error {
	if appName == "" {
		appName = DefaultName(appPath)
	}

	bundle, err := Extract(appPath, appName, r.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := bundle.Close(); err != nil {
			r.log.Debugf("Failed to remove %s: %v", bundle.Path, err)
		}
	}()

	log := r.log.WithField("udid", udid)
	log.Debugf("Installing app %s to simulator %s", bundle.Path, udid)
	if err := r.sim.Install(ctx, udid, bundle.Path); err != nil {
		return fmt.Errorf("install %s: %w", appName, err)
	}

	bundleID, err := BundleID(bundle.Path)
	if err != nil {
		return err
	}

	log.Infof("Launching app %s in simulator %s", bundleID, udid)
	err = r.sim.Launch(ctx, simulator.LaunchOptions{
		UDID:       udid,
		BundleID:   bundleID,
		ConsolePty: r.opts.ConsolePty,
		Env:        LaunchEnv(r.opts.Environ(), r.opts.EnvPrefix),
		Stdout:     r.opts.Stdout,
		Stderr:     r.opts.Stderr,
	})
	if code, ok := command.ExitCode(err); ok && code >= 0 {
		log.Warnf("App exited with code %d", code)
		return nil
	}
	return err
}
