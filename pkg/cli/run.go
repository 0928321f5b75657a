package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devicelab-dev/simrun/pkg/app"
	"github.com/devicelab-dev/simrun/pkg/command"
	"github.com/devicelab-dev/simrun/pkg/config"
	"github.com/devicelab-dev/simrun/pkg/core"
	"github.com/devicelab-dev/simrun/pkg/simulator"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Install and run an app on a compatible simulator",
	ArgsUsage: "<app-path>",
	Description: `Finds the best simulator for the app (booted first, then the newest
iPhone, then the newest iPad), boots it, installs the app and streams its
console until it exits. <app-path> is an .ipa archive or an .app directory.

With --ephemeral a fresh simulator is created for --device and --os-version
and deleted afterwards, even when the run fails or is interrupted.

Environment variables prefixed with IOS_ are passed to the app without the
prefix.

Examples:
  simrun run --minimum-os 15.0 bazel-bin/app/Foo.ipa
  simrun run --minimum-os 15.0 --device iPad Foo.app
  simrun run --device "iPhone 15" --os-version 17.2 --ephemeral Foo.ipa`,
	Flags: append(selectionFlags(),
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Create a throwaway simulator and delete it afterwards",
		},
		&cli.StringFlag{
			Name:  "app-name",
			Usage: "Bundle name without .app (default: base name of <app-path>)",
		},
		&cli.IntFlag{
			Name:  "boot-attempts",
			Usage: "Times to check whether the simulator has booted",
			Value: simulator.DefaultBootAttempts,
		},
		&cli.DurationFlag{
			Name:  "boot-interval",
			Usage: "Pause between boot checks",
			Value: simulator.DefaultBootInterval,
		},
		&cli.BoolFlag{
			Name:  "no-console-pty",
			Usage: "Return once the app is launched instead of streaming its console",
		},
	),
	Action: runApp,
}

func runApp(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one <app-path>, got %d arguments", c.NArg())
	}
	appPath := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := checkHost(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runWithConfig(ctx, cfg, appPath, c.String("app-name"), log)
	if interrupted(ctx, err) {
		log.Debug("Interrupted")
		return nil
	}
	return err
}

// interrupted reports whether err is only the cancellation caused by an
// interrupt. A teardown failure joined onto it still fails the run.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil &&
		errors.Is(err, context.Canceled) &&
		core.CategoryOf(err) == core.ErrCategoryNone
}

// session wires the simulator and app components for one invocation.
type session struct {
	exec    command.Executor
	simctl  *simulator.Simctl
	manager *simulator.Manager
	log     logrus.FieldLogger
}

func newSession(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*session, error) {
	exec := newExecutor(log)

	devDir := cfg.DeveloperDir
	if devDir == "" {
		dir, err := simulator.DeveloperDir(ctx, exec)
		if err != nil {
			return nil, err
		}
		devDir = dir
	}
	simctl := simulator.NewSimctl(simulator.SimctlPath(devDir), exec, log)
	log.WithField("simctl", simctl.Path()).Debug("Using Xcode")
	return &session{
		exec:    exec,
		simctl:  simctl,
		manager: simulator.NewManager(simctl, exec, cfg.ManagerOptions(devDir), log),
		log:     log,
	}, nil
}

func runWithConfig(ctx context.Context, cfg *config.Config, appPath, appName string, log logrus.FieldLogger) error {
	s, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}

	runner := app.NewRunner(s.simctl, app.Options{
		ConsolePty: cfg.Launch.ConsolePty,
		EnvPrefix:  cfg.Launch.EnvPrefix,
		Environ:    environ,
		Stdout:     stdout,
		Stderr:     os.Stderr,
	}, log)

	req := cfg.Request()
	if req.Ephemeral {
		printSetupStep(fmt.Sprintf("Creating %s simulator (iOS %s)...", req.DeviceName, req.OSVersion))
	} else {
		printSetupStep(fmt.Sprintf("Finding simulator for %s...", req.Constraints))
	}

	return s.manager.WithSimulator(ctx, req, func(ctx context.Context, h *simulator.Handle) error {
		printSetupSuccess(fmt.Sprintf("Using %s simulator %s", h.Mode, h.UDID))

		err := withSpinner("Waiting for simulator to boot...", func() error {
			return s.manager.LaunchAndWait(ctx, h.UDID)
		})
		if err != nil {
			return err
		}
		printSetupSuccess("Simulator booted")

		printSetupStep(fmt.Sprintf("Installing and launching %s", appPath))
		return runner.Run(ctx, h.UDID, appPath, appName)
	})
}
