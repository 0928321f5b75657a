// Package cli provides the command-line interface for simrun.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/devicelab-dev/simrun/pkg/command"
	"github.com/devicelab-dev/simrun/pkg/config"
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/devicelab-dev/simrun/pkg/simulator"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// Seams replaced in tests.
var (
	newExecutor = func(log logrus.FieldLogger) command.Executor { return command.NewExec(log) }
	checkHost   = simulator.CheckHost
	environ     = os.Environ
	logOutput   io.Writer = os.Stderr
)

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: simrun.yaml in $SIMRUN_HOME)",
		EnvVars: []string{"SIMRUN_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "developer-dir",
		Usage: "Xcode developer directory (default: xcode-select -p)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SIMRUN_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Append logs to this file instead of stderr",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// selectionFlags narrow the simulator search. Shared by run and list.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "minimum-os",
			Usage: "Minimum iOS version the app supports (e.g., 15.0)",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "Device type name or part of one (e.g., \"iPhone 15\")",
		},
		&cli.StringFlag{
			Name:  "os-version",
			Usage: "Exact iOS runtime version (e.g., 17.2)",
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"minimum-os":     "minimum_os",
	"device":         "device",
	"os-version":     "os_version",
	"ephemeral":      "ephemeral",
	"developer-dir":  "developer_dir",
	"boot-attempts":  "boot.attempts",
	"boot-interval":  "boot.interval",
	"log-file":       "log.file",
	"no-console-pty": "launch.console_pty",
}

// overrides collects the flags set on the command line as config keys.
func overrides(c *cli.Context) map[string]interface{} {
	out := make(map[string]interface{})
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		switch flag {
		case "ephemeral":
			out[key] = c.Bool(flag)
		case "no-console-pty":
			out[key] = !c.Bool(flag)
		case "boot-attempts":
			out[key] = c.Int(flag)
		case "boot-interval":
			out[key] = c.Duration(flag).String()
		default:
			out[key] = c.String(flag)
		}
	}
	if c.Bool("verbose") {
		out["log.level"] = "debug"
	}
	return out
}

// loadConfig layers the command line over the file and environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if c.Bool("no-ansi") {
		colorsEnabled = false
	}
	return config.Load(c.String("config"), overrides(c))
}

func newLogger(cfg *config.Config) (*logrus.Logger, func() error, error) {
	return logger.New(logger.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Output:  logOutput,
		NoColor: !colorsEnabled,
	})
}

// NewApp builds the simrun application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "simrun",
		Usage:   "Run an iOS app on the best available simulator",
		Version: Version,
		Description: `simrun finds a simulator compatible with an app, boots it, installs
the app and streams its console until it exits.

Examples:
  simrun run --minimum-os 15.0 bazel-bin/app/Foo.ipa
  simrun run --device "iPhone 15" --os-version 17.2 --ephemeral Foo.app
  simrun list --minimum-os 16.0
  simrun config show`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			configCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError reports a failure. External command failures already name the
// command and its exit code.
func printError(err error) {
	if code, ok := command.ExitCode(err); ok {
		fmt.Fprintf(os.Stderr, "%sError:%s %v (exit code %d)\n", color(colorRed), color(colorReset), err, code)
		return
	}
	fmt.Fprintf(os.Stderr, "%sError:%s %v\n", color(colorRed), color(colorReset), err)
}
