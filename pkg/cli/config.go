package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "Inspect the effective configuration",
	Subcommands: []*cli.Command{
		{
			Name:  "show",
			Usage: "Print the configuration after applying the file, environment and flags",
			Description: `Settings are read from simrun.yaml in $SIMRUN_HOME (or --config),
then SIMRUN_ environment variables, then flags. Nested keys use a double
underscore in the environment, e.g. SIMRUN_BOOT__ATTEMPTS=120.`,
			Flags:  selectionFlags(),
			Action: runConfigShow,
		},
	},
}

func runConfigShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.File != "" {
		fmt.Fprintf(stdout, "# %s\n", cfg.File)
	}
	return cfg.WriteYAML(stdout)
}
