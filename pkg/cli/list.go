package cli

import (
	"fmt"
	"slices"
	"sort"

	"github.com/Masterminds/semver"
	"github.com/devicelab-dev/simrun/pkg/simulator"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "Show iOS runtimes and the simulators compatible with an app",
	Description: `Lists the installed iOS runtimes and every simulator matching the
selection flags, most preferred first. The simulator "run" would pick is
marked with ★.

Examples:
  simrun list
  simrun list --minimum-os 16.0 --device iPad`,
	Flags:  selectionFlags(),
	Action: runList,
}

func runList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.MinimumOS == "" {
		cfg.MinimumOS = "0"
	}
	minimumOS, err := simulator.VersionKey(cfg.MinimumOS)
	if err != nil {
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

	s, err := newSession(c.Context, cfg, log)
	if err != nil {
		return err
	}
	cat, sel, err := s.manager.Select(c.Context, cfg.Constraints())
	if err != nil {
		return err
	}

	renderRuntimes(cat.Runtimes)

	deviceTypes := simulator.FilterDeviceTypes(cat, minimumOS, cfg.Device)
	instances := simulator.FilterInstances(cat, deviceTypes, cfg.OSVersion)
	renderInstances(instances, sel)

	switch {
	case sel.DeviceType != nil:
		msg := fmt.Sprintf("Best device type: %s", sel.DeviceType)
		if maxOS := sel.DeviceType.MaxRuntimeVersion; maxOS != 0 {
			msg += fmt.Sprintf(", up to iOS %s", simulator.FormatVersionKey(maxOS))
		}
		printSetupSuccess(msg)
	case sel.Empty():
		printSetupWarning(fmt.Sprintf("No simulator compatible with %s", cfg.Constraints()))
	}
	return nil
}

// sortRuntimes orders runtimes by version, newest first. Versions that do not
// parse sort last, in their original order.
func sortRuntimes(runtimes []simulator.Runtime) []simulator.Runtime {
	out := slices.Clone(runtimes)
	versions := make(map[string]*semver.Version, len(out))
	for _, rt := range out {
		if v, err := semver.NewVersion(rt.Version); err == nil {
			versions[rt.Identifier] = v
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := versions[out[i].Identifier], versions[out[j].Identifier]
		switch {
		case vi == nil:
			return false
		case vj == nil:
			return true
		}
		return vi.GreaterThan(vj)
	})
	return out
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(stdout)
	t.SetStyle(table.StyleRounded)
	if !colorsEnabled {
		t.SetStyle(table.StyleLight)
	}
	return t
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		if colorsEnabled {
			row[i] = text.FgHiCyan.Sprint(c)
		} else {
			row[i] = c
		}
	}
	return row
}

func renderRuntimes(runtimes []simulator.Runtime) {
	t := newTable()
	t.SetTitle("Runtimes")
	t.AppendHeader(header("VERSION", "NAME", "AVAILABLE", "IDENTIFIER"))
	for _, rt := range sortRuntimes(runtimes) {
		available := "yes"
		if !rt.IsAvailable {
			available = "no"
		}
		t.AppendRow(table.Row{rt.Version, rt.Name, available, rt.Identifier})
	}
	t.Render()
}

// renderInstances lists instances most preferred first.
func renderInstances(instances []simulator.Instance, sel simulator.Selection) {
	ranked := slices.Clone(instances)
	slices.SortStableFunc(ranked, func(a, b simulator.Instance) int {
		return simulator.CompareInstances(b, a)
	})

	t := newTable()
	t.SetTitle("Compatible simulators")
	t.AppendHeader(header("", "NAME", "OS", "STATE", "UDID"))
	for _, inst := range ranked {
		mark := ""
		if sel.Instance != nil && sel.Instance.UDID == inst.UDID {
			mark = "★"
		}
		state := string(inst.State)
		if colorsEnabled && inst.IsBooted() {
			state = text.FgGreen.Sprint(state)
		}
		t.AppendRow(table.Row{mark, inst.Name, inst.OSVersion(), state, inst.UDID})
	}
	if len(ranked) == 0 {
		t.AppendRow(table.Row{"", "none", "", "", ""})
	}
	t.Render()
}
