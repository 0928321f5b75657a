package app

import "strings"

const (
	// DefaultEnvPrefix marks host variables forwarded to the app.
	DefaultEnvPrefix = "IOS_"

	// simctl only passes variables with this prefix through to the app,
	// stripping it on the way.
	simctlChildPrefix = "SIMCTL_CHILD_"

	disableDTModeVar = "IDE_DISABLED_OS_ACTIVITY_DT_MODE"
)

// LaunchEnv builds the extra environment for `simctl launch` from the host
// environment: each PREFIX_NAME=value becomes SIMCTL_CHILD_NAME=value. Unless
// IDE_DISABLED_OS_ACTIVITY_DT_MODE is set, OS_ACTIVITY_DT_MODE=enable is
// forwarded too so os_log output is mirrored to stderr.
func LaunchEnv(environ []string, prefix string) []string {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	var out []string
	disabled := false
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if key == disableDTModeVar {
			disabled = true
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			out = append(out, simctlChildPrefix+name+"="+value)
		}
	}

	// Appended last so it wins over a forwarded OS_ACTIVITY_DT_MODE.
	if !disabled {
		out = append(out, simctlChildPrefix+"OS_ACTIVITY_DT_MODE=enable")
	}
	return out
}
