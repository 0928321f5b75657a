package config

import (
	"github.com/devicelab-dev/simrun/pkg/simulator"
	"github.com/knadh/koanf/providers/confmap"
)

// EnvPrefix marks environment variables read as configuration.
const EnvPrefix = "SIMRUN_"

// DefaultConfig returns the built-in settings, the lowest configuration layer.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"minimum_os":     "",
		"device":         "",
		"os_version":     "",
		"ephemeral":      false,
		"developer_dir":  "",
		"ephemeral_name": simulator.DefaultEphemeralName,
		"boot": map[string]interface{}{
			"attempts": simulator.DefaultBootAttempts,
			"interval": simulator.DefaultBootInterval.String(),
		},
		"log": map[string]interface{}{
			"level": "info",
			"file":  "",
		},
		"launch": map[string]interface{}{
			"console_pty": true,
			"env_prefix":  "IOS_",
		},
	}
}

// NewDefaultProvider returns the defaults as a koanf provider.
func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

