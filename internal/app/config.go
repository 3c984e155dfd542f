package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/simuwork/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "simuwork"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if
// missing, and returns the config file path.
func EnsureConfigDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return configFile, os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return configFile, nil
}

const defaultConfig = `# simuwork configuration
# Run: simuwork --help
# Every key can also be set via SIMUWORK_<KEY> (e.g. SIMUWORK_SPEED=2).

# Playback speed for a fresh start.
# speed: 1

# How often scenario time advances.
# tick_interval: 1s

# Narrations without their own duration hide after this long.
# narration_duration: 18s

# info, debug or trace.
# log_level: info

# auto, always or never.
# color: auto

# Play a YAML or JSON script instead of the built-in one.
# script_path: ./script.yaml

# Multiplies every agent response delay.
# response_delay_scale: 1
`
