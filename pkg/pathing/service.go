package pathing

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the config directory, mainly for development.
const ConfigDirEnv = "P1_MINI_CONFIG_DIR"

func GetConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	return "/etc/p1_mini"
}

func GetReaderConfigPath() string {
	return filepath.Join(GetConfigDir(), "p1_reader.toml")
}

func GetMonitorConfigPath() string {
	return filepath.Join(GetConfigDir(), "meter_monitor.toml")
}
