package pathing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDirOverride(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	assert.Equal(t, "/etc/p1_mini", GetConfigDir())

	dir := t.TempDir()
	t.Setenv(ConfigDirEnv, dir)
	assert.Equal(t, filepath.Join(dir, "p1_reader.toml"), GetReaderConfigPath())
	assert.Equal(t, filepath.Join(dir, "meter_monitor.toml"), GetMonitorConfigPath())
}
