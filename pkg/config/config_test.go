package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfigYAML(t *testing.T, storeDir string) string {
	t.Helper()
	return `
logging:
  level: "INFO"

session:
  sender_comp_id: BUYER
  target_comp_id: SELLER
  addr: "127.0.0.1:9878"
  store_path: "` + filepath.ToSlash(storeDir) + `"
  log_dir: "` + filepath.ToSlash(storeDir) + `/logs"
  engine_type: initiator
`
}

func TestLoad_MinimalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(validConfigYAML(t, tmpDir)), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "FIX.4.2", cfg.Session.BeginString)
	assert.Equal(t, "BUYER_SELLER", cfg.Session.Epoch)
	assert.Equal(t, 30*time.Second, cfg.Session.HeartbeatTimeout)
	assert.Equal(t, "00:00:00", cfg.Session.StartTime)
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_MissingRequiredFieldFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
session:
  sender_comp_id: BUYER
  engine_type: initiator
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("FIXGO_LOGGING_LEVEL", "ERROR")
	t.Setenv("FIXGO_SESSION_ADDR", "10.0.0.1:9999")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(validConfigYAML(t, tmpDir)), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, "10.0.0.1:9999", cfg.Session.Addr)
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "config.yaml", filepath.Base(path))
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()
	assert.Equal(t, "fixengine", filepath.Base(dir))
}

func TestSaveConfigRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "out", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Session.SenderCompID = "BUYER"
	cfg.Session.TargetCompID = "SELLER"
	cfg.Session.Addr = "127.0.0.1:9878"
	cfg.Session.StorePath = tmpDir
	cfg.Session.LogDir = tmpDir
	cfg.Session.EngineType = "acceptor"

	require.NoError(t, SaveConfig(cfg, configPath))

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "BUYER", loaded.Session.SenderCompID)
	assert.Equal(t, "acceptor", loaded.Session.EngineType)
}
