package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_Success(t *testing.T) {
	tmpDir := t.TempDir()

	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", tmpDir))
	defer func() {
		if oldXDG != "" {
			_ = os.Setenv("XDG_CONFIG_HOME", oldXDG)
		} else {
			_ = os.Unsetenv("XDG_CONFIG_HOME")
		}
	}()

	configPath, err := InitConfig(false)
	require.NoError(t, err)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)

	contentStr := string(content)
	for _, section := range []string{"logging:", "session:", "sender_comp_id", "engine_type"} {
		assert.Contains(t, contentStr, section)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", tmpDir))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	_, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitConfig_Force(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", tmpDir))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	configPath, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(true)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestInitConfigToPath_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom", "config.yaml")

	require.NoError(t, InitConfigToPath(configPath, false))

	_, err := os.Stat(configPath)
	assert.NoError(t, err)
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, InitConfigToPath(configPath, false))

	err := InitConfigToPath(configPath, false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already exists"))
}

func TestInitConfigToPath_Force(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, InitConfigToPath(configPath, false))
	require.NoError(t, InitConfigToPath(configPath, true))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestGeneratedConfigIsLoadableAfterFillingRequiredFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, InitConfigToPath(configPath, false))

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	filled := strings.NewReplacer(
		"CHANGEME_SENDER", "BUYER",
		"CHANGEME_TARGET", "SELLER",
		"./data/store", tmpDir,
		"./data/logs", tmpDir,
	).Replace(string(content))
	require.NoError(t, os.WriteFile(configPath, []byte(filled), 0600))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "BUYER", cfg.Session.SenderCompID)
	assert.Equal(t, "initiator", cfg.Session.EngineType)

	require.NoError(t, Validate(cfg))
}
