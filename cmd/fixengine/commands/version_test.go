package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmdPrintsVersionInfo(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	Version, Commit, Date = "1.2.3", "abc123", "2024-01-01"
	defer func() { Version, Commit, Date = oldVersion, oldCommit, oldDate }()

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
}

func TestGetConfigFileReflectsFlag(t *testing.T) {
	old := cfgFile
	defer func() { cfgFile = old }()

	cfgFile = "/tmp/custom.yaml"
	assert.Equal(t, "/tmp/custom.yaml", GetConfigFile())
}
