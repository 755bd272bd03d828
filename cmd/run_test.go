package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvLayersConfigAndEnvironment(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".devup.yaml"), []byte("backend:\n  port: 9090\n"), 0o644))
	t.Setenv("AUTO_SETUP", "0")
	t.Setenv("DB_SERVICE_NAME", "mariadb")

	require.NoError(t, rootCmd.ParseFlags([]string{"--root", root}))
	e, err := loadEnv(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, root, e.root)
	assert.Equal(t, 9090, e.bp.Backend.Port)
	assert.Equal(t, 3000, e.bp.Frontend.Port)
	assert.True(t, e.bp.Bootstrap.Disabled)
	assert.Equal(t, "mariadb", e.bp.Database.Service)
	assert.NotNil(t, e.log)
	assert.NotNil(t, e.locator)
}

func TestLoadEnvRejectsMissingConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, rootCmd.ParseFlags([]string{"--root", root, "--config", filepath.Join(root, "absent.yaml")}))
	t.Cleanup(func() { _ = rootCmd.ParseFlags([]string{"--config", ""}) })

	_, err := loadEnv(rootCmd)
	assert.ErrorContains(t, err, "failed to read configuration")
}
