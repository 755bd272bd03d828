//go:build !windows

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harshul/devup/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOps(t *testing.T, env map[string]string) *unixOps {
	t.Helper()
	return newOps(command.NewRunner(nil), zap.NewNop().Sugar(), func(k string) string {
		return env[k]
	}).(*unixOps)
}

func TestUnixWellKnownDirsUseHome(t *testing.T) {
	home := t.TempDir()
	volta := filepath.Join(home, ".volta", "bin")
	sdkman := filepath.Join(home, ".sdkman", "candidates", "maven", "current", "bin")
	require.NoError(t, os.MkdirAll(volta, 0o755))
	require.NoError(t, os.MkdirAll(sdkman, 0o755))

	ops := newTestOps(t, map[string]string{"HOME": home})

	assert.Contains(t, ops.WellKnownDirs("node"), volta)
	assert.Contains(t, ops.WellKnownDirs("npm"), volta)
	assert.Contains(t, ops.WellKnownDirs("mvn"), sdkman)
	assert.NotContains(t, ops.WellKnownDirs("mvn"), volta)
}

func TestUnixWellKnownDirsWithoutHome(t *testing.T) {
	ops := newTestOps(t, nil)
	for _, dir := range ops.WellKnownDirs("node") {
		assert.True(t, filepath.IsAbs(dir), "relative search path %q", dir)
	}
}

func TestUnixBootstrapCommand(t *testing.T) {
	root := t.TempDir()
	ops := newTestOps(t, nil)

	_, ok := ops.BootstrapCommand(root, "auto-setup")
	assert.False(t, ok)

	script := filepath.Join(root, "auto-setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	cmd, ok := ops.BootstrapCommand(root, "auto-setup")
	require.True(t, ok)
	assert.Equal(t, []string{"sh", script}, cmd.Args)
	assert.Equal(t, root, cmd.Dir)
}

func TestUnixInvocationIsDirect(t *testing.T) {
	ops := newTestOps(t, nil)
	assert.Equal(t, []string{"npm"}, ops.Invocation("npm", true))
	assert.Equal(t, []string{"mvn"}, ops.ExecutableNames("mvn"))
}

func TestUnixServiceControl(t *testing.T) {
	ops := newTestOps(t, nil)
	ops.goos = "linux"
	sc, ok := ops.ServiceControl("mysql")
	require.True(t, ok)
	assert.Equal(t, []string{"systemctl", "is-active", "--quiet", "mysql"}, sc.Query.Args)
	assert.True(t, sc.Running(command.Result{ExitCode: 0}))
	assert.False(t, sc.Running(command.Result{ExitCode: 3}))

	ops.goos = "darwin"
	_, ok = ops.ServiceControl("mysql")
	assert.False(t, ok)
}
