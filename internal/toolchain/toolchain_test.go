package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/harshul/devup/internal/command"
	"github.com/harshul/devup/internal/provisioner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu    sync.Mutex
	ok    map[string]bool
	calls []string
}

func (f *fakeProber) Run(_ context.Context, c command.Command) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c.String())
	if f.ok[c.String()] {
		return command.Result{ExitCode: 0, Output: "1.0.0"}, nil
	}
	return command.Result{ExitCode: -1}, &command.ExecError{Command: c, Err: exec.ErrNotFound}
}

type fakeHost struct {
	dirs map[string][]string
}

func (h fakeHost) WellKnownDirs(binary string) []string  { return h.dirs[binary] }
func (h fakeHost) ExecutableNames(base string) []string  { return []string{base} }
func (h fakeHost) Invocation(exe string, _ bool) []string { return []string{exe} }

func newTestLocator(t *testing.T, prober *fakeProber, host fakeHost, env map[string]string) *Locator {
	t.Helper()
	l := NewLocator(prober, host, nil)
	l.getenv = func(k string) string { return env[k] }
	l.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	return l
}

func touch(t *testing.T, elems ...string) string {
	t.Helper()
	path := filepath.Join(elems...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestOnPathWins(t *testing.T) {
	home := t.TempDir()
	touch(t, home, "bin", "mvn")
	prober := &fakeProber{ok: map[string]bool{"mvn -v": true}}
	l := newTestLocator(t, prober, fakeHost{}, map[string]string{"MAVEN_HOME": home})

	p, ok := l.ResolveBuildTool(context.Background())
	require.True(t, ok)
	assert.Equal(t, []string{"mvn"}, p.Prefix)
	assert.Equal(t, "on-path", p.Source)
	assert.Equal(t, BuildTool, p.Kind)
	assert.Equal(t, []string{"mvn", "-q", "package"}, p.Command("-q", "package").Args)
}

func TestEnvHomeFirstNonEmptyWins(t *testing.T) {
	m2 := t.TempDir()
	other := t.TempDir()
	exe := touch(t, m2, "bin", "mvn")
	touch(t, other, "bin", "mvn")

	l := newTestLocator(t, &fakeProber{}, fakeHost{}, map[string]string{
		"MAVEN_HOME": "  ",
		"M2_HOME":    m2,
	})

	p, ok := l.ResolveBuildTool(context.Background())
	require.True(t, ok)
	assert.Equal(t, "env-home", p.Source)
	assert.Equal(t, exe, p.Location)
}

func TestEnvHomeDirectLayout(t *testing.T) {
	home := t.TempDir()
	exe := touch(t, home, "npm")

	l := newTestLocator(t, &fakeProber{}, fakeHost{}, map[string]string{"NVM_SYMLINK": home})

	p, ok := l.ResolvePackageManager(context.Background(), provisioner.NPM)
	require.True(t, ok)
	assert.Equal(t, exe, p.Location)
}

func TestWellKnownDir(t *testing.T) {
	dir := t.TempDir()
	exe := touch(t, dir, "node")
	host := fakeHost{dirs: map[string][]string{"node": {filepath.Join(dir, "missing"), dir}}}

	l := newTestLocator(t, &fakeProber{}, host, nil)

	p, ok := l.ResolveRuntime(context.Background())
	require.True(t, ok)
	assert.Equal(t, "well-known-dir", p.Source)
	assert.Equal(t, []string{exe}, p.Prefix)
}

func TestDerivedFromSibling(t *testing.T) {
	t.Run("executable beside runtime", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "node")
		npm := touch(t, dir, "npm")
		host := fakeHost{dirs: map[string][]string{"node": {dir}}}

		l := newTestLocator(t, &fakeProber{}, host, nil)
		p, ok := l.ResolvePackageManager(context.Background(), provisioner.NPM)
		require.True(t, ok)
		assert.Equal(t, "derived-from-sibling", p.Source)
		assert.Equal(t, []string{npm}, p.Prefix)
	})

	t.Run("bundled script through runtime", func(t *testing.T) {
		dir := t.TempDir()
		node := touch(t, dir, "node")
		cli := touch(t, dir, "node_modules", "npm", "bin", "npm-cli.js")
		host := fakeHost{dirs: map[string][]string{"node": {dir}}}

		l := newTestLocator(t, &fakeProber{}, host, nil)
		p, ok := l.ResolvePackageManager(context.Background(), provisioner.NPM)
		require.True(t, ok)
		assert.Equal(t, []string{node, cli}, p.Prefix)
		assert.Equal(t, []string{node, cli, "install"}, p.Command("install").Args)
	})

	t.Run("runtime on path without location", func(t *testing.T) {
		prober := &fakeProber{ok: map[string]bool{"node -v": true}}
		l := newTestLocator(t, prober, fakeHost{}, nil)

		_, ok := l.ResolvePackageManager(context.Background(), provisioner.NPM)
		assert.False(t, ok)
	})
}

func TestNothingFound(t *testing.T) {
	prober := &fakeProber{}
	l := newTestLocator(t, prober, fakeHost{}, nil)

	for _, pm := range []provisioner.PackageManager{provisioner.NPM, provisioner.PNPM, provisioner.Yarn, provisioner.Bun} {
		_, ok := l.ResolvePackageManager(context.Background(), pm)
		assert.False(t, ok, string(pm))
	}
	_, ok := l.ResolveBuildTool(context.Background())
	assert.False(t, ok)
	_, ok = l.ResolveJDK(context.Background())
	assert.False(t, ok)
}

func TestResolutionIsCached(t *testing.T) {
	prober := &fakeProber{ok: map[string]bool{"mvn -v": true}}
	l := newTestLocator(t, prober, fakeHost{}, nil)

	for i := 0; i < 3; i++ {
		_, ok := l.ResolveBuildTool(context.Background())
		require.True(t, ok)
	}
	assert.Equal(t, []string{"mvn -v"}, prober.calls)

	_, ok := l.ResolveJDK(context.Background())
	assert.False(t, ok)
	_, ok = l.ResolveJDK(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, strings.Count(strings.Join(prober.calls, "\n"), "java -version"))
}

func TestReset(t *testing.T) {
	prober := &fakeProber{}
	l := newTestLocator(t, prober, fakeHost{}, nil)

	_, ok := l.ResolveBuildTool(context.Background())
	require.False(t, ok)

	prober.mu.Lock()
	prober.ok = map[string]bool{"mvn -v": true}
	prober.mu.Unlock()

	_, ok = l.ResolveBuildTool(context.Background())
	assert.False(t, ok, "cached miss")

	l.Reset()
	_, ok = l.ResolveBuildTool(context.Background())
	assert.True(t, ok)
}

func TestProbeExecErrorIsNotFatal(t *testing.T) {
	var execErr *command.ExecError
	prober := &fakeProber{}
	_, err := prober.Run(context.Background(), command.New("mvn", "-v"))
	require.True(t, errors.As(err, &execErr))
	assert.ErrorIs(t, err, exec.ErrNotFound)

	l := newTestLocator(t, prober, fakeHost{}, nil)
	_, ok := l.ResolveBuildTool(context.Background())
	assert.False(t, ok)
}
