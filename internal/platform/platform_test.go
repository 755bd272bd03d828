package platform

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/harshul/devup/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameProgram(t *testing.T) {
	assert.True(t, sameProgram("java.exe", "java"))
	assert.True(t, sameProgram("Node.EXE", "node"))
	assert.True(t, sameProgram("node", "node"))
	assert.False(t, sameProgram("nodemon", "node"))
	assert.False(t, sameProgram("", ""))
}

func TestExpandSkipsMissingAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"idea-2023", "idea-2024"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name, "bin"), 0o755))
	}

	got := expand(
		filepath.Join(dir, "idea-*", "bin"),
		filepath.Join(dir, "idea-2024", "bin"),
		filepath.Join(dir, "missing"),
		"",
	)

	assert.Equal(t, []string{
		filepath.Join(dir, "idea-2023", "bin"),
		filepath.Join(dir, "idea-2024", "bin"),
	}, got)
}

func TestUnder(t *testing.T) {
	assert.Equal(t, "", under("", "nodejs"))
	assert.Equal(t, filepath.Join("root", "nodejs"), under("root", "nodejs"))
}

func TestSocketsIncludeOwnListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	ops := Current(command.NewRunner(nil), nil)
	sockets, err := ops.Sockets(context.Background())
	if err != nil {
		t.Skipf("tcp table not readable here: %v", err)
	}

	var found bool
	for _, s := range sockets {
		if s.Port == port && s.Listening() && s.PID == os.Getpid() {
			found = true
		}
	}
	assert.True(t, found, "listener on %d owned by %d not in tcp table", port, os.Getpid())
}

func TestKillTreeNativeSparesSelf(t *testing.T) {
	require.NoError(t, killTreeNative(context.Background(), os.Getpid()))
	// Still here.
	assert.Positive(t, os.Getpid())
}
