package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	pw := newPrefixWriter(&buf, "[backend] ")

	n, err := pw.Write([]byte("Started Application\nTomcat on port"))
	require.NoError(t, err)
	assert.Equal(t, len("Started Application\nTomcat on port"), n)
	assert.Equal(t, "[backend] Started Application\n", buf.String())

	_, _ = pw.Write([]byte(" 8080\n"))
	assert.Equal(t, "[backend] Started Application\n[backend] Tomcat on port 8080\n", buf.String())
}

func TestPrefixWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	pw := newPrefixWriter(&buf, "> ")

	_, _ = pw.Write([]byte("no newline"))
	assert.Empty(t, buf.String())

	pw.Flush()
	assert.Equal(t, "> no newline\n", buf.String())

	pw.Flush()
	assert.Equal(t, "> no newline\n", buf.String(), "second flush writes nothing")
}

func TestConsoleHelpers(t *testing.T) {
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer SetOutput(prev)

	Step(2, 9, "Checking environment...")
	Success("Backend started")
	Warn("port busy")
	Error("build failed")
	Output("line one\nline two\n")
	Output("   \n")

	out := buf.String()
	assert.Contains(t, out, "[2/9]")
	assert.Contains(t, out, "Checking environment...")
	assert.Contains(t, out, "Backend started")
	assert.Contains(t, out, "port busy")
	assert.Contains(t, out, "build failed")
	assert.Contains(t, out, "line one")
	assert.Contains(t, out, "line two")
	assert.Equal(t, 6, strings.Count(out, "\n"), "blank output prints nothing")
}

func TestNewLoggerQuiet(t *testing.T) {
	log, err := NewLogger(false)
	require.NoError(t, err)
	log.Debugw("ignored", "k", "v")
}
