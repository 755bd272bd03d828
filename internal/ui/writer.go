package ui

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var roleColors = map[string]lipgloss.AdaptiveColor{
	"backend":  {Light: "#7D56F4", Dark: "#AD8EE6"},
	"frontend": {Light: "#0066CC", Dark: "#00AAFF"},
}

// PrefixWriter writes complete lines to an underlying writer with a label in
// front of each one. A trailing partial line is held until its newline
// arrives or Flush is called.
type PrefixWriter struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	buffer []byte
}

// NewPrefixWriter labels lines written to the console with role.
func NewPrefixWriter(role string) *PrefixWriter {
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := roleColors[role]; ok {
		style = style.Foreground(c)
	}
	return newPrefixWriter(console, style.Render("["+role+"]")+" ")
}

func newPrefixWriter(w io.Writer, prefix string) *PrefixWriter {
	return &PrefixWriter{w: w, prefix: prefix, buffer: make([]byte, 0, 4096)}
}

// Write implements io.Writer. It never fails: a child's output must not
// stop because the console is gone.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.buffer = append(pw.buffer, p...)
	for {
		idx := bytes.IndexByte(pw.buffer, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, 0, len(pw.prefix)+idx+1)
		line = append(line, pw.prefix...)
		line = append(line, pw.buffer[:idx+1]...)
		_, _ = pw.w.Write(line)
		pw.buffer = pw.buffer[idx+1:]
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (pw *PrefixWriter) Flush() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if len(pw.buffer) == 0 {
		return
	}
	line := append([]byte(pw.prefix), pw.buffer...)
	line = append(line, '\n')
	_, _ = pw.w.Write(line)
	pw.buffer = pw.buffer[:0]
}
