package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	stepStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"})

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"})

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#CC6600", Dark: "#FFAA00"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF0000"})

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"})

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"})
)

// console serialises everything the launcher and its children print, so a
// status line never lands in the middle of a child's output line.
var console = &lockedWriter{w: os.Stdout}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// SetOutput redirects all console output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	console.mu.Lock()
	defer console.mu.Unlock()
	prev := console.w
	console.w = w
	return prev
}

// Console returns the shared, serialised console writer.
func Console() io.Writer {
	return console
}

func printLine(text string) {
	fmt.Fprintln(console, text)
}

// Step prints a progress line such as "[3/9] Freeing ports...".
func Step(step, total int, text string) {
	printLine(stepStyle.Render(fmt.Sprintf("[%d/%d]", step, total)) + " " + text)
}

func Success(msg string) {
	printLine(successStyle.Render("✔") + " " + msg)
}

func Info(msg string) {
	printLine(infoStyle.Render("ℹ") + " " + msg)
}

func Warn(msg string) {
	printLine(warnStyle.Render("⚠") + " " + msg)
}

func Error(msg string) {
	printLine(errorStyle.Render("✖") + " " + msg)
}

// Highlight prints a "label: value" pair.
func Highlight(label, value string) {
	printLine("  " + labelStyle.Render(label+":") + " " + valueStyle.Render(value))
}

// Bullet prints an indented list item.
func Bullet(text string) {
	printLine("   • " + text)
}

// Output prints captured command output, dimmed and indented.
func Output(text string) {
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		printLine(dimStyle.Render("  │ " + strings.TrimRight(line, "\r")))
	}
}
