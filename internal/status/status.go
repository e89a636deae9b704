// Package status prints the one-line progress messages a user watches while
// a submission runs.
package status

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// Printer writes styled status lines. The zero value discards output.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Discard returns a printer that writes nothing.
func Discard() *Printer {
	return &Printer{}
}

func (p *Printer) line(style lipgloss.Style, mark, format string, args ...any) {
	if p == nil || p.w == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", style.Render(mark), fmt.Sprintf(format, args...))
}

// Stage announces the start of a stage.
func (p *Printer) Stage(format string, args ...any) {
	p.line(stageStyle, "→", format, args...)
}

// OK reports a stage that completed.
func (p *Printer) OK(format string, args ...any) {
	p.line(okStyle, "✓", format, args...)
}

// Fail reports a stage that failed.
func (p *Printer) Fail(format string, args ...any) {
	p.line(failStyle, "✗", format, args...)
}

// Warn reports something that did not stop the stage.
func (p *Printer) Warn(format string, args ...any) {
	p.line(warnStyle, "!", format, args...)
}

// Skipped reports a stage cancelled because debug mode is on.
func (p *Printer) Skipped(stage string) {
	p.line(skipStyle, "-", "%s: skipped (debug)", stage)
}
