package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/displaysyncd/internal/template"
)

// Target adapts a running BubbleTea program into a render target. Render
// and clear notifications are forwarded into the program as messages; once
// the program exits the target reports itself detached and the registry
// prunes it on the next fan-out.
type Target struct {
	program  *tea.Program
	detached atomic.Bool
}

// NewTarget creates a Target for the given program.
func NewTarget(program *tea.Program) *Target {
	return &Target{program: program}
}

// MarkDetached records that the program has exited.
func (t *Target) MarkDetached() {
	t.detached.Store(true)
}

// Detached reports whether the program has exited.
func (t *Target) Detached() bool {
	return t.detached.Load()
}

// ShouldRender accepts the template types the card view knows how to draw.
func (t *Target) ShouldRender(tpl *template.Template) bool {
	if t.Detached() {
		return false
	}
	switch tpl.Type {
	case template.TypeAudio, template.TypeText, template.TypeImage:
		return true
	default:
		return false
	}
}

// ShouldClear never vetoes a teardown: a terminal card has no pending input
// to protect.
func (t *Target) ShouldClear(*template.Template) bool { return true }

// DidRender forwards the template into the program.
func (t *Target) DidRender(tpl *template.Template) {
	if t.Detached() {
		return
	}
	t.program.Send(renderMsg{tpl: tpl})
}

// DidClear forwards the teardown into the program.
func (t *Target) DidClear(tpl *template.Template) {
	if t.Detached() {
		return
	}
	t.program.Send(clearMsg{tpl: tpl})
}
