package dbus

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/displaysyncd/internal/template"
)

// SignalTarget is the render target standing in for every remote surface
// listening on the session bus. It accepts all template types and mirrors
// render and clear events onto the server's signals.
type SignalTarget struct {
	server *Server
	logger *slog.Logger

	mu        sync.Mutex
	currentID string
}

// NewSignalTarget creates a SignalTarget bound to the given server.
func NewSignalTarget(server *Server, logger *slog.Logger) *SignalTarget {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalTarget{
		server: server,
		logger: logger,
	}
}

// ShouldRender accepts every template: bus listeners filter for themselves.
func (t *SignalTarget) ShouldRender(*template.Template) bool { return true }

// ShouldClear never vetoes a teardown.
func (t *SignalTarget) ShouldClear(*template.Template) bool { return true }

// DidRender emits TemplateRendered.
func (t *SignalTarget) DidRender(tpl *template.Template) {
	t.mu.Lock()
	t.currentID = tpl.ID
	t.mu.Unlock()

	if err := t.server.EmitTemplateRendered(tpl.ID, string(tpl.Type)); err != nil {
		t.logger.Warn("failed to emit TemplateRendered", "template_id", tpl.ID, "error", err)
	}
}

// DidClear emits TemplateCleared.
func (t *SignalTarget) DidClear(tpl *template.Template) {
	t.mu.Lock()
	if t.currentID == tpl.ID {
		t.currentID = ""
	}
	t.mu.Unlock()

	if err := t.server.EmitTemplateCleared(tpl.ID); err != nil {
		t.logger.Warn("failed to emit TemplateCleared", "template_id", tpl.ID, "error", err)
	}
}

// CurrentID returns the id of the template currently rendered on the bus
// surface, or empty.
func (t *SignalTarget) CurrentID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentID
}
