// Package registry tracks which render target currently shows which display
// template.
package registry

import (
	"github.com/jmylchreest/displaysyncd/internal/template"
)

// RenderTarget is an observer capable of rendering and clearing display
// templates. ShouldRender and ShouldClear are synchronous predicates invoked
// during fan-out; DidRender and DidClear are notifications.
type RenderTarget interface {
	ShouldRender(t *template.Template) bool
	ShouldClear(t *template.Template) bool
	DidRender(t *template.Template)
	DidClear(t *template.Template)
}

// detachable is an optional capability: targets that can disappear out from
// under the registry (a closed window, a quit TUI) report it here and are
// pruned on the next traversal.
type detachable interface {
	Detached() bool
}

// Entry pairs a registered target with the template it currently shows.
// Current is nil when the target is registered but showing nothing.
type Entry struct {
	Target  RenderTarget
	Current *template.Template
}

// Registry is an ordered collection of render targets, at most one entry per
// target identity. It is not safe for concurrent use: ownership belongs to
// the coordinator's serialized worker.
type Registry struct {
	entries []*Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Add registers target with no current template, replacing any existing
// entry for the same identity. Repeated calls with the same target are
// idempotent.
func (r *Registry) Add(target RenderTarget) {
	r.Remove(target)
	r.entries = append(r.entries, &Entry{Target: target})
}

// Remove drops every entry whose target is the given identity, plus any
// entry whose target has detached. Removing an absent target is a no-op.
func (r *Registry) Remove(target RenderTarget) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Target == target || detached(e.Target) {
			continue
		}
		kept = append(kept, e)
	}
	// Zero the tail so removed entries don't pin their targets.
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
}

// MarkRendered records that target now shows t. The caller is responsible
// for delivering the target's DidRender notification afterwards.
func (r *Registry) MarkRendered(target RenderTarget, t *template.Template) {
	r.Remove(target)
	r.entries = append(r.entries, &Entry{Target: target, Current: t})
}

// MarkCleared records that target no longer shows anything and returns the
// template that was current before clearing, or nil. The target stays
// registered.
func (r *Registry) MarkCleared(target RenderTarget) *template.Template {
	var prior *template.Template
	for _, e := range r.entries {
		if e.Target == target {
			prior = e.Current
			break
		}
	}
	r.Remove(target)
	r.entries = append(r.entries, &Entry{Target: target})
	return prior
}

// Current returns the template target currently shows, or nil.
func (r *Registry) Current(target RenderTarget) *template.Template {
	for _, e := range r.live() {
		if e.Target == target {
			return e.Current
		}
	}
	return nil
}

// HasRendering reports whether at least one live entry currently shows the
// template with the given id.
func (r *Registry) HasRendering(templateID string) bool {
	for _, e := range r.live() {
		if e.Current != nil && e.Current.ID == templateID {
			return true
		}
	}
	return false
}

// RenderedBy returns the targets currently showing the template with the
// given id, in registration order.
func (r *Registry) RenderedBy(templateID string) []RenderTarget {
	var targets []RenderTarget
	for _, e := range r.live() {
		if e.Current != nil && e.Current.ID == templateID {
			targets = append(targets, e.Target)
		}
	}
	return targets
}

// Targets returns a snapshot of all live targets in registration order.
func (r *Registry) Targets() []RenderTarget {
	live := r.live()
	targets := make([]RenderTarget, 0, len(live))
	for _, e := range live {
		targets = append(targets, e.Target)
	}
	return targets
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return len(r.live())
}

// live prunes detached targets and returns the surviving entries. Every
// traversal goes through here so a gone target can never linger.
func (r *Registry) live() []*Entry {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if detached(e.Target) {
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
	return r.entries
}

func detached(target RenderTarget) bool {
	if d, ok := target.(detachable); ok {
		return d.Detached()
	}
	return false
}
