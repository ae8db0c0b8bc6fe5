// Package coordinator implements the display-sync coordinator: it owns the
// single active template, fans lifecycle changes out to render targets, and
// reports aggregate outcomes back to the play-sync authority.
package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/displaysyncd/internal/playsync"
	"github.com/jmylchreest/displaysyncd/internal/registry"
	"github.com/jmylchreest/displaysyncd/internal/serial"
	"github.com/jmylchreest/displaysyncd/internal/template"
)

// RenderTarget is re-exported so implementers don't need to import the
// registry package directly.
type RenderTarget = registry.RenderTarget

// Coordinator synchronizes display templates between an arbitrary number of
// render targets and the play-sync lifecycle authority.
//
// All mutations of the current item and the registry run on a single
// serialized worker. Public methods only enqueue work and never block their
// caller; the authority and the host application may call in from any
// goroutine.
type Coordinator struct {
	logger *slog.Logger
	sync   playsync.Manager
	queue  *serial.Queue
	reg    *registry.Registry

	// mu only guards reads of current from outside the worker (Current);
	// every write happens on the worker.
	mu      sync.RWMutex
	current *template.Template
}

// New creates a Coordinator bound to the given lifecycle authority.
func New(mgr playsync.Manager, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		sync:   mgr,
		queue:  serial.NewQueue(logger),
		reg:    registry.New(),
	}
}

// Start launches the coordinator's serialized worker.
func (c *Coordinator) Start(ctx context.Context) error {
	return c.queue.Start(ctx)
}

// Stop stops the worker. Pending operations are dropped.
func (c *Coordinator) Stop() {
	c.queue.Stop()
}

// Current returns the template currently being synchronized, or nil.
func (c *Coordinator) Current() *template.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// setCurrent must only be called from the worker.
func (c *Coordinator) setCurrent(t *template.Template) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Display handles a new display request. The metadata is decoded into a
// template; on decode failure the request is logged and dropped with no
// state change. On success the template becomes the current item and the
// authority is asked to start synchronization for its dialog.
func (c *Coordinator) Display(meta map[string]any, messageID, dialogRequestID, playServiceID string) {
	t, err := template.Decode(meta, messageID, dialogRequestID, playServiceID)
	if err != nil {
		c.logger.Warn("dropping undecodable display request",
			"message_id", messageID,
			"dialog_request_id", dialogRequestID,
			"error", err,
		)
		return
	}

	c.queue.Enqueue(func() {
		c.setCurrent(t)
		c.logger.Debug("display requested",
			"template_id", t.ID,
			"template_type", t.Type,
			"dialog_request_id", t.DialogRequestID,
		)
		c.sync.StartSync(c, t.DialogRequestID, t.PlayServiceID)
	})
}

// AddTarget registers a render target. A target added after the current
// template synced is not offered that template retroactively; it only
// participates in future display requests.
func (c *Coordinator) AddTarget(target RenderTarget) {
	c.queue.Enqueue(func() {
		c.reg.Add(target)
		c.logger.Debug("render target added", "targets", c.reg.Len())
	})
}

// RemoveTarget unregisters a render target. Removal mid-negotiation is
// safe: subsequent fan-outs simply no longer enumerate it.
func (c *Coordinator) RemoveTarget(target RenderTarget) {
	c.queue.Enqueue(func() {
		c.reg.Remove(target)
		c.logger.Debug("render target removed", "targets", c.reg.Len())
	})
}

// ClearDisplay clears whatever target currently shows. If that leaves the
// template with no rendering target at all, the authority is asked to
// release the group immediately, bypassing the releasing negotiation.
func (c *Coordinator) ClearDisplay(target RenderTarget) {
	c.queue.Enqueue(func() {
		if c.reg.Current(target) == nil {
			return
		}
		prior := c.reg.MarkCleared(target)
		target.DidClear(prior)

		if c.reg.HasRendering(prior.ID) {
			return
		}
		c.logger.Debug("last rendering cleared, releasing immediately",
			"template_id", prior.ID,
			"dialog_request_id", prior.DialogRequestID,
		)
		c.sync.ReleaseSyncImmediately(prior.DialogRequestID, prior.PlayServiceID)
	})
}

// OnSyncState implements playsync.Party. State changes are admitted to the
// serialized worker in arrival order.
func (c *Coordinator) OnSyncState(state playsync.State, dialogRequestID string) {
	c.queue.Enqueue(func() {
		c.handleSyncState(state, dialogRequestID)
	})
}

// IsDisplay implements playsync.Party.
func (c *Coordinator) IsDisplay() bool { return true }

// Duration implements playsync.Party. Display holds are always short.
func (c *Coordinator) Duration() playsync.Duration { return playsync.DurationShort }

// handleSyncState runs on the worker.
func (c *Coordinator) handleSyncState(state playsync.State, dialogRequestID string) {
	t := c.current
	if t == nil || t.DialogRequestID != dialogRequestID {
		// Stale callback for a superseded template.
		c.logger.Debug("ignoring stale sync state",
			"state", state,
			"dialog_request_id", dialogRequestID,
		)
		return
	}

	switch state {
	case playsync.StatePrepared:
		// Authority bookkeeping only.
	case playsync.StateSynced:
		c.handleSynced(t)
	case playsync.StateReleasing:
		c.handleReleasing(t)
	case playsync.StateReleased:
		c.handleReleased(t)
	}
}

// handleSynced fans the new template out to every registered target. If no
// target agrees to render, the group is cancelled so an un-renderable
// template cannot hold it open indefinitely.
func (c *Coordinator) handleSynced(t *template.Template) {
	rendered := 0
	for _, target := range c.reg.Targets() {
		if !target.ShouldRender(t) {
			continue
		}
		c.reg.MarkRendered(target, t)
		target.DidRender(t)
		rendered++
	}

	c.logger.Debug("template synced",
		"template_id", t.ID,
		"rendered", rendered,
	)

	if rendered == 0 {
		c.setCurrent(nil)
		c.sync.CancelSync(c, t.DialogRequestID, t.PlayServiceID)
	}
}

// handleReleasing asks every target showing the template whether it may be
// cleared. Every target is asked even after a refusal, so each one gets a
// chance to veto or prepare. Only a unanimous yes releases the group; on
// refusal the authority re-drives releasing later.
func (c *Coordinator) handleReleasing(t *template.Template) {
	agreed := true
	for _, target := range c.reg.RenderedBy(t.ID) {
		if !target.ShouldClear(t) {
			agreed = false
		}
	}

	if !agreed {
		c.logger.Debug("release vetoed", "template_id", t.ID)
		return
	}
	c.sync.ReleaseSync(c, t.DialogRequestID, t.PlayServiceID)
}

// handleReleased tears the template down on every target showing it.
func (c *Coordinator) handleReleased(t *template.Template) {
	c.setCurrent(nil)
	for _, target := range c.reg.RenderedBy(t.ID) {
		c.reg.MarkCleared(target)
		target.DidClear(t)
	}
	c.logger.Debug("template released", "template_id", t.ID)
}
