package audio

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/displaysyncd/internal/playsync"
)

// Playback is the audio side of a synchronization group: it joins the group
// when a track tied to a dialog starts, and agrees to release it when the
// track ends or is stopped. Display parties in the same group are torn down
// by the authority once every party, this one included, has agreed.
type Playback struct {
	mu     sync.Mutex
	logger *slog.Logger
	player *Player
	sync   playsync.Manager

	// Dialog currently backing playback. Empty when idle.
	dialogRequestID string
	serviceID       string

	// Service id per dialog this party has joined but not yet released,
	// so a releasing round for a superseded dialog can still be acked.
	joined map[string]string
}

// NewPlayback creates the playback party bound to the given player and
// lifecycle authority.
func NewPlayback(player *Player, mgr playsync.Manager, logger *slog.Logger) *Playback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Playback{
		logger: logger,
		player: player,
		sync:   mgr,
		joined: make(map[string]string),
	}
}

// Play starts a track for the given dialog and joins its synchronization
// group. A track already in flight is stopped first and its group released
// on this party's behalf.
func (pb *Playback) Play(path, dialogRequestID, serviceID string) error {
	pb.Stop()

	pb.mu.Lock()
	pb.dialogRequestID = dialogRequestID
	pb.serviceID = serviceID
	pb.joined[dialogRequestID] = serviceID
	pb.mu.Unlock()

	pb.sync.StartSync(pb, dialogRequestID, serviceID)

	err := pb.player.Play(path, func() {
		pb.finished(dialogRequestID, serviceID)
	})
	if err != nil {
		// Track never started; don't hold the group open for it.
		pb.mu.Lock()
		pb.dialogRequestID = ""
		pb.serviceID = ""
		delete(pb.joined, dialogRequestID)
		pb.mu.Unlock()
		pb.sync.ReleaseSync(pb, dialogRequestID, serviceID)
		return err
	}

	pb.logger.Debug("playback started",
		"path", path,
		"dialog_request_id", dialogRequestID,
		"service_id", serviceID,
	)
	return nil
}

// Stop halts the current track, if any, and releases its group on this
// party's behalf.
func (pb *Playback) Stop() {
	pb.mu.Lock()
	dialogRequestID := pb.dialogRequestID
	serviceID := pb.serviceID
	pb.dialogRequestID = ""
	pb.serviceID = ""
	delete(pb.joined, dialogRequestID)
	pb.mu.Unlock()

	if dialogRequestID == "" {
		return
	}

	pb.player.Stop()
	pb.sync.ReleaseSync(pb, dialogRequestID, serviceID)
	pb.logger.Debug("playback stopped", "dialog_request_id", dialogRequestID)
}

// finished runs when a track ends naturally.
func (pb *Playback) finished(dialogRequestID, serviceID string) {
	pb.mu.Lock()
	if pb.dialogRequestID != dialogRequestID {
		// A newer track superseded this one; its group was already handled.
		pb.mu.Unlock()
		return
	}
	pb.dialogRequestID = ""
	pb.serviceID = ""
	delete(pb.joined, dialogRequestID)
	pb.mu.Unlock()

	pb.logger.Debug("playback finished", "dialog_request_id", dialogRequestID)
	pb.sync.ReleaseSync(pb, dialogRequestID, serviceID)
}

// Position returns the elapsed time of the current track.
func (pb *Playback) Position() (elapsed int64, playing bool) {
	pb.mu.Lock()
	playing = pb.dialogRequestID != ""
	pb.mu.Unlock()
	return int64(pb.player.Position().Seconds()), playing
}

// OnSyncState implements playsync.Party. A releasing round that arrives
// while this party is no longer playing the dialog is acked immediately so
// the group can resolve.
func (pb *Playback) OnSyncState(state playsync.State, dialogRequestID string) {
	pb.mu.Lock()
	active := pb.dialogRequestID == dialogRequestID
	serviceID, tracked := pb.joined[dialogRequestID]
	if state == playsync.StateReleased {
		delete(pb.joined, dialogRequestID)
	}
	pb.mu.Unlock()

	pb.logger.Debug("playback sync state",
		"state", state,
		"dialog_request_id", dialogRequestID,
		"active", active,
	)

	if state == playsync.StateReleasing && !active && tracked {
		pb.sync.ReleaseSync(pb, dialogRequestID, serviceID)
	}
}

// IsDisplay implements playsync.Party.
func (pb *Playback) IsDisplay() bool { return false }

// Duration implements playsync.Party. Media holds are long.
func (pb *Playback) Duration() playsync.Duration { return playsync.DurationLong }
