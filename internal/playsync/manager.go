package playsync

import (
	"log/slog"
	"sync"
	"time"
)

// Default hold durations for synchronization groups.
const (
	DefaultShortDuration = 7 * time.Second
	DefaultLongDuration  = 30 * time.Second
)

// groupKey identifies a synchronization group.
type groupKey struct {
	dialogRequestID string
	serviceID       string
}

// member tracks one party's participation in a group.
type member struct {
	party  Party
	agreed bool // party has acked release
}

// group is the shared lifecycle state for one (dialogRequestID, serviceID).
type group struct {
	key     groupKey
	state   State
	members []*member
	timer   *time.Timer
	gen     int // invalidates timers scheduled for an earlier round
}

// SyncGroups is an in-process Manager implementation. It owns one state
// machine per (dialogRequestID, serviceID) group, drives releasing rounds on
// a per-group timer, and fans state changes out to every registered party.
//
// Party callbacks are always invoked with no internal lock held, so a party
// may call back into the manager from within OnSyncState.
type SyncGroups struct {
	mu     sync.Mutex
	logger *slog.Logger
	groups map[groupKey]*group

	shortDuration time.Duration
	longDuration  time.Duration
}

// NewSyncGroups creates a SyncGroups manager with default hold durations.
func NewSyncGroups(logger *slog.Logger) *SyncGroups {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncGroups{
		logger:        logger,
		groups:        make(map[groupKey]*group),
		shortDuration: DefaultShortDuration,
		longDuration:  DefaultLongDuration,
	}
}

// SetDurations overrides the short and long group hold durations.
// Non-positive values keep the current setting.
func (m *SyncGroups) SetDurations(short, long time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if short > 0 {
		m.shortDuration = short
	}
	if long > 0 {
		m.longDuration = long
	}
}

// StartSync begins or joins the group for the given dialog.
func (m *SyncGroups) StartSync(party Party, dialogRequestID, serviceID string) {
	key := groupKey{dialogRequestID, serviceID}

	m.mu.Lock()
	g, exists := m.groups[key]
	if !exists {
		g = &group{key: key, state: StatePrepared}
		m.groups[key] = g
	}

	joined := false
	if g.memberOf(party) == nil {
		g.members = append(g.members, &member{party: party})
		joined = true
	}

	var notify []notification
	if g.state == StatePrepared {
		// New or not-yet-synced group: announce prepared, then advance.
		notify = append(notify, g.notifyAllLocked(StatePrepared)...)
		g.state = StateSynced
		notify = append(notify, g.notifyAllLocked(StateSynced)...)
		m.scheduleReleaseLocked(g)
	} else if joined {
		// Late joiner to a live group only hears the current state. Its
		// hold preference still counts, so re-arm the release timer.
		notify = append(notify, notification{party, g.state, dialogRequestID})
		if g.state == StateSynced {
			m.scheduleReleaseLocked(g)
		}
	}
	m.mu.Unlock()

	m.logger.Debug("sync started",
		"dialog_request_id", dialogRequestID,
		"service_id", serviceID,
		"display", party.IsDisplay(),
		"new_group", !exists,
	)
	deliver(notify)
}

// CancelSync removes party from its group. If no parties remain the group is
// dropped without a released round: a cancelling party has already torn its
// own state down.
func (m *SyncGroups) CancelSync(party Party, dialogRequestID, serviceID string) {
	key := groupKey{dialogRequestID, serviceID}

	m.mu.Lock()
	g, exists := m.groups[key]
	if !exists {
		m.mu.Unlock()
		return
	}

	g.removeMember(party)
	empty := len(g.members) == 0
	if empty {
		m.dropGroupLocked(g)
	}
	m.mu.Unlock()

	m.logger.Debug("sync cancelled",
		"dialog_request_id", dialogRequestID,
		"service_id", serviceID,
		"group_dropped", empty,
	)
}

// ReleaseSync records party's agreement to release the group. The first
// agreement moves a synced group into releasing, prompting the remaining
// parties; once every member has agreed the group is released.
func (m *SyncGroups) ReleaseSync(party Party, dialogRequestID, serviceID string) {
	key := groupKey{dialogRequestID, serviceID}

	m.mu.Lock()
	g, exists := m.groups[key]
	if !exists {
		m.mu.Unlock()
		return
	}

	if mem := g.memberOf(party); mem != nil {
		mem.agreed = true
	}

	var notify []notification
	if g.allAgreedLocked() {
		g.state = StateReleased
		notify = g.notifyAllLocked(StateReleased)
		m.dropGroupLocked(g)
	} else if g.state == StateSynced {
		g.state = StateReleasing
		notify = g.notifyPendingLocked()
		m.scheduleReleaseLocked(g)
	}
	m.mu.Unlock()

	m.logger.Debug("sync release requested",
		"dialog_request_id", dialogRequestID,
		"service_id", serviceID,
		"state", m.groupState(key).String(),
	)
	deliver(notify)
}

// ReleaseSyncImmediately forces the group to released without negotiation.
func (m *SyncGroups) ReleaseSyncImmediately(dialogRequestID, serviceID string) {
	key := groupKey{dialogRequestID, serviceID}

	m.mu.Lock()
	g, exists := m.groups[key]
	if !exists {
		m.mu.Unlock()
		return
	}

	g.state = StateReleased
	notify := g.notifyAllLocked(StateReleased)
	m.dropGroupLocked(g)
	m.mu.Unlock()

	m.logger.Debug("sync released immediately",
		"dialog_request_id", dialogRequestID,
		"service_id", serviceID,
	)
	deliver(notify)
}

// GroupCount returns the number of live synchronization groups.
func (m *SyncGroups) GroupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups)
}

// groupState returns the current state of a group, or StateReleased if the
// group no longer exists.
func (m *SyncGroups) groupState(key groupKey) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.groups[key]; ok {
		return g.state
	}
	return StateReleased
}

// scheduleReleaseLocked (re)arms the group's release timer to the longest
// hold duration any member wants. When it fires, a releasing round is driven
// toward every member that has not yet agreed; rounds repeat until the group
// resolves. Caller must hold the lock.
func (m *SyncGroups) scheduleReleaseLocked(g *group) {
	hold := m.shortDuration
	for _, mem := range g.members {
		if mem.party.Duration() == DurationLong {
			hold = m.longDuration
			break
		}
	}

	if g.timer != nil {
		g.timer.Stop()
	}
	g.gen++
	gen := g.gen
	key := g.key
	g.timer = time.AfterFunc(hold, func() {
		m.driveRelease(key, gen)
	})
}

// driveRelease runs one timer-triggered releasing round.
func (m *SyncGroups) driveRelease(key groupKey, gen int) {
	m.mu.Lock()
	g, exists := m.groups[key]
	if !exists || g.gen != gen {
		m.mu.Unlock()
		return
	}

	if g.state == StateSynced {
		g.state = StateReleasing
	}
	notify := g.notifyPendingLocked()
	m.scheduleReleaseLocked(g)
	m.mu.Unlock()

	m.logger.Debug("sync releasing round",
		"dialog_request_id", key.dialogRequestID,
		"service_id", key.serviceID,
		"pending", len(notify),
	)
	deliver(notify)
}

// dropGroupLocked removes the group and disarms its timer. Caller must hold
// the lock.
func (m *SyncGroups) dropGroupLocked(g *group) {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.gen++
	delete(m.groups, g.key)
}

// notification is a pending OnSyncState delivery, collected under the lock
// and delivered after it is dropped.
type notification struct {
	party           Party
	state           State
	dialogRequestID string
}

func deliver(notify []notification) {
	for _, n := range notify {
		n.party.OnSyncState(n.state, n.dialogRequestID)
	}
}

func (g *group) memberOf(party Party) *member {
	for _, mem := range g.members {
		if mem.party == party {
			return mem
		}
	}
	return nil
}

func (g *group) removeMember(party Party) {
	for i, mem := range g.members {
		if mem.party == party {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

func (g *group) allAgreedLocked() bool {
	for _, mem := range g.members {
		if !mem.agreed {
			return false
		}
	}
	return len(g.members) > 0
}

func (g *group) notifyAllLocked(state State) []notification {
	notify := make([]notification, 0, len(g.members))
	for _, mem := range g.members {
		notify = append(notify, notification{mem.party, state, g.key.dialogRequestID})
	}
	return notify
}

// notifyPendingLocked builds releasing notifications for members that have
// not yet agreed to release.
func (g *group) notifyPendingLocked() []notification {
	var notify []notification
	for _, mem := range g.members {
		if !mem.agreed {
			notify = append(notify, notification{mem.party, StateReleasing, g.key.dialogRequestID})
		}
	}
	return notify
}
