// Package playsync defines the play-sync lifecycle shared between the
// audio-playback side and display-rendering side of a dialog.
package playsync

// State represents the lifecycle state of a synchronization group.
type State int

const (
	// StatePrepared means the group exists but playback has not started.
	StatePrepared State = iota
	// StateSynced means all parties are active and content should be shown.
	StateSynced
	// StateReleasing means the group is negotiating teardown with its parties.
	StateReleasing
	// StateReleased means the group is gone and content must be torn down.
	StateReleased
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateSynced:
		return "synced"
	case StateReleasing:
		return "releasing"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Duration indicates how long a party wants its group held open once the
// group becomes eligible for release.
type Duration int

const (
	// DurationShort is used by display parties.
	DurationShort Duration = iota
	// DurationLong is used by media playback parties.
	DurationLong
)

// String returns the string representation of Duration.
func (d Duration) String() string {
	switch d {
	case DurationShort:
		return "short"
	case DurationLong:
		return "long"
	default:
		return "unknown"
	}
}

// Party is the callback surface a synchronization participant implements.
// OnSyncState must not block: it is invoked from the manager's own call
// chain and long work should be handed off to the party's own executor.
type Party interface {
	// OnSyncState is invoked whenever the party's group changes state.
	OnSyncState(state State, dialogRequestID string)

	// IsDisplay reports whether this party renders visual content.
	IsDisplay() bool

	// Duration reports how long the party wants the group held open.
	Duration() Duration
}

// Manager is the lifecycle authority owning synchronization groups keyed by
// (dialogRequestID, serviceID).
type Manager interface {
	// StartSync begins or joins the group for the given dialog, registering
	// party as an interested participant.
	StartSync(party Party, dialogRequestID, serviceID string)

	// CancelSync abandons the group on behalf of party. Used when a party
	// never produced anything worth keeping the group alive for.
	CancelSync(party Party, dialogRequestID, serviceID string)

	// ReleaseSync records that party agrees to release the group. The group
	// reaches released once every registered party has agreed.
	ReleaseSync(party Party, dialogRequestID, serviceID string)

	// ReleaseSyncImmediately forces the group to released without
	// negotiation, regardless of outstanding parties.
	ReleaseSyncImmediately(dialogRequestID, serviceID string)
}
