package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/displaysyncd/internal/playsync"
)

// recordingManager captures lifecycle calls the playback party makes.
type recordingManager struct {
	mu    sync.Mutex
	calls []string // "method dialog service"
}

func (m *recordingManager) record(method, dialogRequestID, serviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method+" "+dialogRequestID+" "+serviceID)
}

func (m *recordingManager) StartSync(_ playsync.Party, dialogRequestID, serviceID string) {
	m.record("start", dialogRequestID, serviceID)
}

func (m *recordingManager) CancelSync(_ playsync.Party, dialogRequestID, serviceID string) {
	m.record("cancel", dialogRequestID, serviceID)
}

func (m *recordingManager) ReleaseSync(_ playsync.Party, dialogRequestID, serviceID string) {
	m.record("release", dialogRequestID, serviceID)
}

func (m *recordingManager) ReleaseSyncImmediately(dialogRequestID, serviceID string) {
	m.record("release_immediately", dialogRequestID, serviceID)
}

func (m *recordingManager) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func TestPlayback_PlayJoinsGroup(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	// An empty path plays silence but still drives the group lifecycle.
	require.NoError(t, pb.Play("", "d1", "s1"))

	assert.Equal(t, []string{"start d1 s1"}, mgr.recorded())
	_, playing := pb.Position()
	assert.True(t, playing)
}

func TestPlayback_StopReleasesGroup(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	require.NoError(t, pb.Play("", "d1", "s1"))
	pb.Stop()

	assert.Equal(t, []string{"start d1 s1", "release d1 s1"}, mgr.recorded())
	_, playing := pb.Position()
	assert.False(t, playing)
}

func TestPlayback_StopWhenIdleIsNoop(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	pb.Stop()

	assert.Empty(t, mgr.recorded())
}

func TestPlayback_NewTrackReleasesPriorGroup(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	require.NoError(t, pb.Play("", "d1", "s1"))
	require.NoError(t, pb.Play("", "d2", "s2"))

	assert.Equal(t, []string{"start d1 s1", "release d1 s1", "start d2 s2"}, mgr.recorded())
}

func TestPlayback_FailedTrackDoesNotHoldGroupOpen(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	err := pb.Play("/nonexistent/track.wav", "d1", "s1")
	require.Error(t, err)

	assert.Equal(t, []string{"start d1 s1", "release d1 s1"}, mgr.recorded())
	_, playing := pb.Position()
	assert.False(t, playing)
}

func TestPlayback_ReleasingWhileActiveIsNotAcked(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	require.NoError(t, pb.Play("", "d1", "s1"))
	pb.OnSyncState(playsync.StateReleasing, "d1")

	// The track is still in flight; refusal is silence, not a release.
	assert.Equal(t, []string{"start d1 s1"}, mgr.recorded())
}

func TestPlayback_ReleasingForTrackedInactiveDialogIsAcked(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	pb.mu.Lock()
	pb.dialogRequestID = "d2"
	pb.serviceID = "s2"
	pb.joined["d1"] = "s1"
	pb.joined["d2"] = "s2"
	pb.mu.Unlock()

	pb.OnSyncState(playsync.StateReleasing, "d1")

	assert.Equal(t, []string{"release d1 s1"}, mgr.recorded())
}

func TestPlayback_ReleasingForUnknownDialogIsIgnored(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	pb.OnSyncState(playsync.StateReleasing, "d9")

	assert.Empty(t, mgr.recorded())
}

func TestPlayback_ReleasedForgetsDialog(t *testing.T) {
	mgr := &recordingManager{}
	pb := NewPlayback(NewPlayer(nil), mgr, nil)

	pb.mu.Lock()
	pb.joined["d1"] = "s1"
	pb.mu.Unlock()

	pb.OnSyncState(playsync.StateReleased, "d1")
	pb.OnSyncState(playsync.StateReleasing, "d1")

	// The released round dropped the dialog; a later releasing is unknown.
	assert.Empty(t, mgr.recorded())
}

func TestPlayback_PartyTraits(t *testing.T) {
	pb := NewPlayback(NewPlayer(nil), &recordingManager{}, nil)

	assert.False(t, pb.IsDisplay())
	assert.Equal(t, playsync.DurationLong, pb.Duration())
}
