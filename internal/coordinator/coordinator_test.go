package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/displaysyncd/internal/playsync"
	"github.com/jmylchreest/displaysyncd/internal/template"
)

// fakeManager records every lifecycle call the coordinator makes.
type fakeManager struct {
	mu    sync.Mutex
	calls []managerCall
}

type managerCall struct {
	method          string
	dialogRequestID string
	serviceID       string
}

func (m *fakeManager) record(method, dialogRequestID, serviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, managerCall{method, dialogRequestID, serviceID})
}

func (m *fakeManager) StartSync(_ playsync.Party, dialogRequestID, serviceID string) {
	m.record("start", dialogRequestID, serviceID)
}

func (m *fakeManager) CancelSync(_ playsync.Party, dialogRequestID, serviceID string) {
	m.record("cancel", dialogRequestID, serviceID)
}

func (m *fakeManager) ReleaseSync(_ playsync.Party, dialogRequestID, serviceID string) {
	m.record("release", dialogRequestID, serviceID)
}

func (m *fakeManager) ReleaseSyncImmediately(dialogRequestID, serviceID string) {
	m.record("release_immediately", dialogRequestID, serviceID)
}

func (m *fakeManager) recorded() []managerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]managerCall(nil), m.calls...)
}

// fakeTarget is a render target with configurable predicates. Its fields are
// only touched from the coordinator's worker; tests read them after drain,
// which establishes the necessary ordering.
type fakeTarget struct {
	renderOK bool
	clearOK  bool

	shouldRenderCalls int
	shouldClearCalls  int
	rendered          []*template.Template
	cleared           []*template.Template
}

func (f *fakeTarget) ShouldRender(t *template.Template) bool {
	f.shouldRenderCalls++
	return f.renderOK
}

func (f *fakeTarget) ShouldClear(t *template.Template) bool {
	f.shouldClearCalls++
	return f.clearOK
}

func (f *fakeTarget) DidRender(t *template.Template) { f.rendered = append(f.rendered, t) }
func (f *fakeTarget) DidClear(t *template.Template)  { f.cleared = append(f.cleared, t) }

func acceptingTarget() *fakeTarget { return &fakeTarget{renderOK: true, clearOK: true} }

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeManager) {
	t.Helper()
	mgr := &fakeManager{}
	c := New(mgr, nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	return c, mgr
}

// drain waits until every operation enqueued so far has run on the worker.
func drain(t *testing.T, c *Coordinator) {
	t.Helper()
	done := make(chan struct{})
	c.queue.Enqueue(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator worker did not drain in time")
	}
}

func audioMeta() map[string]any {
	return map[string]any{
		"type":   "audio",
		"title":  "Idioteque",
		"artist": "Radiohead",
	}
}

func TestDisplay_DecodesAndStartsSync(t *testing.T) {
	c, mgr := newTestCoordinator(t)

	c.Display(audioMeta(), "m1", "d1", "s1")
	drain(t, c)

	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "m1", cur.ID)
	assert.Equal(t, template.TypeAudio, cur.Type)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}}, mgr.recorded())
}

func TestDisplay_UndecodableRequestIsDropped(t *testing.T) {
	c, mgr := newTestCoordinator(t)

	c.Display(map[string]any{"title": "no type tag"}, "m1", "d1", "s1")
	drain(t, c)

	assert.Nil(t, c.Current())
	assert.Empty(t, mgr.recorded())
}

func TestDisplay_NewRequestSupersedesCurrent(t *testing.T) {
	c, mgr := newTestCoordinator(t)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.Display(audioMeta(), "m2", "d2", "s2")
	drain(t, c)

	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "m2", cur.ID)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"start", "d2", "s2"}}, mgr.recorded())
}

func TestSynced_FansOutOnlyToAcceptingTargets(t *testing.T) {
	c, _ := newTestCoordinator(t)
	yes := acceptingTarget()
	no := &fakeTarget{renderOK: false}
	c.AddTarget(yes)
	c.AddTarget(no)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	drain(t, c)

	require.Len(t, yes.rendered, 1)
	assert.Equal(t, "m1", yes.rendered[0].ID)
	assert.Empty(t, no.rendered)
	assert.Equal(t, 1, no.shouldRenderCalls)
}

func TestSynced_NoTargetAcceptsCancelsSync(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	c.AddTarget(&fakeTarget{renderOK: false})

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	drain(t, c)

	assert.Nil(t, c.Current())
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"cancel", "d1", "s1"}}, mgr.recorded())
}

func TestSynced_NoTargetsRegisteredCancelsSync(t *testing.T) {
	c, mgr := newTestCoordinator(t)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	drain(t, c)

	assert.Nil(t, c.Current())
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"cancel", "d1", "s1"}}, mgr.recorded())
}

func TestAddTarget_AfterSyncedGetsNoRetroactiveOffer(t *testing.T) {
	c, _ := newTestCoordinator(t)
	early := acceptingTarget()
	c.AddTarget(early)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	drain(t, c)

	late := acceptingTarget()
	c.AddTarget(late)
	drain(t, c)

	assert.Empty(t, late.rendered)
	assert.Equal(t, 0, late.shouldRenderCalls)
}

func TestStaleSyncStateIsIgnored(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	target := acceptingTarget()
	c.AddTarget(target)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d0")
	drain(t, c)

	assert.Empty(t, target.rendered)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}}, mgr.recorded())
}

func TestSyncStateWithNoCurrentTemplateIsIgnored(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	target := acceptingTarget()
	c.AddTarget(target)

	c.OnSyncState(playsync.StateReleased, "d1")
	drain(t, c)

	assert.Empty(t, target.cleared)
	assert.Empty(t, mgr.recorded())
}

func TestReleasing_UnanimousAgreementReleasesGroup(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	a := acceptingTarget()
	b := acceptingTarget()
	c.AddTarget(a)
	c.AddTarget(b)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.OnSyncState(playsync.StateReleasing, "d1")
	drain(t, c)

	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"release", "d1", "s1"}}, mgr.recorded())
	// Teardown waits for the released state; nothing is cleared yet.
	assert.Empty(t, a.cleared)
	assert.Empty(t, b.cleared)
	assert.NotNil(t, c.Current())
}

func TestReleasing_EveryRenderingTargetIsAskedDespiteVeto(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	veto := &fakeTarget{renderOK: true, clearOK: false}
	willing := acceptingTarget()
	c.AddTarget(veto)
	c.AddTarget(willing)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.OnSyncState(playsync.StateReleasing, "d1")
	drain(t, c)

	// The veto does not short-circuit the round.
	assert.Equal(t, 1, veto.shouldClearCalls)
	assert.Equal(t, 1, willing.shouldClearCalls)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}}, mgr.recorded())
	assert.NotNil(t, c.Current())
}

func TestReleasing_NonRenderingTargetIsNotAsked(t *testing.T) {
	c, _ := newTestCoordinator(t)
	renderer := acceptingTarget()
	bystander := &fakeTarget{renderOK: false, clearOK: true}
	c.AddTarget(renderer)
	c.AddTarget(bystander)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.OnSyncState(playsync.StateReleasing, "d1")
	drain(t, c)

	assert.Equal(t, 1, renderer.shouldClearCalls)
	assert.Equal(t, 0, bystander.shouldClearCalls)
}

func TestReleasing_RepeatRoundsReachVetoerAgain(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	target := &fakeTarget{renderOK: true, clearOK: false}
	c.AddTarget(target)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.OnSyncState(playsync.StateReleasing, "d1")
	drain(t, c)
	require.Equal(t, 1, target.shouldClearCalls)

	// The authority re-drives releasing; the target agrees this time.
	target.clearOK = true
	c.OnSyncState(playsync.StateReleasing, "d1")
	drain(t, c)

	assert.Equal(t, 2, target.shouldClearCalls)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"release", "d1", "s1"}}, mgr.recorded())
}

func TestReleased_ClearsEveryRenderingTarget(t *testing.T) {
	c, _ := newTestCoordinator(t)
	a := acceptingTarget()
	b := acceptingTarget()
	bystander := &fakeTarget{renderOK: false}
	c.AddTarget(a)
	c.AddTarget(b)
	c.AddTarget(bystander)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.OnSyncState(playsync.StateReleased, "d1")
	drain(t, c)

	assert.Nil(t, c.Current())
	require.Len(t, a.cleared, 1)
	require.Len(t, b.cleared, 1)
	assert.Equal(t, "m1", a.cleared[0].ID)
	assert.Empty(t, bystander.cleared)
	assert.False(t, c.reg.HasRendering("m1"))
}

func TestRemoveTarget_MidNegotiationDropsItFromFanOut(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	stay := acceptingTarget()
	leave := &fakeTarget{renderOK: true, clearOK: false}
	c.AddTarget(stay)
	c.AddTarget(leave)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.RemoveTarget(leave)
	c.OnSyncState(playsync.StateReleasing, "d1")
	drain(t, c)

	// The departed vetoer is gone, so the round resolves.
	assert.Equal(t, 0, leave.shouldClearCalls)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"release", "d1", "s1"}}, mgr.recorded())
}

func TestClearDisplay_LastRendererReleasesImmediately(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	target := acceptingTarget()
	c.AddTarget(target)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.ClearDisplay(target)
	drain(t, c)

	require.Len(t, target.cleared, 1)
	assert.Equal(t, "m1", target.cleared[0].ID)
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}, {"release_immediately", "d1", "s1"}}, mgr.recorded())
}

func TestClearDisplay_OtherRenderersKeepGroupAlive(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	a := acceptingTarget()
	b := acceptingTarget()
	c.AddTarget(a)
	c.AddTarget(b)

	c.Display(audioMeta(), "m1", "d1", "s1")
	c.OnSyncState(playsync.StateSynced, "d1")
	c.ClearDisplay(a)
	drain(t, c)

	require.Len(t, a.cleared, 1)
	assert.Empty(t, b.cleared)
	assert.True(t, c.reg.HasRendering("m1"))
	assert.Equal(t, []managerCall{{"start", "d1", "s1"}}, mgr.recorded())
}

func TestClearDisplay_TargetShowingNothingIsNoop(t *testing.T) {
	c, mgr := newTestCoordinator(t)
	target := acceptingTarget()
	c.AddTarget(target)

	c.ClearDisplay(target)
	drain(t, c)

	assert.Empty(t, target.cleared)
	assert.Empty(t, mgr.recorded())
}

func TestClearDisplay_UnknownTargetIsNotRegisteredAsSideEffect(t *testing.T) {
	c, _ := newTestCoordinator(t)
	stranger := acceptingTarget()

	c.ClearDisplay(stranger)
	drain(t, c)

	assert.Empty(t, stranger.cleared)
	assert.Equal(t, 0, c.reg.Len())
}

// TestFullLifecycleWithSyncGroups runs the coordinator against the real
// lifecycle authority: display, render, timer-driven releasing, unanimous
// agreement, teardown.
func TestFullLifecycleWithSyncGroups(t *testing.T) {
	mgr := playsync.NewSyncGroups(nil)
	mgr.SetDurations(30*time.Millisecond, time.Second)
	c := New(mgr, nil)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	target := acceptingTarget()
	c.AddTarget(target)

	c.Display(audioMeta(), "m1", "d1", "s1")
	drain(t, c)

	// StartSync drives prepared and synced straight through the worker.
	require.Eventually(t, func() bool {
		drain(t, c)
		return len(target.rendered) == 1
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, c.Current())

	// The hold expires, the coordinator agrees, and the group releases.
	require.Eventually(t, func() bool {
		drain(t, c)
		return len(target.cleared) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Nil(t, c.Current())
	assert.Equal(t, 0, mgr.GroupCount())
	assert.Equal(t, "m1", target.cleared[0].ID)
}
