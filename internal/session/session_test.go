package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"flowdesk/internal/config"
	"flowdesk/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a settable clock shared with the engine under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine(clock *fakeClock) *Engine {
	cfg := config.DefaultConfig().Adaptive
	cfg.TickInterval = "10ms"
	thresholds, _ := config.ProfileThresholds("standard")
	return NewEngine(cfg, thresholds, zap.NewNop(), clock.Now)
}

func TestCurrentClassifiesFromSignals(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	for i := 0; i < 12; i++ {
		e.RecordKeystroke()
	}
	clock.Advance(2 * time.Second)

	u := e.Current()
	assert.Equal(t, types.StateFocus, u.State)
	assert.Equal(t, 12, u.Signals.KeystrokesPerMinute)
	assert.False(t, u.OverrideActive)
}

func TestCurrentIdleIsDistracted(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.RecordActivity()
	clock.Advance(95 * time.Second)

	u := e.Current()
	assert.Equal(t, types.StateDistracted, u.State)
	assert.Equal(t, 95, u.Signals.IdleSeconds)
}

func TestLoopPublishesUpdates(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	select {
	case u := <-e.Updates():
		assert.NotEmpty(t, u.State)
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}
}

func TestUpdatesNewestWins(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	for i := 0; i < 12; i++ {
		e.RecordKeystroke()
	}
	e.publish(e.Current())

	// Reader is slow; a newer distracted update replaces the focus one.
	clock.Advance(95 * time.Second)
	e.publish(e.Current())

	u := <-e.Updates()
	assert.Equal(t, types.StateDistracted, u.State)

	select {
	case extra := <-e.Updates():
		t.Fatalf("expected a single pending update, got %+v", extra)
	default:
	}
}

func TestRequestExitFocusDowngradesAndNotifies(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)
	sub := e.SubscribeExitFocus()

	for i := 0; i < 12; i++ {
		e.RecordKeystroke()
	}
	require.Equal(t, types.StateFocus, e.Current().State)

	e.RequestExitFocus()

	select {
	case <-sub:
	default:
		t.Fatal("subscriber not notified")
	}

	u := <-e.Updates()
	assert.Equal(t, types.StateShallow, u.State)
	assert.True(t, u.OverrideActive)

	// The override expires after the holdoff.
	clock.Advance(31 * time.Second)
	for i := 0; i < 12; i++ {
		e.RecordKeystroke()
	}
	assert.Equal(t, types.StateFocus, e.Current().State)
}

func TestSetHiddenCountsTabSwitch(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.SetHidden(true)
	clock.Advance(time.Second)
	e.SetHidden(false)
	e.SetHidden(true)
	clock.Advance(time.Second)
	e.SetHidden(false)

	u := e.Current()
	assert.Equal(t, 2, u.Signals.TabSwitches)
}

func TestSetHiddenShortAbsenceResetsIdle(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.RecordActivity()
	clock.Advance(50 * time.Second)
	e.SetHidden(true)
	clock.Advance(2 * time.Second)
	e.SetHidden(false)

	assert.Equal(t, 0, e.Current().Signals.IdleSeconds)
}

func TestSetHiddenLongAbsenceKeepsIdleRunning(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.RecordActivity()
	e.SetHidden(true)
	clock.Advance(100 * time.Second)
	away := e.SetHidden(false)

	assert.Equal(t, 100*time.Second, away)
	assert.Equal(t, 100, e.Current().Signals.IdleSeconds)
	assert.Equal(t, types.StateDistracted, e.Current().State)
}

func TestSetHiddenShortAbsenceReportsNoAway(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.SetHidden(true)
	clock.Advance(time.Second)
	assert.Equal(t, time.Duration(0), e.SetHidden(false))
}

func TestStopIsIdempotentAndReleasesLoop(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.Start(context.Background())
	e.Start(context.Background()) // second start is a no-op
	e.Stop()
	e.Stop() // second stop is a no-op
}

func TestPrioritySort(t *testing.T) {
	tasks := []types.Task{
		{ID: "a", Priority: types.PriorityLow},
		{ID: "b", Priority: types.PriorityHigh, Done: true},
		{ID: "c", Priority: types.PriorityHigh},
		{ID: "d", Priority: types.PriorityMedium},
	}

	sorted := PrioritySort(tasks, types.StateShallow)
	ids := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID, sorted[3].ID}
	assert.Equal(t, []string{"c", "d", "a", "b"}, ids, "unfinished by priority, done last")

	// Input order is untouched.
	assert.Equal(t, "a", tasks[0].ID)
}

func TestPrioritySortBurnoutLeadsWithLightWork(t *testing.T) {
	tasks := []types.Task{
		{ID: "heavy", Priority: types.PriorityHigh},
		{ID: "light", Priority: types.PriorityLow},
	}

	sorted := PrioritySort(tasks, types.StateBurnout)
	assert.Equal(t, "light", sorted[0].ID)
}

func TestTopPick(t *testing.T) {
	tasks := []types.Task{
		{ID: "done", Priority: types.PriorityHigh, Done: true},
		{ID: "next", Priority: types.PriorityMedium},
	}

	pick := TopPick(tasks, types.StateShallow)
	require.NotNil(t, pick)
	assert.Equal(t, "next", pick.ID)

	assert.Nil(t, TopPick([]types.Task{{ID: "d", Done: true}}, types.StateShallow))
	assert.Nil(t, TopPick(nil, types.StateShallow))
}
