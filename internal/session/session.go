// Package session runs the per-tick sensing loop: it snapshots activity
// signals, classifies the behavioral state, applies the manual-exit
// override, and publishes the result. Consumers read a newest-wins update
// channel, so a slow reader sees the latest state rather than a backlog.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowdesk/internal/config"
	"flowdesk/internal/signals"
	"flowdesk/internal/types"
)

// awayThreshold separates a quick glance elsewhere from real absence. A
// return within it still counts as continuous activity.
const awayThreshold = 3 * time.Second

// Update is one published sensing result.
type Update struct {
	State          types.BehavioralState
	Signals        types.ActivitySignals
	OverrideActive bool
}

// Engine owns the sensing loop and the exit-focus broadcast.
type Engine struct {
	collector  *signals.Collector
	override   *signals.Override
	thresholds config.Thresholds
	tick       time.Duration
	logger     *zap.Logger
	now        func() time.Time

	updates chan Update
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu          sync.Mutex
	running     bool
	hiddenSince time.Time
	exitSubs    []chan struct{}
}

// NewEngine wires a sensing engine from adaptive configuration.
func NewEngine(cfg config.AdaptiveConfig, thresholds config.Thresholds, logger *zap.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		collector:  signals.NewCollector(now(), cfg.Window()),
		override:   signals.NewOverride(cfg.Holdoff()),
		thresholds: thresholds,
		tick:       cfg.Tick(),
		logger:     logger.Named("session"),
		now:        now,
		updates:    make(chan Update, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Updates is the newest-wins state stream. It carries at most one pending
// update; a new one replaces an unread predecessor.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Start launches the tick loop. Calling it twice is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.logger.Info("sensing loop starting", zap.Duration("tick", e.tick))
	go e.run(ctx)
}

// Stop halts the loop and waits for it to exit. Safe to call once after
// Start; the update channel stays open but quiet.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	<-e.doneCh
	e.logger.Info("sensing loop stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.publish(e.Current())
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		}
	}
}

// SetThresholds swaps the classification thresholds, typically after a
// config reload. Takes effect on the next tick.
func (e *Engine) SetThresholds(t config.Thresholds) {
	e.mu.Lock()
	e.thresholds = t
	e.mu.Unlock()
}

// Current computes the state from the latest signals without waiting for a
// tick.
func (e *Engine) Current() Update {
	now := e.now()
	e.mu.Lock()
	thresholds := e.thresholds
	e.mu.Unlock()
	snapshot := e.collector.Snapshot(now)
	natural := signals.Classify(snapshot, thresholds)
	return Update{
		State:          e.override.Apply(natural, now),
		Signals:        snapshot,
		OverrideActive: e.override.Active(now),
	}
}

// publish replaces any unread update with the newer one.
func (e *Engine) publish(u Update) {
	select {
	case e.updates <- u:
	default:
		select {
		case <-e.updates:
		default:
		}
		select {
		case e.updates <- u:
		default:
		}
	}
}

// RecordKeystroke feeds one keystroke into the rolling window.
func (e *Engine) RecordKeystroke() {
	now := e.now()
	e.collector.RecordKeystroke(now)
	e.collector.RecordActivity(now)
}

// RecordActivity feeds non-keystroke interaction (pointer movement, scroll).
func (e *Engine) RecordActivity() {
	e.collector.RecordActivity(e.now())
}

// SetHidden tracks workspace visibility. Going hidden counts a tab switch;
// coming back within the away threshold counts as continuous activity, a
// longer absence leaves the idle clock running. The return value is the
// away duration on a meaningful return (at least the threshold), zero
// otherwise.
func (e *Engine) SetHidden(hidden bool) time.Duration {
	now := e.now()

	e.mu.Lock()
	if hidden {
		e.hiddenSince = now
	}
	away := time.Duration(0)
	if !hidden && !e.hiddenSince.IsZero() {
		away = now.Sub(e.hiddenSince)
		e.hiddenSince = time.Time{}
	}
	e.mu.Unlock()

	e.collector.RecordVisibility(hidden)
	if !hidden && away < awayThreshold {
		e.collector.RecordActivity(now)
		return 0
	}
	if hidden {
		return 0
	}
	return away
}

// RequestExitFocus is the manual escape hatch from a strict state. It arms
// the override window, notifies subscribers, and publishes the downgraded
// state immediately instead of waiting for the next tick.
func (e *Engine) RequestExitFocus() {
	e.override.Request(e.now())

	e.mu.Lock()
	subs := make([]chan struct{}, len(e.exitSubs))
	copy(subs, e.exitSubs)
	e.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	e.publish(e.Current())
}

// SubscribeExitFocus returns a channel that fires on each manual exit
// request. Notifications are best-effort; a full channel is skipped.
func (e *Engine) SubscribeExitFocus() <-chan struct{} {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	e.exitSubs = append(e.exitSubs, ch)
	e.mu.Unlock()
	return ch
}
