// Package signals implements the adaptive state engine: a collector that
// folds raw activity events into rolling counters, a pure classifier from
// signal snapshots to behavioral states, and a self-expiring manual
// override for the focus state.
package signals

import (
	"math"
	"sync"
	"time"

	"flowdesk/internal/types"
)

// Collector owns the per-session activity counters. All mutation goes
// through the Record methods; consumers only ever see Snapshot output,
// never the raw internals.
type Collector struct {
	mu           sync.Mutex
	lastActivity time.Time
	keyTimes     []time.Time
	tabSwitches  int
	sessionStart time.Time
	window       time.Duration
}

// NewCollector starts a session at now. window is the rolling window for
// the typing-rate counter (60s in production).
func NewCollector(now time.Time, window time.Duration) *Collector {
	return &Collector{
		lastActivity: now,
		sessionStart: now,
		window:       window,
	}
}

// RecordActivity marks pointer or click activity.
func (c *Collector) RecordActivity(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

// RecordKeystroke marks a keydown: updates last activity and appends a
// keystroke timestamp for the rate window.
func (c *Collector) RecordKeystroke(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.keyTimes = append(c.keyTimes, now)
	c.mu.Unlock()
}

// RecordVisibility reports a visibility change. The tab-switch counter
// increments exactly when the page goes hidden, not on return.
func (c *Collector) RecordVisibility(hidden bool) {
	if !hidden {
		return
	}
	c.mu.Lock()
	c.tabSwitches++
	c.mu.Unlock()
}

// Snapshot prunes keystrokes older than the window and emits a fresh
// signals value. Repeated calls with the same now are idempotent: pruning
// converges and counters do not accumulate.
func (c *Collector) Snapshot(now time.Time) types.ActivitySignals {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.window)
	retained := c.keyTimes[:0]
	for _, t := range c.keyTimes {
		if t.After(cutoff) {
			retained = append(retained, t)
		}
	}
	c.keyTimes = retained

	idle := now.Sub(c.lastActivity).Seconds()
	if idle < 0 {
		idle = 0
	}

	return types.ActivitySignals{
		IdleSeconds:         int(math.Round(idle)),
		KeystrokesPerMinute: len(c.keyTimes),
		TabSwitches:         c.tabSwitches,
		SessionMinutes:      int(now.Sub(c.sessionStart).Minutes()),
	}
}
