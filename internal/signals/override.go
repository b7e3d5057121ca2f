package signals

import (
	"sync"
	"time"

	"flowdesk/internal/types"
)

// Override is the time-boxed manual suppression of the Focus state. When a
// user deliberately exits a locked focus session, the next tick would
// immediately re-classify them as Focus and re-lock; the override downgrades
// Focus to Shallow for the holdoff window, then expires on its own.
//
// Only Focus is affected. Distracted and Burnout always pass through.
type Override struct {
	mu          sync.Mutex
	triggeredAt time.Time
	holdoff     time.Duration
}

// NewOverride creates an override controller with the given holdoff window.
func NewOverride(holdoff time.Duration) *Override {
	return &Override{holdoff: holdoff}
}

// Request records a manual focus exit at now.
func (o *Override) Request(now time.Time) {
	o.mu.Lock()
	o.triggeredAt = now
	o.mu.Unlock()
}

// Active reports whether the suppression window is still open at now.
func (o *Override) Active(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.triggeredAt.IsZero() {
		return false
	}
	return now.Sub(o.triggeredAt) < o.holdoff
}

// Apply adjusts the natural classification: Focus becomes Shallow while the
// window is open; everything else is returned unchanged.
func (o *Override) Apply(natural types.BehavioralState, now time.Time) types.BehavioralState {
	if natural == types.StateFocus && o.Active(now) {
		return types.StateShallow
	}
	return natural
}
