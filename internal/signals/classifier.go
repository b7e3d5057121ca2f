package signals

import (
	"flowdesk/internal/config"
	"flowdesk/internal/types"
)

// Classify maps a signal snapshot to a behavioral state. It is a pure
// function of the snapshot and the injected thresholds.
//
// Priority order matters: a long session forces Burnout even while the user
// is actively typing, and genuine idleness beats any typing-rate reading.
func Classify(s types.ActivitySignals, t config.Thresholds) types.BehavioralState {
	switch {
	case s.SessionMinutes >= t.BurnoutMinSessionM:
		return types.StateBurnout
	case s.IdleSeconds >= t.DistractedMinIdleS:
		return types.StateDistracted
	case s.KeystrokesPerMinute >= t.FocusMinKPM && s.IdleSeconds <= t.FocusMaxIdleS:
		return types.StateFocus
	default:
		return types.StateShallow
	}
}
