package escalation

import (
	"fmt"
	"time"
)

// Mode selects how the missed check-in watermark is compared with now.
type Mode string

// Watermark modes.
const (
	// ModeCalendarDay opens the gate once per calendar day in the user's zone.
	ModeCalendarDay Mode = "calendar_day"
	// ModeRolling opens the gate once the cooldown has elapsed since the last alert
	// and the local day has changed.
	ModeRolling Mode = "rolling"
)

// MinCooldown is the shortest rolling cooldown. Anything shorter would allow a
// second missed check-in SMS on the same day.
const MinCooldown = 24 * time.Hour

// ParseMode maps a configuration value to a Mode. Empty means ModeCalendarDay.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCalendarDay:
		return ModeCalendarDay, nil
	case ModeRolling:
		return ModeRolling, nil
	}
	return "", fmt.Errorf("unknown watermark mode %q", s)
}

// WatermarkGate decides whether contacts may be alerted again about a missed
// check-in. The check-in job and the inactivity job share one gate, so both read
// the watermark with the same meaning.
type WatermarkGate struct {
	Mode     Mode
	Cooldown time.Duration
}

// NewWatermarkGate validates mode and cooldown.
func NewWatermarkGate(mode Mode, cooldown time.Duration) (WatermarkGate, error) {
	switch mode {
	case ModeCalendarDay:
	case ModeRolling:
		if cooldown < MinCooldown {
			return WatermarkGate{}, fmt.Errorf("rolling watermark cooldown must be at least %s, got %s", MinCooldown, cooldown)
		}
	default:
		return WatermarkGate{}, fmt.Errorf("unknown watermark mode %q", mode)
	}
	return WatermarkGate{Mode: mode, Cooldown: cooldown}, nil
}

// Due reports whether an alert may be sent at now given the last alert instant.
// A nil watermark means contacts were never alerted. A watermark later than now
// was written by another process with a faster clock and keeps the gate closed.
func (g WatermarkGate) Due(last *time.Time, now time.Time, loc *time.Location) bool {
	if last == nil {
		return true
	}
	if last.After(now) {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	if SameDay(*last, now, loc) {
		return false
	}
	// A 25h day around a DST change can hold two instants a full cooldown apart,
	// so the day check above applies to both modes.
	return g.Mode != ModeRolling || now.Sub(*last) >= g.Cooldown
}
