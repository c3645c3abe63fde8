package model

import (
	"fmt"

	"github.com/and161185/kira-watch/internal/errs"
)

// TimerStatus is the lifecycle state of a SafeTimer.
type TimerStatus string

// Timer states. Stopped and Expired are terminal.
const (
	TimerActive  TimerStatus = "active"
	TimerStopped TimerStatus = "stopped"
	TimerExpired TimerStatus = "expired"
)

var timerTransitions = map[TimerStatus][]TimerStatus{
	TimerActive: {TimerStopped, TimerExpired},
}

// Valid reports whether s is a known timer state.
func (s TimerStatus) Valid() bool {
	switch s {
	case TimerActive, TimerStopped, TimerExpired:
		return true
	}
	return false
}

// CanTransition reports whether s -> to is allowed.
func (s TimerStatus) CanTransition(to TimerStatus) bool {
	for _, t := range timerTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition returns errs.ErrIllegalTransition when s -> to is not allowed.
func (s TimerStatus) CheckTransition(to TimerStatus) error {
	if !s.CanTransition(to) {
		return fmt.Errorf("timer %s -> %s: %w", s, to, errs.ErrIllegalTransition)
	}
	return nil
}

// ParseTimerStatus maps a stored value to a TimerStatus.
func ParseTimerStatus(v string) (TimerStatus, error) {
	s := TimerStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown timer status %q", v)
	}
	return s, nil
}

// SOSStatus is the lifecycle state of an SOSEvent.
type SOSStatus string

// SOS states. The engine never resolves an event on its own.
const (
	SOSActive    SOSStatus = "active"
	SOSCancelled SOSStatus = "cancelled"
)

var sosTransitions = map[SOSStatus][]SOSStatus{
	SOSActive: {SOSCancelled},
}

// Valid reports whether s is a known SOS state.
func (s SOSStatus) Valid() bool { return s == SOSActive || s == SOSCancelled }

// CanTransition reports whether s -> to is allowed.
func (s SOSStatus) CanTransition(to SOSStatus) bool {
	for _, t := range sosTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition returns errs.ErrIllegalTransition when s -> to is not allowed.
func (s SOSStatus) CheckTransition(to SOSStatus) error {
	if !s.CanTransition(to) {
		return fmt.Errorf("sos %s -> %s: %w", s, to, errs.ErrIllegalTransition)
	}
	return nil
}

// ParseSOSStatus maps a stored value to an SOSStatus.
func ParseSOSStatus(v string) (SOSStatus, error) {
	s := SOSStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown sos status %q", v)
	}
	return s, nil
}
