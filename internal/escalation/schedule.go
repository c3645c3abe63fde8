// Package escalation holds the pure decision logic of the check-in engine: when a
// user is due a reminder or an escalation, and whether contacts may be alerted again.
// Nothing here performs I/O.
package escalation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/model"
)

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return Clock{}, fmt.Errorf("clock %q: %w", s, errs.ErrInvalidSettings)
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return Clock{}, fmt.Errorf("clock %q: %w", s, errs.ErrInvalidSettings)
	}
	return Clock{Hour: hh, Minute: mm}, nil
}

// String formats the clock as "HH:MM".
func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// On returns the instant this clock reads on day's calendar date in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// DayStart returns local midnight of t's calendar day.
func DayStart(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Tier is the alert class a user qualifies for at a given instant.
type Tier int

// Tiers in increasing severity.
const (
	TierNone Tier = iota
	TierReminder
	TierEscalation
)

func (t Tier) String() string {
	switch t {
	case TierReminder:
		return "reminder"
	case TierEscalation:
		return "escalation"
	default:
		return "none"
	}
}

// Schedule is a user's daily check-in schedule.
type Schedule struct {
	Reminder   Clock
	AlertDelay time.Duration
}

// ScheduleFor validates settings and builds the schedule.
func ScheduleFor(s model.UserSettings) (Schedule, error) {
	c, err := ParseClock(s.ReminderTime)
	if err != nil {
		return Schedule{}, err
	}
	if s.AlertDelayMinutes < 0 {
		return Schedule{}, fmt.Errorf("alert delay %d: %w", s.AlertDelayMinutes, errs.ErrInvalidSettings)
	}
	return Schedule{Reminder: c, AlertDelay: time.Duration(s.AlertDelayMinutes) * time.Minute}, nil
}

// Decision is the outcome of evaluating a schedule at one instant.
type Decision struct {
	Tier       Tier
	ReminderAt time.Time
	AlertAt    time.Time
}

// Window returns today's reminder and alert instants for now (already in the user's
// zone). The alert instant stays on the reminder's calendar day: a delay running past
// midnight is capped at 23:59.
func (s Schedule) Window(now time.Time) (reminderAt, alertAt time.Time) {
	reminderAt = s.Reminder.On(now)
	alertAt = reminderAt.Add(s.AlertDelay)
	if last := (Clock{Hour: 23, Minute: 59}).On(now); alertAt.After(last) {
		alertAt = last
	}
	return reminderAt, alertAt
}

// Decide classifies now against the schedule. The escalation branch is checked
// first, so a zero delay never yields a reminder.
func (s Schedule) Decide(now time.Time) Decision {
	r, a := s.Window(now)
	d := Decision{ReminderAt: r, AlertAt: a}
	switch {
	case !now.Before(a):
		d.Tier = TierEscalation
	case !now.Before(r):
		d.Tier = TierReminder
	}
	return d
}
