// Package model defines domain entities used by services, jobs and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64
	Lng float64
}

// User is the monitored account.
type User struct {
	ID          uuid.UUID
	Name        string
	DeviceToken string // push endpoint; empty when the device never registered
	CreatedAt   time.Time
}

// SafeTimer is a user-started countdown that escalates when it lapses unattended.
type SafeTimer struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	Destination     *Location // nil when the user gave no destination
	Message         string
	Status          TimerStatus
	CreatedAt       time.Time
}

// ExpiredAt reports whether the timer is still active with an end time strictly before now.
func (t SafeTimer) ExpiredAt(now time.Time) bool {
	return t.Status == TimerActive && t.EndTime.Before(now)
}

// CheckIn is an immutable proof-of-safety event.
type CheckIn struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	Location  Location
	Status    string
	Mood      string
}

// SOS event types.
const (
	SOSTypeManual = "manual"
	SOSTypeTimer  = "timer"
)

// ReasonTimerExpired is recorded on SOS events raised by the timer expiry monitor.
const ReasonTimerExpired = "Safety Timer expired"

// SOSEvent is an emergency raised by the user or by the engine.
type SOSEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	Location  Location
	Type      string
	Status    SOSStatus
	Reason    string
}

// UserSettings holds the per-user check-in schedule and the escalation watermark.
type UserSettings struct {
	UserID               uuid.UUID
	ReminderTime         string // "HH:MM" in Timezone
	AlertDelayMinutes    int
	NotificationsEnabled bool
	Timezone             string // IANA name; empty means the deployment default

	// LastMissedCheckInAlertAt is the dedup watermark shared by the check-in and
	// inactivity jobs. It is only written through compare-and-set.
	LastMissedCheckInAlertAt *time.Time
}

// SettingsPatch is a partial settings update. Nil fields keep the stored value, or
// take the default when the user has no settings yet.
type SettingsPatch struct {
	ReminderTime         *string
	AlertDelayMinutes    *int
	NotificationsEnabled *bool
	Timezone             *string
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.ReminderTime == nil && p.AlertDelayMinutes == nil && p.NotificationsEnabled == nil && p.Timezone == nil
}

// TrustedContact is a person the user nominated; emergency contacts receive escalations.
type TrustedContact struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Name               string
	Phone              string
	Relation           string
	IsEmergencyContact bool
}

// CheckinCandidate bundles what the reminder job needs to evaluate one user.
type CheckinCandidate struct {
	User     User
	Settings UserSettings
}

// InactiveUser is a user with no recent check-in, along with the escalation targets.
type InactiveUser struct {
	User     User
	Settings UserSettings
	Contacts []TrustedContact
}
