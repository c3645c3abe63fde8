// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/job layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict indicates a conditional write matched zero rows
	// (timer no longer active, watermark moved by another writer).
	ErrStateConflict = errors.New("state conflict")

	// ErrIllegalTransition indicates a status change the state machine does not allow.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNoDeviceToken indicates the user has no registered push endpoint.
	ErrNoDeviceToken = errors.New("no device token")

	// ErrNoEmergencyContacts indicates the user has no contact flagged for emergencies.
	ErrNoEmergencyContacts = errors.New("no emergency contacts")

	// ErrInvalidSettings indicates settings that cannot be evaluated (bad clock, unknown zone).
	ErrInvalidSettings = errors.New("invalid settings")
)
