package repository

import (
	"context"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SOSRepository stores emergency events.
type SOSRepository interface {
	// CreateSOSEvent inserts a new event.
	CreateSOSEvent(ctx context.Context, e *model.SOSEvent) error

	// GetSOSEvent loads an event owned by userID.
	GetSOSEvent(ctx context.Context, userID, id uuid.UUID) (*model.SOSEvent, error)

	// SetSOSStatus moves an event from -> to if it is still in from.
	SetSOSStatus(ctx context.Context, userID, id uuid.UUID, from, to model.SOSStatus, reason string) error
}
