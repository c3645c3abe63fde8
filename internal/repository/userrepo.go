package repository

import (
	"context"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to users and their trusted contacts.
type UserRepository interface {
	// GetUser loads a user by ID.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	// EmergencyContacts lists contacts flagged for emergencies.
	EmergencyContacts(ctx context.Context, userID uuid.UUID) ([]model.TrustedContact, error)
	// SetDeviceToken stores the push endpoint of the user.
	SetDeviceToken(ctx context.Context, id uuid.UUID, token string) error
}
