package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// GetUser selects a user by ID.
func (r *UserRepo) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT id, name, COALESCE(device_token, ''), created_at FROM users WHERE id=$1`
	var u model.User
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &u.DeviceToken, &u.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, notFound(err)
	}
	return &u, nil
}

// EmergencyContacts lists contacts flagged for emergencies, ordered by name.
func (r *UserRepo) EmergencyContacts(ctx context.Context, userID uuid.UUID) ([]model.TrustedContact, error) {
	return queryContacts(ctx, r.db.Pool, `
SELECT id, user_id, name, phone, relation, is_emergency_contact
FROM trusted_contacts WHERE user_id=$1 AND is_emergency_contact ORDER BY name`, userID)
}

// SetDeviceToken replaces the push endpoint of the user.
func (r *UserRepo) SetDeviceToken(ctx context.Context, id uuid.UUID, token string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE users SET device_token=$2 WHERE id=$1`, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func queryContacts(ctx context.Context, pool PgxPool, q string, args ...any) ([]model.TrustedContact, error) {
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrustedContact
	for rows.Next() {
		var c model.TrustedContact
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.Relation, &c.IsEmergencyContact); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
