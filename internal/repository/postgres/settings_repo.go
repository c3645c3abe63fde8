package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/kira-watch/internal/model"
)

// SettingsRepo implements SettingsRepository using PostgreSQL.
type SettingsRepo struct{ db *DB }

// NewSettingsRepo constructs a settings repository.
func NewSettingsRepo(db *DB) *SettingsRepo { return &SettingsRepo{db: db} }

const candidateSelect = `
SELECT u.id, u.name, COALESCE(u.device_token, ''), u.created_at,
       s.reminder_time, s.alert_delay_minutes, s.notifications_enabled, s.timezone, s.last_missed_checkin_alert_at
FROM users u
JOIN user_settings s ON s.user_id = u.id
WHERE s.notifications_enabled`

func scanCandidate(row pgx.Row) (model.User, model.UserSettings, error) {
	var (
		u model.User
		s model.UserSettings
	)
	err := row.Scan(&u.ID, &u.Name, &u.DeviceToken, &u.CreatedAt,
		&s.ReminderTime, &s.AlertDelayMinutes, &s.NotificationsEnabled, &s.Timezone, &s.LastMissedCheckInAlertAt)
	s.UserID = u.ID
	return u, s, err
}

// GetSettings selects settings for one user.
func (r *SettingsRepo) GetSettings(ctx context.Context, userID uuid.UUID) (*model.UserSettings, error) {
	const q = `
SELECT user_id, reminder_time, alert_delay_minutes, notifications_enabled, timezone, last_missed_checkin_alert_at
FROM user_settings WHERE user_id=$1`
	var s model.UserSettings
	err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&s.UserID, &s.ReminderTime, &s.AlertDelayMinutes,
		&s.NotificationsEnabled, &s.Timezone, &s.LastMissedCheckInAlertAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// SetReminderTime upserts the reminder time; a missing row is created from defaults.
func (r *SettingsRepo) SetReminderTime(ctx context.Context, userID uuid.UUID, reminderTime string, d model.UserSettings) error {
	const q = `
INSERT INTO user_settings (user_id, reminder_time, alert_delay_minutes, notifications_enabled, timezone)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET reminder_time = EXCLUDED.reminder_time`
	_, err := r.db.Pool.Exec(ctx, q, userID, reminderTime, d.AlertDelayMinutes, d.NotificationsEnabled, d.Timezone)
	return err
}

// UpdateSettings upserts the fields set in patch. A missing row takes defaults for
// the fields patch leaves nil.
func (r *SettingsRepo) UpdateSettings(ctx context.Context, userID uuid.UUID, p model.SettingsPatch, d model.UserSettings) (*model.UserSettings, error) {
	const q = `
INSERT INTO user_settings AS s (user_id, reminder_time, alert_delay_minutes, notifications_enabled, timezone)
VALUES ($1, COALESCE($2::text, $6::text), COALESCE($3::int, $7::int), COALESCE($4::bool, $8::bool), COALESCE($5::text, $9::text))
ON CONFLICT (user_id) DO UPDATE SET
    reminder_time         = COALESCE($2::text, s.reminder_time),
    alert_delay_minutes   = COALESCE($3::int, s.alert_delay_minutes),
    notifications_enabled = COALESCE($4::bool, s.notifications_enabled),
    timezone              = COALESCE($5::text, s.timezone)
RETURNING user_id, reminder_time, alert_delay_minutes, notifications_enabled, timezone, last_missed_checkin_alert_at`
	var s model.UserSettings
	err := r.db.Pool.QueryRow(ctx, q, userID,
		p.ReminderTime, p.AlertDelayMinutes, p.NotificationsEnabled, p.Timezone,
		d.ReminderTime, d.AlertDelayMinutes, d.NotificationsEnabled, d.Timezone,
	).Scan(&s.UserID, &s.ReminderTime, &s.AlertDelayMinutes, &s.NotificationsEnabled, &s.Timezone, &s.LastMissedCheckInAlertAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindUsersNeedingCheckinEvaluation lists users with notifications enabled.
func (r *SettingsRepo) FindUsersNeedingCheckinEvaluation(ctx context.Context) ([]model.CheckinCandidate, error) {
	rows, err := r.db.Pool.Query(ctx, candidateSelect+` ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CheckinCandidate
	for rows.Next() {
		u, s, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, model.CheckinCandidate{User: u, Settings: s})
	}
	return out, rows.Err()
}

// CompareAndSetLastAlert writes next only if the stored watermark equals expected.
func (r *SettingsRepo) CompareAndSetLastAlert(ctx context.Context, userID uuid.UUID, expected *time.Time, next time.Time) error {
	const q = `
UPDATE user_settings
SET last_missed_checkin_alert_at = $3
WHERE user_id = $1 AND last_missed_checkin_alert_at IS NOT DISTINCT FROM $2::timestamptz`
	return conflictIfNone(r.db.Pool.Exec(ctx, q, userID, expected, next))
}

// FindInactiveUsers lists users without a check-in after since. Accounts created
// after since are not considered yet.
func (r *SettingsRepo) FindInactiveUsers(ctx context.Context, since time.Time) ([]model.InactiveUser, error) {
	q := candidateSelect + `
  AND u.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM check_ins c WHERE c.user_id = u.id AND c.created_at > $1)
ORDER BY u.id`
	rows, err := r.db.Pool.Query(ctx, q, since)
	if err != nil {
		return nil, err
	}
	var (
		out []model.InactiveUser
		ids []uuid.UUID
		idx = map[uuid.UUID]int{}
	)
	for rows.Next() {
		u, s, err := scanCandidate(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		idx[u.ID] = len(out)
		ids = append(ids, u.ID)
		out = append(out, model.InactiveUser{User: u, Settings: s})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	contacts, err := queryContacts(ctx, r.db.Pool,
		`SELECT id, user_id, name, phone, relation, is_emergency_contact
FROM trusted_contacts WHERE user_id = ANY($1) AND is_emergency_contact ORDER BY user_id, name`, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		i := idx[c.UserID]
		out[i].Contacts = append(out[i].Contacts, c)
	}
	return out, nil
}
