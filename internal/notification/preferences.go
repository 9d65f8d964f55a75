package notification

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Subscription setting names.
const (
	SettingBlocked        = "blocked_notification"
	SettingBlockedEmailed = "blocked_emailed_notification"
)

// TypeSet is a set of notification types.
type TypeSet map[Type]struct{}

func NewTypeSet(types ...Type) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func (s TypeSet) Has(t Type) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the members in ascending order.
func (s TypeSet) Sorted() []Type {
	out := make([]Type, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Preferences answers which types a user has opted out of in a context.
type Preferences interface {
	BlockedInApp(ctx context.Context, userID, contextID int64) (TypeSet, error)
	BlockedEmail(ctx context.Context, userID, contextID int64) (TypeSet, error)
}

// PreferenceStore is a Preferences that can also be written.
type PreferenceStore interface {
	Preferences
	// SetBlocked replaces both blocked sets for the user and context.
	SetBlocked(ctx context.Context, userID, contextID int64, inApp, email []Type) error
	// BlockEmail adds t to the email-blocked set.
	BlockEmail(ctx context.Context, userID, contextID int64, t Type) error
}

// PreferenceRepository stores subscription settings in Postgres, one row per
// blocked type.
type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) BlockedInApp(ctx context.Context, userID, contextID int64) (TypeSet, error) {
	return r.blocked(ctx, SettingBlocked, userID, contextID)
}

func (r *PreferenceRepository) BlockedEmail(ctx context.Context, userID, contextID int64) (TypeSet, error) {
	return r.blocked(ctx, SettingBlockedEmailed, userID, contextID)
}

func (r *PreferenceRepository) blocked(ctx context.Context, setting string, userID, contextID int64) (TypeSet, error) {
	query := `
		SELECT setting_value FROM notification_subscription_settings
		WHERE user_id = $1 AND context_id = $2 AND setting_name = $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, contextID, setting)
	if err != nil {
		return nil, fmt.Errorf("load %s for user %d: %w", setting, userID, err)
	}
	defer rows.Close()

	set := TypeSet{}
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		set[t] = struct{}{}
	}
	return set, rows.Err()
}

func (r *PreferenceRepository) SetBlocked(ctx context.Context, userID, contextID int64, inApp, email []Type) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	deleteQuery := `
		DELETE FROM notification_subscription_settings
		WHERE user_id = $1 AND context_id = $2 AND setting_name IN ($3, $4)
	`
	if _, err := tx.ExecContext(ctx, deleteQuery, userID, contextID, SettingBlocked, SettingBlockedEmailed); err != nil {
		return fmt.Errorf("clear preferences for user %d: %w", userID, err)
	}
	for setting, types := range map[string][]Type{SettingBlocked: inApp, SettingBlockedEmailed: email} {
		for _, t := range NewTypeSet(types...).Sorted() {
			if err := insertBlocked(ctx, tx, setting, userID, contextID, t); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (r *PreferenceRepository) BlockEmail(ctx context.Context, userID, contextID int64, t Type) error {
	return insertBlocked(ctx, r.db, SettingBlockedEmailed, userID, contextID, t)
}

func insertBlocked(ctx context.Context, conn dbtx, setting string, userID, contextID int64, t Type) error {
	query := `
		INSERT INTO notification_subscription_settings (user_id, context_id, setting_name, setting_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, context_id, setting_name, setting_value) DO NOTHING
	`
	if _, err := conn.ExecContext(ctx, query, userID, contextID, setting, t); err != nil {
		return fmt.Errorf("block %s for user %d: %w", t, userID, err)
	}
	return nil
}
