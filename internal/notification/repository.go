package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repository needs.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository handles database operations for notifications.
type Repository struct {
	db   *sql.DB
	conn dbtx
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, conn: db}
}

const notificationColumns = `id, user_id, context_id, level, type, assoc_type, assoc_id, date_created, date_read`

// Insert adds a new notification row.
func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.conn.ExecContext(ctx, query,
		n.ID, nullID(n.UserID), nullID(n.ContextID), n.Level, n.Type,
		nullID(int64(n.AssocType)), nullID(n.AssocID), n.DateCreated, n.DateRead,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id string, userID int64) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	args := []any{id}
	if userID != 0 {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	n, err := scanNotification(r.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find notification %s: %w", id, err)
	}
	return n, nil
}

func (r *Repository) Find(ctx context.Context, f Filter) ([]*Notification, error) {
	where, args := f.where()
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where + ` ORDER BY date_created, id`
	return r.query(ctx, query, args...)
}

func (r *Repository) FindOne(ctx context.Context, f Filter) (*Notification, error) {
	where, args := f.where()
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where + ` ORDER BY date_created, id LIMIT 1`
	n, err := scanNotification(r.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

// ListForUser retrieves a user's notifications in a context, newest first.
// A zero level lists every level.
func (r *Repository) ListForUser(ctx context.Context, userID, contextID int64, level Level) ([]*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND COALESCE(context_id, 0) = $2
	`
	args := []any{userID, contextID}
	if level != 0 {
		query += ` AND level = $3`
		args = append(args, level)
	}
	query += ` ORDER BY date_created DESC`
	return r.query(ctx, query, args...)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.conn.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}

// DeleteMatching removes every row selected by f. Settings go with them via
// ON DELETE CASCADE.
func (r *Repository) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	where, args := f.where()
	if where == "" {
		return 0, errors.New("delete notifications: refusing an unfiltered delete")
	}
	res, err := r.conn.ExecContext(ctx, `DELETE FROM notifications`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return res.RowsAffected()
}

// MarkRead sets date_read unless it is already set.
func (r *Repository) MarkRead(ctx context.Context, id string, when time.Time) error {
	query := `UPDATE notifications SET date_read = $1 WHERE id = $2 AND date_read IS NULL`
	if _, err := r.conn.ExecContext(ctx, query, when, id); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

func (r *Repository) TransferOwner(ctx context.Context, fromUserID, toUserID int64) error {
	query := `UPDATE notifications SET user_id = $1 WHERE user_id = $2`
	if _, err := r.conn.ExecContext(ctx, query, toUserID, fromUserID); err != nil {
		return fmt.Errorf("transfer notifications from %d to %d: %w", fromUserID, toUserID, err)
	}
	return nil
}

func (r *Repository) Settings(ctx context.Context, notificationID string) ([]Setting, error) {
	query := `
		SELECT notification_id, setting_name, locale, setting_value
		FROM notification_settings WHERE notification_id = $1
	`
	rows, err := r.conn.QueryContext(ctx, query, notificationID)
	if err != nil {
		return nil, fmt.Errorf("load settings for %s: %w", notificationID, err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.NotificationID, &s.Name, &s.Locale, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// PutSettings upserts settings rows.
func (r *Repository) PutSettings(ctx context.Context, settings []Setting) error {
	query := `
		INSERT INTO notification_settings (notification_id, setting_name, locale, setting_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (notification_id, locale, setting_name) DO UPDATE SET setting_value = EXCLUDED.setting_value
	`
	for _, s := range settings {
		if _, err := r.conn.ExecContext(ctx, query, s.NotificationID, s.Name, s.Locale, s.Value); err != nil {
			return fmt.Errorf("put setting %s on %s: %w", s.Name, s.NotificationID, err)
		}
	}
	return nil
}

// Atomic runs fn inside a transaction. Nested calls reuse the outer
// transaction.
func (r *Repository) Atomic(ctx context.Context, fn func(Store) error) error {
	if _, inTx := r.conn.(*sql.Tx); inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&Repository{db: r.db, conn: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*Notification, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*Notification, error) {
	var (
		n                                     Notification
		userID, contextID, assocType, assocID sql.NullInt64
		dateRead                              sql.NullTime
	)
	err := row.Scan(&n.ID, &userID, &contextID, &n.Level, &n.Type, &assocType, &assocID, &n.DateCreated, &dateRead)
	if err != nil {
		return nil, err
	}
	n.UserID = userID.Int64
	n.ContextID = contextID.Int64
	n.AssocType = AssocType(assocType.Int64)
	n.AssocID = assocID.Int64
	if dateRead.Valid {
		t := dateRead.Time
		n.DateRead = &t
	}
	return &n, nil
}

// where renders f as a WHERE clause with postgres placeholders.
func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.AssocType != AssocNone {
		add("assoc_type", f.AssocType)
	}
	if f.AssocID != 0 {
		add("assoc_id", f.AssocID)
	}
	if f.UserID != 0 {
		add("user_id", f.UserID)
	}
	if f.Type != 0 {
		add("type", f.Type)
	}
	if f.ContextID != 0 {
		add("context_id", f.ContextID)
	}
	if f.Level != 0 {
		add("level", f.Level)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullID(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
