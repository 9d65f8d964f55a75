// Package workflowdb reads the editorial workflow tables that notification
// handlers consult. The tables belong to the editorial application; this
// package only queries them.
package workflowdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sapliy/editorial-notifications/internal/notification"
	"github.com/sapliy/editorial-notifications/internal/notification/handlers"
)

// DB implements every handlers lookup plus the user and context directories.
type DB struct {
	db *sqlx.DB
}

// New wraps an open postgres connection.
func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// Lookups returns the handler lookups backed by d.
func (d *DB) Lookups(baseURL string) handlers.Lookups {
	return handlers.Lookups{
		Submissions:     d,
		Stages:          d,
		Files:           d,
		Queries:         d,
		Representations: d,
		Decisions:       d,
		Reviews:         d,
		Payments:        d,
		Announcements:   d,
		Links:           handlers.Linker{BaseURL: baseURL},
	}
}

func (d *DB) get(ctx context.Context, dest any, what string, id int64, query string, args ...any) error {
	if err := d.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", what, id, handlers.ErrMissingEntity)
		}
		return fmt.Errorf("load %s %d: %w", what, id, err)
	}
	return nil
}

func (d *DB) Submission(ctx context.Context, id int64) (*handlers.Submission, error) {
	var s handlers.Submission
	err := d.get(ctx, &s, "submission", id, `
		SELECT s.submission_id, s.context_id, c.path AS context_path,
		       COALESCE(p.title, '') AS title, s.stage_id, p.date_published
		FROM submissions s
		JOIN contexts c ON c.context_id = s.context_id
		LEFT JOIN publications p ON p.publication_id = s.current_publication_id
		WHERE s.submission_id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// editorRoles are the roles that count as a stage's editors.
var editorRoles = []int{roleManager, roleSubEditor}

const (
	roleManager   = 16
	roleSubEditor = 17
	roleAuthor    = 65536
)

func (d *DB) EditorAssigned(ctx context.Context, submissionID int64, stage handlers.Stage) (bool, error) {
	editors, err := d.StageEditors(ctx, submissionID, stage)
	if err != nil {
		return false, err
	}
	return len(editors) > 0, nil
}

func (d *DB) StageEditors(ctx context.Context, submissionID int64, stage handlers.Stage) ([]int64, error) {
	query, args, err := sqlx.In(`
		SELECT DISTINCT sa.user_id
		FROM stage_assignments sa
		JOIN user_group_stage ugs ON ugs.user_group_id = sa.user_group_id
		JOIN user_groups ug ON ug.user_group_id = sa.user_group_id
		WHERE sa.submission_id = ? AND ugs.stage_id = ? AND ug.role_id IN (?)
		ORDER BY sa.user_id`, submissionID, int(stage), editorRoles)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := d.db.SelectContext(ctx, &ids, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("stage editors of submission %d: %w", submissionID, err)
	}
	return ids, nil
}

func (d *DB) Authors(ctx context.Context, submissionID int64) ([]int64, error) {
	var ids []int64
	err := d.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT sa.user_id
		FROM stage_assignments sa
		JOIN user_groups ug ON ug.user_group_id = sa.user_group_id
		WHERE sa.submission_id = $1 AND ug.role_id = $2
		ORDER BY sa.user_id`, submissionID, roleAuthor)
	if err != nil {
		return nil, fmt.Errorf("authors of submission %d: %w", submissionID, err)
	}
	return ids, nil
}

func (d *DB) CountFiles(ctx context.Context, submissionID int64, class handlers.FileClass, since time.Time) (int, error) {
	var n int
	err := d.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM submission_files
		WHERE submission_id = $1 AND file_class = $2 AND created_at >= $3`,
		submissionID, string(class), since)
	if err != nil {
		return 0, fmt.Errorf("count %s files of submission %d: %w", class, submissionID, err)
	}
	return n, nil
}

func (d *DB) Query(ctx context.Context, id int64) (*handlers.Query, error) {
	var q handlers.Query
	err := d.get(ctx, &q, "query", id, `
		SELECT q.query_id, q.assoc_id AS submission_id, q.stage_id,
		       COALESCE(n.title, '') AS subject, q.closed
		FROM queries q
		LEFT JOIN notes n ON n.assoc_id = q.query_id AND n.assoc_type = $2
		WHERE q.query_id = $1
		ORDER BY n.date_created
		LIMIT 1`, id, int(notification.AssocQuery))
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (d *DB) OpenQueries(ctx context.Context, submissionID int64, stage handlers.Stage) (int, error) {
	var n int
	err := d.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM queries
		WHERE assoc_type = $1 AND assoc_id = $2 AND stage_id = $3 AND NOT closed`,
		int(notification.AssocSubmission), submissionID, int(stage))
	if err != nil {
		return 0, fmt.Errorf("open queries of submission %d: %w", submissionID, err)
	}
	return n, nil
}

func (d *DB) CountRepresentations(ctx context.Context, submissionID int64) (int, error) {
	var n int
	err := d.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM publication_formats pf
		JOIN submissions s ON s.current_publication_id = pf.publication_id
		WHERE s.submission_id = $1`, submissionID)
	if err != nil {
		return 0, fmt.Errorf("representations of submission %d: %w", submissionID, err)
	}
	return n, nil
}

func (d *DB) LastDecision(ctx context.Context, submissionID int64, stage handlers.Stage) (*handlers.Decision, error) {
	var dec handlers.Decision
	err := d.db.GetContext(ctx, &dec, `
		SELECT decision, stage_id, date_decided FROM edit_decisions
		WHERE submission_id = $1 AND stage_id = $2
		ORDER BY date_decided DESC, edit_decision_id DESC
		LIMIT 1`, submissionID, int(stage))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last decision of submission %d: %w", submissionID, err)
	}
	return &dec, nil
}

func (d *DB) ReviewAssignment(ctx context.Context, id int64) (*handlers.ReviewAssignment, error) {
	var r handlers.ReviewAssignment
	err := d.get(ctx, &r, "review assignment", id, `
		SELECT review_id, submission_id, reviewer_id, review_round_id
		FROM review_assignments WHERE review_id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) ReviewRound(ctx context.Context, id int64) (*handlers.ReviewRound, error) {
	var r handlers.ReviewRound
	err := d.get(ctx, &r, "review round", id, `
		SELECT review_round_id, submission_id, stage_id, round
		FROM review_rounds WHERE review_round_id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) QueuedPayment(ctx context.Context, id int64) (*handlers.QueuedPayment, error) {
	var p handlers.QueuedPayment
	err := d.get(ctx, &p, "queued payment", id, `
		SELECT qp.queued_payment_id, qp.context_id, c.path AS context_path, qp.user_id,
		       COALESCE(qp.submission_id, 0) AS submission_id, qp.amount::text AS amount, qp.currency_code
		FROM queued_payments qp
		JOIN contexts c ON c.context_id = qp.context_id
		WHERE qp.queued_payment_id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) Announcement(ctx context.Context, id int64) (*handlers.Announcement, error) {
	var a handlers.Announcement
	err := d.get(ctx, &a, "announcement", id, `
		SELECT a.announcement_id, a.assoc_id AS context_id, c.path AS context_path, a.title
		FROM announcements a
		JOIN contexts c ON c.context_id = a.assoc_id
		WHERE a.announcement_id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type userRow struct {
	ID       int64  `db:"user_id"`
	Email    string `db:"email"`
	Name     string `db:"name"`
	Disabled bool   `db:"disabled"`
}

func (d *DB) Recipient(ctx context.Context, userID int64) (*notification.Recipient, error) {
	var u userRow
	err := d.db.GetContext(ctx, &u, `
		SELECT user_id, email, TRIM(COALESCE(given_name, '') || ' ' || COALESCE(family_name, '')) AS name, disabled
		FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, notification.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &notification.Recipient{ID: u.ID, Email: u.Email, Name: u.Name, Disabled: u.Disabled}, nil
}

type contextRow struct {
	ID           int64  `db:"context_id"`
	Name         string `db:"name"`
	Path         string `db:"path"`
	ContactEmail string `db:"contact_email"`
}

// Context resolves a journal or press. Context 0 is the site itself.
func (d *DB) Context(ctx context.Context, contextID int64) (*notification.SiteContext, error) {
	if contextID == 0 {
		return &notification.SiteContext{}, nil
	}
	var c contextRow
	err := d.db.GetContext(ctx, &c, `
		SELECT context_id, name, path, COALESCE(contact_email, '') AS contact_email
		FROM contexts WHERE context_id = $1`, contextID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("context %d: %w", contextID, notification.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load context %d: %w", contextID, err)
	}
	return &notification.SiteContext{ID: c.ID, Name: c.Name, Path: c.Path, ContactEmail: c.ContactEmail}, nil
}
