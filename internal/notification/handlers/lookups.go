// Package handlers holds the per-type notification handlers and the narrow
// read-only lookups they need into the editorial workflow.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// ErrMissingEntity is returned by lookups when the referenced workflow entity
// no longer exists.
var ErrMissingEntity = errors.New("handlers: associated entity not found")

// ErrUnexpectedAssoc is returned when a handler is given an assoc type it
// cannot interpret.
var ErrUnexpectedAssoc = errors.New("handlers: unexpected assoc type")

func unexpectedAssoc(t notification.Type, a notification.AssocType) error {
	return fmt.Errorf("%w: %s cannot use %s", ErrUnexpectedAssoc, t, a)
}

// Stage is a workflow stage.
type Stage int

const (
	StageSubmission     Stage = 1
	StageInternalReview Stage = 2
	StageExternalReview Stage = 3
	StageEditing        Stage = 4
	StageProduction     Stage = 5
)

var stageKeys = map[Stage]string{
	StageSubmission:     "submission.stage.submission",
	StageInternalReview: "submission.stage.internalReview",
	StageExternalReview: "submission.stage.externalReview",
	StageEditing:        "submission.stage.editing",
	StageProduction:     "submission.stage.production",
}

func (s Stage) String() string {
	if key, ok := stageKeys[s]; ok {
		return notification.Text(key, nil)
	}
	return "stage " + strconv.Itoa(int(s))
}

// FileClass groups submission files by workflow purpose.
type FileClass string

const (
	FileReviewRevision         FileClass = "review_revision"
	FileInternalReviewRevision FileClass = "internal_review_revision"
	FileCopyedited             FileClass = "copyedit"
)

type Submission struct {
	ID            int64      `db:"submission_id"`
	ContextID     int64      `db:"context_id"`
	ContextPath   string     `db:"context_path"`
	Title         string     `db:"title"`
	StageID       Stage      `db:"stage_id"`
	DatePublished *time.Time `db:"date_published"`
}

func (s *Submission) Published() bool { return s.DatePublished != nil }

type Query struct {
	ID           int64  `db:"query_id"`
	SubmissionID int64  `db:"submission_id"`
	StageID      Stage  `db:"stage_id"`
	Subject      string `db:"subject"`
	Closed       bool   `db:"closed"`
}

type Decision struct {
	Type        notification.Type `db:"decision"`
	StageID     Stage             `db:"stage_id"`
	DateDecided time.Time         `db:"date_decided"`
}

type ReviewAssignment struct {
	ID            int64 `db:"review_id"`
	SubmissionID  int64 `db:"submission_id"`
	ReviewerID    int64 `db:"reviewer_id"`
	ReviewRoundID int64 `db:"review_round_id"`
}

type ReviewRound struct {
	ID           int64 `db:"review_round_id"`
	SubmissionID int64 `db:"submission_id"`
	StageID      Stage `db:"stage_id"`
	Round        int   `db:"round"`
}

type QueuedPayment struct {
	ID           int64  `db:"queued_payment_id"`
	ContextID    int64  `db:"context_id"`
	ContextPath  string `db:"context_path"`
	UserID       int64  `db:"user_id"`
	SubmissionID int64  `db:"submission_id"`
	Amount       string `db:"amount"`
	Currency     string `db:"currency_code"`
}

type Announcement struct {
	ID          int64  `db:"announcement_id"`
	ContextID   int64  `db:"context_id"`
	ContextPath string `db:"context_path"`
	Title       string `db:"title"`
}

// Submissions resolves submissions.
type Submissions interface {
	Submission(ctx context.Context, id int64) (*Submission, error)
}

// StageAssignments answers who is assigned to a submission.
type StageAssignments interface {
	// EditorAssigned reports whether a manager or sub-editor is assigned to
	// the stage.
	EditorAssigned(ctx context.Context, submissionID int64, stage Stage) (bool, error)
	// StageEditors lists the managers and sub-editors assigned to the stage.
	StageEditors(ctx context.Context, submissionID int64, stage Stage) ([]int64, error)
	Authors(ctx context.Context, submissionID int64) ([]int64, error)
}

// Files counts submission files.
type Files interface {
	// CountFiles counts files of class uploaded at or after since. A zero
	// since counts every file.
	CountFiles(ctx context.Context, submissionID int64, class FileClass, since time.Time) (int, error)
}

// Queries resolves discussions.
type Queries interface {
	Query(ctx context.Context, id int64) (*Query, error)
	OpenQueries(ctx context.Context, submissionID int64, stage Stage) (int, error)
}

type Representations interface {
	CountRepresentations(ctx context.Context, submissionID int64) (int, error)
}

// Decisions resolves editorial decisions.
type Decisions interface {
	// LastDecision returns nil when no decision was recorded for the stage.
	LastDecision(ctx context.Context, submissionID int64, stage Stage) (*Decision, error)
}

type Reviews interface {
	ReviewAssignment(ctx context.Context, id int64) (*ReviewAssignment, error)
	ReviewRound(ctx context.Context, id int64) (*ReviewRound, error)
}

type Payments interface {
	QueuedPayment(ctx context.Context, id int64) (*QueuedPayment, error)
}

type Announcements interface {
	Announcement(ctx context.Context, id int64) (*Announcement, error)
}

// Lookups bundles the workflow lookups. Handlers use only the fields they
// need.
type Lookups struct {
	Submissions     Submissions
	Stages          StageAssignments
	Files           Files
	Queries         Queries
	Representations Representations
	Decisions       Decisions
	Reviews         Reviews
	Payments        Payments
	Announcements   Announcements
	Links           Linker
}

// Linker builds public URLs into the editorial application.
type Linker struct {
	BaseURL string
}

func (l Linker) page(contextPath string, segments ...string) string {
	parts := []string{strings.TrimRight(l.BaseURL, "/")}
	if contextPath == "" {
		contextPath = "index"
	}
	parts = append(parts, url.PathEscape(contextPath))
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func (l Linker) Workflow(s *Submission) string {
	return l.page(s.ContextPath, "workflow", "access", id(s.ID))
}

func (l Linker) AuthorDashboard(s *Submission) string {
	return l.page(s.ContextPath, "authorDashboard", "submission", id(s.ID))
}

func (l Linker) Query(s *Submission, q *Query) string {
	return l.Workflow(s) + "#query-" + id(q.ID)
}

func (l Linker) Review(s *Submission, r *ReviewAssignment) string {
	return l.page(s.ContextPath, "reviewer", "submission", id(s.ID)) + "?reviewId=" + id(r.ID)
}

func (l Linker) Catalog(s *Submission) string {
	return l.page(s.ContextPath, "manageCatalog") + "#submission-" + id(s.ID)
}

func (l Linker) Payment(p *QueuedPayment) string {
	return l.page(p.ContextPath, "payment", "pay", id(p.ID))
}

func (l Linker) Announcement(a *Announcement) string {
	return l.page(a.ContextPath, "announcement", "view", id(a.ID))
}
