package handlers_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sapliy/editorial-notifications/internal/notification"
	"github.com/sapliy/editorial-notifications/internal/notification/handlers"
	"github.com/sapliy/editorial-notifications/internal/notification/testutil"
)

const (
	contextID    int64 = 3
	submissionID int64 = 5
	author       int64 = 10
	editor       int64 = 20
	actor        int64 = 30
)

type upload struct {
	class handlers.FileClass
	at    time.Time
}

// workflow is an in-memory editorial workflow behind every lookup.
type workflow struct {
	submissions     map[int64]*handlers.Submission
	editors         map[handlers.Stage][]int64
	authors         []int64
	uploads         []upload
	queries         map[int64]*handlers.Query
	representations int
	decisions       map[handlers.Stage]*handlers.Decision
}

func newWorkflow(stage handlers.Stage) *workflow {
	return &workflow{
		submissions: map[int64]*handlers.Submission{
			submissionID: {ID: submissionID, ContextID: contextID, ContextPath: "jot", Title: "On Testing", StageID: stage},
		},
		editors:   map[handlers.Stage][]int64{},
		authors:   []int64{author},
		queries:   map[int64]*handlers.Query{},
		decisions: map[handlers.Stage]*handlers.Decision{},
	}
}

func (w *workflow) lookups() handlers.Lookups {
	return handlers.Lookups{
		Submissions:     w,
		Stages:          w,
		Files:           w,
		Queries:         w,
		Representations: w,
		Decisions:       w,
		Reviews:         w,
		Payments:        w,
		Announcements:   w,
		Links:           handlers.Linker{BaseURL: "https://press.example.org"},
	}
}

func (w *workflow) Submission(_ context.Context, id int64) (*handlers.Submission, error) {
	s, ok := w.submissions[id]
	if !ok {
		return nil, handlers.ErrMissingEntity
	}
	return s, nil
}

func (w *workflow) EditorAssigned(_ context.Context, _ int64, stage handlers.Stage) (bool, error) {
	return len(w.editors[stage]) > 0, nil
}

func (w *workflow) StageEditors(_ context.Context, _ int64, stage handlers.Stage) ([]int64, error) {
	return w.editors[stage], nil
}

func (w *workflow) Authors(context.Context, int64) ([]int64, error) {
	return w.authors, nil
}

func (w *workflow) CountFiles(_ context.Context, _ int64, class handlers.FileClass, since time.Time) (int, error) {
	count := 0
	for _, u := range w.uploads {
		if u.class == class && !u.at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (w *workflow) Query(_ context.Context, id int64) (*handlers.Query, error) {
	q, ok := w.queries[id]
	if !ok {
		return nil, handlers.ErrMissingEntity
	}
	return q, nil
}

func (w *workflow) OpenQueries(_ context.Context, _ int64, stage handlers.Stage) (int, error) {
	open := 0
	for _, q := range w.queries {
		if q.StageID == stage && !q.Closed {
			open++
		}
	}
	return open, nil
}

func (w *workflow) CountRepresentations(context.Context, int64) (int, error) {
	return w.representations, nil
}

func (w *workflow) LastDecision(_ context.Context, _ int64, stage handlers.Stage) (*handlers.Decision, error) {
	return w.decisions[stage], nil
}

func (w *workflow) ReviewAssignment(context.Context, int64) (*handlers.ReviewAssignment, error) {
	return nil, handlers.ErrMissingEntity
}

func (w *workflow) ReviewRound(context.Context, int64) (*handlers.ReviewRound, error) {
	return nil, handlers.ErrMissingEntity
}

func (w *workflow) QueuedPayment(context.Context, int64) (*handlers.QueuedPayment, error) {
	return nil, handlers.ErrMissingEntity
}

func (w *workflow) Announcement(context.Context, int64) (*handlers.Announcement, error) {
	return nil, handlers.ErrMissingEntity
}

type fixture struct {
	wf     *workflow
	store  *testutil.MemoryStore
	mailer *testutil.Mailer
	engine *notification.Engine
}

func newFixture(t *testing.T, stage handlers.Stage) *fixture {
	t.Helper()
	tokens, err := notification.NewTokenCodec("unsubscribe-secret")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	f := &fixture{
		wf:     newWorkflow(stage),
		store:  testutil.NewMemoryStore(),
		mailer: &testutil.Mailer{},
	}
	reg := notification.NewRegistry()
	handlers.Register(reg, f.wf.lookups())
	f.engine = notification.NewEngine(notification.Deps{
		Store:       f.store,
		Preferences: testutil.NewMemoryPreferences(),
		Registry:    reg,
		Mailer:      f.mailer,
		Users: testutil.Users{
			author: {ID: author, Email: "author@example.org", Name: "Ada Author"},
			editor: {ID: editor, Email: "editor@example.org", Name: "Ed Editor"},
		},
		Contexts: testutil.Contexts{
			contextID: {ID: contextID, Name: "Journal of Tests", Path: "jot"},
		},
		Tokens:  tokens,
		Clock:   testutil.NewClock(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)),
		BaseURL: "https://press.example.org",
	})
	return f
}

func (f *fixture) reconcile(t *testing.T, userIDs []int64, types ...notification.Type) {
	t.Helper()
	req := notification.Requester{ContextID: contextID, ActorUserID: actor}
	if err := f.engine.UpdateState(context.Background(), req, types, userIDs, notification.AssocSubmission, submissionID); err != nil {
		t.Fatalf("UpdateState(%v): %v", types, err)
	}
}

func (f *fixture) count(t notification.Type, userID int64) int {
	return f.store.Count(notification.Filter{
		AssocType: notification.AssocSubmission,
		AssocID:   submissionID,
		Type:      t,
		UserID:    userID,
	})
}

func TestEditorAssignment_Lifecycle(t *testing.T) {
	f := newFixture(t, handlers.StageSubmission)
	all := []notification.Type{
		notification.TypeEditorAssignSubmit, notification.TypeEditorAssignInternal,
		notification.TypeEditorAssignExternal, notification.TypeEditorAssignEditing,
		notification.TypeEditorAssignProd,
	}

	f.reconcile(t, nil, all...)
	if got := f.count(notification.TypeEditorAssignSubmit, 0); got != 1 {
		t.Fatalf("expected one submission-stage alert, got %d", got)
	}
	if got := len(f.store.All()); got != 1 {
		t.Errorf("only the current stage should hold an alert, got %d rows", got)
	}
	n := f.store.All()[0]
	if n.UserID != 0 || n.Level != notification.LevelTask || n.ContextID != contextID {
		t.Errorf("unexpected alert: %+v", n)
	}

	f.reconcile(t, nil, all...)
	if got := len(f.store.All()); got != 1 {
		t.Errorf("second pass changed state: %d rows", got)
	}

	f.wf.editors[handlers.StageSubmission] = []int64{editor}
	f.reconcile(t, nil, all...)
	if got := len(f.store.All()); got != 0 {
		t.Errorf("expected alert resolved, %d rows remain", got)
	}
	if len(f.mailer.Sent) != 0 {
		t.Errorf("status notifications must not be mailed, sent %d", len(f.mailer.Sent))
	}
}

func TestEditorAssignment_DuplicateConverges(t *testing.T) {
	f := newFixture(t, handlers.StageSubmission)
	f.reconcile(t, nil, notification.TypeEditorAssignSubmit)

	dup := *f.store.All()[0]
	dup.ID = ""
	if err := f.store.Insert(context.Background(), &dup); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	f.reconcile(t, nil, notification.TypeEditorAssignSubmit)
	if got := f.count(notification.TypeEditorAssignSubmit, 0); got != 2 {
		t.Errorf("a satisfied condition should leave rows alone, got %d", got)
	}

	f.wf.editors[handlers.StageSubmission] = []int64{editor}
	f.reconcile(t, nil, notification.TypeEditorAssignSubmit)
	if got := f.count(notification.TypeEditorAssignSubmit, 0); got != 0 {
		t.Errorf("expected every copy removed, got %d", got)
	}
}

func TestEditorAssignment_Render(t *testing.T) {
	f := newFixture(t, handlers.StageExternalReview)
	f.reconcile(t, nil, notification.TypeEditorAssignExternal)

	r, err := f.engine.Render(context.Background(), f.store.All()[0])
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r.Message != "An editor must be assigned before the review stage can begin." {
		t.Errorf("Message = %q", r.Message)
	}
	if r.URL != "https://press.example.org/jot/workflow/access/5" {
		t.Errorf("URL = %q", r.URL)
	}
	if !r.VisibleToAll || r.StyleClass != notification.StyleWarning {
		t.Errorf("unexpected presentation: %+v", r)
	}
}

func TestEditorDecision_Supersedes(t *testing.T) {
	f := newFixture(t, handlers.StageExternalReview)

	f.reconcile(t, []int64{author}, notification.TypeDecisionExternalReview)
	f.reconcile(t, []int64{author}, notification.TypeDecisionAccept)

	var decisions []*notification.Notification
	for _, n := range f.store.All() {
		if n.Type.IsDecision() && n.UserID == author {
			decisions = append(decisions, n)
		}
	}
	if len(decisions) != 1 {
		t.Fatalf("expected exactly one decision notification, got %d", len(decisions))
	}
	if decisions[0].Type != notification.TypeDecisionAccept || decisions[0].Level != notification.LevelNormal {
		t.Errorf("unexpected decision notification: %+v", decisions[0])
	}
	if len(f.mailer.Sent) != 2 {
		t.Fatalf("expected both decisions mailed, got %d", len(f.mailer.Sent))
	}
	if !strings.Contains(f.mailer.Sent[1].HTMLBody, "has been accepted") {
		t.Errorf("unexpected mail body: %s", f.mailer.Sent[1].HTMLBody)
	}
}

func TestEditorDecision_PendingRevisionIsTask(t *testing.T) {
	f := newFixture(t, handlers.StageExternalReview)
	f.reconcile(t, []int64{author, 0}, notification.TypeDecisionPendingRevision)

	rows := f.store.All()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0].Level != notification.LevelTask || rows[0].UserID != author {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestEditingProduction_Transitions(t *testing.T) {
	f := newFixture(t, handlers.StageEditing)
	f.wf.editors[handlers.StageEditing] = []int64{editor}
	types := []notification.Type{
		notification.TypeAssignCopyeditor, notification.TypeAwaitingCopyedits,
		notification.TypeAssignProductionUser, notification.TypeAwaitingRepresentations,
	}

	f.reconcile(t, nil, types...)
	if f.count(notification.TypeAssignCopyeditor, editor) != 1 || len(f.store.All()) != 1 {
		t.Fatalf("expected only assign-copyeditor for the editor, got %+v", f.store.All())
	}

	f.wf.queries[1] = &handlers.Query{ID: 1, SubmissionID: submissionID, StageID: handlers.StageEditing, Subject: "Copyedits"}
	f.reconcile(t, nil, types...)
	if f.count(notification.TypeAwaitingCopyedits, editor) != 1 || len(f.store.All()) != 1 {
		t.Fatalf("expected only awaiting-copyedits, got %+v", f.store.All())
	}

	f.wf.uploads = append(f.wf.uploads, upload{class: handlers.FileCopyedited, at: time.Now()})
	f.reconcile(t, nil, types...)
	if got := len(f.store.All()); got != 0 {
		t.Errorf("expected no status once copyedits exist, got %d", got)
	}

	f.wf.submissions[submissionID].StageID = handlers.StageProduction
	f.wf.editors[handlers.StageProduction] = []int64{editor}
	f.reconcile(t, nil, types...)
	if f.count(notification.TypeAssignProductionUser, editor) != 1 || len(f.store.All()) != 1 {
		t.Fatalf("expected only assign-production-user, got %+v", f.store.All())
	}
}

func TestPendingRevisions(t *testing.T) {
	f := newFixture(t, handlers.StageExternalReview)
	decided := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	f.wf.decisions[handlers.StageExternalReview] = &handlers.Decision{
		Type: notification.TypeDecisionPendingRevision, StageID: handlers.StageExternalReview, DateDecided: decided,
	}
	f.wf.uploads = append(f.wf.uploads, upload{class: handlers.FileReviewRevision, at: decided.Add(-time.Hour)})

	f.reconcile(t, nil, notification.TypePendingInternalRevs, notification.TypePendingExternalRevs)
	if f.count(notification.TypePendingExternalRevs, author) != 1 {
		t.Fatalf("expected pending revisions for the author, got %+v", f.store.All())
	}
	if f.count(notification.TypePendingInternalRevs, 0) != 0 {
		t.Errorf("internal review has no decision and needs no notification")
	}

	f.wf.uploads = append(f.wf.uploads, upload{class: handlers.FileReviewRevision, at: decided.Add(time.Hour)})
	f.reconcile(t, nil, notification.TypePendingExternalRevs)
	if got := len(f.store.All()); got != 0 {
		t.Errorf("expected revisions resolved, got %d rows", got)
	}
}

func TestPendingRevisions_ScopedToUsers(t *testing.T) {
	const coauthor int64 = 11
	decided := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) *fixture {
		f := newFixture(t, handlers.StageExternalReview)
		f.wf.authors = []int64{author, coauthor}
		f.wf.decisions[handlers.StageExternalReview] = &handlers.Decision{
			Type: notification.TypeDecisionPendingRevision, StageID: handlers.StageExternalReview, DateDecided: decided,
		}
		f.reconcile(t, nil, notification.TypePendingExternalRevs)
		if f.count(notification.TypePendingExternalRevs, author) != 1 || f.count(notification.TypePendingExternalRevs, coauthor) != 1 {
			t.Fatalf("expected a task per author, got %+v", f.store.All())
		}
		return f
	}

	t.Run("still pending keeps other authors", func(t *testing.T) {
		f := setup(t)
		f.reconcile(t, []int64{coauthor}, notification.TypePendingExternalRevs)
		if got := f.count(notification.TypePendingExternalRevs, author); got != 1 {
			t.Errorf("author task = %d, want 1", got)
		}
		if got := f.count(notification.TypePendingExternalRevs, coauthor); got != 1 {
			t.Errorf("coauthor task = %d, want 1", got)
		}
	})

	t.Run("resolved deletes only scoped users", func(t *testing.T) {
		f := setup(t)
		f.wf.uploads = append(f.wf.uploads, upload{class: handlers.FileReviewRevision, at: decided.Add(time.Hour)})
		f.reconcile(t, []int64{coauthor}, notification.TypePendingExternalRevs)
		if got := f.count(notification.TypePendingExternalRevs, coauthor); got != 0 {
			t.Errorf("coauthor task = %d, want 0", got)
		}
		if got := f.count(notification.TypePendingExternalRevs, author); got != 1 {
			t.Errorf("author task = %d, want 1 until reconciled", got)
		}

		f.reconcile(t, nil, notification.TypePendingExternalRevs)
		if got := f.count(notification.TypePendingExternalRevs, 0); got != 0 {
			t.Errorf("expected all tasks resolved, got %d", got)
		}
	})
}

func TestApproveSubmission(t *testing.T) {
	f := newFixture(t, handlers.StageProduction)
	types := []notification.Type{
		notification.TypeApproveSubmission, notification.TypeFormatNeedsApproval, notification.TypeVisitCatalog,
	}

	f.wf.representations = 1
	f.reconcile(t, nil, types...)
	if f.count(notification.TypeApproveSubmission, 0) != 1 || f.count(notification.TypeFormatNeedsApproval, 0) != 1 {
		t.Fatalf("expected approval notifications, got %+v", f.store.All())
	}

	published := time.Now()
	f.wf.submissions[submissionID].DatePublished = &published
	f.reconcile(t, nil, types...)
	rows := f.store.All()
	if len(rows) != 1 || rows[0].Type != notification.TypeVisitCatalog {
		t.Errorf("expected only visit-catalog after publishing, got %+v", rows)
	}
}

func TestRender_MissingEntity(t *testing.T) {
	f := newFixture(t, handlers.StageSubmission)
	tests := []struct {
		name string
		n    *notification.Notification
		want error
	}{
		{
			name: "deleted submission",
			n:    &notification.Notification{ID: "a", Type: notification.TypeMetadataModified, AssocType: notification.AssocSubmission, AssocID: 404},
			want: handlers.ErrMissingEntity,
		},
		{
			name: "deleted query",
			n:    &notification.Notification{ID: "b", Type: notification.TypeNewQuery, AssocType: notification.AssocQuery, AssocID: 404},
			want: handlers.ErrMissingEntity,
		},
		{
			name: "wrong assoc",
			n:    &notification.Notification{ID: "c", Type: notification.TypeNewQuery, AssocType: notification.AssocSubmission, AssocID: submissionID},
			want: handlers.ErrUnexpectedAssoc,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Render(context.Background(), tt.n)
			if !errors.Is(err, tt.want) {
				t.Errorf("Render() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestQuery_RenderContents(t *testing.T) {
	f := newFixture(t, handlers.StageEditing)
	f.wf.queries[9] = &handlers.Query{ID: 9, SubmissionID: submissionID, StageID: handlers.StageEditing, Subject: "Figure 2"}

	r, err := f.engine.Render(context.Background(), &notification.Notification{
		ID: "q", Type: notification.TypeNewQuery, AssocType: notification.AssocQuery, AssocID: 9,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r.Title != "On Testing" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Contents.Action == nil {
		t.Fatalf("expected an action link, got %+v", r.Contents)
	}
	if r.Contents.Action.URL != "https://press.example.org/jot/workflow/access/5#query-9" {
		t.Errorf("action URL = %q", r.Contents.Action.URL)
	}
}

func TestUpdateState_RejectsOtherAssoc(t *testing.T) {
	f := newFixture(t, handlers.StageSubmission)
	req := notification.Requester{ContextID: contextID}
	err := f.engine.UpdateState(context.Background(), req, []notification.Type{notification.TypeEditorAssignSubmit}, nil, notification.AssocQuery, 1)
	if !errors.Is(err, handlers.ErrUnexpectedAssoc) {
		t.Errorf("UpdateState() error = %v, want ErrUnexpectedAssoc", err)
	}
}
