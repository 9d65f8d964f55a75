package notification_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sapliy/editorial-notifications/internal/notification"
	"github.com/sapliy/editorial-notifications/internal/notification/testutil"
)

const (
	contextID int64 = 7
	author    int64 = 10
	editor    int64 = 20
	actor     int64 = 30
)

type fixture struct {
	engine *notification.Engine
	store  *testutil.MemoryStore
	prefs  *testutil.MemoryPreferences
	mailer *testutil.Mailer
	clock  *testutil.Clock
	reg    *notification.Registry
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	tokens, err := notification.NewTokenCodec(secret)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	f := &fixture{
		store:  testutil.NewMemoryStore(),
		prefs:  testutil.NewMemoryPreferences(),
		mailer: &testutil.Mailer{},
		clock:  testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		reg:    notification.NewRegistry(),
	}
	f.engine = notification.NewEngine(notification.Deps{
		Store:       f.store,
		Preferences: f.prefs,
		Registry:    f.reg,
		Mailer:      f.mailer,
		Users: testutil.Users{
			author: {ID: author, Email: "author@example.org", Name: "Ada Author"},
			editor: {ID: editor, Email: "editor@example.org", Name: "Ed Editor"},
			actor:  {ID: actor, Email: "actor@example.org", Name: "Act Or"},
			99:     {ID: 99, Email: "gone@example.org", Disabled: true},
		},
		Contexts: testutil.Contexts{
			contextID: {ID: contextID, Name: "Journal of Tests", Path: "jot", ContactEmail: "editors@jot.example.org"},
		},
		Tokens:  tokens,
		Clock:   f.clock,
		BaseURL: "https://press.example.org/",
	})
	return f
}

func TestEngine_Create(t *testing.T) {
	ctx := context.Background()
	req := notification.Requester{ContextID: contextID, ActorUserID: actor}

	t.Run("blocked in-app creates nothing", func(t *testing.T) {
		f := newFixture(t, "secret")
		_ = f.prefs.SetBlocked(ctx, author, contextID, []notification.Type{notification.TypeMetadataModified}, nil)

		n, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if n != nil {
			t.Errorf("expected no notification, got %+v", n)
		}
		if got := len(f.store.All()); got != 0 {
			t.Errorf("expected no rows, got %d", got)
		}
		if f.mailer.Attempts != 0 {
			t.Errorf("expected no mail, got %d attempts", f.mailer.Attempts)
		}
	})

	t.Run("block in another context does not apply", func(t *testing.T) {
		f := newFixture(t, "secret")
		_ = f.prefs.SetBlocked(ctx, author, contextID+1, []notification.Type{notification.TypeMetadataModified}, nil)

		n, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
		})
		if err != nil || n == nil {
			t.Fatalf("expected a notification, got %v, %v", n, err)
		}
	})

	t.Run("email blocked still records the row", func(t *testing.T) {
		f := newFixture(t, "secret")
		_ = f.prefs.SetBlocked(ctx, author, contextID, nil, []notification.Type{notification.TypeMetadataModified})

		n, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
		})
		if err != nil || n == nil {
			t.Fatalf("expected a notification, got %v, %v", n, err)
		}
		if f.mailer.Attempts != 0 {
			t.Errorf("expected no mail, got %d attempts", f.mailer.Attempts)
		}
	})

	t.Run("subscribable type is mailed with an unsubscribe link", func(t *testing.T) {
		f := newFixture(t, "secret")
		n, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if len(f.mailer.Sent) != 1 {
			t.Fatalf("expected one email, got %d", len(f.mailer.Sent))
		}
		msg := f.mailer.Sent[0]
		if msg.To != "author@example.org" || msg.ReplyTo != "editors@jot.example.org" {
			t.Errorf("unexpected addressing: %+v", msg)
		}
		if strings.Contains(msg.HTMLBody, notification.UnsubscribePlaceholder) {
			t.Error("placeholder left in body")
		}
		if !strings.Contains(msg.HTMLBody, "https://press.example.org/api/v1/unsubscribe?") {
			t.Errorf("expected unsubscribe link in body")
		}
		if !strings.Contains(msg.HTMLBody, "notification="+n.ID) {
			t.Errorf("expected link to carry notification id %s", n.ID)
		}
	})

	t.Run("non-subscribable type has the placeholder stripped", func(t *testing.T) {
		f := newFixture(t, "")
		_, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeWarning, ContextID: contextID,
			Params: notification.Params{notification.ContentsSetting: "Check your files"},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if len(f.mailer.Sent) != 1 {
			t.Fatalf("expected one email, got %d", len(f.mailer.Sent))
		}
		body := f.mailer.Sent[0].HTMLBody
		if strings.Contains(body, notification.UnsubscribePlaceholder) || strings.Contains(body, "unsubscribe?") {
			t.Error("expected no unsubscribe footer")
		}
		if !strings.Contains(body, "Check your files") {
			t.Error("expected rendered contents in body")
		}
	})

	t.Run("missing secret is a configuration error", func(t *testing.T) {
		f := newFixture(t, "")
		n, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
		})
		if !errors.Is(err, notification.ErrNoSigningSecret) {
			t.Fatalf("expected ErrNoSigningSecret, got %v", err)
		}
		if n == nil || f.store.Count(notification.Filter{Type: notification.TypeMetadataModified}) != 1 {
			t.Error("expected the notification to be recorded")
		}
		if f.mailer.Attempts != 0 {
			t.Error("expected no mail")
		}
	})

	t.Run("suppressed and trivial notifications are not mailed", func(t *testing.T) {
		f := newFixture(t, "secret")
		inputs := []notification.CreateInput{
			{UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID, SuppressEmail: true},
			{UserID: author, Type: notification.TypeSuccess, ContextID: contextID, Level: notification.LevelTrivial},
		}
		for _, in := range inputs {
			if _, err := f.engine.Create(ctx, req, in); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}
		if f.mailer.Attempts != 0 {
			t.Errorf("expected no mail, got %d", f.mailer.Attempts)
		}
	})

	t.Run("disabled recipient is skipped silently", func(t *testing.T) {
		f := newFixture(t, "secret")
		if _, err := f.engine.Create(ctx, req, notification.CreateInput{
			UserID: 99, Type: notification.TypeMetadataModified, ContextID: contextID,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if f.mailer.Attempts != 0 {
			t.Error("expected no mail")
		}
		if f.store.Count(notification.Filter{Level: notification.LevelTrivial}) != 0 {
			t.Error("expected no fallback notification")
		}
	})

	t.Run("params become settings", func(t *testing.T) {
		f := newFixture(t, "secret")
		n, err := f.engine.Create(ctx, req, notification.CreateInput{
			Type: notification.TypeInformation, ContextID: contextID,
			Params: notification.Params{
				notification.ContentsSetting: map[string]string{"en": "Hello", "fr": "Bonjour"},
				"count":                      3,
			},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		settings, _ := f.store.Settings(ctx, n.ID)
		if v, _ := notification.SettingValue(settings, notification.ContentsSetting, "fr"); v != "Bonjour" {
			t.Errorf("expected localized setting, got %q", v)
		}
		if v, _ := notification.SettingValue(settings, "count", ""); v != "3" {
			t.Errorf("expected flat setting, got %q", v)
		}
	})
}

func TestEngine_MailFailureFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	f.mailer.SendFunc = func(notification.Message) error { return errors.New("smtp down") }

	n, err := f.engine.Create(ctx, notification.Requester{ContextID: contextID, ActorUserID: actor}, notification.CreateInput{
		UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
	})
	if err != nil {
		t.Fatalf("mail failure must not surface, got %v", err)
	}
	if _, err := f.store.FindByID(ctx, n.ID, author); err != nil {
		t.Errorf("original notification missing: %v", err)
	}

	fallback, _ := f.store.Find(ctx, notification.Filter{Level: notification.LevelTrivial})
	if len(fallback) != 1 {
		t.Fatalf("expected one fallback notification, got %d", len(fallback))
	}
	if fallback[0].UserID != actor || fallback[0].Type != notification.TypeError {
		t.Errorf("unexpected fallback: %+v", fallback[0])
	}
	if f.mailer.Attempts != 1 {
		t.Errorf("expected exactly one send attempt, got %d", f.mailer.Attempts)
	}

	r, err := f.engine.Render(ctx, fallback[0])
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r.Message != notification.Text("notification.sendFailed", nil) || r.StyleClass != notification.StyleError {
		t.Errorf("unexpected fallback rendering: %+v", r)
	}
}

func TestEngine_PreferenceLookupFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	f.prefs.Err = errors.New("preferences unavailable")

	n, err := f.engine.Create(ctx, notification.Requester{ContextID: contextID}, notification.CreateInput{
		UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
	})
	if err != nil || n == nil {
		t.Fatalf("expected in-app creation to proceed, got %v, %v", n, err)
	}
	if f.mailer.Attempts != 0 {
		t.Errorf("expected email to fail closed, got %d attempts", f.mailer.Attempts)
	}
}

func TestEngine_CreateTrivialAndDeleteTrivial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	req := notification.Requester{ContextID: contextID}

	trivial, err := f.engine.CreateTrivial(ctx, author, 0, nil)
	if err != nil {
		t.Fatalf("CreateTrivial: %v", err)
	}
	if trivial.Type != notification.TypeSuccess || trivial.Level != notification.LevelTrivial || trivial.ContextID != 0 {
		t.Errorf("unexpected trivial notification: %+v", trivial)
	}
	task, _ := f.engine.Create(ctx, req, notification.CreateInput{
		UserID: author, Type: notification.TypeAssignCopyeditor, ContextID: contextID,
		Level: notification.LevelTask, SuppressEmail: true,
	})
	normal, _ := f.engine.Create(ctx, req, notification.CreateInput{
		UserID: author, Type: notification.TypeInformation, ContextID: contextID, SuppressEmail: true,
	})

	kept, err := f.engine.DeleteTrivial(ctx, []*notification.Notification{trivial, task, normal})
	if err != nil {
		t.Fatalf("DeleteTrivial: %v", err)
	}
	if len(kept) != 2 || kept[0].ID != task.ID || kept[1].ID != normal.ID {
		t.Errorf("expected task and normal kept, got %+v", kept)
	}
	if _, err := f.store.FindByID(ctx, trivial.ID, 0); !errors.Is(err, notification.ErrNotFound) {
		t.Errorf("expected trivial deleted, got %v", err)
	}
	if len(f.store.All()) != 2 {
		t.Errorf("expected two rows left, got %d", len(f.store.All()))
	}
}

func TestEngine_Build(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	key := notification.Key{
		ContextID: contextID,
		Level:     notification.LevelTask,
		Type:      notification.TypeAwaitingCopyedits,
		AssocType: notification.AssocSubmission,
		AssocID:   5,
		UserID:    editor,
	}

	first, err := f.engine.Build(ctx, key)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := f.engine.Build(ctx, key)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same row, got %s and %s", first.ID, second.ID)
	}
	if got := len(f.store.All()); got != 1 {
		t.Errorf("expected one row, got %d", got)
	}
	if f.mailer.Attempts != 0 {
		t.Error("built notifications must not be mailed")
	}

	other := key
	other.UserID = author
	third, _ := f.engine.Build(ctx, other)
	if third.ID == first.ID {
		t.Error("expected a distinct row for a different user")
	}

	t.Run("site key ignores context rows", func(t *testing.T) {
		site := key
		site.ContextID = 0
		got, err := f.engine.Build(ctx, site)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if got.ID == first.ID || got.ContextID != 0 {
			t.Errorf("expected a new site-wide row, got %+v", got)
		}
		again, err := f.engine.Build(ctx, site)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if again.ID != got.ID {
			t.Errorf("expected the site row to be reused, got %s and %s", got.ID, again.ID)
		}
	})
}

func TestEngine_TransferOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	n, _ := f.engine.CreateTrivial(ctx, author, notification.TypeSuccess, nil)

	if err := f.engine.TransferOwner(ctx, author, editor); err != nil {
		t.Fatalf("TransferOwner: %v", err)
	}
	got, err := f.store.FindByID(ctx, n.ID, editor)
	if err != nil {
		t.Fatalf("expected notification owned by new user: %v", err)
	}
	if got.UserID != editor {
		t.Errorf("expected owner %d, got %d", editor, got.UserID)
	}
}

func TestEngine_Display(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	req := notification.Requester{ContextID: contextID}

	normal, _ := f.engine.Create(ctx, req, notification.CreateInput{
		UserID: author, Type: notification.TypeInformation, ContextID: contextID, SuppressEmail: true,
	})
	f.clock.Advance(time.Minute)
	trivial, _ := f.engine.Create(ctx, req, notification.CreateInput{
		UserID: author, Type: notification.TypeSuccess, ContextID: contextID, Level: notification.LevelTrivial,
	})

	shown, err := f.engine.Display(ctx, author, contextID, 0)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if len(shown) != 2 || shown[0].ID != trivial.ID {
		t.Fatalf("expected newest first, got %+v", shown)
	}

	got, _ := f.store.FindByID(ctx, normal.ID, 0)
	if got.DateRead == nil {
		t.Error("expected normal notification marked read")
	}
	got, _ = f.store.FindByID(ctx, trivial.ID, 0)
	if got.DateRead != nil {
		t.Error("trivial notifications are never marked read")
	}
}

func TestEngine_UpdateStateMisconfigured(t *testing.T) {
	f := newFixture(t, "secret")
	f.reg.Register(notification.TypeNewQuery, func(notification.Type, notification.Emitter) notification.TypeHandler {
		return notification.DefaultHandler{}
	})

	tests := []struct {
		name string
		typ  notification.Type
	}{
		{"unregistered", notification.TypeAssignCopyeditor},
		{"rendering only", notification.TypeNewQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.UpdateState(context.Background(), notification.Requester{}, []notification.Type{tt.typ}, nil, notification.AssocSubmission, 1)
			if !errors.Is(err, notification.ErrMisconfiguredType) {
				t.Errorf("expected ErrMisconfiguredType, got %v", err)
			}
		})
	}
}

func TestEngine_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	req := notification.Requester{ContextID: contextID}

	n, _ := f.engine.Create(ctx, req, notification.CreateInput{
		UserID: author, Type: notification.TypeNewQuery, ContextID: contextID, SuppressEmail: true,
	})
	token := f.engine.SignUnsubscribe(contextID, author, n.ID)

	if _, err := f.engine.Unsubscribe(ctx, token, contextID, editor, n.ID); !errors.Is(err, notification.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for another user, got %v", err)
	}

	typ, err := f.engine.Unsubscribe(ctx, token, contextID, author, n.ID)
	if err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if typ != notification.TypeNewQuery {
		t.Errorf("expected %s, got %s", notification.TypeNewQuery, typ)
	}
	blocked, _ := f.prefs.BlockedEmail(ctx, author, contextID)
	if !blocked.Has(notification.TypeNewQuery) {
		t.Error("expected type blocked for email")
	}

	task, _ := f.engine.Create(ctx, req, notification.CreateInput{
		UserID: author, Type: notification.TypeAssignCopyeditor, ContextID: contextID, SuppressEmail: true,
	})
	taskToken := f.engine.SignUnsubscribe(contextID, author, task.ID)
	if _, err := f.engine.Unsubscribe(ctx, taskToken, contextID, author, task.ID); !errors.Is(err, notification.ErrNotSubscribable) {
		t.Errorf("expected ErrNotSubscribable, got %v", err)
	}
}

func TestEngine_AtomicDefersMailUntilCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "secret")
	req := notification.Requester{ContextID: contextID, ActorUserID: actor}

	err := f.engine.Atomic(ctx, func(emit notification.Emitter) error {
		if _, err := emit.Create(ctx, req, notification.CreateInput{
			UserID: author, Type: notification.TypeMetadataModified, ContextID: contextID,
		}); err != nil {
			return err
		}
		if f.mailer.Attempts != 0 {
			t.Error("mail sent before commit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}
	if len(f.mailer.Sent) != 1 {
		t.Errorf("expected mail after commit, got %d", len(f.mailer.Sent))
	}

	rollback := errors.New("rollback")
	err = f.engine.Atomic(ctx, func(emit notification.Emitter) error {
		_, _ = emit.Create(ctx, req, notification.CreateInput{
			UserID: editor, Type: notification.TypeMetadataModified, ContextID: contextID,
		})
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if f.store.Count(notification.Filter{UserID: editor}) != 0 {
		t.Error("expected rolled back row to be gone")
	}
	if len(f.mailer.Sent) != 1 {
		t.Errorf("expected no mail for rolled back row, got %d", len(f.mailer.Sent))
	}
}
