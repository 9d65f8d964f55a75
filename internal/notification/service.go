package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/sapliy/editorial-notifications/internal/notification")

// ErrNotSubscribable is returned when unsubscribing from a type users cannot
// opt out of.
var ErrNotSubscribable = errors.New("notification: type is not subscribable")

// Deps wires the engine to its collaborators. Mailer, Users and Contexts may
// be nil, in which case no mail is sent. Ledger is optional.
type Deps struct {
	Store       Store
	Preferences PreferenceStore
	Registry    *Registry
	Mailer      MailTrigger
	Users       UserDirectory
	Contexts    ContextDirectory
	Tokens      *TokenCodec
	Ledger      MailLedger
	Clock       Clock
	Logger      *slog.Logger
	// BaseURL is the public root that unsubscribe links point at.
	BaseURL string
	Locale  string
}

// Engine creates, renders and reconciles notifications.
type Engine struct {
	store    Store
	prefs    PreferenceStore
	registry *Registry
	mailer   MailTrigger
	users    UserDirectory
	contexts ContextDirectory
	tokens   *TokenCodec
	ledger   MailLedger
	clock    Clock
	logger   *slog.Logger
	baseURL  string
	locale   string

	// Inside Atomic, root is the engine outside the transaction and
	// afterCommit collects mail to send once the transaction commits.
	root        *Engine
	afterCommit *[]func(context.Context)
}

func NewEngine(d Deps) *Engine {
	if d.Registry == nil {
		d.Registry = NewRegistry()
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Locale == "" {
		d.Locale = "en"
	}
	return &Engine{
		store:    d.Store,
		prefs:    d.Preferences,
		registry: d.Registry,
		mailer:   d.Mailer,
		users:    d.Users,
		contexts: d.Contexts,
		tokens:   d.Tokens,
		ledger:   d.Ledger,
		clock:    d.Clock,
		logger:   d.Logger,
		baseURL:  strings.TrimRight(d.BaseURL, "/"),
		locale:   d.Locale,
	}
}

var _ Emitter = (*Engine)(nil)

// Create records a notification for in.UserID and mails it when allowed.
//
// It returns (nil, nil) when the recipient has blocked the type in-app. Mail
// delivery failures never surface here; they become a trivial error
// notification for req.ActorUserID. A missing signing secret for a
// subscribable type is returned alongside the created notification.
func (e *Engine) Create(ctx context.Context, req Requester, in CreateInput) (*Notification, error) {
	ctx, span := tracer.Start(ctx, "notification.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.type", in.Type.String()),
		attribute.Int64("notification.user_id", in.UserID),
	)

	level := in.Level
	if level == 0 {
		level = LevelNormal
	}

	if in.UserID != 0 {
		blocked, err := e.prefs.BlockedInApp(ctx, in.UserID, in.ContextID)
		switch {
		case err != nil:
			e.logger.WarnContext(ctx, "in-app preference lookup failed, creating anyway",
				"user_id", in.UserID, "type", in.Type.String(), "error", err)
		case blocked.Has(in.Type):
			NotificationsBlocked.Inc()
			return nil, nil
		}
	}

	n := &Notification{
		UserID:      in.UserID,
		ContextID:   in.ContextID,
		Type:        in.Type,
		Level:       level,
		AssocType:   in.AssocType,
		AssocID:     in.AssocID,
		DateCreated: e.clock.Now(),
	}
	if err := e.insert(ctx, n, in.Params); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if level == LevelTrivial || in.SuppressEmail {
		return n, nil
	}
	if in.UserID != 0 {
		blocked, err := e.prefs.BlockedEmail(ctx, in.UserID, in.ContextID)
		if err != nil {
			e.logger.WarnContext(ctx, "email preference lookup failed, not mailing",
				"user_id", in.UserID, "notification_id", n.ID, "error", err)
			EmailsProcessed.WithLabelValues(emailSkipped).Inc()
			return n, nil
		}
		if blocked.Has(in.Type) {
			EmailsProcessed.WithLabelValues(emailBlocked).Inc()
			return n, nil
		}
	}

	if e.afterCommit != nil {
		root := e.root
		*e.afterCommit = append(*e.afterCommit, func(ctx context.Context) {
			if err := root.mail(ctx, req, n); err != nil {
				e.logger.ErrorContext(ctx, "deferred notification email failed",
					"notification_id", n.ID, "error", err)
			}
		})
		return n, nil
	}
	if err := e.mail(ctx, req, n); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return n, err
	}
	return n, nil
}

// CreateTrivial records one-shot feedback for userID. A zero t means
// TypeSuccess. Trivial notifications are site scoped, never blocked and never
// mailed.
func (e *Engine) CreateTrivial(ctx context.Context, userID int64, t Type, params Params) (*Notification, error) {
	if t == 0 {
		t = TypeSuccess
	}
	n := &Notification{
		UserID:      userID,
		Type:        t,
		Level:       LevelTrivial,
		DateCreated: e.clock.Now(),
	}
	if err := e.insert(ctx, n, params); err != nil {
		return nil, err
	}
	return n, nil
}

func (e *Engine) insert(ctx context.Context, n *Notification, params Params) error {
	err := e.store.Atomic(ctx, func(s Store) error {
		if err := s.Insert(ctx, n); err != nil {
			return err
		}
		if len(params) == 0 {
			return nil
		}
		return s.PutSettings(ctx, params.settings(n.ID))
	})
	if err != nil {
		return fmt.Errorf("create %s notification: %w", n.Type, err)
	}
	NotificationsCreated.WithLabelValues(n.Level.String()).Inc()
	return nil
}

// DeleteTrivial deletes the trivial members of ns and returns the rest
// untouched.
func (e *Engine) DeleteTrivial(ctx context.Context, ns []*Notification) ([]*Notification, error) {
	kept := make([]*Notification, 0, len(ns))
	for _, n := range ns {
		if n.Level != LevelTrivial {
			kept = append(kept, n)
			continue
		}
		if err := e.store.Delete(ctx, n.ID); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

// Build returns the notification matching key, inserting it when none exists.
// Built notifications are status markers and are never mailed.
func (e *Engine) Build(ctx context.Context, key Key) (*Notification, error) {
	var built *Notification
	err := e.store.Atomic(ctx, func(s Store) error {
		matches, err := s.Find(ctx, Filter{
			ContextID: key.ContextID,
			Level:     key.Level,
			Type:      key.Type,
			AssocType: key.AssocType,
			AssocID:   key.AssocID,
			UserID:    key.UserID,
		})
		if err != nil {
			return err
		}
		// A zero context is the site, not a wildcard.
		for _, m := range matches {
			if m.ContextID == key.ContextID {
				built = m
				return nil
			}
		}
		level := key.Level
		if level == 0 {
			level = LevelNormal
		}
		n := &Notification{
			UserID:      key.UserID,
			ContextID:   key.ContextID,
			Type:        key.Type,
			Level:       level,
			AssocType:   key.AssocType,
			AssocID:     key.AssocID,
			DateCreated: e.clock.Now(),
		}
		if err := s.Insert(ctx, n); err != nil {
			return err
		}
		NotificationsCreated.WithLabelValues(level.String()).Inc()
		built = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build %s notification: %w", key.Type, err)
	}
	return built, nil
}

func (e *Engine) Find(ctx context.Context, f Filter) ([]*Notification, error) {
	return e.store.Find(ctx, f)
}

func (e *Engine) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	return e.store.DeleteMatching(ctx, f)
}

// Atomic runs fn with an engine bound to a single store transaction. Mail
// queued by Create inside fn is sent after the commit and dropped on rollback.
func (e *Engine) Atomic(ctx context.Context, fn func(Emitter) error) error {
	if e.afterCommit != nil {
		return fn(e)
	}
	var pending []func(context.Context)
	err := e.store.Atomic(ctx, func(s Store) error {
		tx := *e
		tx.store = s
		tx.root = e
		tx.afterCommit = &pending
		return fn(&tx)
	})
	if err != nil {
		return err
	}
	for _, send := range pending {
		send(ctx)
	}
	return nil
}

// TransferOwner moves every notification of fromUserID to toUserID, as when
// merging accounts.
func (e *Engine) TransferOwner(ctx context.Context, fromUserID, toUserID int64) error {
	return e.store.TransferOwner(ctx, fromUserID, toUserID)
}

// UpdateState runs the reconciler of each type. A type without a reconciling
// handler fails with ErrMisconfiguredType before any handler runs.
func (e *Engine) UpdateState(ctx context.Context, req Requester, types []Type, userIDs []int64, assocType AssocType, assocID int64) error {
	ctx, span := tracer.Start(ctx, "notification.UpdateState")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.assoc_type", assocType.String()),
		attribute.Int64("notification.assoc_id", assocID),
	)

	reconcilers := make([]Reconciler, len(types))
	for i, t := range types {
		rec, err := e.registry.Reconciler(t, e)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		reconcilers[i] = rec
	}
	for i, rec := range reconcilers {
		start := time.Now()
		err := rec.UpdateState(ctx, req, userIDs, assocType, assocID)
		ReconcileLatency.WithLabelValues(types[i].String()).Observe(time.Since(start).Seconds())
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("reconcile %s for %s %d: %w", types[i], assocType, assocID, err)
		}
	}
	return nil
}

// Display lists a user's notifications in a context with their rendered form
// and marks unread non-trivial ones read. Entries that fail to render are
// logged and left out.
func (e *Engine) Display(ctx context.Context, userID, contextID int64, level Level) ([]Displayed, error) {
	ns, err := e.store.ListForUser(ctx, userID, contextID, level)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	out := make([]Displayed, 0, len(ns))
	for _, n := range ns {
		r, err := e.Render(ctx, n)
		if err != nil {
			e.logger.ErrorContext(ctx, "skipping notification that failed to render",
				"notification_id", n.ID, "type", n.Type.String(), "error", err)
			continue
		}
		if n.Level != LevelTrivial && n.DateRead == nil {
			if err := e.store.MarkRead(ctx, n.ID, now); err != nil {
				return nil, err
			}
			read := now
			n.DateRead = &read
		}
		out = append(out, Displayed{Notification: n, Rendered: r})
	}
	return out, nil
}

// Displayed pairs a notification with its rendered form.
type Displayed struct {
	*Notification
	Rendered *Rendered `json:"rendered"`
}

// SignUnsubscribe returns the unsubscribe token for the triple, or "" when no
// signing secret is configured.
func (e *Engine) SignUnsubscribe(contextID, userID int64, notificationID string) string {
	return e.tokens.Sign(contextID, userID, notificationID)
}

func (e *Engine) VerifyUnsubscribe(token string, contextID, userID int64, notificationID string) bool {
	return e.tokens.Verify(token, contextID, userID, notificationID)
}

// UnsubscribeURL builds the public link carrying a signed token.
func (e *Engine) UnsubscribeURL(contextID, userID int64, notificationID string) (string, error) {
	token := e.SignUnsubscribe(contextID, userID, notificationID)
	if token == "" {
		return "", ErrNoSigningSecret
	}
	q := url.Values{}
	q.Set("context", strconv.FormatInt(contextID, 10))
	q.Set("user", strconv.FormatInt(userID, 10))
	q.Set("notification", notificationID)
	q.Set("token", token)
	return e.baseURL + "/api/v1/unsubscribe?" + q.Encode(), nil
}

// Unsubscribe verifies token and stops emails of the notification's type for
// the user in the context.
func (e *Engine) Unsubscribe(ctx context.Context, token string, contextID, userID int64, notificationID string) (Type, error) {
	if !e.VerifyUnsubscribe(token, contextID, userID, notificationID) {
		return 0, ErrInvalidToken
	}
	n, err := e.store.FindByID(ctx, notificationID, userID)
	if err != nil {
		return 0, err
	}
	if !IsSubscribable(n.Type) {
		return 0, fmt.Errorf("%w: %s", ErrNotSubscribable, n.Type)
	}
	if err := e.prefs.BlockEmail(ctx, userID, contextID, n.Type); err != nil {
		return 0, err
	}
	e.logger.InfoContext(ctx, "user unsubscribed from notification emails",
		"user_id", userID, "context_id", contextID, "type", n.Type.String())
	return n.Type, nil
}

// PreferenceSet is a user's blocked types in one context.
type PreferenceSet struct {
	BlockedInApp []Type `json:"blocked"`
	BlockedEmail []Type `json:"blocked_emailed"`
}

func (e *Engine) Preferences(ctx context.Context, userID, contextID int64) (*PreferenceSet, error) {
	inApp, err := e.prefs.BlockedInApp(ctx, userID, contextID)
	if err != nil {
		return nil, err
	}
	email, err := e.prefs.BlockedEmail(ctx, userID, contextID)
	if err != nil {
		return nil, err
	}
	return &PreferenceSet{BlockedInApp: inApp.Sorted(), BlockedEmail: email.Sorted()}, nil
}

// SetPreferences replaces both blocked sets. Only subscribable types may be
// blocked.
func (e *Engine) SetPreferences(ctx context.Context, userID, contextID int64, p PreferenceSet) error {
	for _, t := range append(append([]Type(nil), p.BlockedInApp...), p.BlockedEmail...) {
		if !IsSubscribable(t) {
			return fmt.Errorf("%w: %s", ErrNotSubscribable, t)
		}
	}
	return e.prefs.SetBlocked(ctx, userID, contextID, p.BlockedInApp, p.BlockedEmail)
}

// mail sends n to its recipient. Delivery problems are absorbed into a
// trivial error notification for the requester; only configuration errors
// are returned.
func (e *Engine) mail(ctx context.Context, req Requester, n *Notification) error {
	if e.mailer == nil || e.users == nil || n.UserID == 0 {
		EmailsProcessed.WithLabelValues(emailSkipped).Inc()
		return nil
	}
	ctx, span := tracer.Start(ctx, "notification.Mail")
	defer span.End()

	recipient, err := e.users.Recipient(ctx, n.UserID)
	if err != nil {
		return e.mailFailed(ctx, req, n, fmt.Errorf("resolve recipient %d: %w", n.UserID, err))
	}
	if recipient.Disabled || recipient.Email == "" {
		EmailsProcessed.WithLabelValues(emailSkipped).Inc()
		return nil
	}

	site := &SiteContext{ID: n.ContextID}
	if e.contexts != nil {
		if site, err = e.contexts.Context(ctx, n.ContextID); err != nil {
			return e.mailFailed(ctx, req, n, fmt.Errorf("resolve context %d: %w", n.ContextID, err))
		}
	}

	rendered, err := e.Render(ctx, n)
	if err != nil {
		return e.mailFailed(ctx, req, n, err)
	}
	data := EmailData{
		ContextName: site.Name,
		Title:       rendered.Title,
		Message:     rendered.Contents.Message,
		ActionURL:   rendered.URL,
	}
	if a := rendered.Contents.Action; a != nil {
		data.ActionLabel, data.ActionURL = a.Label, a.URL
	}
	body, err := RenderEmail(data)
	if err != nil {
		return e.mailFailed(ctx, req, n, fmt.Errorf("render email: %w", err))
	}

	footer := ""
	if IsSubscribable(n.Type) {
		link, err := e.UnsubscribeURL(n.ContextID, n.UserID, n.ID)
		if err != nil {
			EmailsProcessed.WithLabelValues(emailSkipped).Inc()
			return fmt.Errorf("mail %s notification %s: %w", n.Type, n.ID, err)
		}
		footer = Text("notification.unsubscribeNotifications", map[string]string{
			"ContextName": html.EscapeString(site.Name),
			"URL":         html.EscapeString(link),
		})
	}
	body = SpliceUnsubscribe(body, footer)

	if e.ledger != nil {
		claimed, err := e.ledger.Claim(ctx, n.ID)
		switch {
		case err != nil:
			e.logger.WarnContext(ctx, "mail ledger unavailable, sending unrecorded",
				"notification_id", n.ID, "error", err)
		case !claimed:
			EmailsProcessed.WithLabelValues(emailDuplicate).Inc()
			return nil
		}
	}

	err = e.mailer.Send(ctx, Message{
		To:       recipient.Email,
		ToName:   recipient.Name,
		Subject:  rendered.Title,
		HTMLBody: body,
		ReplyTo:  site.ContactEmail,
	})
	if err != nil {
		if e.ledger != nil {
			if rerr := e.ledger.Release(ctx, n.ID); rerr != nil {
				e.logger.WarnContext(ctx, "failed to release mail claim", "notification_id", n.ID, "error", rerr)
			}
		}
		return e.mailFailed(ctx, req, n, err)
	}
	EmailsProcessed.WithLabelValues(emailSent).Inc()
	return nil
}

// mailFailed records a trivial error notification for whoever triggered the
// send. The follow-up is trivial, so it can never trigger mail itself.
func (e *Engine) mailFailed(ctx context.Context, req Requester, n *Notification, cause error) error {
	EmailsProcessed.WithLabelValues(emailFailed).Inc()
	e.logger.ErrorContext(ctx, "notification email failed",
		"notification_id", n.ID, "type", n.Type.String(), "user_id", n.UserID, "error", cause)
	if req.ActorUserID == 0 {
		return nil
	}
	_, err := e.CreateTrivial(ctx, req.ActorUserID, TypeError, Params{
		ContentsSetting: Text("notification.sendFailed", nil),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to record mail failure notification",
			"user_id", req.ActorUserID, "error", err)
	}
	return nil
}
