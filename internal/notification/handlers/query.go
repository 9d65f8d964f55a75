package handlers

import (
	"context"
	"fmt"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// QueryHandler renders discussion notifications.
type QueryHandler struct {
	base
}

func NewQueryHandler(t notification.Type, emit notification.Emitter, lk Lookups) *QueryHandler {
	return &QueryHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *QueryHandler) load(ctx context.Context, n *notification.Notification) (*Query, *Submission, error) {
	if n.AssocType != notification.AssocQuery {
		return nil, nil, unexpectedAssoc(n.Type, n.AssocType)
	}
	q, err := h.lk.Queries.Query(ctx, n.AssocID)
	if err != nil {
		return nil, nil, fmt.Errorf("query %d: %w", n.AssocID, err)
	}
	s, err := h.lk.Submissions.Submission(ctx, q.SubmissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("submission %d: %w", q.SubmissionID, err)
	}
	return q, s, nil
}

func (h *QueryHandler) Message(ctx context.Context, n *notification.Notification) (string, error) {
	var key string
	switch n.Type {
	case notification.TypeNewQuery:
		key = "notification.type.queryAdded"
	case notification.TypeQueryActivity:
		key = "notification.type.queryActivity"
	default:
		return "", notification.UnsupportedType(n.Type)
	}
	q, _, err := h.load(ctx, n)
	if err != nil {
		return "", err
	}
	return notification.Text(key, map[string]string{"Subject": q.Subject}), nil
}

// Contents adds a link straight to the discussion.
func (h *QueryHandler) Contents(ctx context.Context, n *notification.Notification) (*notification.Contents, error) {
	message, err := h.Message(ctx, n)
	if err != nil {
		return nil, err
	}
	q, s, err := h.load(ctx, n)
	if err != nil {
		return nil, err
	}
	return &notification.Contents{
		Message: message,
		Action: &notification.LinkAction{
			Label: notification.Text("notification.viewInContext", nil),
			URL:   h.lk.Links.Query(s, q),
		},
	}, nil
}

func (h *QueryHandler) Title(ctx context.Context, n *notification.Notification) (string, error) {
	_, s, err := h.load(ctx, n)
	if err != nil {
		return "", err
	}
	return s.Title, nil
}

func (h *QueryHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	q, s, err := h.load(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Query(s, q), nil
}
