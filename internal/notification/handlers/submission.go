package handlers

import (
	"context"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var submissionKeys = map[notification.Type]string{
	notification.TypeSubmissionSubmitted: "notification.type.submissionSubmitted",
	notification.TypeMetadataModified:    "notification.type.metadataModified",
	notification.TypeReviewerComment:     "notification.type.reviewerComment",
}

// SubmissionHandler renders submission activity notifications.
type SubmissionHandler struct {
	base
}

func NewSubmissionHandler(t notification.Type, emit notification.Emitter, lk Lookups) *SubmissionHandler {
	return &SubmissionHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *SubmissionHandler) Message(ctx context.Context, n *notification.Notification) (string, error) {
	key, ok := submissionKeys[n.Type]
	if !ok {
		return "", notification.UnsupportedType(n.Type)
	}
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return notification.Text(key, map[string]string{"Title": s.Title}), nil
}

func (h *SubmissionHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Workflow(s), nil
}
