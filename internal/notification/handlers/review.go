package handlers

import (
	"context"
	"fmt"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var reviewKeys = map[notification.Type]string{
	notification.TypeReviewAssignment:     "notification.type.reviewAssignment",
	notification.TypeReviewAssignmentEdit: "notification.type.reviewAssignmentUpdated",
	notification.TypeAllReviewsIn:         "notification.type.allReviewsIn",
	notification.TypeAllRevisionsIn:       "notification.type.allRevisionsIn",
}

// ReviewHandler renders reviewer and review round notifications. Reviewers
// are sent to their review page, editors to the workflow.
type ReviewHandler struct {
	base
}

func NewReviewHandler(t notification.Type, emit notification.Emitter, lk Lookups) *ReviewHandler {
	return &ReviewHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *ReviewHandler) Message(ctx context.Context, n *notification.Notification) (string, error) {
	key, ok := reviewKeys[n.Type]
	if !ok {
		return "", notification.UnsupportedType(n.Type)
	}
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return notification.Text(key, map[string]string{"Title": s.Title}), nil
}

func (h *ReviewHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	if n.AssocType != notification.AssocReviewAssignment {
		return h.lk.Links.Workflow(s), nil
	}
	r, err := h.lk.Reviews.ReviewAssignment(ctx, n.AssocID)
	if err != nil {
		return "", fmt.Errorf("review assignment %d: %w", n.AssocID, err)
	}
	return h.lk.Links.Review(s, r), nil
}

func (h *ReviewHandler) StyleClass(n *notification.Notification) string {
	if n.Type == notification.TypeAllReviewsIn {
		return notification.StyleInfo
	}
	return ""
}
