package handlers

import (
	"context"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// PendingRevisionsHandler keeps a task notification on each author while the
// last decision of a review stage asked for revisions and no revision has
// been uploaded since.
type PendingRevisionsHandler struct {
	base
}

func NewPendingRevisionsHandler(t notification.Type, emit notification.Emitter, lk Lookups) *PendingRevisionsHandler {
	return &PendingRevisionsHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *PendingRevisionsHandler) review(t notification.Type) (Stage, FileClass, error) {
	switch t {
	case notification.TypePendingInternalRevs:
		return StageInternalReview, FileInternalReviewRevision, nil
	case notification.TypePendingExternalRevs:
		return StageExternalReview, FileReviewRevision, nil
	}
	return 0, "", notification.UnsupportedType(t)
}

func (h *PendingRevisionsHandler) Message(_ context.Context, n *notification.Notification) (string, error) {
	switch n.Type {
	case notification.TypePendingInternalRevs:
		return notification.Text("notification.type.pendingInternalRevisions", nil), nil
	case notification.TypePendingExternalRevs:
		return notification.Text("notification.type.pendingExternalRevisions", nil), nil
	}
	return "", notification.UnsupportedType(n.Type)
}

func (h *PendingRevisionsHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.AuthorDashboard(s), nil
}

func (h *PendingRevisionsHandler) StyleClass(*notification.Notification) string {
	return notification.StyleWarning
}

func (h *PendingRevisionsHandler) UpdateState(ctx context.Context, _ notification.Requester, userIDs []int64, assocType notification.AssocType, assocID int64) error {
	if err := requireSubmissionAssoc(h.t, assocType); err != nil {
		return err
	}
	stage, class, err := h.review(h.t)
	if err != nil {
		return err
	}
	s, err := h.submission(ctx, assocType, assocID)
	if err != nil {
		return err
	}

	pending := false
	last, err := h.lk.Decisions.LastDecision(ctx, s.ID, stage)
	if err != nil {
		return err
	}
	if last != nil && last.Type == notification.TypeDecisionPendingRevision {
		uploaded, err := h.lk.Files.CountFiles(ctx, s.ID, class, last.DateDecided)
		if err != nil {
			return err
		}
		pending = uploaded == 0
	}

	var want []int64
	if pending {
		want = userIDs
		if len(want) == 0 {
			if want, err = h.lk.Stages.Authors(ctx, s.ID); err != nil {
				return err
			}
		}
	}
	return project(ctx, h.emit, h.t, s.ContextID, s.ID, want, userIDs)
}
