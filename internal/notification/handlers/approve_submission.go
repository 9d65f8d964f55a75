package handlers

import (
	"context"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// ApproveSubmissionHandler manages the catalog approval notifications of a
// submission in production. "Approve submission" and "format needs approved
// submission" stand until the submission is published; "visit catalog"
// stands once it is.
type ApproveSubmissionHandler struct {
	base
}

func NewApproveSubmissionHandler(t notification.Type, emit notification.Emitter, lk Lookups) *ApproveSubmissionHandler {
	return &ApproveSubmissionHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *ApproveSubmissionHandler) Message(_ context.Context, n *notification.Notification) (string, error) {
	switch n.Type {
	case notification.TypeApproveSubmission:
		return notification.Text("notification.type.approveSubmission", nil), nil
	case notification.TypeFormatNeedsApproval:
		return notification.Text("notification.type.formatNeedsApprovedSubmission", nil), nil
	case notification.TypeVisitCatalog:
		return notification.Text("notification.type.visitCatalog", nil), nil
	}
	return "", notification.UnsupportedType(n.Type)
}

func (h *ApproveSubmissionHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Catalog(s), nil
}

func (h *ApproveSubmissionHandler) StyleClass(n *notification.Notification) string {
	if n.Type == notification.TypeVisitCatalog {
		return notification.StyleSuccess
	}
	return notification.StyleWarning
}

func (h *ApproveSubmissionHandler) VisibleToAll(*notification.Notification) bool { return true }

func (h *ApproveSubmissionHandler) needed(ctx context.Context, s *Submission) (bool, error) {
	if s.StageID != StageProduction {
		return false, nil
	}
	switch h.t {
	case notification.TypeApproveSubmission:
		return !s.Published(), nil
	case notification.TypeFormatNeedsApproval:
		if s.Published() {
			return false, nil
		}
		formats, err := h.lk.Representations.CountRepresentations(ctx, s.ID)
		return formats > 0, err
	case notification.TypeVisitCatalog:
		return s.Published(), nil
	}
	return false, notification.UnsupportedType(h.t)
}

func (h *ApproveSubmissionHandler) UpdateState(ctx context.Context, _ notification.Requester, _ []int64, assocType notification.AssocType, assocID int64) error {
	if err := requireSubmissionAssoc(h.t, assocType); err != nil {
		return err
	}
	s, err := h.submission(ctx, assocType, assocID)
	if err != nil {
		return err
	}
	needed, err := h.needed(ctx, s)
	if err != nil {
		return err
	}
	var want []int64
	if needed {
		want = []int64{0}
	}
	return project(ctx, h.emit, h.t, s.ContextID, s.ID, want, nil)
}
