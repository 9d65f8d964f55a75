package handlers

import (
	"context"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var editorAssignmentStages = map[notification.Type]Stage{
	notification.TypeEditorAssignSubmit:   StageSubmission,
	notification.TypeEditorAssignInternal: StageInternalReview,
	notification.TypeEditorAssignExternal: StageExternalReview,
	notification.TypeEditorAssignEditing:  StageEditing,
	notification.TypeEditorAssignProd:     StageProduction,
}

// EditorAssignmentHandler keeps an unaddressed task notification on a
// submission while its current stage has no editor.
type EditorAssignmentHandler struct {
	base
}

func NewEditorAssignmentHandler(t notification.Type, emit notification.Emitter, lk Lookups) *EditorAssignmentHandler {
	return &EditorAssignmentHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *EditorAssignmentHandler) stage(t notification.Type) (Stage, error) {
	stage, ok := editorAssignmentStages[t]
	if !ok {
		return 0, notification.UnsupportedType(t)
	}
	return stage, nil
}

func (h *EditorAssignmentHandler) Message(_ context.Context, n *notification.Notification) (string, error) {
	stage, err := h.stage(n.Type)
	if err != nil {
		return "", err
	}
	return notification.Text("notification.type.editorAssignment", map[string]string{"Stage": stage.String()}), nil
}

func (h *EditorAssignmentHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Workflow(s), nil
}

func (h *EditorAssignmentHandler) StyleClass(*notification.Notification) string {
	return notification.StyleWarning
}

func (h *EditorAssignmentHandler) VisibleToAll(*notification.Notification) bool { return true }

// UpdateState ignores userIDs: the notification is addressed to nobody.
func (h *EditorAssignmentHandler) UpdateState(ctx context.Context, _ notification.Requester, _ []int64, assocType notification.AssocType, assocID int64) error {
	if err := requireSubmissionAssoc(h.t, assocType); err != nil {
		return err
	}
	stage, err := h.stage(h.t)
	if err != nil {
		return err
	}
	s, err := h.submission(ctx, assocType, assocID)
	if err != nil {
		return err
	}

	resolved := s.StageID != stage
	if !resolved {
		if resolved, err = h.lk.Stages.EditorAssigned(ctx, s.ID, stage); err != nil {
			return err
		}
	}
	var want []int64
	if !resolved {
		want = []int64{0}
	}
	return project(ctx, h.emit, h.t, s.ContextID, s.ID, want, nil)
}
