package handlers

import (
	"context"
	"time"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// EditingProductionHandler drives the four copyediting and production status
// notifications held by the editors of the submission's current stage.
//
// In copyediting, with no copyedited file yet, editors see "assign a
// copyeditor" until an editing discussion opens and "awaiting copyedits"
// while one is open. Production works the same way with publication formats
// and production discussions.
type EditingProductionHandler struct {
	base
}

func NewEditingProductionHandler(t notification.Type, emit notification.Emitter, lk Lookups) *EditingProductionHandler {
	return &EditingProductionHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *EditingProductionHandler) Message(_ context.Context, n *notification.Notification) (string, error) {
	switch n.Type {
	case notification.TypeAssignCopyeditor:
		return notification.Text("notification.type.assignCopyeditors", nil), nil
	case notification.TypeAwaitingCopyedits:
		return notification.Text("notification.type.awaitingCopyedits", nil), nil
	case notification.TypeAssignProductionUser:
		return notification.Text("notification.type.assignProductionUser", nil), nil
	case notification.TypeAwaitingRepresentations:
		return notification.Text("notification.type.awaitingRepresentations", nil), nil
	}
	return "", notification.UnsupportedType(n.Type)
}

func (h *EditingProductionHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Workflow(s), nil
}

func (h *EditingProductionHandler) StyleClass(*notification.Notification) string {
	return notification.StyleInfo
}

// stageOf returns the stage a type belongs to.
func (h *EditingProductionHandler) stageOf(t notification.Type) (Stage, error) {
	switch t {
	case notification.TypeAssignCopyeditor, notification.TypeAwaitingCopyedits:
		return StageEditing, nil
	case notification.TypeAssignProductionUser, notification.TypeAwaitingRepresentations:
		return StageProduction, nil
	}
	return 0, notification.UnsupportedType(t)
}

// needed reports whether the notification should exist for the submission.
func (h *EditingProductionHandler) needed(ctx context.Context, s *Submission, stage Stage) (bool, error) {
	if s.StageID != stage {
		return false, nil
	}
	var (
		produced int
		err      error
	)
	if stage == StageEditing {
		produced, err = h.lk.Files.CountFiles(ctx, s.ID, FileCopyedited, time.Time{})
	} else {
		produced, err = h.lk.Representations.CountRepresentations(ctx, s.ID)
	}
	if err != nil || produced > 0 {
		return false, err
	}
	open, err := h.lk.Queries.OpenQueries(ctx, s.ID, stage)
	if err != nil {
		return false, err
	}
	awaiting := h.t == notification.TypeAwaitingCopyedits || h.t == notification.TypeAwaitingRepresentations
	return awaiting == (open > 0), nil
}

// UpdateState reconciles only the rows of userIDs when given. Otherwise the
// stage's editors are the full set of holders.
func (h *EditingProductionHandler) UpdateState(ctx context.Context, _ notification.Requester, userIDs []int64, assocType notification.AssocType, assocID int64) error {
	if err := requireSubmissionAssoc(h.t, assocType); err != nil {
		return err
	}
	stage, err := h.stageOf(h.t)
	if err != nil {
		return err
	}
	s, err := h.submission(ctx, assocType, assocID)
	if err != nil {
		return err
	}
	needed, err := h.needed(ctx, s, stage)
	if err != nil {
		return err
	}
	var want []int64
	if needed {
		want = userIDs
		if len(want) == 0 {
			if want, err = h.lk.Stages.StageEditors(ctx, s.ID, stage); err != nil {
				return err
			}
		}
	}
	return project(ctx, h.emit, h.t, s.ContextID, s.ID, want, userIDs)
}
