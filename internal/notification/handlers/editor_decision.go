package handlers

import (
	"context"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var decisionKeys = map[notification.Type]string{
	notification.TypeDecisionInitiateReview:  "notification.type.editorDecisionInitiateReview",
	notification.TypeDecisionAccept:          "notification.type.editorDecisionAccept",
	notification.TypeDecisionExternalReview:  "notification.type.editorDecisionExternalReview",
	notification.TypeDecisionPendingRevision: "notification.type.editorDecisionPendingRevisions",
	notification.TypeDecisionResubmit:        "notification.type.editorDecisionResubmit",
	notification.TypeDecisionNewRound:        "notification.type.editorDecisionNewRound",
	notification.TypeDecisionDecline:         "notification.type.editorDecisionDecline",
	notification.TypeDecisionRevertDecline:   "notification.type.editorDecisionRevertDecline",
	notification.TypeDecisionSendToProd:      "notification.type.editorDecisionSendToProduction",
}

// EditorDecisionHandler serves the whole decision family. A new decision
// supersedes every earlier one, so UpdateState replaces instead of
// projecting.
type EditorDecisionHandler struct {
	base
}

func NewEditorDecisionHandler(t notification.Type, emit notification.Emitter, lk Lookups) *EditorDecisionHandler {
	return &EditorDecisionHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *EditorDecisionHandler) Message(ctx context.Context, n *notification.Notification) (string, error) {
	key, ok := decisionKeys[n.Type]
	if !ok {
		return "", notification.UnsupportedType(n.Type)
	}
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return notification.Text(key, map[string]string{"Title": s.Title}), nil
}

func (h *EditorDecisionHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	s, err := h.submissionOf(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.AuthorDashboard(s), nil
}

func (h *EditorDecisionHandler) StyleClass(n *notification.Notification) string {
	if n.Type == notification.TypeDecisionDecline {
		return notification.StyleWarning
	}
	return notification.StyleInfo
}

// UpdateState deletes every decision notification of each user on the
// submission and records the handler's decision in their place, all in one
// transaction. Revision requests are tasks; other decisions are mailed.
func (h *EditorDecisionHandler) UpdateState(ctx context.Context, req notification.Requester, userIDs []int64, assocType notification.AssocType, assocID int64) error {
	if _, ok := decisionKeys[h.t]; !ok {
		return notification.UnsupportedType(h.t)
	}
	if err := requireSubmissionAssoc(h.t, assocType); err != nil {
		return err
	}
	s, err := h.submission(ctx, assocType, assocID)
	if err != nil {
		return err
	}

	level := notification.LevelNormal
	if h.t == notification.TypeDecisionPendingRevision {
		level = notification.LevelTask
	}
	return h.emit.Atomic(ctx, func(emit notification.Emitter) error {
		for _, u := range userIDs {
			if u == 0 {
				continue
			}
			for _, t := range notification.DecisionTypes() {
				_, err := emit.DeleteMatching(ctx, notification.Filter{
					AssocType: notification.AssocSubmission,
					AssocID:   s.ID,
					UserID:    u,
					Type:      t,
					ContextID: s.ContextID,
				})
				if err != nil {
					return err
				}
			}
			_, err := emit.Create(ctx, req, notification.CreateInput{
				UserID:    u,
				Type:      h.t,
				ContextID: s.ContextID,
				AssocType: notification.AssocSubmission,
				AssocID:   s.ID,
				Level:     level,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
