package handlers

import (
	"context"
	"fmt"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// AnnouncementHandler renders new-announcement notifications.
type AnnouncementHandler struct {
	base
}

func NewAnnouncementHandler(t notification.Type, emit notification.Emitter, lk Lookups) *AnnouncementHandler {
	return &AnnouncementHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *AnnouncementHandler) announcement(ctx context.Context, n *notification.Notification) (*Announcement, error) {
	if n.Type != notification.TypeNewAnnouncement {
		return nil, notification.UnsupportedType(n.Type)
	}
	if n.AssocType != notification.AssocAnnouncement {
		return nil, unexpectedAssoc(n.Type, n.AssocType)
	}
	a, err := h.lk.Announcements.Announcement(ctx, n.AssocID)
	if err != nil {
		return nil, fmt.Errorf("announcement %d: %w", n.AssocID, err)
	}
	return a, nil
}

func (h *AnnouncementHandler) Message(ctx context.Context, n *notification.Notification) (string, error) {
	a, err := h.announcement(ctx, n)
	if err != nil {
		return "", err
	}
	return notification.Text("notification.type.newAnnouncement", map[string]string{"Title": a.Title}), nil
}

func (h *AnnouncementHandler) Title(ctx context.Context, n *notification.Notification) (string, error) {
	a, err := h.announcement(ctx, n)
	if err != nil {
		return "", err
	}
	return a.Title, nil
}

func (h *AnnouncementHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	a, err := h.announcement(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Announcement(a), nil
}

func (h *AnnouncementHandler) VisibleToAll(*notification.Notification) bool { return true }
