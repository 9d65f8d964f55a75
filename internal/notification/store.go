package notification

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a notification does not exist or is not owned
// by the requested user.
var ErrNotFound = errors.New("notification: not found")

// Filter selects notifications. Zero fields are wildcards.
type Filter struct {
	AssocType AssocType
	AssocID   int64
	UserID    int64
	Type      Type
	ContextID int64
	Level     Level
}

// Matches reports whether n satisfies f.
func (f Filter) Matches(n *Notification) bool {
	switch {
	case f.AssocType != AssocNone && n.AssocType != f.AssocType:
		return false
	case f.AssocID != 0 && n.AssocID != f.AssocID:
		return false
	case f.UserID != 0 && n.UserID != f.UserID:
		return false
	case f.Type != 0 && n.Type != f.Type:
		return false
	case f.ContextID != 0 && n.ContextID != f.ContextID:
		return false
	case f.Level != 0 && n.Level != f.Level:
		return false
	}
	return true
}

// Store persists notifications and their settings. It holds no business
// rules.
type Store interface {
	// Insert assigns n an ID and persists it.
	Insert(ctx context.Context, n *Notification) error
	// FindByID returns ErrNotFound when the row is missing, or when userID is
	// non-zero and does not own it.
	FindByID(ctx context.Context, id string, userID int64) (*Notification, error)
	Find(ctx context.Context, f Filter) ([]*Notification, error)
	// FindOne returns the oldest match or ErrNotFound.
	FindOne(ctx context.Context, f Filter) (*Notification, error)
	ListForUser(ctx context.Context, userID, contextID int64, level Level) ([]*Notification, error)
	Delete(ctx context.Context, id string) error
	DeleteMatching(ctx context.Context, f Filter) (int64, error)
	MarkRead(ctx context.Context, id string, when time.Time) error
	TransferOwner(ctx context.Context, fromUserID, toUserID int64) error
	Settings(ctx context.Context, notificationID string) ([]Setting, error)
	PutSettings(ctx context.Context, settings []Setting) error
	// Atomic runs fn against a Store whose writes commit together.
	Atomic(ctx context.Context, fn func(Store) error) error
}
