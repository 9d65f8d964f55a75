package notification

import "context"

// Recipient is a mail recipient resolved from a user id.
type Recipient struct {
	ID       int64
	Email    string
	Name     string
	Disabled bool
}

// SiteContext is the journal or press a notification belongs to. ID 0 is the
// site itself.
type SiteContext struct {
	ID           int64
	Name         string
	Path         string
	ContactEmail string
}

// UserDirectory resolves notification recipients.
type UserDirectory interface {
	Recipient(ctx context.Context, userID int64) (*Recipient, error)
}

// ContextDirectory resolves contexts.
type ContextDirectory interface {
	Context(ctx context.Context, contextID int64) (*SiteContext, error)
}
