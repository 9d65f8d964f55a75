package notification

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned by a handler asked to serve a type outside
// its family.
var ErrUnsupportedType = errors.New("notification: type not supported by handler")

// UnsupportedType wraps ErrUnsupportedType with the offending type.
func UnsupportedType(t Type) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// TypeHandler renders one notification type. Returning a zero value declines,
// letting the engine apply its defaults.
type TypeHandler interface {
	Message(ctx context.Context, n *Notification) (string, error)
	Contents(ctx context.Context, n *Notification) (*Contents, error)
	Title(ctx context.Context, n *Notification) (string, error)
	URL(ctx context.Context, n *Notification) (string, error)
	StyleClass(n *Notification) string
	IconClass(n *Notification) string
	VisibleToAll(n *Notification) bool
}

// Reconciler is implemented by handlers whose notifications mirror workflow
// state. UpdateState must be idempotent: a second call with no intervening
// change leaves the store untouched.
type Reconciler interface {
	UpdateState(ctx context.Context, req Requester, userIDs []int64, assocType AssocType, assocID int64) error
}

// Emitter is the slice of the engine lent to handlers so they can write their
// own notifications.
type Emitter interface {
	Create(ctx context.Context, req Requester, in CreateInput) (*Notification, error)
	Build(ctx context.Context, key Key) (*Notification, error)
	Find(ctx context.Context, f Filter) ([]*Notification, error)
	DeleteMatching(ctx context.Context, f Filter) (int64, error)
	// Atomic runs fn against an Emitter whose writes commit together. Mail
	// queued inside fn is sent after the commit.
	Atomic(ctx context.Context, fn func(Emitter) error) error
}

// DefaultHandler declines every rendering question. Handlers embed it and
// override what they know.
type DefaultHandler struct{}

func (DefaultHandler) Message(context.Context, *Notification) (string, error)     { return "", nil }
func (DefaultHandler) Contents(context.Context, *Notification) (*Contents, error) { return nil, nil }
func (DefaultHandler) Title(context.Context, *Notification) (string, error)       { return "", nil }
func (DefaultHandler) URL(context.Context, *Notification) (string, error)         { return "", nil }
func (DefaultHandler) StyleClass(*Notification) string                            { return "" }
func (DefaultHandler) IconClass(*Notification) string                             { return "" }
func (DefaultHandler) VisibleToAll(*Notification) bool                            { return false }
