package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

type prefKey struct {
	userID, contextID int64
}

// MemoryPreferences is an in-memory notification.PreferenceStore. Err, when
// set, fails every read.
type MemoryPreferences struct {
	mu    sync.Mutex
	inApp map[prefKey]notification.TypeSet
	email map[prefKey]notification.TypeSet
	Err   error
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{
		inApp: make(map[prefKey]notification.TypeSet),
		email: make(map[prefKey]notification.TypeSet),
	}
}

func (p *MemoryPreferences) BlockedInApp(_ context.Context, userID, contextID int64) (notification.TypeSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return notification.NewTypeSet(p.inApp[prefKey{userID, contextID}].Sorted()...), nil
}

func (p *MemoryPreferences) BlockedEmail(_ context.Context, userID, contextID int64) (notification.TypeSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return notification.NewTypeSet(p.email[prefKey{userID, contextID}].Sorted()...), nil
}

func (p *MemoryPreferences) SetBlocked(_ context.Context, userID, contextID int64, inApp, email []notification.Type) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := prefKey{userID, contextID}
	p.inApp[k] = notification.NewTypeSet(inApp...)
	p.email[k] = notification.NewTypeSet(email...)
	return nil
}

func (p *MemoryPreferences) BlockEmail(_ context.Context, userID, contextID int64, t notification.Type) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := prefKey{userID, contextID}
	if p.email[k] == nil {
		p.email[k] = notification.TypeSet{}
	}
	p.email[k][t] = struct{}{}
	return nil
}

// Mailer records sent messages. SendFunc, when set, decides the result.
type Mailer struct {
	mu       sync.Mutex
	Sent     []notification.Message
	Attempts int
	SendFunc func(msg notification.Message) error
}

func (m *Mailer) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++
	if m.SendFunc != nil {
		if err := m.SendFunc(msg); err != nil {
			return err
		}
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Users is a map-backed notification.UserDirectory.
type Users map[int64]*notification.Recipient

func (u Users) Recipient(_ context.Context, userID int64) (*notification.Recipient, error) {
	r, ok := u[userID]
	if !ok {
		return nil, notification.ErrNotFound
	}
	return r, nil
}

// Contexts is a map-backed notification.ContextDirectory. Unknown ids resolve
// to an unnamed context.
type Contexts map[int64]*notification.SiteContext

func (c Contexts) Context(_ context.Context, contextID int64) (*notification.SiteContext, error) {
	if sc, ok := c[contextID]; ok {
		return sc, nil
	}
	return &notification.SiteContext{ID: contextID}, nil
}

// Clock is a settable notification.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
