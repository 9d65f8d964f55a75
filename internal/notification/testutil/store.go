// Package testutil provides in-memory fakes of the notification ports.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

type stored struct {
	n   notification.Notification
	seq int
}

// MemoryStore is an in-memory notification.Store. Atomic rolls back on error
// but does not isolate concurrent transactions.
type MemoryStore struct {
	mu       sync.Mutex
	seq      int
	rows     map[string]*stored
	settings map[string][]notification.Setting
	inTx     bool

	// InsertErr, when set, fails every Insert.
	InsertErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:     make(map[string]*stored),
		settings: make(map[string][]notification.Setting),
	}
}

func (s *MemoryStore) Insert(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.seq++
	if n.ID == "" {
		n.ID = fmt.Sprintf("n-%d", s.seq)
	}
	s.rows[n.ID] = &stored{n: *n, seq: s.seq}
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string, userID int64) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || (userID != 0 && row.n.UserID != userID) {
		return nil, notification.ErrNotFound
	}
	n := row.n
	return &n, nil
}

func (s *MemoryStore) sorted(f notification.Filter) []*stored {
	var out []*stored
	for _, row := range s.rows {
		if f.Matches(&row.n) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].n.DateCreated.Equal(out[j].n.DateCreated) {
			return out[i].n.DateCreated.Before(out[j].n.DateCreated)
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (s *MemoryStore) Find(_ context.Context, f notification.Filter) ([]*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.Notification
	for _, row := range s.sorted(f) {
		n := row.n
		out = append(out, &n)
	}
	return out, nil
}

func (s *MemoryStore) FindOne(ctx context.Context, f notification.Filter) (*notification.Notification, error) {
	all, _ := s.Find(ctx, f)
	if len(all) == 0 {
		return nil, notification.ErrNotFound
	}
	return all[0], nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID, contextID int64, level notification.Level) ([]*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sorted(notification.Filter{UserID: userID, Level: level})
	var out []*notification.Notification
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].n.ContextID != contextID {
			continue
		}
		n := rows[i].n
		out = append(out, &n)
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	delete(s.settings, id)
	return nil
}

func (s *MemoryStore) DeleteMatching(_ context.Context, f notification.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == (notification.Filter{}) {
		return 0, fmt.Errorf("refusing an unfiltered delete")
	}
	var n int64
	for id, row := range s.rows {
		if f.Matches(&row.n) {
			delete(s.rows, id)
			delete(s.settings, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok && row.n.DateRead == nil {
		t := when
		row.n.DateRead = &t
	}
	return nil
}

func (s *MemoryStore) TransferOwner(_ context.Context, fromUserID, toUserID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.n.UserID == fromUserID {
			row.n.UserID = toUserID
		}
	}
	return nil
}

func (s *MemoryStore) Settings(_ context.Context, notificationID string) ([]notification.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Setting(nil), s.settings[notificationID]...), nil
}

func (s *MemoryStore) PutSettings(_ context.Context, settings []notification.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range settings {
		existing := s.settings[in.NotificationID]
		replaced := false
		for i, cur := range existing {
			if cur.Name == in.Name && cur.Locale == in.Locale {
				existing[i] = in
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, in)
		}
		s.settings[in.NotificationID] = existing
	}
	return nil
}

// Atomic restores the previous contents when fn fails.
func (s *MemoryStore) Atomic(_ context.Context, fn func(notification.Store) error) error {
	s.mu.Lock()
	if s.inTx {
		s.mu.Unlock()
		return fn(s)
	}
	s.inTx = true
	rows, settings := s.snapshot()
	s.mu.Unlock()

	err := fn(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTx = false
	if err != nil {
		s.rows, s.settings = rows, settings
	}
	return err
}

func (s *MemoryStore) snapshot() (map[string]*stored, map[string][]notification.Setting) {
	rows := make(map[string]*stored, len(s.rows))
	for id, row := range s.rows {
		cp := *row
		rows[id] = &cp
	}
	settings := make(map[string][]notification.Setting, len(s.settings))
	for id, v := range s.settings {
		settings[id] = append([]notification.Setting(nil), v...)
	}
	return rows, settings
}

// All returns every stored notification in creation order.
func (s *MemoryStore) All() []*notification.Notification {
	all, _ := s.Find(context.Background(), notification.Filter{})
	return all
}

// Count returns how many notifications match f.
func (s *MemoryStore) Count(f notification.Filter) int {
	all, _ := s.Find(context.Background(), f)
	return len(all)
}
