package notification

import (
	"fmt"
	"time"
)

// Level controls how a notification behaves once created.
type Level int

const (
	// LevelTrivial notifications are one-shot UI feedback. They are never
	// emailed, never marked read and may be bulk deleted.
	LevelTrivial Level = 1
	// LevelNormal notifications are informational and may trigger email.
	LevelNormal Level = 2
	// LevelTask notifications are standing alerts kept in sync with workflow
	// state by a Reconciler.
	LevelTask Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelTrivial:
		return "trivial"
	case LevelNormal:
		return "normal"
	case LevelTask:
		return "task"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Notification is a single notification record. A zero UserID means the
// notification is unaddressed, a zero ContextID means it is site scoped and a
// zero AssocType means it is not about any entity.
type Notification struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id,omitempty"`
	ContextID   int64      `json:"context_id,omitempty"`
	Type        Type       `json:"type"`
	Level       Level      `json:"level"`
	AssocType   AssocType  `json:"assoc_type,omitempty"`
	AssocID     int64      `json:"assoc_id,omitempty"`
	DateCreated time.Time  `json:"date_created"`
	DateRead    *time.Time `json:"date_read,omitempty"`
}

// Setting is a key/value payload row owned by a notification.
type Setting struct {
	NotificationID string `json:"notification_id"`
	Name           string `json:"name"`
	Locale         string `json:"locale,omitempty"`
	Value          string `json:"value"`
}

// Params is rendering payload persisted as settings when a notification is
// created. A value is either a plain string or a map[string]string keyed by
// locale.
type Params map[string]any

// settings flattens p into setting rows for the given notification.
func (p Params) settings(notificationID string) []Setting {
	out := make([]Setting, 0, len(p))
	for name, v := range p {
		switch value := v.(type) {
		case map[string]string:
			for locale, localized := range value {
				out = append(out, Setting{NotificationID: notificationID, Name: name, Locale: locale, Value: localized})
			}
		case string:
			out = append(out, Setting{NotificationID: notificationID, Name: name, Value: value})
		default:
			out = append(out, Setting{NotificationID: notificationID, Name: name, Value: fmt.Sprint(value)})
		}
	}
	return out
}

// SettingValue returns the value of the named setting. A localized value for
// locale wins over the unlocalized one.
func SettingValue(settings []Setting, name, locale string) (string, bool) {
	var fallback string
	found := false
	for _, s := range settings {
		if s.Name != name {
			continue
		}
		if locale != "" && s.Locale == locale {
			return s.Value, true
		}
		if !found || s.Locale == "" {
			fallback = s.Value
			found = true
		}
	}
	return fallback, found
}

// LinkAction is an optional call to action attached to rendered contents.
type LinkAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Contents is the message plus optional rich payload.
type Contents struct {
	Message string      `json:"message"`
	Action  *LinkAction `json:"action,omitempty"`
}

// Rendered is the display form of a notification, shared by the in-app list
// and the email composer.
type Rendered struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Contents     Contents `json:"contents"`
	StyleClass   string   `json:"style_class"`
	IconClass    string   `json:"icon_class"`
	URL          string   `json:"url,omitempty"`
	VisibleToAll bool     `json:"visible_to_all"`
}

// Requester identifies who triggered an engine call and in which context.
// ActorUserID receives the fallback error notification when mail fails.
type Requester struct {
	ContextID   int64
	ActorUserID int64
}

// Key is the symbolic key used by Build for find-or-create. A zero UserID
// matches any user on lookup. ContextID always matches exactly, so a zero
// ContextID finds only site-wide rows.
type Key struct {
	ContextID int64
	Level     Level
	Type      Type
	AssocType AssocType
	AssocID   int64
	UserID    int64
}

// CreateInput describes a notification to create. A zero Level means
// LevelNormal.
type CreateInput struct {
	UserID        int64
	Type          Type
	ContextID     int64
	AssocType     AssocType
	AssocID       int64
	Level         Level
	Params        Params
	SuppressEmail bool
}
