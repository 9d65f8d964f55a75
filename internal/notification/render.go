package notification

import (
	"context"
	"fmt"
)

// Style classes applied by the engine to types it renders itself.
const (
	StyleSuccess   = "notifySuccess"
	StyleWarning   = "notifyWarning"
	StyleError     = "notifyError"
	StyleInfo      = "notifyInfo"
	StyleForbidden = "notifyForbidden"
	StyleHelp      = "notifyHelp"
	StyleFormError = "notifyFormError"

	IconSuccess   = "notifyIconSuccess"
	IconWarning   = "notifyIconWarning"
	IconError     = "notifyIconError"
	IconInfo      = "notifyIconInfo"
	IconForbidden = "notifyIconForbidden"
	IconHelp      = "notifyIconHelp"
	IconPageAlert = "notifyIconPageAlert"
)

// ContentsSetting carries the pre-rendered message of engine-rendered types.
const ContentsSetting = "contents"

type engineStyle struct {
	style, icon, messageKey string
}

// engineRendered lists the types whose payload lives in settings rather than
// in domain lookups. They need no handler.
var engineRendered = map[Type]engineStyle{
	TypeSuccess:           {StyleSuccess, IconSuccess, "common.changesSaved"},
	TypeWarning:           {StyleWarning, IconWarning, ""},
	TypeError:             {StyleError, IconError, "common.unexpectedError"},
	TypeForbidden:         {StyleForbidden, IconForbidden, "common.forbidden"},
	TypeInformation:       {StyleInfo, IconInfo, ""},
	TypeHelp:              {StyleHelp, IconHelp, ""},
	TypeFormError:         {StyleFormError, IconError, "common.formErrors"},
	TypeReviewRoundStatus: {StyleInfo, IconInfo, "notification.reviewRoundStatus"},
}

// Render produces the display form of n. The type's handler is asked first;
// anything it declines falls back to engine defaults. Handler errors, such as
// a missing associated entity, are returned.
func (e *Engine) Render(ctx context.Context, n *Notification) (*Rendered, error) {
	ctx, span := tracer.Start(ctx, "notification.Render")
	defer span.End()

	h := e.registry.Resolve(n.Type, e)

	message, err := h.Message(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("render message of %s %s: %w", n.Type, n.ID, err)
	}
	if message == "" {
		if message, err = e.defaultMessage(ctx, n); err != nil {
			return nil, err
		}
	}

	contents, err := h.Contents(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("render contents of %s %s: %w", n.Type, n.ID, err)
	}
	if contents == nil {
		contents = &Contents{Message: message}
	}

	title, err := h.Title(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("render title of %s %s: %w", n.Type, n.ID, err)
	}
	if title == "" {
		title = Text("notification.notification", nil)
	}

	url, err := h.URL(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("render url of %s %s: %w", n.Type, n.ID, err)
	}

	style, icon := h.StyleClass(n), h.IconClass(n)
	if def, ok := engineRendered[n.Type]; ok {
		if style == "" {
			style = def.style
		}
		if icon == "" {
			icon = def.icon
		}
	}
	if icon == "" {
		icon = IconPageAlert
	}

	return &Rendered{
		Title:        title,
		Message:      message,
		Contents:     *contents,
		StyleClass:   style,
		IconClass:    icon,
		URL:          url,
		VisibleToAll: h.VisibleToAll(n),
	}, nil
}

// defaultMessage renders engine-owned types from their contents setting and
// leaves every other type blank.
func (e *Engine) defaultMessage(ctx context.Context, n *Notification) (string, error) {
	def, ok := engineRendered[n.Type]
	if !ok {
		return "", nil
	}
	settings, err := e.store.Settings(ctx, n.ID)
	if err != nil {
		return "", fmt.Errorf("load settings of %s: %w", n.ID, err)
	}
	if v, ok := SettingValue(settings, ContentsSetting, e.locale); ok && v != "" {
		return v, nil
	}
	if def.messageKey == "" {
		return "", nil
	}
	return Text(def.messageKey, nil), nil
}
