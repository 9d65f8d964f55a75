package handlers

import (
	"context"
	"fmt"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// PaymentHandler renders payment-required notifications from the queued
// payment they point at.
type PaymentHandler struct {
	base
}

func NewPaymentHandler(t notification.Type, emit notification.Emitter, lk Lookups) *PaymentHandler {
	return &PaymentHandler{base{t: t, emit: emit, lk: lk}}
}

func (h *PaymentHandler) payment(ctx context.Context, n *notification.Notification) (*QueuedPayment, error) {
	if n.Type != notification.TypePaymentRequired {
		return nil, notification.UnsupportedType(n.Type)
	}
	if n.AssocType != notification.AssocQueuedPayment {
		return nil, unexpectedAssoc(n.Type, n.AssocType)
	}
	p, err := h.lk.Payments.QueuedPayment(ctx, n.AssocID)
	if err != nil {
		return nil, fmt.Errorf("queued payment %d: %w", n.AssocID, err)
	}
	return p, nil
}

func (h *PaymentHandler) Message(ctx context.Context, n *notification.Notification) (string, error) {
	p, err := h.payment(ctx, n)
	if err != nil {
		return "", err
	}
	title := ""
	if p.SubmissionID != 0 {
		s, err := h.lk.Submissions.Submission(ctx, p.SubmissionID)
		if err != nil {
			return "", fmt.Errorf("submission %d: %w", p.SubmissionID, err)
		}
		title = s.Title
	}
	return notification.Text("notification.type.paymentRequired", map[string]string{
		"Amount":   p.Amount,
		"Currency": p.Currency,
		"Title":    title,
	}), nil
}

func (h *PaymentHandler) URL(ctx context.Context, n *notification.Notification) (string, error) {
	p, err := h.payment(ctx, n)
	if err != nil {
		return "", err
	}
	return h.lk.Links.Payment(p), nil
}

func (h *PaymentHandler) StyleClass(*notification.Notification) string {
	return notification.StyleWarning
}
