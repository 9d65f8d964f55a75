package handlers

import (
	"context"
	"fmt"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

// base carries what every handler is built with.
type base struct {
	notification.DefaultHandler
	t    notification.Type
	emit notification.Emitter
	lk   Lookups
}

// submission resolves the submission a notification is ultimately about.
func (b base) submission(ctx context.Context, assocType notification.AssocType, assocID int64) (*Submission, error) {
	submissionID := assocID
	switch assocType {
	case notification.AssocSubmission:
	case notification.AssocQuery:
		q, err := b.lk.Queries.Query(ctx, assocID)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", assocID, err)
		}
		submissionID = q.SubmissionID
	case notification.AssocReviewAssignment:
		r, err := b.lk.Reviews.ReviewAssignment(ctx, assocID)
		if err != nil {
			return nil, fmt.Errorf("review assignment %d: %w", assocID, err)
		}
		submissionID = r.SubmissionID
	case notification.AssocReviewRound:
		r, err := b.lk.Reviews.ReviewRound(ctx, assocID)
		if err != nil {
			return nil, fmt.Errorf("review round %d: %w", assocID, err)
		}
		submissionID = r.SubmissionID
	default:
		return nil, unexpectedAssoc(b.t, assocType)
	}
	s, err := b.lk.Submissions.Submission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("submission %d: %w", submissionID, err)
	}
	return s, nil
}

func (b base) submissionOf(ctx context.Context, n *notification.Notification) (*Submission, error) {
	return b.submission(ctx, n.AssocType, n.AssocID)
}

// project makes the task notifications of type t on a submission match want.
// With an empty scope the wanted users are the only holders afterwards and a
// nil want deletes them all. With a scope only rows of scoped users are built
// or deleted, so reconciling one user leaves everybody else's tasks alone.
// Deletes are by assoc, so a duplicate left by a concurrent pass disappears as
// soon as the condition resolves.
func project(ctx context.Context, emit notification.Emitter, t notification.Type, contextID, submissionID int64, want, scope []int64) error {
	filter := notification.Filter{
		AssocType: notification.AssocSubmission,
		AssocID:   submissionID,
		Type:      t,
		ContextID: contextID,
	}
	var inScope map[int64]bool
	if len(scope) > 0 {
		inScope = make(map[int64]bool, len(scope))
		for _, u := range scope {
			inScope[u] = true
		}
		var scoped []int64
		for _, u := range want {
			if inScope[u] {
				scoped = append(scoped, u)
			}
		}
		want = scoped
	}

	existing, err := emit.Find(ctx, filter)
	if err != nil {
		return err
	}
	if len(want) == 0 && inScope == nil {
		if len(existing) > 0 {
			_, err := emit.DeleteMatching(ctx, filter)
			return err
		}
		return nil
	}

	wanted := make(map[int64]bool, len(want))
	for _, u := range want {
		wanted[u] = true
	}
	have := make(map[int64]bool, len(existing))
	deleted := make(map[int64]bool)
	for _, n := range existing {
		if wanted[n.UserID] {
			have[n.UserID] = true
			continue
		}
		if inScope != nil && !inScope[n.UserID] {
			continue
		}
		// A zero user id is a wildcard in filters and cannot be targeted.
		if n.UserID == 0 || deleted[n.UserID] {
			continue
		}
		stale := filter
		stale.UserID = n.UserID
		if _, err := emit.DeleteMatching(ctx, stale); err != nil {
			return err
		}
		deleted[n.UserID] = true
	}
	for _, u := range want {
		if have[u] {
			continue
		}
		_, err := emit.Build(ctx, notification.Key{
			ContextID: contextID,
			Level:     notification.LevelTask,
			Type:      t,
			AssocType: notification.AssocSubmission,
			AssocID:   submissionID,
			UserID:    u,
		})
		if err != nil {
			return err
		}
		have[u] = true
	}
	return nil
}

func requireSubmissionAssoc(t notification.Type, assocType notification.AssocType) error {
	if assocType != notification.AssocSubmission {
		return unexpectedAssoc(t, assocType)
	}
	return nil
}
