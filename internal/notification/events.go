package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind names a workflow change that may invalidate standing
// notifications.
type EventKind string

const (
	EventFileUploaded           EventKind = "submission.file.uploaded"
	EventStageAssignmentChanged EventKind = "stage.assignment.changed"
	EventDecisionRecorded       EventKind = "editor.decision.recorded"
	EventQueryChanged           EventKind = "query.changed"
	EventRepresentationChanged  EventKind = "representation.changed"
	EventPublicationChanged     EventKind = "publication.changed"
)

// Event is the envelope for workflow events.
type Event struct {
	ID        string          `json:"id"`
	Kind      EventKind       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// WorkflowEventData is the payload of every workflow event. Decision and
// UserIDs are only meaningful for EventDecisionRecorded, where UserIDs are
// the users told about the decision.
type WorkflowEventData struct {
	ContextID    int64   `json:"context_id"`
	ActorUserID  int64   `json:"actor_user_id,omitempty"`
	SubmissionID int64   `json:"submission_id"`
	StageID      int     `json:"stage_id,omitempty"`
	Decision     Type    `json:"decision,omitempty"`
	UserIDs      []int64 `json:"user_ids,omitempty"`
}

// NewEvent creates a new event with the given kind and data.
func NewEvent(kind EventKind, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        "evt_" + uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// ParseWorkflowData parses the event data as WorkflowEventData.
func (e *Event) ParseWorkflowData() (*WorkflowEventData, error) {
	var data WorkflowEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
