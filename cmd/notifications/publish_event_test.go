package main

import (
	"testing"

	"github.com/sapliy/editorial-notifications/internal/config"
	"github.com/sapliy/editorial-notifications/internal/notification"
)

func TestPublishEventOptions_Event(t *testing.T) {
	tests := []struct {
		name    string
		opts    publishEventOptions
		wantErr bool
	}{
		{
			name: "decision",
			opts: publishEventOptions{
				kind: string(notification.EventDecisionRecorded), contextID: 1, submissionID: 42,
				stageID: 3, decision: "editor-decision-accept", users: []int64{10},
			},
		},
		{
			name: "file uploaded",
			opts: publishEventOptions{kind: string(notification.EventFileUploaded), contextID: 1, submissionID: 42},
		},
		{
			name:    "unknown kind",
			opts:    publishEventOptions{kind: "payment.succeeded", submissionID: 42},
			wantErr: true,
		},
		{
			name:    "decision on another kind",
			opts:    publishEventOptions{kind: string(notification.EventQueryChanged), submissionID: 42, decision: "editor-decision-accept"},
			wantErr: true,
		},
		{
			name:    "unknown decision",
			opts:    publishEventOptions{kind: string(notification.EventDecisionRecorded), submissionID: 42, decision: "nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := tt.opts.event()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %+v", evt)
				}
				return
			}
			if err != nil {
				t.Fatalf("event(): %v", err)
			}
			data, err := evt.ParseWorkflowData()
			if err != nil {
				t.Fatalf("ParseWorkflowData: %v", err)
			}
			if string(evt.Kind) != tt.opts.kind || data.SubmissionID != tt.opts.submissionID || data.ContextID != tt.opts.contextID {
				t.Errorf("unexpected event %+v data %+v", evt, data)
			}
			if tt.opts.decision != "" && data.Decision != notification.TypeDecisionAccept {
				t.Errorf("decision = %s", data.Decision)
			}
		})
	}
}

func TestNewPublisher_Disabled(t *testing.T) {
	if _, err := newPublisher(config.EventsConfig{Transport: config.TransportNone}); err == nil {
		t.Error("expected an error without a transport")
	}
}
