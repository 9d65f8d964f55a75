package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

type publishEventOptions struct {
	kind         string
	contextID    int64
	submissionID int64
	stageID      int
	decision     string
	users        []int64
	actorID      int64
}

var publishEventFlags publishEventOptions

var publishEventCmd = &cobra.Command{
	Use:   "publish-event",
	Short: "Publish a workflow event to the configured broker",
	Example: `  notifications publish-event --kind editor.decision.recorded --context 1 \
    --submission 42 --stage 3 --decision editor-decision-accept --user 10`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		evt, err := publishEventFlags.event()
		if err != nil {
			return err
		}
		body, err := json.Marshal(evt)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pub, err := newPublisher(cfg.Events)
		if err != nil {
			return err
		}
		defer pub.Close()

		key := strconv.FormatInt(publishEventFlags.submissionID, 10)
		if err := pub.Publish(cmd.Context(), key, body); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s %s\n", evt.Kind, evt.ID)
		return nil
	},
}

func (o publishEventOptions) event() (*notification.Event, error) {
	kind := notification.EventKind(o.kind)
	switch kind {
	case notification.EventFileUploaded, notification.EventStageAssignmentChanged,
		notification.EventDecisionRecorded, notification.EventQueryChanged,
		notification.EventRepresentationChanged, notification.EventPublicationChanged:
	default:
		return nil, fmt.Errorf("unknown event kind %q", o.kind)
	}
	data := notification.WorkflowEventData{
		ContextID:    o.contextID,
		ActorUserID:  o.actorID,
		SubmissionID: o.submissionID,
		StageID:      o.stageID,
		UserIDs:      o.users,
	}
	if o.decision != "" {
		if kind != notification.EventDecisionRecorded {
			return nil, fmt.Errorf("--decision only applies to %s", notification.EventDecisionRecorded)
		}
		t, err := notification.ParseType(o.decision)
		if err != nil {
			return nil, err
		}
		data.Decision = t
	}
	return notification.NewEvent(kind, data)
}

func init() {
	fl := publishEventCmd.Flags()
	fl.StringVar(&publishEventFlags.kind, "kind", "", "event kind, e.g. submission.file.uploaded")
	fl.Int64Var(&publishEventFlags.contextID, "context", 0, "context id")
	fl.Int64Var(&publishEventFlags.submissionID, "submission", 0, "submission id")
	fl.IntVar(&publishEventFlags.stageID, "stage", 0, "workflow stage id")
	fl.StringVar(&publishEventFlags.decision, "decision", "", "decision type name or number")
	fl.Int64SliceVar(&publishEventFlags.users, "user", nil, "users told about a decision (repeatable)")
	fl.Int64Var(&publishEventFlags.actorID, "actor", 0, "acting user id")
	cobra.CheckErr(publishEventCmd.MarkFlagRequired("kind"))
	cobra.CheckErr(publishEventCmd.MarkFlagRequired("submission"))
}
