package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var reconcileFlags struct {
	types     []string
	users     []int64
	assocType string
	assocID   int64
	contextID int64
	actorID   int64
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring standing notifications of an entity in line with workflow state",
	Example: `  notifications reconcile --type editor-assignment-submission --type assign-copyeditor \
    --assoc-type submission --assoc-id 42 --context 1`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := reconcileFlags
		types := make([]notification.Type, 0, len(f.types))
		for _, name := range f.types {
			t, err := notification.ParseType(name)
			if err != nil {
				return err
			}
			types = append(types, t)
		}
		assocType, err := notification.ParseAssocType(f.assocType)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		req := notification.Requester{ContextID: f.contextID, ActorUserID: f.actorID}
		if err := a.engine.UpdateState(cmd.Context(), req, types, f.users, assocType, f.assocID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d type(s) for %s %d\n", len(types), assocType, f.assocID)
		return nil
	},
}

func init() {
	fl := reconcileCmd.Flags()
	fl.StringSliceVar(&reconcileFlags.types, "type", nil, "notification type name or number (repeatable)")
	fl.Int64SliceVar(&reconcileFlags.users, "user", nil, "restrict to these user ids (repeatable)")
	fl.StringVar(&reconcileFlags.assocType, "assoc-type", "submission", "assoc type name or number")
	fl.Int64Var(&reconcileFlags.assocID, "assoc-id", 0, "assoc id")
	fl.Int64Var(&reconcileFlags.contextID, "context", 0, "context id")
	fl.Int64Var(&reconcileFlags.actorID, "actor", 0, "user to notify if mail fails")
	cobra.CheckErr(reconcileCmd.MarkFlagRequired("type"))
	cobra.CheckErr(reconcileCmd.MarkFlagRequired("assoc-id"))
}
