package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var linkFlags struct {
	contextID      int64
	userID         int64
	notificationID string
}

// unsubscribe-link needs only the signing secret, not a database.
var unsubscribeLinkCmd = &cobra.Command{
	Use:   "unsubscribe-link",
	Short: "Print a signed unsubscribe link",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		newLogger()
		secret, err := resolveSecret(cmd.Context(), cfg.Unsubscribe)
		if err != nil {
			return err
		}
		tokens, err := notification.NewTokenCodec(secret)
		if err != nil {
			return err
		}
		engine := notification.NewEngine(notification.Deps{Tokens: tokens, BaseURL: cfg.BaseURL})
		link, err := engine.UnsubscribeURL(linkFlags.contextID, linkFlags.userID, linkFlags.notificationID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}

func init() {
	fl := unsubscribeLinkCmd.Flags()
	fl.Int64Var(&linkFlags.contextID, "context", 0, "context id")
	fl.Int64Var(&linkFlags.userID, "user", 0, "user id")
	fl.StringVar(&linkFlags.notificationID, "notification", "", "notification id")
	cobra.CheckErr(unsubscribeLinkCmd.MarkFlagRequired("user"))
	cobra.CheckErr(unsubscribeLinkCmd.MarkFlagRequired("notification"))
}
