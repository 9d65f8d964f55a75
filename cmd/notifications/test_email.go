package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sapliy/editorial-notifications/internal/notification"
)

var testEmailTo string

// test-email checks the Resend integration with the real email layout.
var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Send a sample notification email",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		newLogger()
		if cfg.Mail.ResendAPIKey == "" {
			return errors.New("mail.resend_api_key is not set")
		}
		body, err := notification.RenderEmail(notification.EmailData{
			ContextName: "Editorial",
			Title:       notification.Text("notification.notification", nil),
			Message:     "This is a test email to verify the notification mail integration.",
			ActionURL:   cfg.BaseURL,
		})
		if err != nil {
			return err
		}
		mailer := notification.NewResendMailer(cfg.Mail.ResendAPIKey, cfg.Mail.From, cfg.Mail.RedirectTo)
		err = mailer.Send(cmd.Context(), notification.Message{
			To:       testEmailTo,
			Subject:  "Test notification email",
			HTMLBody: notification.SpliceUnsubscribe(body, ""),
		})
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "email sent to %s\n", testEmailTo)
		return nil
	},
}

func init() {
	testEmailCmd.Flags().StringVar(&testEmailTo, "to", "", "recipient address")
	cobra.CheckErr(testEmailCmd.MarkFlagRequired("to"))
}
