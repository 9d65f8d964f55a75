package notification

import (
	"bytes"
	"text/template"
)

// Catalog is the English message catalog. Keys follow the dotted naming used
// by preference forms and handlers; values are text/template sources.
var Catalog = map[string]string{
	"notification.notification": "Notification",
	"notification.sendFailed":   "The email notification could not be sent. Please contact the journal if the problem persists.",

	"common.changesSaved":            "Your changes have been saved.",
	"common.unexpectedError":         "An unexpected error has occurred.",
	"common.forbidden":               "You do not have permission to perform that action.",
	"common.formErrors":              "The form was not submitted because of the errors below.",
	"notification.reviewRoundStatus": "The status of this review round has changed.",

	"notification.type.submissionSubmitted": `A new submission, "{{.Title}}", has been made.`,
	"notification.type.metadataModified":    `The metadata of "{{.Title}}" has been modified.`,
	"notification.type.reviewerComment":     `A reviewer has commented on "{{.Title}}".`,
	"notification.type.queryAdded":          `A new discussion has been started: {{.Subject}}`,
	"notification.type.queryActivity":       `There is new activity in the discussion "{{.Subject}}".`,
	"notification.type.newAnnouncement":     `A new announcement has been posted: {{.Title}}`,
	"notification.type.reviewAssignment":    `You have been asked to review "{{.Title}}".`,
	"notification.type.reviewAssignmentUpdated": `Your review assignment for "{{.Title}}" has been updated.`,
	"notification.type.allReviewsIn":        `All reviews for "{{.Title}}" are in and a decision can now be made.`,
	"notification.type.allRevisionsIn":      `Revisions have been uploaded for "{{.Title}}".`,
	"notification.type.approveSubmission":   "This submission is waiting for approval before it will appear in the public catalog.",
	"notification.type.formatNeedsApprovedSubmission": "A publication format will not appear in the catalog until the submission itself has been approved.",
	"notification.type.visitCatalog":        "The submission has been approved. Visit the catalog to manage its catalog entry.",
	"notification.type.paymentRequired":     `A payment of {{.Amount}} {{.Currency}} is required before "{{.Title}}" can proceed.`,
	"notification.type.editorAssignment":    "An editor must be assigned before the {{.Stage}} stage can begin.",
	"notification.type.pendingInternalRevisions": "Revisions were requested in internal review. Upload the revised files to continue.",
	"notification.type.pendingExternalRevisions": "Revisions were requested in review. Upload the revised files to continue.",
	"notification.type.assignCopyeditors":   "A copyeditor must be assigned from the participants list.",
	"notification.type.awaitingCopyedits":   "Awaiting copyedits.",
	"notification.type.assignProductionUser": "A production user must be assigned from the participants list to create the publication formats.",
	"notification.type.awaitingRepresentations": "Awaiting publication formats.",

	"notification.type.editorDecisionInitiateReview":   `Internal review has been initiated for "{{.Title}}".`,
	"notification.type.editorDecisionAccept":           `"{{.Title}}" has been accepted.`,
	"notification.type.editorDecisionExternalReview":   `"{{.Title}}" has been sent to review.`,
	"notification.type.editorDecisionPendingRevisions": `Revisions have been requested for "{{.Title}}".`,
	"notification.type.editorDecisionResubmit":         `"{{.Title}}" must be resubmitted for review.`,
	"notification.type.editorDecisionNewRound":         `A new review round has been started for "{{.Title}}".`,
	"notification.type.editorDecisionDecline":          `"{{.Title}}" has been declined.`,
	"notification.type.editorDecisionRevertDecline":    `The decision to decline "{{.Title}}" has been reverted.`,
	"notification.type.editorDecisionSendToProduction": `"{{.Title}}" has been sent to production.`,

	"submission.stage.submission":     "submission",
	"submission.stage.internalReview": "internal review",
	"submission.stage.externalReview": "review",
	"submission.stage.editing":        "copyediting",
	"submission.stage.production":     "production",

	"notification.unsubscribeNotifications": `You are receiving this email because of your notification settings at {{.ContextName}}. <a href="{{.URL}}">Unsubscribe</a> from these notifications.`,
	"notification.viewInContext":            "View",
}

var compiled = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(Catalog))
	for key, src := range Catalog {
		out[key] = template.Must(template.New(key).Option("missingkey=zero").Parse(src))
	}
	return out
}()

// Text renders the catalog entry for key with data. An unknown key renders as
// "##key##" so gaps show up in the UI instead of blank text.
func Text(key string, data any) string {
	tmpl, ok := compiled[key]
	if !ok {
		return "##" + key + "##"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "##" + key + "##"
	}
	return buf.String()
}
