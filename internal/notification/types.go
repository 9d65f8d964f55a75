package notification

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type selects both the rendering and the reconciliation behavior of a
// notification. Types are grouped in hex ranges so a handler can serve a
// contiguous family.
type Type int

// Feedback and site-wide types.
const (
	TypeSuccess         Type = 0x0000001
	TypeWarning         Type = 0x0000002
	TypeError           Type = 0x0000003
	TypeForbidden       Type = 0x0000004
	TypeInformation     Type = 0x0000005
	TypeHelp            Type = 0x0000006
	TypeFormError       Type = 0x0000007
	TypeNewAnnouncement Type = 0x0000008
)

// Submission workflow types.
const (
	TypeSubmissionSubmitted     Type = 0x1000001
	TypeMetadataModified        Type = 0x1000002
	TypeReviewerComment         Type = 0x1000003
	TypeReviewAssignment        Type = 0x1000004
	TypeReviewAssignmentEdit    Type = 0x1000005
	TypeReviewRoundStatus       Type = 0x1000006
	TypeAllReviewsIn            Type = 0x1000007
	TypeAllRevisionsIn          Type = 0x1000008
	TypeNewQuery                Type = 0x1000010
	TypeQueryActivity           Type = 0x1000011
	TypeApproveSubmission       Type = 0x1000012
	TypeFormatNeedsApproval     Type = 0x1000013
	TypeVisitCatalog            Type = 0x1000014
	TypePaymentRequired         Type = 0x1000015
	TypeEditorAssignSubmit      Type = 0x1000020
	TypeEditorAssignInternal    Type = 0x1000021
	TypeEditorAssignExternal    Type = 0x1000022
	TypeEditorAssignEditing     Type = 0x1000023
	TypeEditorAssignProd        Type = 0x1000024
	TypePendingInternalRevs     Type = 0x1000030
	TypePendingExternalRevs     Type = 0x1000031
	TypeAssignCopyeditor        Type = 0x1000040
	TypeAwaitingCopyedits       Type = 0x1000041
	TypeAssignProductionUser    Type = 0x1000042
	TypeAwaitingRepresentations Type = 0x1000043
)

// Editor decision family. The range is contiguous: a new decision replaces
// every notification in it.
const (
	TypeDecisionInitiateReview  Type = 0x1000050
	TypeDecisionAccept          Type = 0x1000051
	TypeDecisionExternalReview  Type = 0x1000052
	TypeDecisionPendingRevision Type = 0x1000053
	TypeDecisionResubmit        Type = 0x1000054
	TypeDecisionNewRound        Type = 0x1000055
	TypeDecisionDecline         Type = 0x1000056
	TypeDecisionRevertDecline   Type = 0x1000057
	TypeDecisionSendToProd      Type = 0x1000058

	FirstDecisionType = TypeDecisionInitiateReview
	LastDecisionType  = TypeDecisionSendToProd
)

var typeNames = map[Type]string{
	TypeSuccess:                 "success",
	TypeWarning:                 "warning",
	TypeError:                   "error",
	TypeForbidden:               "forbidden",
	TypeInformation:             "information",
	TypeHelp:                    "help",
	TypeFormError:               "form-error",
	TypeNewAnnouncement:         "new-announcement",
	TypeSubmissionSubmitted:     "submission-submitted",
	TypeMetadataModified:        "metadata-modified",
	TypeReviewerComment:         "reviewer-comment",
	TypeReviewAssignment:        "review-assignment",
	TypeReviewAssignmentEdit:    "review-assignment-updated",
	TypeReviewRoundStatus:       "review-round-status",
	TypeAllReviewsIn:            "all-reviews-in",
	TypeAllRevisionsIn:          "all-revisions-in",
	TypeNewQuery:                "new-query",
	TypeQueryActivity:           "query-activity",
	TypeApproveSubmission:       "approve-submission",
	TypeFormatNeedsApproval:     "format-needs-approved-submission",
	TypeVisitCatalog:            "visit-catalog",
	TypePaymentRequired:         "payment-required",
	TypeEditorAssignSubmit:      "editor-assignment-submission",
	TypeEditorAssignInternal:    "editor-assignment-internal-review",
	TypeEditorAssignExternal:    "editor-assignment-external-review",
	TypeEditorAssignEditing:     "editor-assignment-editing",
	TypeEditorAssignProd:        "editor-assignment-production",
	TypePendingInternalRevs:     "pending-internal-revisions",
	TypePendingExternalRevs:     "pending-external-revisions",
	TypeAssignCopyeditor:        "assign-copyeditor",
	TypeAwaitingCopyedits:       "awaiting-copyedits",
	TypeAssignProductionUser:    "assign-production-user",
	TypeAwaitingRepresentations: "awaiting-representations",
	TypeDecisionInitiateReview:  "editor-decision-initiate-review",
	TypeDecisionAccept:          "editor-decision-accept",
	TypeDecisionExternalReview:  "editor-decision-external-review",
	TypeDecisionPendingRevision: "editor-decision-pending-revisions",
	TypeDecisionResubmit:        "editor-decision-resubmit",
	TypeDecisionNewRound:        "editor-decision-new-round",
	TypeDecisionDecline:         "editor-decision-decline",
	TypeDecisionRevertDecline:   "editor-decision-revert-decline",
	TypeDecisionSendToProd:      "editor-decision-send-to-production",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%#x)", int(t))
}

// ParseType accepts either a type name ("assign-copyeditor") or its numeric
// value in decimal or 0x-prefixed hex.
func ParseType(s string) (Type, error) {
	if t, ok := typesByName[s]; ok {
		return t, nil
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil && n > 0 {
		return Type(n), nil
	}
	return 0, fmt.Errorf("unknown notification type %q", s)
}

// MarshalJSON writes known types by name and others as numbers.
func (t Type) MarshalJSON() ([]byte, error) {
	if name, ok := typeNames[t]; ok {
		return json.Marshal(name)
	}
	return json.Marshal(int(t))
}

// UnmarshalJSON accepts a type name or a number.
func (t *Type) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*t = Type(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("notification type must be a name or number: %s", b)
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsDecision reports whether t belongs to the editor decision family.
func (t Type) IsDecision() bool {
	return t >= FirstDecisionType && t <= LastDecisionType
}

// DecisionTypes lists every type of the editor decision family.
func DecisionTypes() []Type {
	out := make([]Type, 0, LastDecisionType-FirstDecisionType+1)
	for t := FirstDecisionType; t <= LastDecisionType; t++ {
		out = append(out, t)
	}
	return out
}

// SubscribableTypes are the types a user may opt out of, with the catalog key
// used to label each one in preference forms.
var SubscribableTypes = map[Type]string{
	TypeSubmissionSubmitted: "notification.type.submissionSubmitted",
	TypeMetadataModified:    "notification.type.metadataModified",
	TypeReviewerComment:     "notification.type.reviewerComment",
	TypeNewQuery:            "notification.type.queryAdded",
	TypeQueryActivity:       "notification.type.queryActivity",
	TypeNewAnnouncement:     "notification.type.newAnnouncement",
}

// IsSubscribable reports whether users may opt out of t.
func IsSubscribable(t Type) bool {
	_, ok := SubscribableTypes[t]
	return ok
}

// AssocType names the kind of entity a notification is about.
type AssocType int

const (
	AssocNone             AssocType = 0
	AssocSubmission       AssocType = 0x0100009
	AssocQuery            AssocType = 0x010000a
	AssocReviewAssignment AssocType = 0x0001001
	AssocReviewRound      AssocType = 0x000020b
	AssocAnnouncement     AssocType = 0x000010c
	AssocQueuedPayment    AssocType = 0x000020c
	AssocRepresentation   AssocType = 0x0000521
)

var assocNames = map[AssocType]string{
	AssocSubmission:       "submission",
	AssocQuery:            "query",
	AssocReviewAssignment: "review-assignment",
	AssocReviewRound:      "review-round",
	AssocAnnouncement:     "announcement",
	AssocQueuedPayment:    "queued-payment",
	AssocRepresentation:   "representation",
}

func (a AssocType) String() string {
	if a == AssocNone {
		return "none"
	}
	if name, ok := assocNames[a]; ok {
		return name
	}
	return fmt.Sprintf("assoc(%#x)", int(a))
}

// ParseAssocType accepts an assoc type name or numeric value.
func ParseAssocType(s string) (AssocType, error) {
	for a, name := range assocNames {
		if name == s {
			return a, nil
		}
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil && n > 0 {
		return AssocType(n), nil
	}
	return 0, fmt.Errorf("unknown assoc type %q", s)
}
