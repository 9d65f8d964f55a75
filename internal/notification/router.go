package notification

import (
	"context"
	"fmt"
	"log/slog"
)

var (
	editorAssignmentTypes = []Type{
		TypeEditorAssignSubmit, TypeEditorAssignInternal, TypeEditorAssignExternal,
		TypeEditorAssignEditing, TypeEditorAssignProd,
	}
	editingProductionTypes = []Type{
		TypeAssignCopyeditor, TypeAwaitingCopyedits,
		TypeAssignProductionUser, TypeAwaitingRepresentations,
	}
	pendingRevisionTypes = []Type{TypePendingInternalRevs, TypePendingExternalRevs}
	approvalTypes        = []Type{TypeApproveSubmission, TypeFormatNeedsApproval, TypeVisitCatalog}
)

func concatTypes(groups ...[]Type) []Type {
	var out []Type
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultReconcileRules lists, per event kind, the standing notification
// types whose conditions the event may have changed.
var DefaultReconcileRules = map[EventKind][]Type{
	EventFileUploaded:           concatTypes(pendingRevisionTypes, editingProductionTypes),
	EventStageAssignmentChanged: concatTypes(editorAssignmentTypes, editingProductionTypes),
	EventDecisionRecorded:       concatTypes(editorAssignmentTypes, pendingRevisionTypes, editingProductionTypes, approvalTypes),
	EventQueryChanged:           editingProductionTypes,
	EventRepresentationChanged:  concatTypes([]Type{TypeAssignProductionUser, TypeAwaitingRepresentations}, approvalTypes),
	EventPublicationChanged:     approvalTypes,
}

// Reconciliation is the engine entry point the router drives.
type Reconciliation interface {
	UpdateState(ctx context.Context, req Requester, types []Type, userIDs []int64, assocType AssocType, assocID int64) error
}

// Router turns workflow events into reconciliation calls.
type Router struct {
	engine Reconciliation
	rules  map[EventKind][]Type
	logger *slog.Logger
}

func NewRouter(engine Reconciliation, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{engine: engine, rules: DefaultReconcileRules, logger: logger}
}

// Route reconciles every type the event may affect. A recorded decision
// first replaces the decision notifications of the users it names.
func (r *Router) Route(ctx context.Context, event *Event) error {
	types, ok := r.rules[event.Kind]
	if !ok {
		r.logger.WarnContext(ctx, "no reconcile rules for event", "kind", string(event.Kind), "event_id", event.ID)
		return nil
	}
	data, err := event.ParseWorkflowData()
	if err != nil {
		return fmt.Errorf("parse %s event %s: %w", event.Kind, event.ID, err)
	}
	if data.SubmissionID == 0 {
		return fmt.Errorf("%s event %s has no submission", event.Kind, event.ID)
	}
	req := Requester{ContextID: data.ContextID, ActorUserID: data.ActorUserID}

	if event.Kind == EventDecisionRecorded && data.Decision.IsDecision() && len(data.UserIDs) > 0 {
		if err := r.engine.UpdateState(ctx, req, []Type{data.Decision}, data.UserIDs, AssocSubmission, data.SubmissionID); err != nil {
			return err
		}
	}
	return r.engine.UpdateState(ctx, req, types, nil, AssocSubmission, data.SubmissionID)
}
