package handlers

import "github.com/sapliy/editorial-notifications/internal/notification"

// Register binds every handler in this package to reg. Types left unbound,
// such as the feedback types, are rendered by the engine itself.
func Register(reg *notification.Registry, lk Lookups) {
	bind := func(ctor func(notification.Type, notification.Emitter, Lookups) notification.TypeHandler, types ...notification.Type) {
		for _, t := range types {
			reg.Register(t, func(t notification.Type, emit notification.Emitter) notification.TypeHandler {
				return ctor(t, emit, lk)
			})
		}
	}

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewEditorAssignmentHandler(t, e, lk)
	}, notification.TypeEditorAssignSubmit, notification.TypeEditorAssignInternal,
		notification.TypeEditorAssignExternal, notification.TypeEditorAssignEditing, notification.TypeEditorAssignProd)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewEditingProductionHandler(t, e, lk)
	}, notification.TypeAssignCopyeditor, notification.TypeAwaitingCopyedits,
		notification.TypeAssignProductionUser, notification.TypeAwaitingRepresentations)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewPendingRevisionsHandler(t, e, lk)
	}, notification.TypePendingInternalRevs, notification.TypePendingExternalRevs)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewApproveSubmissionHandler(t, e, lk)
	}, notification.TypeApproveSubmission, notification.TypeFormatNeedsApproval, notification.TypeVisitCatalog)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewQueryHandler(t, e, lk)
	}, notification.TypeNewQuery, notification.TypeQueryActivity)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewSubmissionHandler(t, e, lk)
	}, notification.TypeSubmissionSubmitted, notification.TypeMetadataModified, notification.TypeReviewerComment)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewReviewHandler(t, e, lk)
	}, notification.TypeReviewAssignment, notification.TypeReviewAssignmentEdit,
		notification.TypeAllReviewsIn, notification.TypeAllRevisionsIn)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewPaymentHandler(t, e, lk)
	}, notification.TypePaymentRequired)

	bind(func(t notification.Type, e notification.Emitter, lk Lookups) notification.TypeHandler {
		return NewAnnouncementHandler(t, e, lk)
	}, notification.TypeNewAnnouncement)

	reg.RegisterRange(notification.FirstDecisionType, notification.LastDecisionType,
		func(t notification.Type, emit notification.Emitter) notification.TypeHandler {
			return NewEditorDecisionHandler(t, emit, lk)
		})
}
