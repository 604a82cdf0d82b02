package types

// Workflow state constants for a mention's resolution lifecycle.
const (
	StatePendingExtraction = "pending_extraction" // Awaiting upstream extraction
	StateExtracted         = "extracted"          // Extraction complete, confidence pending
	StateApproved          = "approved"           // Auto- or admin-approved
	StatePendingReview     = "pending_review"     // Queued for human review
	StateNeedsCorrection   = "needs_correction"   // Admin requested correction upstream
	StateRejected          = "rejected"           // Admin rejected the resolution
)

// ValidWorkflowStates contains all valid workflow state values.
var ValidWorkflowStates = []string{
	StatePendingExtraction,
	StateExtracted,
	StateApproved,
	StatePendingReview,
	StateNeedsCorrection,
	StateRejected,
}

// Workflow trigger constants. Transitions are pure functions of
// (current state, trigger); see engine.Workflow.
const (
	TriggerExtractionComplete = "extraction_complete"
	TriggerHighConfidence     = "high_confidence"
	TriggerLowConfidence      = "low_confidence"
	TriggerAdminApprove       = "admin_approve"
	TriggerAdminCorrect       = "admin_request_correction"
	TriggerAdminReject        = "admin_reject"
)

// IsValidWorkflowState checks if the given state is a valid workflow state.
// Empty string is considered valid (state not set yet).
func IsValidWorkflowState(state string) bool {
	if state == "" {
		return true
	}
	for _, validState := range ValidWorkflowStates {
		if state == validState {
			return true
		}
	}
	return false
}

// IsTerminalWorkflowState reports whether a state ends the mention's
// resolution lifecycle. A mention in needs_correction that is edited and
// resubmitted re-enters the pipeline as a new mention, not by mutating
// the old one.
func IsTerminalWorkflowState(state string) bool {
	return state == StateApproved || state == StateRejected || state == StateNeedsCorrection
}
