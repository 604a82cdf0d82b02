package types

import "testing"

func TestIsValidWorkflowState(t *testing.T) {
	for _, state := range ValidWorkflowStates {
		if !IsValidWorkflowState(state) {
			t.Errorf("expected %q to be a valid workflow state", state)
		}
	}

	if !IsValidWorkflowState("") {
		t.Error("empty state should be valid (not set)")
	}

	if IsValidWorkflowState("bogus") {
		t.Error("unknown state should be invalid")
	}
}

func TestIsTerminalWorkflowState(t *testing.T) {
	terminal := []string{StateApproved, StateRejected, StateNeedsCorrection}
	for _, state := range terminal {
		if !IsTerminalWorkflowState(state) {
			t.Errorf("expected %q to be terminal", state)
		}
	}

	nonTerminal := []string{StatePendingExtraction, StateExtracted, StatePendingReview, ""}
	for _, state := range nonTerminal {
		if IsTerminalWorkflowState(state) {
			t.Errorf("expected %q to be non-terminal", state)
		}
	}
}
