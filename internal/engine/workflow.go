package engine

import (
	"errors"
	"fmt"

	"github.com/scrypster/rollcall/pkg/types"
)

// ErrInvalidTransition indicates a workflow trigger was applied to a state
// it is not legal in. Use TransitionError to inspect the state and trigger.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// TransitionError names the state and trigger of a rejected transition.
type TransitionError struct {
	State   string
	Trigger string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid workflow transition: trigger %q not applicable in state %q", e.Trigger, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// SideEffect names an action the caller must perform after a transition.
// Transitions themselves are pure; side effects are returned, not executed.
type SideEffect string

// Side effect constants
const (
	EffectComputeConfidence SideEffect = "compute_confidence"
	EffectCreateReviewTask  SideEffect = "create_review_task"
	EffectFlagCorrection    SideEffect = "flag_needs_correction"
	EffectCloseReviewTask   SideEffect = "close_review_task"
)

// TransitionInput carries the context a transition decision may depend on.
type TransitionInput struct {
	// Confidence is the overall confidence score, used by the
	// high/low-confidence triggers.
	Confidence float64

	// NeedsCorrection carries the scorer's <60 flag into the transition
	// so the needs_correction side effect fires at the right time.
	NeedsCorrection bool
}

// Transition applies a trigger to the current state and returns the next
// state plus the side effects the caller must perform. It is a pure
// function of its inputs. An inapplicable trigger returns a
// *TransitionError wrapping ErrInvalidTransition.
func Transition(current, trigger string, input TransitionInput) (string, []SideEffect, error) {
	switch trigger {
	case types.TriggerExtractionComplete:
		if current == types.StatePendingExtraction || current == "" {
			return types.StateExtracted, []SideEffect{EffectComputeConfidence}, nil
		}

	case types.TriggerHighConfidence:
		if current == types.StateExtracted {
			return types.StateApproved, nil, nil
		}

	case types.TriggerLowConfidence:
		if current == types.StateExtracted {
			effects := []SideEffect{EffectCreateReviewTask}
			if input.NeedsCorrection {
				effects = append(effects, EffectFlagCorrection)
			}
			return types.StatePendingReview, effects, nil
		}

	case types.TriggerAdminApprove:
		if current == types.StatePendingReview {
			return types.StateApproved, []SideEffect{EffectCloseReviewTask}, nil
		}

	case types.TriggerAdminCorrect:
		if current == types.StatePendingReview {
			return types.StateNeedsCorrection, []SideEffect{EffectCloseReviewTask}, nil
		}

	case types.TriggerAdminReject:
		if current == types.StatePendingReview {
			return types.StateRejected, []SideEffect{EffectCloseReviewTask}, nil
		}
	}

	return "", nil, &TransitionError{State: current, Trigger: trigger}
}

// TriggerForConfidence selects the confidence trigger for a score, given
// the auto-approve threshold.
func TriggerForConfidence(overall, autoApproveThreshold float64) string {
	if overall >= autoApproveThreshold {
		return types.TriggerHighConfidence
	}
	return types.TriggerLowConfidence
}
