package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/notify"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// Engine is the top-level orchestrator: it validates extraction payloads,
// runs resolution, scores confidence, drives the review workflow, and
// persists the outcome. All state lives in the injected store; the engine
// itself is stateless per call and safe to share across goroutines.
type Engine struct {
	cfg      *config.Config
	store    storage.Store
	resolver *Resolver
	scorer   *ConfidenceScorer
	merger   *MergeEngine
	notifier notify.Notifier
	clock    Clock

	// onTaskCreated is invoked after a review task is persisted. Used by
	// the web layer to broadcast queue updates.
	onTaskCreated func(task *types.ReviewTask)
}

// New creates an engine with explicit dependencies: store, nickname table,
// notifier, and clock are all injected so the engine is deterministic and
// testable without shared process state.
func New(cfg *config.Config, store storage.Store, nicknames *match.NicknameTable, notifier notify.Notifier, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	weights := match.Weights{
		Edit:     cfg.Matcher.EditWeight,
		Phonetic: cfg.Matcher.PhoneticWeight,
		Alias:    cfg.Matcher.AliasWeight,
		Token:    cfg.Matcher.TokenWeight,
	}
	similarity := match.NewEngine(weights, nicknames)

	return &Engine{
		cfg:      cfg,
		store:    store,
		resolver: NewResolver(store.Identities(), similarity, cfg.Matcher, clock),
		scorer:   NewConfidenceScorer(store.Identities(), cfg.Confidence, clock),
		merger:   NewMergeEngine(store.Identities(), clock),
		notifier: notifier,
		clock:    clock,
	}
}

// OnTaskCreated registers a callback invoked after each review task is
// persisted. Must be set before serving traffic.
func (e *Engine) OnTaskCreated(fn func(task *types.ReviewTask)) {
	e.onTaskCreated = fn
}

// ResolveMention runs one extraction payload through the full pipeline:
// schema validation, resolution, confidence scoring, workflow transitions,
// and persistence. It returns the stored mention and the match result.
func (e *Engine) ResolveMention(ctx context.Context, payload *types.ExtractionPayload) (*types.Mention, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	state, _, err := Transition(types.StatePendingExtraction, types.TriggerExtractionComplete, TransitionInput{})
	if err != nil {
		return nil, err
	}

	mctx := &types.MatchContext{
		EntityScope: payload.ProjectID,
		TimeHint:    payload.Timestamp,
	}

	result, err := e.resolver.Resolve(ctx, payload.RawText, mctx)
	if err != nil {
		return nil, err
	}

	conf, err := e.scorer.Score(ctx, payload, result)
	if err != nil {
		return nil, fmt.Errorf("engine: confidence scoring failed: %w", err)
	}

	decision := e.scorer.Decide(conf.Overall, payload.Category())

	// The resolver can demand review independently of the confidence
	// thresholds (ambiguous or weak fuzzy matches).
	if result.NeedsReview && !decision.CreateTask {
		decision.CreateTask = true
		decision.Priority = types.PriorityMedium
		if payload.Category().IsEscalating() {
			decision.Priority = types.PriorityCritical
		}
	}

	trigger := TriggerForConfidence(conf.Overall, e.cfg.Confidence.AutoApproveThreshold)
	if decision.CreateTask {
		trigger = types.TriggerLowConfidence
	}

	state, effects, err := Transition(state, trigger, TransitionInput{
		Confidence:      conf.Overall,
		NeedsCorrection: decision.NeedsCorrection,
	})
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	mention := &types.Mention{
		ID:               GenerateMentionID(),
		RawText:          payload.RawText,
		ProjectID:        payload.ProjectID,
		ReportID:         payload.ReportID,
		Timestamp:        payload.Timestamp,
		IdentityID:       result.IdentityID,
		Tier:             result.Tier,
		MatchMethod:      result.MatchMethod,
		MatchScore:       result.Score,
		Confidence:       conf.Overall,
		NeedsReview:      decision.CreateTask,
		SuggestedMatches: result.SuggestedMatches,
		WorkflowState:    state,
		FieldCategory:    payload.Category(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.store.Mentions().Put(ctx, mention); err != nil {
		return nil, fmt.Errorf("engine: persist mention: %w", err)
	}

	for _, effect := range effects {
		switch effect {
		case EffectCreateReviewTask:
			if err := e.createReviewTask(ctx, mention, result, conf, decision); err != nil {
				return nil, err
			}
		case EffectFlagCorrection:
			// The needs_correction flag lands on the next workflow
			// transition (admin_request_correction); recorded on the
			// mention so reviewers see it coming.
			log.Printf("engine: mention %s flagged for correction (confidence %.1f)", mention.ID, conf.Overall)
		}
	}

	return mention, nil
}

// createReviewTask persists a review task for a mention and emits a
// notification when the task is critical.
func (e *Engine) createReviewTask(ctx context.Context, mention *types.Mention, result *types.MatchResult, conf *Confidence, decision ReviewDecision) error {
	now := e.clock.Now()
	task := &types.ReviewTask{
		ID:         GenerateTaskID(),
		MentionID:  mention.ID,
		IdentityID: mention.IdentityID,
		Reason:     reviewReason(result, conf),
		Priority:   decision.Priority,
		Status:     types.TaskOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.store.ReviewTasks().Create(ctx, task); err != nil {
		return fmt.Errorf("engine: persist review task: %w", err)
	}

	if task.Priority == types.PriorityCritical {
		e.notifier.CriticalTask(ctx, task)
	}

	if e.onTaskCreated != nil {
		e.onTaskCreated(task)
	}

	return nil
}

// reviewReason builds the human-readable explanation for a review task.
func reviewReason(result *types.MatchResult, conf *Confidence) string {
	switch result.MatchMethod {
	case types.MethodMultipleMatch:
		return fmt.Sprintf("ambiguous mention: %d existing identities qualified; new identity created pending review",
			len(result.SuggestedMatches))
	case types.MethodContext:
		return fmt.Sprintf("match disambiguated by project context only (score %.1f)", result.Score)
	case types.MethodFuzzy:
		return fmt.Sprintf("fuzzy match at score %.1f, overall confidence %.1f", result.Score, conf.Overall)
	default:
		return fmt.Sprintf("overall confidence %.1f below auto-approve threshold", conf.Overall)
	}
}

// ResolveTask applies an admin decision to an open review task and drives
// the mention's workflow to its terminal state.
func (e *Engine) ResolveTask(ctx context.Context, taskID string, decision types.ReviewDecision, actorID string) (*types.ReviewTask, error) {
	if !types.IsValidReviewDecision(decision) {
		return nil, fmt.Errorf("%w: unknown decision %q", storage.ErrInvalidInput, decision)
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", storage.ErrInvalidInput)
	}

	task, err := e.store.ReviewTasks().Resolve(ctx, taskID, decision, actorID)
	if err != nil {
		return nil, err
	}

	mention, err := e.store.Mentions().Get(ctx, task.MentionID)
	if err != nil {
		return nil, fmt.Errorf("engine: load mention for task %s: %w", taskID, err)
	}

	trigger := triggerForDecision(decision)
	next, _, err := Transition(mention.WorkflowState, trigger, TransitionInput{})
	if err != nil {
		return nil, err
	}

	if err := e.store.Mentions().UpdateWorkflowState(ctx, mention.ID, next, false); err != nil {
		return nil, fmt.Errorf("engine: update mention workflow state: %w", err)
	}

	log.Printf("engine: task %s resolved as %s by %s (mention %s -> %s)",
		taskID, decision, actorID, mention.ID, next)

	return task, nil
}

// triggerForDecision maps an admin decision to its workflow trigger.
func triggerForDecision(decision types.ReviewDecision) string {
	switch decision {
	case types.DecisionApprove:
		return types.TriggerAdminApprove
	case types.DecisionCorrect:
		return types.TriggerAdminCorrect
	default:
		return types.TriggerAdminReject
	}
}

// SuggestMerge returns a pure merge preview. See MergeEngine.SuggestMerge.
func (e *Engine) SuggestMerge(ctx context.Context, primaryID, duplicateID string) (*types.MergePreview, error) {
	return e.merger.SuggestMerge(ctx, primaryID, duplicateID)
}

// Merge consolidates duplicate into primary. See MergeEngine.Merge.
func (e *Engine) Merge(ctx context.Context, primaryID, duplicateID string) (*types.Identity, error) {
	return e.merger.Merge(ctx, primaryID, duplicateID)
}

// GetIdentity retrieves an identity by ID.
func (e *Engine) GetIdentity(ctx context.Context, id string) (*types.Identity, error) {
	return e.store.Identities().Get(ctx, id)
}

// ListIdentities lists identities with pagination and filtering.
func (e *Engine) ListIdentities(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Identity], error) {
	return e.store.Identities().List(ctx, opts)
}

// ListTasks lists review tasks matching the filter.
func (e *Engine) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]*types.ReviewTask, error) {
	return e.store.ReviewTasks().List(ctx, filter)
}

// Stats summarizes engine state for monitoring.
type Stats struct {
	ActiveIdentities int                          `json:"active_identities"`
	OpenTasks        map[types.ReviewPriority]int `json:"open_tasks"`
}

// GetStats returns current counts for the stats endpoint.
func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	identities, err := e.store.Identities().FindActiveCandidates(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := e.store.ReviewTasks().CountByPriority(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		ActiveIdentities: len(identities),
		OpenTasks:        counts,
	}, nil
}
