package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

func newTestEngine(store *memStore, notifier *recordingNotifier) *Engine {
	return New(testConfig(), store, match.DefaultNicknameTable(), notifier, newFakeClock())
}

func TestResolveMentionHighConfidenceApproves(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	seed := seedIdentity(t, store, "Robert Smith", func(i *types.Identity) {
		i.MentionCount = 50
		i.LastSeen = clock.now.AddDate(0, 0, -2)
	})
	notifier := &recordingNotifier{}
	eng := newTestEngine(store, notifier)

	mention, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:        "Robert Smith",
		NameConfidence: 95,
	})
	if err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}

	if mention.IdentityID != seed.ID {
		t.Errorf("IdentityID = %s, want %s", mention.IdentityID, seed.ID)
	}
	if mention.WorkflowState != types.StateApproved {
		t.Errorf("WorkflowState = %s, want approved", mention.WorkflowState)
	}
	if mention.NeedsReview {
		t.Error("high-confidence exact match must not need review")
	}
	if mention.MatchMethod != types.MethodExact {
		t.Errorf("MatchMethod = %s, want exact", mention.MatchMethod)
	}

	tasks, err := store.ReviewTasks().List(context.Background(), storage.TaskFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("created %d review tasks, want 0", len(tasks))
	}
	if notifier.count() != 0 {
		t.Errorf("emitted %d notifications, want 0", notifier.count())
	}

	stored, err := store.Mentions().Get(context.Background(), mention.ID)
	if err != nil {
		t.Fatalf("mention not persisted: %v", err)
	}
	if stored.WorkflowState != types.StateApproved {
		t.Errorf("persisted state = %s, want approved", stored.WorkflowState)
	}
}

func TestResolveMentionLowConfidenceCreatesTask(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "Robert Smith")
	notifier := &recordingNotifier{}
	eng := newTestEngine(store, notifier)

	var created *types.ReviewTask
	eng.OnTaskCreated(func(task *types.ReviewTask) { created = task })

	// A one-character typo resolves but with a weak combined score, so
	// the mention lands in the review queue.
	mention, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:        "Robrt Smith",
		NameConfidence: 70,
	})
	if err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}

	if mention.WorkflowState != types.StatePendingReview {
		t.Errorf("WorkflowState = %s, want pending_review", mention.WorkflowState)
	}
	if !mention.NeedsReview {
		t.Error("low-confidence mention must need review")
	}
	if created == nil {
		t.Fatal("OnTaskCreated callback never fired")
	}
	if created.MentionID != mention.ID {
		t.Errorf("task mention = %s, want %s", created.MentionID, mention.ID)
	}
	if created.Status != types.TaskOpen {
		t.Errorf("task status = %s, want open", created.Status)
	}
	if created.Priority == types.PriorityCritical {
		t.Errorf("task priority = %s, general category must not be critical", created.Priority)
	}
	if notifier.count() != 0 {
		t.Errorf("emitted %d notifications for non-critical task, want 0", notifier.count())
	}
}

func TestResolveMentionSafetyEscalatesAndNotifies(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "Robert Smith")
	notifier := &recordingNotifier{}
	eng := newTestEngine(store, notifier)

	_, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:        "Robrt Smith",
		NameConfidence: 70,
		FieldCategory:  types.CategorySafety,
	})
	if err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}

	tasks, err := store.ReviewTasks().List(context.Background(), storage.TaskFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("created %d tasks, want 1", len(tasks))
	}
	if tasks[0].Priority != types.PriorityCritical {
		t.Errorf("priority = %s, safety content must escalate to critical", tasks[0].Priority)
	}
	if notifier.count() != 1 {
		t.Errorf("emitted %d notifications, critical tasks must notify", notifier.count())
	}
}

func TestResolveMentionAmbiguousForcesReview(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "Jon Smith")
	seedIdentity(t, store, "Jan Smith")
	eng := newTestEngine(store, &recordingNotifier{})

	mention, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:         "Jen Smith",
		NameConfidence:  100,
		ExplicitMention: true,
	})
	if err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}

	if mention.MatchMethod != types.MethodMultipleMatch {
		t.Errorf("MatchMethod = %s, want multiple_matches", mention.MatchMethod)
	}
	if mention.WorkflowState != types.StatePendingReview {
		t.Errorf("WorkflowState = %s, ambiguity must force review regardless of confidence", mention.WorkflowState)
	}
	if len(mention.SuggestedMatches) != 2 {
		t.Errorf("SuggestedMatches = %d, want 2", len(mention.SuggestedMatches))
	}

	tasks, err := store.ReviewTasks().List(context.Background(), storage.TaskFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("created %d tasks, want 1", len(tasks))
	}
}

func TestResolveMentionRejectsInvalidPayload(t *testing.T) {
	eng := newTestEngine(newMemStore(), &recordingNotifier{})

	payloads := []*types.ExtractionPayload{
		nil,
		{RawText: ""},
		{RawText: "Robert Smith", NameConfidence: 120},
		{RawText: "Robert Smith", AnomalyScore: -5},
		{RawText: "Robert Smith", FieldCategory: "gossip"},
	}
	for _, p := range payloads {
		if _, err := eng.ResolveMention(context.Background(), p); !errors.Is(err, types.ErrExtractionSchema) {
			t.Errorf("ResolveMention(%+v) error = %v, want ErrExtractionSchema", p, err)
		}
	}
}

func TestResolveTaskApprove(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "Robert Smith")
	eng := newTestEngine(store, &recordingNotifier{})

	var created *types.ReviewTask
	eng.OnTaskCreated(func(task *types.ReviewTask) { created = task })

	mention, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:        "Robrt Smith",
		NameConfidence: 70,
	})
	if err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}
	if created == nil {
		t.Fatal("expected a review task")
	}

	task, err := eng.ResolveTask(context.Background(), created.ID, types.DecisionApprove, "admin-1")
	if err != nil {
		t.Fatalf("ResolveTask() error: %v", err)
	}
	if task.Status != types.TaskResolved {
		t.Errorf("task status = %s, want resolved", task.Status)
	}
	if task.ResolvedBy != "admin-1" {
		t.Errorf("ResolvedBy = %s, want admin-1", task.ResolvedBy)
	}

	updated, err := store.Mentions().Get(context.Background(), mention.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if updated.WorkflowState != types.StateApproved {
		t.Errorf("mention state = %s, want approved", updated.WorkflowState)
	}
	if updated.NeedsReview {
		t.Error("approved mention must no longer need review")
	}

	// Closing twice is an input error, not a silent no-op.
	if _, err := eng.ResolveTask(context.Background(), created.ID, types.DecisionApprove, "admin-1"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("re-resolve error = %v, want ErrInvalidInput", err)
	}
}

func TestResolveTaskCorrectAndReject(t *testing.T) {
	tests := []struct {
		decision  types.ReviewDecision
		wantState string
	}{
		{types.DecisionCorrect, types.StateNeedsCorrection},
		{types.DecisionReject, types.StateRejected},
	}

	for _, tc := range tests {
		store := newMemStore()
		seedIdentity(t, store, "Robert Smith")
		eng := newTestEngine(store, &recordingNotifier{})

		var created *types.ReviewTask
		eng.OnTaskCreated(func(task *types.ReviewTask) { created = task })

		mention, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
			RawText:        "Robrt Smith",
			NameConfidence: 70,
		})
		if err != nil {
			t.Fatalf("ResolveMention() error: %v", err)
		}

		if _, err := eng.ResolveTask(context.Background(), created.ID, tc.decision, "admin-1"); err != nil {
			t.Fatalf("ResolveTask(%s) error: %v", tc.decision, err)
		}

		updated, _ := store.Mentions().Get(context.Background(), mention.ID)
		if updated.WorkflowState != tc.wantState {
			t.Errorf("decision %s: mention state = %s, want %s", tc.decision, updated.WorkflowState, tc.wantState)
		}
	}
}

func TestResolveTaskValidatesInput(t *testing.T) {
	eng := newTestEngine(newMemStore(), &recordingNotifier{})

	if _, err := eng.ResolveTask(context.Background(), "rvw:x", "shrug", "admin-1"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("unknown decision error = %v, want ErrInvalidInput", err)
	}
	if _, err := eng.ResolveTask(context.Background(), "rvw:x", types.DecisionApprove, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("missing actor error = %v, want ErrInvalidInput", err)
	}
	if _, err := eng.ResolveTask(context.Background(), "rvw:missing", types.DecisionApprove, "admin-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing task error = %v, want ErrNotFound", err)
	}
}

func TestGetStats(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "Robert Smith")
	seedIdentity(t, store, "Maria Gonzalez")
	seedIdentity(t, store, "Old Timer", func(i *types.Identity) {
		i.Status = types.IdentityTerminated
	})
	eng := newTestEngine(store, &recordingNotifier{})

	if _, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:        "Robrt Smith",
		NameConfidence: 70,
		FieldCategory:  types.CategorySafety,
	}); err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}

	stats, err := eng.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.ActiveIdentities != 2 {
		t.Errorf("ActiveIdentities = %d, want 2", stats.ActiveIdentities)
	}
	if stats.OpenTasks[types.PriorityCritical] != 1 {
		t.Errorf("critical open tasks = %d, want 1", stats.OpenTasks[types.PriorityCritical])
	}
}

func TestResolveMentionAutoCreateCanAutoApprove(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	eng := newTestEngine(store, notifier)

	mention, err := eng.ResolveMention(context.Background(), &types.ExtractionPayload{
		RawText:         "Maria Gonzalez",
		NameConfidence:  100,
		ExplicitMention: true,
	})
	if err != nil {
		t.Fatalf("ResolveMention() error: %v", err)
	}

	if mention.MatchMethod != types.MethodAutoCreate {
		t.Fatalf("MatchMethod = %s, want auto_create", mention.MatchMethod)
	}
	if mention.WorkflowState != types.StateApproved {
		t.Errorf("WorkflowState = %s, want approved for a clean auto-create", mention.WorkflowState)
	}
	if mention.NeedsReview {
		t.Error("confidently extracted new name must not need review")
	}
	if mention.Confidence < 85 {
		t.Errorf("Confidence = %.2f, want at least the approval threshold", mention.Confidence)
	}

	tasks, err := store.ReviewTasks().List(context.Background(), storage.TaskFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("created %d review tasks, want 0", len(tasks))
	}
	if notifier.count() != 0 {
		t.Errorf("emitted %d notifications, want 0", notifier.count())
	}
}
