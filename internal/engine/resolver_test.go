package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Matcher: config.MatcherConfig{
			ScoreThreshold:  85,
			MaxEditDistance: 2,
			HighTierScore:   90,
			ReviewScore:     85,
			EditWeight:      0.30,
			PhoneticWeight:  0.25,
			AliasWeight:     0.25,
			TokenWeight:     0.20,
		},
		Confidence: config.ConfidenceConfig{
			AutoApproveThreshold: 85,
			CorrectionThreshold:  60,
			ExtractionWeight:     0.40,
			MatchWeight:          0.35,
			HistoricalWeight:     0.25,
			AnomalyPenaltyMax:    15,
		},
	}
}

func newTestResolver(store *memStore, clock Clock) *Resolver {
	similarity := match.NewEngine(match.DefaultWeights(), match.DefaultNicknameTable())
	return NewResolver(store.Identities(), similarity, testConfig().Matcher, clock)
}

func seedIdentity(t *testing.T, store *memStore, name string, mutate ...func(*types.Identity)) *types.Identity {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ident := &types.Identity{
		ID:            GenerateIdentityID(types.KindPerson),
		CanonicalName: name,
		Kind:          types.KindPerson,
		Status:        types.IdentityActive,
		Aliases:       []string{name},
		MentionCount:  1,
		FirstSeen:     now,
		LastSeen:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, fn := range mutate {
		fn(ident)
	}
	if err := store.Identities().Put(context.Background(), ident); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	stored, err := store.Identities().Get(context.Background(), ident.ID)
	if err != nil {
		t.Fatalf("reload seeded identity: %v", err)
	}
	return stored
}

func TestResolveExactMatch(t *testing.T) {
	store := newMemStore()
	seed := seedIdentity(t, store, "Robert Smith")
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Robert Smith", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if result.IdentityID != seed.ID {
		t.Errorf("IdentityID = %s, want %s", result.IdentityID, seed.ID)
	}
	if result.Tier != types.TierExact {
		t.Errorf("Tier = %s, want %s", result.Tier, types.TierExact)
	}
	if result.MatchMethod != types.MethodExact {
		t.Errorf("MatchMethod = %s, want %s", result.MatchMethod, types.MethodExact)
	}
	if result.Score != 100 {
		t.Errorf("Score = %.1f, want 100", result.Score)
	}
	if result.NeedsReview {
		t.Error("exact match must not need review")
	}

	ident, err := store.Identities().Get(context.Background(), seed.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ident.MentionCount != 2 {
		t.Errorf("MentionCount = %d, want 2", ident.MentionCount)
	}
}

func TestResolveExactMatchCaseInsensitive(t *testing.T) {
	store := newMemStore()
	seed := seedIdentity(t, store, "Robert Smith")
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "robert smith", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if result.IdentityID != seed.ID || result.MatchMethod != types.MethodExact {
		t.Errorf("got identity %s via %s, want %s via exact", result.IdentityID, result.MatchMethod, seed.ID)
	}
}

func TestResolveAliasMatch(t *testing.T) {
	store := newMemStore()
	seed := seedIdentity(t, store, "Robert Smith", func(i *types.Identity) {
		i.Aliases = append(i.Aliases, "Bob Smith")
	})
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Bob Smith", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if result.IdentityID != seed.ID {
		t.Errorf("IdentityID = %s, want %s", result.IdentityID, seed.ID)
	}
	if result.Tier != types.TierHigh {
		t.Errorf("Tier = %s, want %s", result.Tier, types.TierHigh)
	}
	if result.MatchMethod != types.MethodAlias {
		t.Errorf("MatchMethod = %s, want %s", result.MatchMethod, types.MethodAlias)
	}
	if result.NeedsReview {
		t.Error("alias match must not need review")
	}
}

func TestResolveFuzzyTypo(t *testing.T) {
	store := newMemStore()
	seed := seedIdentity(t, store, "Robert Smith")
	r := newTestResolver(store, newFakeClock())

	// One-character deletion qualifies via the edit distance threshold
	// even when the combined score stays below 85.
	result, err := r.Resolve(context.Background(), "Robrt Smith", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if result.IdentityID != seed.ID {
		t.Fatalf("IdentityID = %s, want %s", result.IdentityID, seed.ID)
	}
	if result.MatchMethod != types.MethodFuzzy {
		t.Errorf("MatchMethod = %s, want %s", result.MatchMethod, types.MethodFuzzy)
	}
	if result.Created {
		t.Error("typo must resolve to the existing identity, not create one")
	}

	// The raw form is recorded as an alias so the next occurrence hits
	// layer 2 directly.
	ident, err := store.Identities().Get(context.Background(), seed.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ident.HasAlias("Robrt Smith") {
		t.Errorf("aliases %v missing matched form", ident.Aliases)
	}
}

func TestResolveAmbiguousCreatesWithSuggestions(t *testing.T) {
	store := newMemStore()
	a := seedIdentity(t, store, "Jon Smith")
	b := seedIdentity(t, store, "Jan Smith")
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Jen Smith", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !result.Created {
		t.Fatal("ambiguous mention must create a new identity, never guess")
	}
	if result.MatchMethod != types.MethodMultipleMatch {
		t.Errorf("MatchMethod = %s, want %s", result.MatchMethod, types.MethodMultipleMatch)
	}
	if result.Tier != types.TierNew {
		t.Errorf("Tier = %s, want %s", result.Tier, types.TierNew)
	}
	if !result.NeedsReview {
		t.Error("ambiguous creation must be flagged for review")
	}
	if len(result.SuggestedMatches) != 2 {
		t.Fatalf("SuggestedMatches = %d, want 2", len(result.SuggestedMatches))
	}

	got := map[string]bool{}
	for _, s := range result.SuggestedMatches {
		got[s.IdentityID] = true
		if s.EditDistance != 1 {
			t.Errorf("suggested %s EditDistance = %d, want 1", s.CanonicalName, s.EditDistance)
		}
	}
	if !got[a.ID] || !got[b.ID] {
		t.Errorf("suggestions %v missing seeded candidates %s, %s", got, a.ID, b.ID)
	}
}

func TestResolveContextDisambiguation(t *testing.T) {
	store := newMemStore()
	inScope := seedIdentity(t, store, "Jon Smith", func(i *types.Identity) {
		i.LastScope = "proj-alpha"
	})
	seedIdentity(t, store, "Jan Smith", func(i *types.Identity) {
		i.LastScope = "proj-beta"
	})
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Jen Smith", &types.MatchContext{EntityScope: "proj-alpha"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if result.IdentityID != inScope.ID {
		t.Errorf("IdentityID = %s, want in-scope %s", result.IdentityID, inScope.ID)
	}
	if result.MatchMethod != types.MethodContext {
		t.Errorf("MatchMethod = %s, want %s", result.MatchMethod, types.MethodContext)
	}
	if result.Tier != types.TierMedium {
		t.Errorf("Tier = %s, want %s", result.Tier, types.TierMedium)
	}
	if !result.NeedsReview {
		t.Error("context-disambiguated match must be flagged for review")
	}
}

func TestResolveContextAmbiguityFallsThrough(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "Jon Smith", func(i *types.Identity) { i.LastScope = "proj-alpha" })
	seedIdentity(t, store, "Jan Smith", func(i *types.Identity) { i.LastScope = "proj-alpha" })
	r := newTestResolver(store, newFakeClock())

	// Both candidates share the scope, so context cannot break the tie.
	result, err := r.Resolve(context.Background(), "Jen Smith", &types.MatchContext{EntityScope: "proj-alpha"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if result.MatchMethod != types.MethodMultipleMatch || !result.Created {
		t.Errorf("got %s (created=%v), want multiple_matches with creation", result.MatchMethod, result.Created)
	}
}

func TestResolveAutoCreate(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Maria Gonzalez", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !result.Created {
		t.Fatal("unmatched mention must create an identity")
	}
	if result.MatchMethod != types.MethodAutoCreate {
		t.Errorf("MatchMethod = %s, want %s", result.MatchMethod, types.MethodAutoCreate)
	}
	if result.NeedsReview {
		t.Error("clean auto-create must not force review")
	}

	ident, err := store.Identities().Get(context.Background(), result.IdentityID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ident.Kind != types.KindPerson {
		t.Errorf("Kind = %s, want person", ident.Kind)
	}
	if !ident.NeedsProfileCompletion {
		t.Error("auto-created identity must need profile completion")
	}
	if !ident.HasAlias(ident.CanonicalName) {
		t.Error("aliases must contain the canonical name")
	}
}

func TestResolveAutoCreateVendor(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Apex Concrete LLC", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	ident, err := store.Identities().Get(context.Background(), result.IdentityID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ident.Kind != types.KindVendor {
		t.Errorf("Kind = %s, want vendor", ident.Kind)
	}
}

func TestResolveExcludesTerminated(t *testing.T) {
	store := newMemStore()
	seed := seedIdentity(t, store, "Robert Smith", func(i *types.Identity) {
		i.Status = types.IdentityTerminated
	})
	r := newTestResolver(store, newFakeClock())

	result, err := r.Resolve(context.Background(), "Robert Smith", nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !result.Created {
		t.Fatal("terminated identity must never match; expected auto-create")
	}
	if result.IdentityID == seed.ID {
		t.Error("resolved to the terminated identity")
	}
}

func TestResolveEmptyInput(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(store, newFakeClock())

	for _, raw := range []string{"", "   ", "..."} {
		if _, err := r.Resolve(context.Background(), raw, nil); !errors.Is(err, match.ErrEmptyName) {
			t.Errorf("Resolve(%q) error = %v, want ErrEmptyName", raw, err)
		}
	}
}

func TestResolveNicknameAlias(t *testing.T) {
	store := newMemStore()
	seed := seedIdentity(t, store, "Robert Smith", func(i *types.Identity) {
		i.Aliases = append(i.Aliases, "Bob Smith")
	})
	r := newTestResolver(store, newFakeClock())

	// "bob smith" hits layer 2 literally; repeated resolution stays stable.
	for i := 0; i < 2; i++ {
		result, err := r.Resolve(context.Background(), "Bob Smith", nil)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if result.IdentityID != seed.ID {
			t.Fatalf("IdentityID = %s, want %s", result.IdentityID, seed.ID)
		}
	}

	ident, err := store.Identities().Get(context.Background(), seed.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ident.MentionCount != 3 {
		t.Errorf("MentionCount = %d, want 3", ident.MentionCount)
	}
	if len(ident.Aliases) != 2 {
		t.Errorf("aliases grew to %v, alias append must be idempotent", ident.Aliases)
	}
}
