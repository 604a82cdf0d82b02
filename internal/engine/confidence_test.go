package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/scrypster/rollcall/pkg/types"
)

func newTestScorer(store *memStore, clock Clock) *ConfidenceScorer {
	return NewConfidenceScorer(store.Identities(), testConfig().Confidence, clock)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestConfidenceScoreBlendsComponents(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	seed := seedIdentity(t, store, "Robert Smith", func(i *types.Identity) {
		i.MentionCount = 10
		i.LastSeen = clock.now.Add(-24 * time.Hour)
	})
	scorer := newTestScorer(store, clock)

	payload := &types.ExtractionPayload{
		RawText:        "Robert Smith",
		NameConfidence: 90,
	}
	result := &types.MatchResult{
		IdentityID: seed.ID,
		Score:      100,
	}

	conf, err := scorer.Score(context.Background(), payload, result)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	if !almostEqual(conf.Extraction, 90) {
		t.Errorf("Extraction = %.2f, want 90", conf.Extraction)
	}
	if conf.Match != 100 {
		t.Errorf("Match = %.2f, want 100", conf.Match)
	}
	// frequency 80 (10 mentions), stability 50, recency 100 (1 day old).
	wantHistorical := 0.4*80 + 0.3*50 + 0.3*100
	if !almostEqual(conf.Historical, wantHistorical) {
		t.Errorf("Historical = %.2f, want %.2f", conf.Historical, wantHistorical)
	}

	want := 0.40*90 + 0.35*100 + 0.25*wantHistorical
	if !almostEqual(conf.Overall, want) {
		t.Errorf("Overall = %.2f, want %.2f", conf.Overall, want)
	}
}

func TestConfidenceAnomalyPenalty(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	scorer := newTestScorer(store, clock)

	payload := &types.ExtractionPayload{
		RawText:        "Robert Smith",
		NameConfidence: 90,
		AnomalyScore:   100,
	}
	result := &types.MatchResult{Created: true, Score: 0}

	conf, err := scorer.Score(context.Background(), payload, result)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	if !almostEqual(conf.AnomalyPenalty, 15) {
		t.Errorf("AnomalyPenalty = %.2f, want 15 at anomaly score 100", conf.AnomalyPenalty)
	}
	// New identity carries a neutral 50 history.
	want := 0.40*90 + 0.35*0 + 0.25*50 - 15
	if !almostEqual(conf.Overall, want) {
		t.Errorf("Overall = %.2f, want %.2f", conf.Overall, want)
	}
}

func TestConfidenceClampsToRange(t *testing.T) {
	store := newMemStore()
	scorer := newTestScorer(store, newFakeClock())

	payload := &types.ExtractionPayload{
		RawText:        "x",
		NameConfidence: 0,
		AnomalyScore:   100,
	}
	result := &types.MatchResult{Created: true, Score: 0}

	conf, err := scorer.Score(context.Background(), payload, result)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if conf.Overall < 0 || conf.Overall > 100 {
		t.Errorf("Overall = %.2f, want within [0,100]", conf.Overall)
	}
}

func TestExtractionConfidenceSignals(t *testing.T) {
	scorer := newTestScorer(newMemStore(), newFakeClock())

	tests := []struct {
		name    string
		payload types.ExtractionPayload
		want    float64
	}{
		{
			name:    "name confidence only",
			payload: types.ExtractionPayload{RawText: "Robert Smith", NameConfidence: 80},
			want:    80,
		},
		{
			name: "field confidence pulls score",
			payload: types.ExtractionPayload{
				RawText:         "Robert Smith",
				NameConfidence:  80,
				FieldConfidence: map[string]float64{"role": 100, "rate": 60},
			},
			want: 0.7*80 + 0.3*80,
		},
		{
			name:    "single token penalized",
			payload: types.ExtractionPayload{RawText: "Robert", NameConfidence: 80},
			want:    70,
		},
		{
			name:    "explicit mention bonus",
			payload: types.ExtractionPayload{RawText: "Robert Smith", NameConfidence: 80, ExplicitMention: true},
			want:    85,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scorer.extractionConfidence(&tc.payload)
			if !almostEqual(got, tc.want) {
				t.Errorf("extractionConfidence = %.2f, want %.2f", got, tc.want)
			}
		})
	}
}

func TestRecencyDecay(t *testing.T) {
	clock := newFakeClock()
	scorer := newTestScorer(newMemStore(), clock)

	tests := []struct {
		age  time.Duration
		want float64
	}{
		{10 * 24 * time.Hour, 100},
		{45 * 24 * time.Hour, 80},
		{120 * 24 * time.Hour, 60},
		{365 * 24 * time.Hour, 40},
	}
	for _, tc := range tests {
		got := scorer.recencyScore(clock.now.Add(-tc.age))
		if got != tc.want {
			t.Errorf("recencyScore(age %v) = %.0f, want %.0f", tc.age, got, tc.want)
		}
	}

	if got := scorer.recencyScore(time.Time{}); got != 50 {
		t.Errorf("recencyScore(zero) = %.0f, want neutral 50", got)
	}
}

func TestFrequencyScoreBuckets(t *testing.T) {
	tests := []struct {
		mentions int
		want     float64
	}{
		{1, 50}, {2, 60}, {5, 70}, {10, 80}, {20, 90}, {50, 100}, {500, 100},
	}
	for _, tc := range tests {
		if got := frequencyScore(tc.mentions); got != tc.want {
			t.Errorf("frequencyScore(%d) = %.0f, want %.0f", tc.mentions, got, tc.want)
		}
	}
}

func TestStabilityScore(t *testing.T) {
	incomplete := &types.Identity{NeedsProfileCompletion: true}
	if got := stabilityScore(incomplete); got != 40 {
		t.Errorf("stabilityScore(incomplete) = %.0f, want 40", got)
	}

	bare := &types.Identity{}
	full := &types.Identity{
		Role: "Foreman", Rate: "45/hr", Email: "rs@example.com",
		Phone: "555-0101", Company: "Apex", Notes: "night shift",
	}
	if got := stabilityScore(bare); got != 50 {
		t.Errorf("stabilityScore(bare) = %.0f, want 50", got)
	}
	if got := stabilityScore(full); got != 100 {
		t.Errorf("stabilityScore(full) = %.0f, want 100", got)
	}
}

func TestDecideThresholds(t *testing.T) {
	scorer := newTestScorer(newMemStore(), newFakeClock())

	tests := []struct {
		name     string
		overall  float64
		category types.FieldCategory
		want     ReviewDecision
	}{
		{
			name: "auto approve", overall: 90, category: types.CategoryGeneral,
			want: ReviewDecision{},
		},
		{
			name: "boundary auto approve", overall: 85, category: types.CategoryGeneral,
			want: ReviewDecision{},
		},
		{
			name: "review band general", overall: 70, category: types.CategoryGeneral,
			want: ReviewDecision{CreateTask: true, Priority: types.PriorityMedium},
		},
		{
			name: "review band finance", overall: 70, category: types.CategoryFinance,
			want: ReviewDecision{CreateTask: true, Priority: types.PriorityHigh},
		},
		{
			name: "needs correction", overall: 50, category: types.CategoryGeneral,
			want: ReviewDecision{CreateTask: true, Priority: types.PriorityHigh, NeedsCorrection: true},
		},
		{
			name: "safety escalates review band", overall: 70, category: types.CategorySafety,
			want: ReviewDecision{CreateTask: true, Priority: types.PriorityCritical},
		},
		{
			name: "safety escalates correction band", overall: 50, category: types.CategorySafety,
			want: ReviewDecision{CreateTask: true, Priority: types.PriorityCritical, NeedsCorrection: true},
		},
		{
			name: "critical severity escalates", overall: 80, category: types.CategoryCritical,
			want: ReviewDecision{CreateTask: true, Priority: types.PriorityCritical},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scorer.Decide(tc.overall, tc.category)
			if got != tc.want {
				t.Errorf("Decide(%.0f, %s) = %+v, want %+v", tc.overall, tc.category, got, tc.want)
			}
		})
	}
}

func TestConfidenceAutoCreateTreatedAsCertainMatch(t *testing.T) {
	store := newMemStore()
	scorer := newTestScorer(store, newFakeClock())

	payload := &types.ExtractionPayload{
		RawText:         "Maria Gonzalez",
		NameConfidence:  100,
		ExplicitMention: true,
	}
	result := &types.MatchResult{
		IdentityID:  "idn:person:maria-gonzalez",
		MatchMethod: types.MethodAutoCreate,
		Created:     true,
	}

	conf, err := scorer.Score(context.Background(), payload, result)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	if conf.Match != 100 {
		t.Errorf("Match = %.2f, want 100 for an auto-create", conf.Match)
	}

	// Extraction 100 (clamped), historical neutral 50 for a new identity.
	want := 0.40*100 + 0.35*100 + 0.25*50
	if !almostEqual(conf.Overall, want) {
		t.Errorf("Overall = %.2f, want %.2f", conf.Overall, want)
	}
}
