package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// ConfidenceScorer computes a calibrated 0-100 confidence for each resolved
// mention by combining extraction quality, match quality, and historical
// consistency, minus an anomaly penalty.
type ConfidenceScorer struct {
	identities storage.IdentityStore
	cfg        config.ConfidenceConfig
	clock      Clock
}

// NewConfidenceScorer creates a confidence scorer.
func NewConfidenceScorer(identities storage.IdentityStore, cfg config.ConfidenceConfig, clock Clock) *ConfidenceScorer {
	if clock == nil {
		clock = SystemClock()
	}
	return &ConfidenceScorer{identities: identities, cfg: cfg, clock: clock}
}

// Confidence holds the overall score and its components, all 0-100.
type Confidence struct {
	// Overall is the weighted blend minus the anomaly penalty, clamped to
	// [0,100].
	Overall float64

	// Extraction reflects upstream extraction quality.
	Extraction float64

	// Match is the resolver's similarity score (100 for exact/alias hits
	// and for auto-creates, which match the identity they created).
	Match float64

	// Historical reflects frequency, attribute stability, and recency of
	// the resolved identity.
	Historical float64

	// AnomalyPenalty is the deduction applied for detected anomalies.
	AnomalyPenalty float64
}

// Score computes confidence for one resolved mention.
func (s *ConfidenceScorer) Score(ctx context.Context, payload *types.ExtractionPayload, result *types.MatchResult) (*Confidence, error) {
	conf := &Confidence{
		Extraction: s.extractionConfidence(payload),
		Match:      result.Score,
	}

	// An auto-create has no candidate to score against: the mention is a
	// trivially certain match of the identity it just created. Leaving the
	// component at zero would cap every new name below the approval
	// threshold regardless of extraction quality.
	if result.MatchMethod == types.MethodAutoCreate {
		conf.Match = 100
	}

	historical, err := s.historicalConfidence(ctx, result)
	if err != nil {
		return nil, err
	}
	conf.Historical = historical

	conf.AnomalyPenalty = payload.AnomalyScore / 100 * s.cfg.AnomalyPenaltyMax

	conf.Overall = clamp(
		s.cfg.ExtractionWeight*conf.Extraction+
			s.cfg.MatchWeight*conf.Match+
			s.cfg.HistoricalWeight*conf.Historical-
			conf.AnomalyPenalty,
		0, 100)

	return conf, nil
}

// extractionConfidence blends the upstream model's signals: name confidence,
// per-field confidence, name completeness, and an explicit-mention bonus.
func (s *ConfidenceScorer) extractionConfidence(payload *types.ExtractionPayload) float64 {
	score := payload.NameConfidence

	// Average per-field confidence pulls the score toward field quality
	// when structured fields are present.
	if len(payload.FieldConfidence) > 0 {
		var sum float64
		for _, c := range payload.FieldConfidence {
			sum += c
		}
		avg := sum / float64(len(payload.FieldConfidence))
		score = 0.7*score + 0.3*avg
	}

	// Single-token names (no surname) are markedly less reliable.
	if len(strings.Fields(payload.RawText)) < 2 {
		score -= 10
	}

	if payload.ExplicitMention {
		score += 5
	}

	return clamp(score, 0, 100)
}

// historicalConfidence blends mention frequency, attribute stability, and
// recency of the resolved identity. Missing or partial history degrades
// toward a neutral 50 rather than failing the resolution.
func (s *ConfidenceScorer) historicalConfidence(ctx context.Context, result *types.MatchResult) (float64, error) {
	if result.Created {
		// Brand-new identity: no history, neutral default.
		return 50, nil
	}

	ident, err := s.identities.Get(ctx, result.IdentityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 50, nil
		}
		return 0, err
	}

	frequency := frequencyScore(ident.MentionCount)
	stability := stabilityScore(ident)
	recency := s.recencyScore(ident.LastSeen)

	return clamp(0.4*frequency+0.3*stability+0.3*recency, 0, 100), nil
}

// frequencyScore rewards identities seen often.
func frequencyScore(mentions int) float64 {
	switch {
	case mentions >= 50:
		return 100
	case mentions >= 20:
		return 90
	case mentions >= 10:
		return 80
	case mentions >= 5:
		return 70
	case mentions >= 2:
		return 60
	default:
		return 50
	}
}

// stabilityScore rewards completed, stable profiles.
func stabilityScore(ident *types.Identity) float64 {
	if ident.NeedsProfileCompletion {
		return 40
	}
	filled := 0
	for _, v := range ident.ProfileFields() {
		if v != "" {
			filled++
		}
	}
	// 50 for a bare profile up to 100 for a fully populated one.
	score := 50 + float64(filled)*(50.0/6.0)
	return clamp(score, 0, 100)
}

// recencyScore decays after 30/90/180 days of inactivity.
func (s *ConfidenceScorer) recencyScore(lastSeen time.Time) float64 {
	if lastSeen.IsZero() {
		return 50
	}

	inactive := s.clock.Now().Sub(lastSeen)
	switch {
	case inactive < 30*24*time.Hour:
		return 100
	case inactive < 90*24*time.Hour:
		return 80
	case inactive < 180*24*time.Hour:
		return 60
	default:
		return 40
	}
}

// ReviewDecision is what the confidence thresholds dictate for a mention.
type ReviewDecision struct {
	// CreateTask indicates a review task must be created.
	CreateTask bool

	// Priority for the created task.
	Priority types.ReviewPriority

	// NeedsCorrection flags the record needs_correction on the next
	// workflow transition.
	NeedsCorrection bool
}

// Decide maps an overall confidence and field category to a review routing
// decision. Safety-category or critical-severity content always escalates
// to critical priority regardless of score.
func (s *ConfidenceScorer) Decide(overall float64, category types.FieldCategory) ReviewDecision {
	if overall >= s.cfg.AutoApproveThreshold {
		return ReviewDecision{}
	}

	decision := ReviewDecision{CreateTask: true}

	if overall < s.cfg.CorrectionThreshold {
		decision.NeedsCorrection = true
		decision.Priority = types.PriorityHigh
	} else if category == types.CategoryFinance {
		decision.Priority = types.PriorityHigh
	} else {
		decision.Priority = types.PriorityMedium
	}

	if category.IsEscalating() {
		decision.Priority = types.PriorityCritical
	}

	return decision
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
