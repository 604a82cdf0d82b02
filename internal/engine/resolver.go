package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// Resolver turns a raw mention plus optional context into a match decision
// against the identity store. It runs a strict six-layer priority pipeline;
// higher layers always pre-empt lower ones.
type Resolver struct {
	identities storage.IdentityStore
	similarity *match.Engine
	cfg        config.MatcherConfig
	clock      Clock
}

// NewResolver creates a resolver over the given store and similarity engine.
func NewResolver(identities storage.IdentityStore, similarity *match.Engine, cfg config.MatcherConfig, clock Clock) *Resolver {
	if clock == nil {
		clock = SystemClock()
	}
	return &Resolver{
		identities: identities,
		similarity: similarity,
		cfg:        cfg,
		clock:      clock,
	}
}

// Resolve resolves one raw mention string. Empty input yields
// match.ErrEmptyName; it is invalid input, never "no match".
func (r *Resolver) Resolve(ctx context.Context, rawText string, mctx *types.MatchContext) (*types.MatchResult, error) {
	normalized, err := match.Normalize(rawText)
	if err != nil {
		return nil, err
	}

	// Layer 1: exact canonical-name match.
	if ident, err := r.identities.FindByCanonicalName(ctx, normalized.Comparison); err == nil {
		if err := r.recordMatch(ctx, ident.ID, normalized.Display, mctx); err != nil {
			return nil, err
		}
		return &types.MatchResult{
			IdentityID:    ident.ID,
			CanonicalName: ident.CanonicalName,
			Tier:          types.TierExact,
			MatchMethod:   types.MethodExact,
			Score:         100,
			NeedsReview:   false,
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("resolver: canonical lookup failed: %w", err)
	}

	// Layer 2: exact alias match.
	if ident, err := r.identities.FindByAlias(ctx, normalized.Comparison); err == nil {
		if err := r.recordMatch(ctx, ident.ID, normalized.Display, mctx); err != nil {
			return nil, err
		}
		return &types.MatchResult{
			IdentityID:    ident.ID,
			CanonicalName: ident.CanonicalName,
			Tier:          types.TierHigh,
			MatchMethod:   types.MethodAlias,
			Score:         100,
			NeedsReview:   false,
		}, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("resolver: alias lookup failed: %w", err)
	}

	// Layer 3: fuzzy match over all active identities.
	candidates, err := r.identities.FindActiveCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolver: candidate scan failed: %w", err)
	}

	byID := make(map[string]*types.Identity, len(candidates))
	matchCands := make([]match.Candidate, 0, len(candidates))
	for _, ident := range candidates {
		byID[ident.ID] = ident
		matchCands = append(matchCands, toMatchCandidate(ident))
	}

	qualifying := r.qualify(r.similarity.Rank(normalized.Comparison, matchCands))

	if len(qualifying) == 1 {
		score := qualifying[0]
		tier := types.TierMedium
		if score.Combined > r.cfg.HighTierScore {
			tier = types.TierHigh
		}
		if err := r.recordMatch(ctx, score.ID, normalized.Display, mctx); err != nil {
			return nil, err
		}
		return &types.MatchResult{
			IdentityID:    score.ID,
			CanonicalName: byID[score.ID].CanonicalName,
			Tier:          tier,
			MatchMethod:   types.MethodFuzzy,
			Score:         score.Combined,
			NeedsReview:   score.Combined < r.cfg.ReviewScore,
		}, nil
	}

	// Layer 4: context disambiguation, only with >=2 qualifiers and a scope.
	if len(qualifying) >= 2 && mctx.HasScope() {
		var inScope []match.Score
		for _, s := range qualifying {
			if byID[s.ID].LastScope == mctx.EntityScope {
				inScope = append(inScope, s)
			}
		}
		if len(inScope) == 1 {
			score := inScope[0]
			if err := r.recordMatch(ctx, score.ID, normalized.Display, mctx); err != nil {
				return nil, err
			}
			return &types.MatchResult{
				IdentityID:    score.ID,
				CanonicalName: byID[score.ID].CanonicalName,
				Tier:          types.TierMedium,
				MatchMethod:   types.MethodContext,
				Score:         score.Combined,
				NeedsReview:   true,
			}, nil
		}
	}

	// Layer 5: multiple qualifying candidates remain. Never guess: create a
	// new identity but attach all qualifiers as suggested matches and force
	// review.
	if len(qualifying) >= 2 {
		ident, err := r.autoCreate(ctx, rawText, normalized)
		if err != nil {
			return nil, err
		}

		suggested := make([]types.SuggestedMatch, 0, len(qualifying))
		for _, s := range qualifying {
			suggested = append(suggested, types.SuggestedMatch{
				IdentityID:    s.ID,
				CanonicalName: byID[s.ID].CanonicalName,
				Score:         s.Combined,
				EditDistance:  s.EditDistance,
			})
		}

		log.Printf("resolver: ambiguous mention %q matched %d candidates, created %s for review",
			rawText, len(qualifying), ident.ID)

		return &types.MatchResult{
			IdentityID:       ident.ID,
			CanonicalName:    ident.CanonicalName,
			Tier:             types.TierNew,
			MatchMethod:      types.MethodMultipleMatch,
			Created:          true,
			NeedsReview:      true,
			SuggestedMatches: suggested,
		}, nil
	}

	// Layer 6: no candidate qualifies; auto-create.
	ident, err := r.autoCreate(ctx, rawText, normalized)
	if err != nil {
		return nil, err
	}

	return &types.MatchResult{
		IdentityID:    ident.ID,
		CanonicalName: ident.CanonicalName,
		Tier:          types.TierNew,
		MatchMethod:   types.MethodAutoCreate,
		Created:       true,
		NeedsReview:   false,
	}, nil
}

// qualify filters ranked scores to those meeting either threshold. The OR is
// intentional: the combined score catches phonetic/structural typos while
// the raw distance catches near-identical short strings.
func (r *Resolver) qualify(scores []match.Score) []match.Score {
	var qualifying []match.Score
	for _, s := range scores {
		if s.Combined >= r.cfg.ScoreThreshold || s.EditDistance <= r.cfg.MaxEditDistance {
			qualifying = append(qualifying, s)
		}
	}
	return qualifying
}

// autoCreate creates a new identity for an unmatched mention. The aliases
// set starts with the canonical display name, maintaining the invariant
// that aliases always contain the canonical name.
func (r *Resolver) autoCreate(ctx context.Context, rawText string, normalized match.Normalized) (*types.Identity, error) {
	kind := types.KindPerson
	if match.IsCompanyName(rawText) {
		kind = types.KindVendor
	}

	now := r.clock.Now()
	ident := &types.Identity{
		ID:                     GenerateIdentityID(kind),
		CanonicalName:          normalized.Display,
		Kind:                   kind,
		Status:                 types.IdentityActive,
		Aliases:                []string{normalized.Display},
		NeedsProfileCompletion: true,
		MentionCount:           1,
		FirstSeen:              now,
		LastSeen:               now,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := r.identities.Put(ctx, ident); err != nil {
		return nil, fmt.Errorf("resolver: auto-create failed: %w", err)
	}

	return ident, nil
}

// recordMatch appends the matched display string to the identity's aliases
// (append-only, idempotent) and records mention activity. Alias writes use
// optimistic concurrency; a lost race is retried with a fresh read.
func (r *Resolver) recordMatch(ctx context.Context, identityID, display string, mctx *types.MatchContext) error {
	var lastErr error
	for attempt := 0; attempt < mergeRetryLimit; attempt++ {
		ident, err := r.identities.Get(ctx, identityID)
		if err != nil {
			return fmt.Errorf("resolver: reload for alias append failed: %w", err)
		}

		if ident.HasAlias(display) {
			lastErr = nil
			break
		}

		err = r.identities.ConditionalUpdate(ctx, identityID, ident.Version, func(i *types.Identity) error {
			i.AddAlias(display)
			return nil
		})
		if err == nil {
			lastErr = nil
			break
		}
		if !errors.Is(err, storage.ErrConcurrentModification) {
			return fmt.Errorf("resolver: alias append failed: %w", err)
		}
		lastErr = err
	}
	if lastErr != nil {
		return fmt.Errorf("resolver: alias append kept losing races: %w", lastErr)
	}

	scope := ""
	if mctx != nil {
		scope = mctx.EntityScope
	}
	if err := r.identities.RecordMention(ctx, identityID, scope); err != nil {
		return fmt.Errorf("resolver: record mention failed: %w", err)
	}
	return nil
}

// toMatchCandidate converts an identity to similarity-engine input, with
// all names in comparison form.
func toMatchCandidate(ident *types.Identity) match.Candidate {
	aliases := make([]string, 0, len(ident.Aliases))
	for _, a := range ident.Aliases {
		if cf := match.ComparisonForm(a); cf != "" {
			aliases = append(aliases, cf)
		}
	}
	return match.Candidate{
		ID:      ident.ID,
		Name:    match.ComparisonForm(ident.CanonicalName),
		Aliases: aliases,
	}
}
