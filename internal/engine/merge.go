package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// MergeEngine consolidates two identity records later found to be
// duplicates. The surviving record absorbs the duplicate's aliases and
// blank-field values; the duplicate is terminated, never deleted.
type MergeEngine struct {
	identities storage.IdentityStore
	clock      Clock
}

// NewMergeEngine creates a merge engine over the identity store.
func NewMergeEngine(identities storage.IdentityStore, clock Clock) *MergeEngine {
	if clock == nil {
		clock = SystemClock()
	}
	return &MergeEngine{identities: identities, clock: clock}
}

// SuggestMerge computes a pure preview of merging duplicate into primary:
// field-level conflicts, the alias delta, the fields a merge would fill,
// and any alias collisions with third identities. No writes.
func (m *MergeEngine) SuggestMerge(ctx context.Context, primaryID, duplicateID string) (*types.MergePreview, error) {
	if primaryID == duplicateID {
		return nil, fmt.Errorf("%w: cannot merge an identity with itself", storage.ErrInvalidInput)
	}

	primary, err := m.identities.Get(ctx, primaryID)
	if err != nil {
		return nil, fmt.Errorf("merge: primary %s: %w", primaryID, err)
	}
	duplicate, err := m.identities.Get(ctx, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("merge: duplicate %s: %w", duplicateID, err)
	}

	preview := &types.MergePreview{
		PrimaryID:   primaryID,
		DuplicateID: duplicateID,
	}

	primaryFields := primary.ProfileFields()
	duplicateFields := duplicate.ProfileFields()

	for _, field := range sortedFieldNames(primaryFields) {
		pv, dv := primaryFields[field], duplicateFields[field]
		switch {
		case pv != "" && dv != "" && pv != dv:
			preview.Conflicts = append(preview.Conflicts, types.FieldConflict{
				Field:          field,
				PrimaryValue:   pv,
				DuplicateValue: dv,
			})
		case pv == "" && dv != "":
			preview.FilledFields = append(preview.FilledFields, field)
		}
	}

	// Alias collision check: an incoming alias may already belong to a
	// third active identity. FindByAlias cannot serve here since the
	// duplicate itself holds every incoming alias, so scan the active set.
	others, err := m.identities.FindActiveCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge: alias collision check failed: %w", err)
	}

	for _, alias := range duplicate.Aliases {
		if primary.HasAlias(alias) {
			continue
		}
		preview.NewAliases = append(preview.NewAliases, alias)

		cf := match.ComparisonForm(alias)
		for _, other := range others {
			if other.ID == primaryID || other.ID == duplicateID {
				continue
			}
			for _, oa := range other.Aliases {
				if match.ComparisonForm(oa) == cf {
					// Advisory only; the merge still proceeds.
					preview.AliasCollisions = append(preview.AliasCollisions, types.AliasCollision{
						Alias:      alias,
						IdentityID: other.ID,
					})
					break
				}
			}
		}
	}

	return preview, nil
}

// Merge consolidates duplicate into primary as one logical transaction:
// alias union, fill-blanks field copy, statistics rollup, then duplicate
// termination. If the duplicate is already terminated the merge was applied
// before and this call is a no-op. The duplicate is terminated last, so a
// crash between the two writes leaves a state that re-running the merge
// repairs: every step is idempotent.
func (m *MergeEngine) Merge(ctx context.Context, primaryID, duplicateID string) (*types.Identity, error) {
	if primaryID == duplicateID {
		return nil, fmt.Errorf("%w: cannot merge an identity with itself", storage.ErrInvalidInput)
	}

	duplicate, err := m.identities.Get(ctx, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("merge: duplicate %s: %w", duplicateID, err)
	}

	// Idempotency guard: a terminated duplicate means the merge already
	// completed. Re-running must not merge twice or in opposite directions.
	if duplicate.Status == types.IdentityTerminated {
		primary, err := m.identities.Get(ctx, primaryID)
		if err != nil {
			return nil, fmt.Errorf("merge: primary %s: %w", primaryID, err)
		}
		return primary, nil
	}

	// Step 1: absorb the duplicate into the primary under optimistic
	// concurrency. Conflicting fields keep the primary's value; only
	// blanks are filled.
	if err := m.conditionalUpdateWithRetry(ctx, primaryID, func(primary *types.Identity) error {
		if primary.Status == types.IdentityTerminated {
			return fmt.Errorf("%w: primary %s is terminated", storage.ErrInvalidInput, primaryID)
		}

		// A resumed merge that already absorbed this duplicate must not
		// roll the statistics up twice. MergedFrom is written in the
		// same update as the rollup, so its presence is proof.
		if primary.HasAbsorbed(duplicateID) {
			return nil
		}

		for _, alias := range duplicate.Aliases {
			primary.AddAlias(alias)
		}

		duplicateFields := duplicate.ProfileFields()
		for field, pv := range primary.ProfileFields() {
			if pv == "" && duplicateFields[field] != "" {
				primary.SetProfileField(field, duplicateFields[field])
			}
		}

		primary.MentionCount += duplicate.MentionCount
		if !duplicate.FirstSeen.IsZero() &&
			(primary.FirstSeen.IsZero() || duplicate.FirstSeen.Before(primary.FirstSeen)) {
			primary.FirstSeen = duplicate.FirstSeen
		}
		if duplicate.LastSeen.After(primary.LastSeen) {
			primary.LastSeen = duplicate.LastSeen
			primary.LastScope = duplicate.LastScope
		}
		primary.MergedFrom = append(primary.MergedFrom, duplicateID)

		return nil
	}); err != nil {
		return nil, err
	}

	// Step 2: terminate the duplicate. Runs last so an interrupted merge
	// is detectable (duplicate still active) and resumable.
	if err := m.conditionalUpdateWithRetry(ctx, duplicateID, func(dup *types.Identity) error {
		dup.Status = types.IdentityTerminated
		dup.MergedInto = primaryID
		return nil
	}); err != nil {
		return nil, err
	}

	log.Printf("merge: consolidated %s into %s (%d aliases absorbed)",
		duplicateID, primaryID, len(duplicate.Aliases))

	primary, err := m.identities.Get(ctx, primaryID)
	if err != nil {
		return nil, fmt.Errorf("merge: reload primary %s: %w", primaryID, err)
	}
	return primary, nil
}

// conditionalUpdateWithRetry runs a conditional update with fresh reads
// until it wins the version race or exhausts retries.
func (m *MergeEngine) conditionalUpdateWithRetry(ctx context.Context, id string, mutate func(*types.Identity) error) error {
	var lastErr error
	for attempt := 0; attempt < mergeRetryLimit; attempt++ {
		ident, err := m.identities.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("merge: read %s: %w", id, err)
		}

		err = m.identities.ConditionalUpdate(ctx, id, ident.Version, mutate)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrConcurrentModification) {
			return fmt.Errorf("merge: update %s: %w", id, err)
		}
		lastErr = err
	}
	return fmt.Errorf("merge: update %s kept losing races: %w", id, lastErr)
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
