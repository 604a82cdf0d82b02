package types

import "time"

// Identity represents a canonical person or vendor record. An identity is
// created once by the resolver's auto-create path and never deleted;
// termination (via merge or explicit deactivation) is a status change only.
type Identity struct {
	// Core identification fields
	ID            string         `json:"id"`             // Unique identifier (format: idn:kind:slug)
	CanonicalName string         `json:"canonical_name"` // Authoritative display name
	Kind          IdentityKind   `json:"kind"`           // person or vendor
	Status        IdentityStatus `json:"status"`         // active, inactive, terminated

	// Aliases is append-only: it always contains the canonical name and
	// every string ever successfully matched to this identity. It never
	// shrinks; a merge replaces it with a superset.
	Aliases []string `json:"aliases"`

	// Optional structured profile fields; may be partially populated.
	Role    string `json:"role,omitempty"`
	Rate    string `json:"rate,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Notes   string `json:"notes,omitempty"`

	// NeedsProfileCompletion flags auto-created identities whose structured
	// fields have not been filled in by a human yet.
	NeedsProfileCompletion bool `json:"needs_profile_completion"`

	// Statistics and provenance
	MentionCount int       `json:"mention_count"`           // Number of mentions resolved to this identity
	FirstSeen    time.Time `json:"first_seen,omitempty"`    // First mention timestamp
	LastSeen     time.Time `json:"last_seen,omitempty"`     // Most recent mention timestamp
	LastScope    string    `json:"last_scope,omitempty"`    // Scope (project id) of most recent activity
	MergedInto   string    `json:"merged_into,omitempty"`   // Surviving identity ID if terminated by merge

	// MergedFrom records the IDs of duplicates absorbed into this identity.
	// Written in the same update as the statistics rollup, so a resumed
	// merge can tell whether the rollup already happened.
	MergedFrom []string `json:"merged_from,omitempty"`

	// Version drives optimistic concurrency for conditional updates.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAlias reports whether the identity already carries the given alias.
// Comparison is exact; callers pass normalized comparison forms.
func (i *Identity) HasAlias(alias string) bool {
	for _, a := range i.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// AddAlias appends an alias if not already present. Re-adding an existing
// alias is a no-op, which keeps alias writes idempotent under retry.
func (i *Identity) AddAlias(alias string) bool {
	if alias == "" || i.HasAlias(alias) {
		return false
	}
	i.Aliases = append(i.Aliases, alias)
	return true
}

// HasAbsorbed reports whether a merge from the given identity has already
// rolled its statistics into this one.
func (i *Identity) HasAbsorbed(id string) bool {
	for _, m := range i.MergedFrom {
		if m == id {
			return true
		}
	}
	return false
}

// IsActive reports whether the identity should participate in matching.
func (i *Identity) IsActive() bool {
	return i.Status == IdentityActive
}

// ProfileFields returns the optional structured fields as a name→value map.
// Used by the merge engine for conflict detection and fill-blanks copying.
func (i *Identity) ProfileFields() map[string]string {
	return map[string]string{
		"role":    i.Role,
		"rate":    i.Rate,
		"email":   i.Email,
		"phone":   i.Phone,
		"company": i.Company,
		"notes":   i.Notes,
	}
}

// SetProfileField sets an optional structured field by name. Unknown names
// are ignored.
func (i *Identity) SetProfileField(name, value string) {
	switch name {
	case "role":
		i.Role = value
	case "rate":
		i.Rate = value
	case "email":
		i.Email = value
	case "phone":
		i.Phone = value
	case "company":
		i.Company = value
	case "notes":
		i.Notes = value
	}
}
