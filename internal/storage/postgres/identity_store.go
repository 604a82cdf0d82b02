package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// IdentityStore implements storage.IdentityStore using PostgreSQL.
type IdentityStore struct {
	db *sql.DB
}

// Ensure *IdentityStore implements storage.IdentityStore at compile time.
var _ storage.IdentityStore = (*IdentityStore)(nil)

const identityColumns = `
	id, canonical_name, kind, status, aliases,
	role, rate, email, phone, company, notes, needs_profile_completion,
	mention_count, first_seen, last_seen, last_scope, merged_into, merged_from,
	version, created_at, updated_at`

// Put creates or updates an identity (upsert semantics). The stored version
// is incremented on every write, and the normalized alias index is rebuilt.
func (s *IdentityStore) Put(ctx context.Context, identity *types.Identity) error {
	if identity == nil {
		return storage.ErrInvalidInput
	}
	if identity.ID == "" {
		return fmt.Errorf("%w: identity ID is required", storage.ErrInvalidInput)
	}
	if identity.CanonicalName == "" {
		return fmt.Errorf("%w: canonical name is required", storage.ErrInvalidInput)
	}

	if identity.Status == "" {
		identity.Status = types.IdentityActive
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	identity.UpdatedAt = time.Now()

	aliasesJSON, err := json.Marshal(identity.Aliases)
	if err != nil {
		return fmt.Errorf("failed to marshal aliases: %w", err)
	}
	mergedFromJSON, err := json.Marshal(identity.MergedFrom)
	if err != nil {
		return fmt.Errorf("failed to marshal merged_from: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin Put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
		INSERT INTO identities (
			id, canonical_name, canonical_norm, kind, status, aliases,
			role, rate, email, phone, company, notes, needs_profile_completion,
			mention_count, first_seen, last_seen, last_scope, merged_into, merged_from,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			canonical_name = EXCLUDED.canonical_name,
			canonical_norm = EXCLUDED.canonical_norm,
			kind = EXCLUDED.kind,
			status = EXCLUDED.status,
			aliases = EXCLUDED.aliases,
			role = EXCLUDED.role,
			rate = EXCLUDED.rate,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			company = EXCLUDED.company,
			notes = EXCLUDED.notes,
			needs_profile_completion = EXCLUDED.needs_profile_completion,
			mention_count = EXCLUDED.mention_count,
			first_seen = EXCLUDED.first_seen,
			last_seen = EXCLUDED.last_seen,
			last_scope = EXCLUDED.last_scope,
			merged_into = EXCLUDED.merged_into,
			merged_from = EXCLUDED.merged_from,
			version = identities.version + 1,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, upsert,
		identity.ID, identity.CanonicalName, match.ComparisonForm(identity.CanonicalName),
		identity.Kind, identity.Status, string(aliasesJSON),
		identity.Role, identity.Rate, identity.Email, identity.Phone, identity.Company, identity.Notes,
		identity.NeedsProfileCompletion,
		identity.MentionCount, nullTime(identity.FirstSeen), nullTime(identity.LastSeen),
		identity.LastScope, identity.MergedInto, string(mergedFromJSON),
		identity.Version+1, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: Put %s: %w", identity.ID, err)
	}

	if err := rebuildAliasIndex(ctx, tx, identity.ID, identity.Aliases); err != nil {
		return err
	}

	return tx.Commit()
}

// Get retrieves an identity by ID.
func (s *IdentityStore) Get(ctx context.Context, id string) (*types.Identity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: identity ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// FindByCanonicalName retrieves the active identity whose normalized
// canonical name equals the given comparison string.
func (s *IdentityStore) FindByCanonicalName(ctx context.Context, name string) (*types.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities
		 WHERE canonical_norm = $1 AND status = $2 LIMIT 1`,
		name, types.IdentityActive)
	return scanIdentity(row)
}

// FindByAlias retrieves the active identity carrying the given normalized
// alias via the identity_aliases index.
func (s *IdentityStore) FindByAlias(ctx context.Context, alias string) (*types.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+prefixColumns("i", identityColumns)+` FROM identities i
		 JOIN identity_aliases a ON a.identity_id = i.id
		 WHERE a.alias_norm = $1 AND i.status = $2 LIMIT 1`,
		alias, types.IdentityActive)
	return scanIdentity(row)
}

// FindActiveCandidates returns all identities with status active, ordered
// by ID for deterministic downstream ranking.
func (s *IdentityStore) FindActiveCandidates(ctx context.Context) ([]*types.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE status = $1 ORDER BY id`,
		types.IdentityActive)
	if err != nil {
		return nil, fmt.Errorf("postgres: FindActiveCandidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanIdentities(rows)
}

// List retrieves identities with pagination and filtering.
func (s *IdentityStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Identity], error) {
	opts.Normalize()

	where := "1=1"
	args := []any{}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if opts.Kind != "" {
		args = append(args, opts.Kind)
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if opts.NeedsProfileCompletion {
		where += " AND needs_profile_completion = TRUE"
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: List count: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM identities WHERE %s
		ORDER BY LOWER(canonical_name), id LIMIT $%d OFFSET $%d`,
		identityColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("postgres: List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	identities, err := scanIdentities(rows)
	if err != nil {
		return nil, err
	}

	items := make([]types.Identity, 0, len(identities))
	for _, ident := range identities {
		items = append(items, *ident)
	}

	return &storage.PaginatedResult[types.Identity]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// ConditionalUpdate applies mutate under optimistic concurrency: the write
// only lands if the stored version still equals expectedVersion.
func (s *IdentityStore) ConditionalUpdate(ctx context.Context, id string, expectedVersion int, mutate func(*types.Identity) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin ConditionalUpdate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	ident, err := scanIdentity(row)
	if err != nil {
		return err
	}

	if ident.Version != expectedVersion {
		return fmt.Errorf("%w: identity %s at version %d, expected %d",
			storage.ErrConcurrentModification, id, ident.Version, expectedVersion)
	}

	if err := mutate(ident); err != nil {
		return err
	}

	aliasesJSON, err := json.Marshal(ident.Aliases)
	if err != nil {
		return fmt.Errorf("failed to marshal aliases: %w", err)
	}
	mergedFromJSON, err := json.Marshal(ident.MergedFrom)
	if err != nil {
		return fmt.Errorf("failed to marshal merged_from: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE identities SET
			canonical_name = $1, canonical_norm = $2, kind = $3, status = $4, aliases = $5,
			role = $6, rate = $7, email = $8, phone = $9, company = $10, notes = $11,
			needs_profile_completion = $12,
			mention_count = $13, first_seen = $14, last_seen = $15, last_scope = $16, merged_into = $17,
			merged_from = $18,
			version = version + 1, updated_at = $19
		WHERE id = $20 AND version = $21`,
		ident.CanonicalName, match.ComparisonForm(ident.CanonicalName), ident.Kind, ident.Status, string(aliasesJSON),
		ident.Role, ident.Rate, ident.Email, ident.Phone, ident.Company, ident.Notes,
		ident.NeedsProfileCompletion,
		ident.MentionCount, nullTime(ident.FirstSeen), nullTime(ident.LastSeen), ident.LastScope, ident.MergedInto,
		string(mergedFromJSON),
		time.Now(), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("postgres: ConditionalUpdate %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: ConditionalUpdate %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: identity %s moved past version %d",
			storage.ErrConcurrentModification, id, expectedVersion)
	}

	if err := rebuildAliasIndex(ctx, tx, id, ident.Aliases); err != nil {
		return err
	}

	return tx.Commit()
}

// RecordMention atomically increments the mention count and advances
// last_seen/last_scope for the given identity.
func (s *IdentityStore) RecordMention(ctx context.Context, id string, scope string) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities SET
			mention_count = mention_count + 1,
			last_seen = $1,
			last_scope = CASE WHEN $2 != '' THEN $2 ELSE last_scope END,
			updated_at = $3
		WHERE id = $4`,
		now, scope, now, id)
	if err != nil {
		return fmt.Errorf("postgres: RecordMention %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: RecordMention %s: %w", id, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close is a no-op; the bundling Store owns the connection pool.
func (s *IdentityStore) Close() error { return nil }

// rebuildAliasIndex replaces the normalized alias rows for an identity.
func rebuildAliasIndex(ctx context.Context, tx *sql.Tx, identityID string, aliases []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM identity_aliases WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("postgres: clear alias index for %s: %w", identityID, err)
	}

	for _, alias := range aliases {
		norm := match.ComparisonForm(alias)
		if norm == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO identity_aliases (identity_id, alias, alias_norm)
			VALUES ($1, $2, $3)
			ON CONFLICT (identity_id, alias_norm) DO NOTHING`,
			identityID, alias, norm); err != nil {
			return fmt.Errorf("postgres: index alias %q for %s: %w", alias, identityID, err)
		}
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanIdentity scans a single identity row, mapping sql.ErrNoRows to
// storage.ErrNotFound.
func scanIdentity(row rowScanner) (*types.Identity, error) {
	var (
		ident               types.Identity
		aliasesJSON         []byte
		mergedFromJSON      []byte
		firstSeen, lastSeen sql.NullTime
	)

	err := row.Scan(
		&ident.ID, &ident.CanonicalName, &ident.Kind, &ident.Status, &aliasesJSON,
		&ident.Role, &ident.Rate, &ident.Email, &ident.Phone, &ident.Company, &ident.Notes,
		&ident.NeedsProfileCompletion,
		&ident.MentionCount, &firstSeen, &lastSeen, &ident.LastScope, &ident.MergedInto, &mergedFromJSON,
		&ident.Version, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan identity: %w", err)
	}

	if len(aliasesJSON) > 0 {
		if err := json.Unmarshal(aliasesJSON, &ident.Aliases); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal aliases for %s: %w", ident.ID, err)
		}
	}
	if len(mergedFromJSON) > 0 {
		if err := json.Unmarshal(mergedFromJSON, &ident.MergedFrom); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal merged_from for %s: %w", ident.ID, err)
		}
	}
	if firstSeen.Valid {
		ident.FirstSeen = firstSeen.Time
	}
	if lastSeen.Valid {
		ident.LastSeen = lastSeen.Time
	}

	return &ident, nil
}

// scanIdentities scans a result set of identity rows.
func scanIdentities(rows *sql.Rows) ([]*types.Identity, error) {
	var out []*types.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate identities: %w", err)
	}
	return out, nil
}

// prefixColumns qualifies each column in a select list with a table alias.
func prefixColumns(table, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = table + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

// nullTime converts a possibly-zero time to its nullable SQL form.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
