// Copyright 2026 The GridGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gridguard/gridguard/internal/authz"
)

// GrantRepository implements authz.GrantRepository
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

const grantColumns = `id, grantee_type, grantee_id, resource_type, resource_id,
	permission, effect, inherit, fields, expires_at, granted_by, granted_at`

// Insert persists a new grant
func (r *GrantRepository) Insert(ctx context.Context, grant *authz.Grant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO grants (
			id, grantee_type, grantee_id, resource_type, resource_id,
			permission, effect, inherit, fields, expires_at, granted_by, granted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		grant.ID, grant.Grantee.Type, grant.Grantee.ID,
		grant.Resource.Type, grant.Resource.ID,
		grant.Permission, grant.Effect, grant.Inherit, grant.Fields,
		grant.ExpiresAt, grant.GrantedBy, grant.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

// Delete removes a grant
func (r *GrantRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM grants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}
	return nil
}

// GetByID retrieves a grant by ID
func (r *GrantRepository) GetByID(ctx context.Context, id string) (*authz.Grant, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+grantColumns+`
		FROM grants
		WHERE id = $1
	`, id)

	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return grant, nil
}

// ListForChain retrieves all grants whose grantee is one of grantees and
// whose resource is one of the chain nodes. One round trip per check.
func (r *GrantRepository) ListForChain(ctx context.Context, grantees []authz.Grantee, chain []authz.Ancestor) ([]*authz.Grant, error) {
	if len(grantees) == 0 || len(chain) == 0 {
		return nil, nil
	}

	args := make([]any, 0, 2*(len(grantees)+len(chain)))
	granteeTuples := make([]string, 0, len(grantees))
	for _, g := range grantees {
		args = append(args, g.Type, g.ID)
		granteeTuples = append(granteeTuples, fmt.Sprintf("($%d, $%d)", len(args)-1, len(args)))
	}
	nodeTuples := make([]string, 0, len(chain))
	for _, n := range chain {
		args = append(args, n.Type, n.ID)
		nodeTuples = append(nodeTuples, fmt.Sprintf("($%d, $%d)", len(args)-1, len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM grants
		WHERE (grantee_type, grantee_id) IN (%s)
		  AND (resource_type, resource_id) IN (%s)
	`, grantColumns, strings.Join(granteeTuples, ", "), strings.Join(nodeTuples, ", "))

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants for chain: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListByGrantee retrieves all grants held by a single grantee
func (r *GrantRepository) ListByGrantee(ctx context.Context, grantee authz.Grantee) ([]*authz.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM grants
		WHERE grantee_type = $1 AND grantee_id = $2
		ORDER BY granted_at, id
	`, grantee.Type, grantee.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants by grantee: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListByResource retrieves all grants scoped to exactly one resource
func (r *GrantRepository) ListByResource(ctx context.Context, ref authz.NodeRef) ([]*authz.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM grants
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY granted_at, id
	`, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants by resource: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListExpiringWithin retrieves grants whose expiry falls in [from, to]
func (r *GrantRepository) ListExpiringWithin(ctx context.Context, from, to time.Time) ([]*authz.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM grants
		WHERE expires_at IS NOT NULL AND expires_at >= $1 AND expires_at <= $2
		ORDER BY expires_at, id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// DeleteExpired removes grants whose expiry has passed
func (r *GrantRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM grants WHERE expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired grants: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanGrant(row pgx.Row) (*authz.Grant, error) {
	var g authz.Grant
	err := row.Scan(
		&g.ID, &g.Grantee.Type, &g.Grantee.ID,
		&g.Resource.Type, &g.Resource.ID,
		&g.Permission, &g.Effect, &g.Inherit, &g.Fields,
		&g.ExpiresAt, &g.GrantedBy, &g.GrantedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGrants(rows pgx.Rows) ([]*authz.Grant, error) {
	var grants []*authz.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
