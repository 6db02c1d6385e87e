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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/group"
)

// GroupRepository implements group.Repository and, through the ListFor*
// methods, the engine's authz.MembershipReader.
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateGroupWithGrant persists the group and the creator's manage
// grant in a single transaction. Either both rows land or neither does.
func (r *GroupRepository) CreateGroupWithGrant(ctx context.Context, g *group.Group, grant *authz.Grant) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO groups (id, name, description, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`,
		g.ID, g.Name, g.Description, g.CreatedAt, g.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	_, err = tx.Exec(ctx, `
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
		return fmt.Errorf("failed to insert creator grant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit group creation: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID
func (r *GroupRepository) GetGroup(ctx context.Context, id string) (*group.Group, error) {
	var g group.Group

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, created_by
		FROM groups
		WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &g, nil
}

// GetGroupByName retrieves a group by name
func (r *GroupRepository) GetGroupByName(ctx context.Context, name string) (*group.Group, error) {
	var g group.Group

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, created_by
		FROM groups
		WHERE name = $1
	`, name).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &g, nil
}

// DeleteGroup deletes a group and its memberships
func (r *GroupRepository) DeleteGroup(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if result.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}
	return nil
}

// AddMember adds a membership record
func (r *GroupRepository) AddMember(ctx context.Context, m *group.Membership) error {
	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, expires_at, added_at, added_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`,
		m.GroupID, m.UserID, m.ExpiresAt, m.AddedAt, m.AddedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return group.ErrMemberAlreadyExists
	}
	return nil
}

// RemoveMember removes a membership record
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return group.ErrMemberNotFound
	}
	return nil
}

// ListMembers retrieves all memberships of a group, expired included
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]*group.Membership, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT group_id, user_id, expires_at, added_at, added_by
		FROM group_members
		WHERE group_id = $1
		ORDER BY added_at
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*group.Membership
	for rows.Next() {
		var m group.Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.ExpiresAt, &m.AddedAt, &m.AddedBy); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ListForUser retrieves all memberships for a user, expired included.
func (r *GroupRepository) ListForUser(ctx context.Context, userID string) ([]*authz.Membership, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT group_id, user_id, expires_at
		FROM group_members
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// ListForGroup retrieves all memberships of a group, expired included.
func (r *GroupRepository) ListForGroup(ctx context.Context, groupID string) ([]*authz.Membership, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT group_id, user_id, expires_at
		FROM group_members
		WHERE group_id = $1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// DeleteExpiredMemberships removes memberships whose expiry has passed.
// Used by the cleanup job only; identity expansion filters lazily.
func (r *GroupRepository) DeleteExpiredMemberships(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM group_members WHERE expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired memberships: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanMemberships(rows pgx.Rows) ([]*authz.Membership, error) {
	var memberships []*authz.Membership
	for rows.Next() {
		var m authz.Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}
