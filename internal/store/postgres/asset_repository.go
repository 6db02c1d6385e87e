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

	"github.com/jackc/pgx/v5"

	"github.com/gridguard/gridguard/internal/asset"
	"github.com/gridguard/gridguard/internal/authz"
)

// AssetRepository implements asset.Repository
type AssetRepository struct {
	db *DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// CreateWithGrant persists the node and the creator's manage grant in a
// single transaction. Either both rows land or neither does.
func (r *AssetRepository) CreateWithGrant(ctx context.Context, node *asset.Node, grant *authz.Grant) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO assets (id, resource_type, name, parent_id, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		node.ID, node.Type, node.Name, node.ParentID, node.CreatedAt, node.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
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
		return fmt.Errorf("failed to commit asset creation: %w", err)
	}
	return nil
}

// GetByID retrieves a node by type and ID
func (r *AssetRepository) GetByID(ctx context.Context, nodeType authz.ResourceType, id string) (*asset.Node, error) {
	var node asset.Node

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, resource_type, name, parent_id, created_at, created_by
		FROM assets
		WHERE id = $1 AND resource_type = $2
	`, id, nodeType).Scan(
		&node.ID, &node.Type, &node.Name, &node.ParentID, &node.CreatedAt, &node.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, asset.ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return &node, nil
}

// ListChildren retrieves the direct children of a node
func (r *AssetRepository) ListChildren(ctx context.Context, parentID string) ([]*asset.Node, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, resource_type, name, parent_id, created_at, created_by
		FROM assets
		WHERE parent_id = $1
		ORDER BY created_at, id
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var nodes []*asset.Node
	for rows.Next() {
		var node asset.Node
		if err := rows.Scan(&node.ID, &node.Type, &node.Name, &node.ParentID, &node.CreatedAt, &node.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		nodes = append(nodes, &node)
	}
	return nodes, rows.Err()
}
