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

	"github.com/gridguard/gridguard/internal/authz"
)

// ResourceDirectory implements authz.ResourceResolver and
// authz.NameResolver across every node kind. Users and groups are roots
// with no stored parent; asset nodes carry parent pointers.
type ResourceDirectory struct {
	db *DB
}

// NewResourceDirectory creates a new resource directory
func NewResourceDirectory(db *DB) *ResourceDirectory {
	return &ResourceDirectory{db: db}
}

// ParentID returns the ID of the node's parent, or "" for root types.
// Returns authz.ErrResourceNotFound if the node itself does not exist.
func (d *ResourceDirectory) ParentID(ctx context.Context, ref authz.NodeRef) (string, error) {
	switch ref.Type {
	case authz.ResourceUser:
		return "", d.exists(ctx, `SELECT 1 FROM users WHERE id = $1`, ref.ID)
	case authz.ResourceGroup:
		return "", d.exists(ctx, `SELECT 1 FROM groups WHERE id = $1`, ref.ID)
	case authz.ResourceSite, authz.ResourcePlan, authz.ResourceSensor:
		var parentID *string
		err := d.db.pool.QueryRow(ctx, `
			SELECT parent_id FROM assets WHERE id = $1 AND resource_type = $2
		`, ref.ID, ref.Type).Scan(&parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", authz.ErrResourceNotFound
			}
			return "", fmt.Errorf("failed to resolve parent: %w", err)
		}
		if parentID == nil {
			return "", nil
		}
		return *parentID, nil
	default:
		return "", authz.ErrInvalidResource
	}
}

// NodeName returns a display name for the node.
func (d *ResourceDirectory) NodeName(ctx context.Context, ref authz.NodeRef) (string, error) {
	var query string
	switch ref.Type {
	case authz.ResourceUser:
		query = `SELECT username FROM users WHERE id = $1`
	case authz.ResourceGroup:
		query = `SELECT name FROM groups WHERE id = $1`
	case authz.ResourceSite, authz.ResourcePlan, authz.ResourceSensor:
		query = `SELECT name FROM assets WHERE id = $1`
	default:
		return "", authz.ErrInvalidResource
	}

	var name string
	err := d.db.pool.QueryRow(ctx, query, ref.ID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrResourceNotFound
		}
		return "", fmt.Errorf("failed to resolve node name: %w", err)
	}
	return name, nil
}

func (d *ResourceDirectory) exists(ctx context.Context, query, id string) error {
	var one int
	err := d.db.pool.QueryRow(ctx, query, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.ErrResourceNotFound
		}
		return fmt.Errorf("failed to check existence: %w", err)
	}
	return nil
}
