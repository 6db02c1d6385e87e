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

package asset

import (
	"context"
	"errors"
	"time"

	"github.com/gridguard/gridguard/internal/authz"
)

// Domain errors
var (
	ErrNodeNotFound   = errors.New("asset node not found")
	ErrInvalidNode    = errors.New("invalid asset node")
	ErrParentRequired = errors.New("parent required for this node type")
)

// Node is one resource in the asset hierarchy: a site, a plan owned by
// a site, or a sensor owned by a plan. The engine stores only enough to
// resolve ancestry; telemetry content lives elsewhere.
type Node struct {
	ID        string             `json:"id"`
	Type      authz.ResourceType `json:"resource_type"`
	Name      string             `json:"name"`
	ParentID  *string            `json:"parent_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	CreatedBy string             `json:"created_by"`
}

// Ref returns the node's hierarchy reference.
func (n *Node) Ref() authz.NodeRef {
	return authz.NodeRef{Type: n.Type, ID: n.ID}
}

// Repository defines the interface for asset node persistence
type Repository interface {
	// CreateWithGrant persists the node and the creator's manage grant
	// in a single transaction. If the grant write fails, the node must
	// not be persisted: no orphaned unprotected resources.
	CreateWithGrant(ctx context.Context, node *Node, grant *authz.Grant) error

	// GetByID retrieves a node by type and ID
	GetByID(ctx context.Context, nodeType authz.ResourceType, id string) (*Node, error)

	// ListChildren retrieves the direct children of a node
	ListChildren(ctx context.Context, parentID string) ([]*Node, error)
}
