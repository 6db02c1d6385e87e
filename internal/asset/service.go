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
	"fmt"

	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/id"
)

// Service provides the resource-creation flow. Creating a child node
// requires create on its parent; creating a root node is reserved to
// superusers. The creator's manage grant is written in the same store
// transaction as the node itself.
type Service struct {
	repo        Repository
	actors      authz.ActorReader
	resolver    *authz.Resolver
	auditLogger audit.Logger
	now         authz.Clock
}

// NewService creates a new asset service
func NewService(
	repo Repository,
	actors authz.ActorReader,
	resolver *authz.Resolver,
	auditLogger audit.Logger,
	now authz.Clock,
) *Service {
	return &Service{
		repo:        repo,
		actors:      actors,
		resolver:    resolver,
		auditLogger: auditLogger,
		now:         now,
	}
}

// isAssetType reports whether t is a node kind this service persists.
func isAssetType(t authz.ResourceType) bool {
	return t == authz.ResourceSite || t == authz.ResourcePlan || t == authz.ResourceSensor
}

// CreateNode persists a new hierarchy node and auto-grants manage to
// its creator atomically.
func (s *Service) CreateNode(ctx context.Context, creatorID string, nodeType authz.ResourceType, name string, parentID *string) (*Node, error) {
	if !isAssetType(nodeType) {
		return nil, ErrInvalidNode
	}

	parentType, hasParent := authz.ParentType(nodeType)
	if hasParent && parentID == nil {
		return nil, ErrParentRequired
	}

	actor, err := s.actors.GetActor(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !actor.Superuser {
		if !hasParent {
			// Only superusers may plant new roots.
			return nil, authz.ErrPermissionDenied
		}
		allowed, err := s.resolver.Check(ctx, authz.CheckRequest{
			ActorID:    creatorID,
			Resource:   authz.NodeRef{Type: parentType, ID: *parentID},
			Permission: authz.PermissionCreate,
		})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, authz.ErrPermissionDenied
		}
	}

	node := &Node{
		ID:        id.NewUUIDv7(),
		Type:      nodeType,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: s.now(),
		CreatedBy: creatorID,
	}
	grant := authz.NewAutoManageGrant(creatorID, node.Ref(), s.now())

	if err := s.repo.CreateWithGrant(ctx, node, grant); err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:         audit.TypeResourceCreated,
		ActorID:      creatorID,
		ResourceType: string(nodeType),
		ResourceID:   node.ID,
		Metadata:     map[string]any{audit.AttrGrantID: grant.ID, audit.AttrAutoGranted: true},
	})

	return node, nil
}

// GetNode retrieves a node by type and ID
func (s *Service) GetNode(ctx context.Context, nodeType authz.ResourceType, nodeID string) (*Node, error) {
	return s.repo.GetByID(ctx, nodeType, nodeID)
}

// ListChildren retrieves the direct children of a node
func (s *Service) ListChildren(ctx context.Context, parentID string) ([]*Node, error) {
	return s.repo.ListChildren(ctx, parentID)
}
