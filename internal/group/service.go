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

package group

import (
	"context"
	"fmt"
	"time"

	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/id"
)

// Service provides group and membership management. Managing a group
// requires manage on the group node, or superuser; groups are root
// nodes in the hierarchy.
type Service struct {
	repo        Repository
	actors      authz.ActorReader
	resolver    *authz.Resolver
	auditLogger audit.Logger
	now         authz.Clock
}

// NewService creates a new group service
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

// CreateGroup creates a group and auto-grants manage on it to the
// creator, mirroring the resource-creation flow. The group row and the
// grant are written in one store transaction; a failed grant write
// fails the whole creation.
func (s *Service) CreateGroup(ctx context.Context, creatorID, name, description string) (*Group, error) {
	existing, err := s.repo.GetGroupByName(ctx, name)
	if err == nil && existing != nil {
		return nil, ErrGroupAlreadyExists
	}

	g := &Group{
		ID:          id.NewUUIDv7(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now(),
		CreatedBy:   creatorID,
	}
	grant := authz.NewAutoManageGrant(creatorID, authz.NodeRef{Type: authz.ResourceGroup, ID: g.ID}, s.now())

	if err := s.repo.CreateGroupWithGrant(ctx, g, grant); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:         audit.TypeResourceCreated,
		ActorID:      creatorID,
		ResourceType: string(authz.ResourceGroup),
		ResourceID:   g.ID,
		Metadata:     map[string]any{audit.AttrGrantID: grant.ID, audit.AttrAutoGranted: true},
	})

	return g, nil
}

// GetGroup retrieves a group by ID
func (s *Service) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	return s.repo.GetGroup(ctx, groupID)
}

// AddMember adds an actor to a group, optionally time-bounded. The
// caller must be a superuser or hold manage on the group.
func (s *Service) AddMember(ctx context.Context, actorID, groupID, userID string, expiresAt *time.Time) (*Membership, error) {
	if err := s.authorize(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	m := &Membership{
		GroupID:   groupID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		AddedAt:   s.now(),
		AddedBy:   actorID,
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:         audit.TypeMembershipAdded,
		ActorID:      actorID,
		ResourceType: string(authz.ResourceGroup),
		ResourceID:   groupID,
		Metadata: map[string]any{
			audit.AttrGrantee:   userID,
			audit.AttrExpiresAt: expiresAt,
		},
	})

	return m, nil
}

// RemoveMember removes an actor from a group. Same authorization as
// AddMember.
func (s *Service) RemoveMember(ctx context.Context, actorID, groupID, userID string) error {
	if err := s.authorize(ctx, actorID, groupID); err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:         audit.TypeMembershipRemoved,
		ActorID:      actorID,
		ResourceType: string(authz.ResourceGroup),
		ResourceID:   groupID,
		Metadata:     map[string]any{audit.AttrGrantee: userID},
	})

	return nil
}

// ListMembers retrieves all memberships of a group, expired included.
func (s *Service) ListMembers(ctx context.Context, groupID string) ([]*Membership, error) {
	return s.repo.ListMembers(ctx, groupID)
}

func (s *Service) authorize(ctx context.Context, actorID, groupID string) error {
	actor, err := s.actors.GetActor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Superuser {
		return nil
	}

	allowed, err := s.resolver.Check(ctx, authz.CheckRequest{
		ActorID:    actorID,
		Resource:   authz.NodeRef{Type: authz.ResourceGroup, ID: groupID},
		Permission: authz.PermissionManage,
	})
	if err != nil {
		return err
	}
	if !allowed {
		return authz.ErrPermissionDenied
	}
	return nil
}
