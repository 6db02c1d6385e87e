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

package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/id"
)

// GrantRequest describes a requested grant mutation.
type GrantRequest struct {
	GrantorID  string
	Grantee    Grantee
	Resource   NodeRef
	Permission Permission
	Effect     Effect
	Inherit    bool
	Fields     []string
	ExpiresAt  *time.Time
}

// Manager validates and performs grant, revoke and auto-grant mutations.
// Every mutation emits an event to the audit sink.
type Manager struct {
	grants   GrantRepository
	resolver *Resolver
	actors   ActorReader
	audit    audit.Logger
	now      Clock
}

// NewManager creates a new grant manager.
func NewManager(
	grants GrantRepository,
	resolver *Resolver,
	actors ActorReader,
	auditLogger audit.Logger,
	now Clock,
) *Manager {
	return &Manager{
		grants:   grants,
		resolver: resolver,
		actors:   actors,
		audit:    auditLogger,
		now:      now,
	}
}

// Grant creates a new immutable grant record. The grantor must be a
// superuser or hold manage on the target resource.
func (m *Manager) Grant(ctx context.Context, req GrantRequest) (*Grant, error) {
	if !req.Permission.Valid() {
		return nil, ErrInvalidPermission
	}
	if !req.Effect.Valid() {
		return nil, ErrInvalidEffect
	}
	if !req.Grantee.Type.Valid() {
		return nil, ErrInvalidGranteeType
	}
	if !req.Resource.Type.Valid() {
		return nil, ErrInvalidResource
	}

	if err := m.authorize(ctx, req.GrantorID, req.Resource); err != nil {
		return nil, err
	}

	grant := &Grant{
		ID:         id.NewUUIDv7(),
		Grantee:    req.Grantee,
		Resource:   req.Resource,
		Permission: req.Permission,
		Effect:     req.Effect,
		Inherit:    req.Inherit,
		Fields:     req.Fields,
		ExpiresAt:  req.ExpiresAt,
		GrantedBy:  req.GrantorID,
		GrantedAt:  m.now(),
	}

	if err := m.grants.Insert(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to insert grant: %w", err)
	}

	m.audit.Log(ctx, audit.Event{
		Type:         audit.TypePermissionGranted,
		ActorID:      req.GrantorID,
		ResourceType: string(req.Resource.Type),
		ResourceID:   req.Resource.ID,
		Metadata: map[string]any{
			audit.AttrGrantID:    grant.ID,
			audit.AttrGrantee:    fmt.Sprintf("%s:%s", grant.Grantee.Type, grant.Grantee.ID),
			audit.AttrPermission: string(grant.Permission),
			audit.AttrEffect:     string(grant.Effect),
			audit.AttrInherit:    grant.Inherit,
		},
	})

	return grant, nil
}

// Revoke deletes a grant. The revoker needs the same authorization as a
// grantor would for the grant's resource. Revoking a grant that is
// already gone reports ErrGrantNotFound so callers can distinguish
// "already gone" from "denied".
func (m *Manager) Revoke(ctx context.Context, actorID, grantID string) error {
	grant, err := m.grants.GetByID(ctx, grantID)
	if err != nil {
		return err
	}

	if err := m.authorize(ctx, actorID, grant.Resource); err != nil {
		return err
	}

	if err := m.grants.Delete(ctx, grantID); err != nil {
		return err
	}

	m.audit.Log(ctx, audit.Event{
		Type:         audit.TypePermissionRevoked,
		ActorID:      actorID,
		ResourceType: string(grant.Resource.Type),
		ResourceID:   grant.Resource.ID,
		Metadata: map[string]any{
			audit.AttrGrantID:    grant.ID,
			audit.AttrGrantee:    fmt.Sprintf("%s:%s", grant.Grantee.Type, grant.Grantee.ID),
			audit.AttrPermission: string(grant.Permission),
		},
	})

	return nil
}

// AutoGrantManage grants manage with inheritance to the creator of a
// freshly persisted resource. Creation itself is the authorization, so
// no precondition applies. Callers that need the grant atomic with the
// resource insert should use NewAutoManageGrant with a transactional
// store method instead.
func (m *Manager) AutoGrantManage(ctx context.Context, creatorID string, ref NodeRef) (*Grant, error) {
	if !ref.Type.Valid() {
		return nil, ErrInvalidResource
	}

	grant := NewAutoManageGrant(creatorID, ref, m.now())
	if err := m.grants.Insert(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to insert auto grant: %w", err)
	}

	m.audit.Log(ctx, audit.Event{
		Type:         audit.TypePermissionGranted,
		ActorID:      creatorID,
		ResourceType: string(ref.Type),
		ResourceID:   ref.ID,
		Metadata: map[string]any{
			audit.AttrGrantID:     grant.ID,
			audit.AttrPermission:  string(PermissionManage),
			audit.AttrAutoGranted: true,
		},
	})

	return grant, nil
}

// NewAutoManageGrant builds the manage grant a resource creator receives.
func NewAutoManageGrant(creatorID string, ref NodeRef, now time.Time) *Grant {
	return &Grant{
		ID:         id.NewUUIDv7(),
		Grantee:    Grantee{Type: GranteeUser, ID: creatorID},
		Resource:   ref,
		Permission: PermissionManage,
		Effect:     EffectAllow,
		Inherit:    true,
		GrantedBy:  creatorID,
		GrantedAt:  now,
	}
}

// authorize checks that the actor is a superuser or holds manage on the
// resource, emitting a permission_denied event on failure.
func (m *Manager) authorize(ctx context.Context, actorID string, ref NodeRef) error {
	actor, err := m.actors.GetActor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Superuser {
		return nil
	}

	allowed, err := m.resolver.Check(ctx, CheckRequest{
		ActorID:    actorID,
		Resource:   ref,
		Permission: PermissionManage,
	})
	if err != nil {
		return err
	}
	if !allowed {
		m.audit.Log(ctx, audit.Event{
			Type:         audit.TypePermissionDenied,
			ActorID:      actorID,
			ResourceType: string(ref.Type),
			ResourceID:   ref.ID,
			Metadata: map[string]any{
				audit.AttrReason:     "grantor lacks manage",
				audit.AttrPermission: string(PermissionManage),
			},
		})
		return ErrPermissionDenied
	}
	return nil
}
