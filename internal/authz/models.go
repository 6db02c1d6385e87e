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
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrResourceNotFound   = errors.New("resource not found")
	ErrActorNotFound      = errors.New("actor not found")
	ErrGrantNotFound      = errors.New("grant not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidPermission  = errors.New("invalid permission")
	ErrInvalidEffect      = errors.New("invalid effect")
	ErrInvalidGranteeType = errors.New("invalid grantee type")
	ErrInvalidResource    = errors.New("invalid resource type")
	ErrFieldRejected      = errors.New("field update rejected")
)

// FieldRejectedError reports the first field that failed update validation.
// Matches ErrFieldRejected under errors.Is.
type FieldRejectedError struct {
	Field string
}

func (e *FieldRejectedError) Error() string {
	return fmt.Sprintf("field %q update rejected", e.Field)
}

func (e *FieldRejectedError) Is(target error) bool {
	return target == ErrFieldRejected
}

// Permission is the closed set of permission kinds a grant can carry.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionCreate Permission = "create"
	PermissionManage Permission = "manage"

	// PermissionMember marks group membership-like access. It never
	// participates in implication or resource-access decisions.
	PermissionMember Permission = "member"
)

// AccessPermissions are the permission kinds that participate in access
// decisions, in matrix column order.
var AccessPermissions = []Permission{
	PermissionRead,
	PermissionWrite,
	PermissionDelete,
	PermissionCreate,
	PermissionManage,
}

// Valid reports whether p belongs to the closed permission enum.
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionDelete,
		PermissionCreate, PermissionManage, PermissionMember:
		return true
	}
	return false
}

// Effect is the outcome a grant contributes to resolution.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether e is a known effect.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// GranteeType distinguishes user grantees from group grantees.
type GranteeType string

const (
	GranteeUser  GranteeType = "user"
	GranteeGroup GranteeType = "group"
)

// Valid reports whether t is a known grantee type.
func (t GranteeType) Valid() bool {
	return t == GranteeUser || t == GranteeGroup
}

// Grantee identifies who a grant applies to.
type Grantee struct {
	Type GranteeType `json:"type"`
	ID   string      `json:"id"`
}

// Grant is one stored ACL record. Grants are immutable once created: a
// change is modeled as revoke plus new grant, never in-place mutation.
type Grant struct {
	ID         string     `json:"id"`
	Grantee    Grantee    `json:"grantee"`
	Resource   NodeRef    `json:"resource"`
	Permission Permission `json:"permission"`
	Effect     Effect     `json:"effect"`
	Inherit    bool       `json:"inherit"`
	Fields     []string   `json:"fields,omitempty"` // nil = every field; empty = no fields
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	GrantedBy  string     `json:"granted_by"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// Expired reports whether the grant's expiry has passed at the given
// instant. Expiry is evaluated lazily against the caller's clock.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// AppliesToField reports whether the grant covers the named field.
// A nil field set covers every field of the resource.
func (g *Grant) AppliesToField(field string) bool {
	if g.Fields == nil {
		return true
	}
	for _, f := range g.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Actor is the identity view the engine needs: superusers bypass all
// checks, disabled actors resolve to deny.
type Actor struct {
	ID        string
	Superuser bool
	Disabled  bool
}

// Membership links an actor to a group, optionally time-bounded. Expired
// memberships are excluded from identity expansion but not deleted.
type Membership struct {
	GroupID   string
	UserID    string
	ExpiresAt *time.Time
}

// Active reports whether the membership participates in identity
// expansion at the given instant.
func (m *Membership) Active(now time.Time) bool {
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

// Clock supplies wall-clock time. Injectable so that expiry evaluation
// is deterministic under test.
type Clock func() time.Time

// ActorReader resolves actor flags for the superuser bypass and the
// disabled check.
type ActorReader interface {
	// GetActor retrieves an actor by ID. Returns ErrActorNotFound if the
	// actor does not exist.
	GetActor(ctx context.Context, id string) (*Actor, error)
}

// MembershipReader lists memberships for identity expansion and group
// fan-out. Expiry filtering is the engine's job, not the store's.
type MembershipReader interface {
	// ListForUser retrieves all memberships for a user, expired included.
	ListForUser(ctx context.Context, userID string) ([]*Membership, error)

	// ListForGroup retrieves all memberships of a group, expired included.
	ListForGroup(ctx context.Context, groupID string) ([]*Membership, error)
}

// GrantRepository defines the persistence interface for grant records.
// Mutations must be atomic with respect to the store.
type GrantRepository interface {
	// Insert persists a new grant.
	Insert(ctx context.Context, grant *Grant) error

	// Delete removes a grant. Returns ErrGrantNotFound if it is already
	// gone.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a grant by ID. Returns ErrGrantNotFound if missing.
	GetByID(ctx context.Context, id string) (*Grant, error)

	// ListForChain retrieves all grants whose grantee is one of grantees
	// and whose resource is one of the chain nodes.
	ListForChain(ctx context.Context, grantees []Grantee, chain []Ancestor) ([]*Grant, error)

	// ListByGrantee retrieves all grants held by a single grantee.
	ListByGrantee(ctx context.Context, grantee Grantee) ([]*Grant, error)

	// ListByResource retrieves all grants scoped to exactly one resource.
	ListByResource(ctx context.Context, ref NodeRef) ([]*Grant, error)

	// ListExpiringWithin retrieves grants whose expiry falls in [from, to].
	ListExpiringWithin(ctx context.Context, from, to time.Time) ([]*Grant, error)

	// DeleteExpired removes grants whose expiry has passed. Used by the
	// explicit cleanup job only; resolution never depends on it.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
