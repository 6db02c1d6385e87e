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
	"errors"
	"time"

	"github.com/gridguard/gridguard/internal/authz"
)

// Domain errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupAlreadyExists  = errors.New("group already exists")
	ErrMemberNotFound      = errors.New("membership not found")
	ErrMemberAlreadyExists = errors.New("membership already exists")
)

// Group is a named collection of actors.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Membership links an actor to a group. An expired membership stops
// counting for identity expansion but stays stored until removed.
type Membership struct {
	GroupID   string     `json:"group_id"`
	UserID    string     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	AddedAt   time.Time  `json:"added_at"`
	AddedBy   string     `json:"added_by"`
}

// Repository defines the interface for group persistence
type Repository interface {
	// CreateGroupWithGrant persists the group and the creator's manage
	// grant atomically. Either both rows land or neither does.
	CreateGroupWithGrant(ctx context.Context, g *Group, grant *authz.Grant) error

	// GetGroup retrieves a group by ID
	GetGroup(ctx context.Context, id string) (*Group, error)

	// GetGroupByName retrieves a group by name
	GetGroupByName(ctx context.Context, name string) (*Group, error)

	// DeleteGroup deletes a group and its memberships
	DeleteGroup(ctx context.Context, id string) error

	// AddMember adds a membership record
	AddMember(ctx context.Context, m *Membership) error

	// RemoveMember removes a membership record
	RemoveMember(ctx context.Context, groupID, userID string) error

	// ListMembers retrieves all memberships of a group, expired included
	ListMembers(ctx context.Context, groupID string) ([]*Membership, error)
}
