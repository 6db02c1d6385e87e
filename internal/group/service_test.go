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

package group_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/group"
)

// MockGroupRepository mocks group.Repository.
type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) CreateGroupWithGrant(ctx context.Context, g *group.Group, grant *authz.Grant) error {
	args := m.Called(ctx, g, grant)
	return args.Error(0)
}

func (m *MockGroupRepository) GetGroup(ctx context.Context, id string) (*group.Group, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group.Group), args.Error(1)
}

func (m *MockGroupRepository) GetGroupByName(ctx context.Context, name string) (*group.Group, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*group.Group), args.Error(1)
}

func (m *MockGroupRepository) DeleteGroup(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGroupRepository) AddMember(ctx context.Context, membership *group.Membership) error {
	args := m.Called(ctx, membership)
	return args.Error(0)
}

func (m *MockGroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MockGroupRepository) ListMembers(ctx context.Context, groupID string) ([]*group.Membership, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*group.Membership), args.Error(1)
}

// MockAuditLogger records emitted audit events.
type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

type stubActors struct {
	superuser map[string]bool
}

func (s *stubActors) GetActor(ctx context.Context, id string) (*authz.Actor, error) {
	return &authz.Actor{ID: id, Superuser: s.superuser[id]}, nil
}

// stubDirectory treats every ref as an existing root node.
type stubDirectory struct{}

func (stubDirectory) ParentID(ctx context.Context, ref authz.NodeRef) (string, error) {
	return "", nil
}

type stubMemberships struct{}

func (stubMemberships) ListForUser(ctx context.Context, userID string) ([]*authz.Membership, error) {
	return nil, nil
}

func (stubMemberships) ListForGroup(ctx context.Context, groupID string) ([]*authz.Membership, error) {
	return nil, nil
}

// memGrants is a minimal in-memory grant store so the manage-on-group
// authorization path runs against real grants.
type memGrants struct {
	grants []*authz.Grant
}

func (s *memGrants) Insert(ctx context.Context, grant *authz.Grant) error {
	s.grants = append(s.grants, grant)
	return nil
}

func (s *memGrants) Delete(ctx context.Context, id string) error { return nil }

func (s *memGrants) GetByID(ctx context.Context, id string) (*authz.Grant, error) {
	return nil, authz.ErrGrantNotFound
}

func (s *memGrants) ListForChain(ctx context.Context, grantees []authz.Grantee, chain []authz.Ancestor) ([]*authz.Grant, error) {
	granteeSet := map[authz.Grantee]bool{}
	for _, g := range grantees {
		granteeSet[g] = true
	}
	nodeSet := map[authz.NodeRef]bool{}
	for _, n := range chain {
		nodeSet[n.NodeRef] = true
	}
	var out []*authz.Grant
	for _, g := range s.grants {
		if granteeSet[g.Grantee] && nodeSet[g.Resource] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memGrants) ListByGrantee(ctx context.Context, grantee authz.Grantee) ([]*authz.Grant, error) {
	return nil, nil
}

func (s *memGrants) ListByResource(ctx context.Context, ref authz.NodeRef) ([]*authz.Grant, error) {
	return nil, nil
}

func (s *memGrants) ListExpiringWithin(ctx context.Context, from, to time.Time) ([]*authz.Grant, error) {
	return nil, nil
}

func (s *memGrants) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestService(repo group.Repository, auditLogger audit.Logger, superusers map[string]bool) (*group.Service, *memGrants) {
	actors := &stubActors{superuser: superusers}
	grants := &memGrants{}
	clock := authz.Clock(time.Now)
	resolver := authz.NewResolver(
		actors,
		authz.NewAncestorResolver(stubDirectory{}),
		authz.NewIdentityExpander(stubMemberships{}, clock),
		grants,
		clock,
	)
	return group.NewService(repo, actors, resolver, auditLogger, clock), grants
}

func TestCreateGroup(t *testing.T) {
	repo := new(MockGroupRepository)
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeResourceCreated && e.Metadata[audit.AttrAutoGranted] == true
	})).Return()
	svc, _ := newTestService(repo, auditLogger, nil)

	var autoGrant *authz.Grant
	repo.On("GetGroupByName", mock.Anything, "operators").Return(nil, group.ErrGroupNotFound)
	repo.On("CreateGroupWithGrant", mock.Anything,
		mock.MatchedBy(func(g *group.Group) bool {
			return g.Name == "operators" && g.CreatedBy == "alice" && g.ID != ""
		}),
		mock.MatchedBy(func(g *authz.Grant) bool {
			autoGrant = g
			return true
		}),
	).Return(nil)

	g, err := svc.CreateGroup(context.Background(), "alice", "operators", "shift operators")
	require.NoError(t, err)
	require.NotNil(t, g)

	// The creator got manage on the new group, in the same repo call
	// that persisted the group itself.
	require.NotNil(t, autoGrant)
	assert.Equal(t, authz.PermissionManage, autoGrant.Permission)
	assert.Equal(t, authz.Grantee{Type: authz.GranteeUser, ID: "alice"}, autoGrant.Grantee)
	assert.Equal(t, authz.NodeRef{Type: authz.ResourceGroup, ID: g.ID}, autoGrant.Resource)
	auditLogger.AssertExpectations(t)
}

func TestCreateGroup_DuplicateName(t *testing.T) {
	repo := new(MockGroupRepository)
	svc, _ := newTestService(repo, new(MockAuditLogger), nil)

	repo.On("GetGroupByName", mock.Anything, "operators").Return(&group.Group{ID: "g1", Name: "operators"}, nil)

	_, err := svc.CreateGroup(context.Background(), "alice", "operators", "")
	assert.ErrorIs(t, err, group.ErrGroupAlreadyExists)
	repo.AssertNotCalled(t, "CreateGroupWithGrant", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroup_GrantWriteFails(t *testing.T) {
	repo := new(MockGroupRepository)
	auditLogger := new(MockAuditLogger)
	svc, _ := newTestService(repo, auditLogger, nil)

	repo.On("GetGroupByName", mock.Anything, "operators").Return(nil, group.ErrGroupNotFound)
	repo.On("CreateGroupWithGrant", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("grant insert failed"))

	// A failed grant write fails the creation as a unit; nothing is
	// reported created.
	g, err := svc.CreateGroup(context.Background(), "alice", "operators", "")
	require.Error(t, err)
	assert.Nil(t, g)
	auditLogger.AssertNotCalled(t, "Log", mock.Anything, mock.Anything)
}

func TestAddMember_BySuperuser(t *testing.T) {
	repo := new(MockGroupRepository)
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeMembershipAdded && e.ResourceID == "g1"
	})).Return()
	svc, _ := newTestService(repo, auditLogger, map[string]bool{"root": true})

	repo.On("GetGroup", mock.Anything, "g1").Return(&group.Group{ID: "g1", Name: "operators"}, nil)
	repo.On("AddMember", mock.Anything, mock.MatchedBy(func(m *group.Membership) bool {
		return m.GroupID == "g1" && m.UserID == "bob" && m.AddedBy == "root"
	})).Return(nil)

	m, err := svc.AddMember(context.Background(), "root", "g1", "bob", nil)
	require.NoError(t, err)
	assert.Nil(t, m.ExpiresAt)
	auditLogger.AssertExpectations(t)
}

func TestAddMember_ByGroupManager(t *testing.T) {
	repo := new(MockGroupRepository)
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.Anything).Return()
	svc, grants := newTestService(repo, auditLogger, nil)

	grants.grants = append(grants.grants, authz.NewAutoManageGrant("alice",
		authz.NodeRef{Type: authz.ResourceGroup, ID: "g1"}, time.Now().Add(-time.Hour)))

	expiry := time.Now().Add(30 * 24 * time.Hour)
	repo.On("GetGroup", mock.Anything, "g1").Return(&group.Group{ID: "g1"}, nil)
	repo.On("AddMember", mock.Anything, mock.Anything).Return(nil)

	m, err := svc.AddMember(context.Background(), "alice", "g1", "bob", &expiry)
	require.NoError(t, err)
	require.NotNil(t, m.ExpiresAt)
	assert.Equal(t, expiry, *m.ExpiresAt)
}

func TestAddMember_Denied(t *testing.T) {
	repo := new(MockGroupRepository)
	svc, _ := newTestService(repo, new(MockAuditLogger), nil)

	_, err := svc.AddMember(context.Background(), "bob", "g1", "carol", nil)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	repo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything)
}

func TestRemoveMember(t *testing.T) {
	repo := new(MockGroupRepository)
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeMembershipRemoved
	})).Return()
	svc, _ := newTestService(repo, auditLogger, map[string]bool{"root": true})

	repo.On("RemoveMember", mock.Anything, "g1", "bob").Return(nil)

	require.NoError(t, svc.RemoveMember(context.Background(), "root", "g1", "bob"))
	auditLogger.AssertExpectations(t)

	repo.On("RemoveMember", mock.Anything, "g1", "ghost").Return(group.ErrMemberNotFound)
	err := svc.RemoveMember(context.Background(), "root", "g1", "ghost")
	assert.ErrorIs(t, err, group.ErrMemberNotFound)
}

func TestListMembers(t *testing.T) {
	repo := new(MockGroupRepository)
	svc, _ := newTestService(repo, new(MockAuditLogger), nil)

	expired := time.Now().Add(-time.Hour)
	stored := []*group.Membership{
		{GroupID: "g1", UserID: "bob"},
		{GroupID: "g1", UserID: "carol", ExpiresAt: &expired},
	}
	repo.On("ListMembers", mock.Anything, "g1").Return(stored, nil)

	// Expired memberships stay listed; only their effect is gone.
	got, err := svc.ListMembers(context.Background(), "g1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
