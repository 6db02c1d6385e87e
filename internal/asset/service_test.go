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

package asset_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gridguard/gridguard/internal/asset"
	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/authz"
)

// MockAssetRepository mocks asset.Repository.
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) CreateWithGrant(ctx context.Context, node *asset.Node, grant *authz.Grant) error {
	args := m.Called(ctx, node, grant)
	return args.Error(0)
}

func (m *MockAssetRepository) GetByID(ctx context.Context, nodeType authz.ResourceType, id string) (*asset.Node, error) {
	args := m.Called(ctx, nodeType, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Node), args.Error(1)
}

func (m *MockAssetRepository) ListChildren(ctx context.Context, parentID string) ([]*asset.Node, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*asset.Node), args.Error(1)
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

// stubDirectory serves a fixed parent map; unknown refs do not exist.
type stubDirectory struct {
	parents map[authz.NodeRef]string
}

func (s *stubDirectory) ParentID(ctx context.Context, ref authz.NodeRef) (string, error) {
	parent, ok := s.parents[ref]
	if !ok {
		return "", authz.ErrResourceNotFound
	}
	return parent, nil
}

type stubMemberships struct{}

func (stubMemberships) ListForUser(ctx context.Context, userID string) ([]*authz.Membership, error) {
	return nil, nil
}

func (stubMemberships) ListForGroup(ctx context.Context, groupID string) ([]*authz.Membership, error) {
	return nil, nil
}

type stubGrants struct {
	grants []*authz.Grant
}

func (s *stubGrants) Insert(ctx context.Context, grant *authz.Grant) error { return nil }
func (s *stubGrants) Delete(ctx context.Context, id string) error          { return nil }
func (s *stubGrants) GetByID(ctx context.Context, id string) (*authz.Grant, error) {
	return nil, authz.ErrGrantNotFound
}

func (s *stubGrants) ListForChain(ctx context.Context, grantees []authz.Grantee, chain []authz.Ancestor) ([]*authz.Grant, error) {
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

func (s *stubGrants) ListByGrantee(ctx context.Context, grantee authz.Grantee) ([]*authz.Grant, error) {
	return nil, nil
}

func (s *stubGrants) ListByResource(ctx context.Context, ref authz.NodeRef) ([]*authz.Grant, error) {
	return nil, nil
}

func (s *stubGrants) ListExpiringWithin(ctx context.Context, from, to time.Time) ([]*authz.Grant, error) {
	return nil, nil
}

func (s *stubGrants) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestService(repo asset.Repository, auditLogger audit.Logger, superusers map[string]bool, grants []*authz.Grant) *asset.Service {
	actors := &stubActors{superuser: superusers}
	directory := &stubDirectory{parents: map[authz.NodeRef]string{
		{Type: authz.ResourceSite, ID: "site-1"}: "",
		{Type: authz.ResourcePlan, ID: "plan-1"}: "site-1",
	}}
	clock := authz.Clock(time.Now)
	resolver := authz.NewResolver(
		actors,
		authz.NewAncestorResolver(directory),
		authz.NewIdentityExpander(stubMemberships{}, clock),
		&stubGrants{grants: grants},
		clock,
	)
	return asset.NewService(repo, actors, resolver, auditLogger, clock)
}

func TestCreateNode_RootBySuperuser(t *testing.T) {
	repo := new(MockAssetRepository)
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeResourceCreated && e.Metadata[audit.AttrAutoGranted] == true
	})).Return()
	svc := newTestService(repo, auditLogger, map[string]bool{"root": true}, nil)

	repo.On("CreateWithGrant", mock.Anything,
		mock.MatchedBy(func(n *asset.Node) bool {
			return n.Type == authz.ResourceSite && n.Name == "North Field" && n.ParentID == nil
		}),
		mock.MatchedBy(func(g *authz.Grant) bool {
			return g.Permission == authz.PermissionManage && g.Inherit &&
				g.Grantee == authz.Grantee{Type: authz.GranteeUser, ID: "root"}
		}),
	).Return(nil)

	node, err := svc.CreateNode(context.Background(), "root", authz.ResourceSite, "North Field", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "root", node.CreatedBy)
	repo.AssertExpectations(t)
	auditLogger.AssertExpectations(t)
}

func TestCreateNode_RootDeniedToOrdinaryUser(t *testing.T) {
	repo := new(MockAssetRepository)
	svc := newTestService(repo, new(MockAuditLogger), nil, nil)

	_, err := svc.CreateNode(context.Background(), "alice", authz.ResourceSite, "Rogue Site", nil)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
	repo.AssertNotCalled(t, "CreateWithGrant", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateNode_ChildNeedsCreateOnParent(t *testing.T) {
	repo := new(MockAssetRepository)
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.Anything).Return()

	grant := &authz.Grant{
		ID:         "g-create",
		Grantee:    authz.Grantee{Type: authz.GranteeUser, ID: "alice"},
		Resource:   authz.NodeRef{Type: authz.ResourceSite, ID: "site-1"},
		Permission: authz.PermissionCreate,
		Effect:     authz.EffectAllow,
		GrantedAt:  time.Now().Add(-time.Hour),
	}
	svc := newTestService(repo, auditLogger, nil, []*authz.Grant{grant})

	parentID := "site-1"
	repo.On("CreateWithGrant", mock.Anything, mock.MatchedBy(func(n *asset.Node) bool {
		return n.Type == authz.ResourcePlan && n.ParentID != nil && *n.ParentID == "site-1"
	}), mock.Anything).Return(nil)

	_, err := svc.CreateNode(context.Background(), "alice", authz.ResourcePlan, "Array A", &parentID)
	require.NoError(t, err)

	// Bob holds nothing on the site.
	_, err = svc.CreateNode(context.Background(), "bob", authz.ResourcePlan, "Array B", &parentID)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
}

func TestCreateNode_ParentRequired(t *testing.T) {
	repo := new(MockAssetRepository)
	svc := newTestService(repo, new(MockAuditLogger), map[string]bool{"root": true}, nil)

	_, err := svc.CreateNode(context.Background(), "root", authz.ResourceSensor, "Inverter 7", nil)
	assert.ErrorIs(t, err, asset.ErrParentRequired)
}

func TestCreateNode_RejectsNonAssetTypes(t *testing.T) {
	repo := new(MockAssetRepository)
	svc := newTestService(repo, new(MockAuditLogger), map[string]bool{"root": true}, nil)

	for _, nodeType := range []authz.ResourceType{authz.ResourceUser, authz.ResourceGroup, "planet"} {
		_, err := svc.CreateNode(context.Background(), "root", nodeType, "x", nil)
		assert.ErrorIs(t, err, asset.ErrInvalidNode, "type %s", nodeType)
	}
}

func TestGetNode(t *testing.T) {
	repo := new(MockAssetRepository)
	svc := newTestService(repo, new(MockAuditLogger), nil, nil)

	repo.On("GetByID", mock.Anything, authz.ResourceSensor, "sensor-404").Return(nil, asset.ErrNodeNotFound)

	_, err := svc.GetNode(context.Background(), authz.ResourceSensor, "sensor-404")
	assert.ErrorIs(t, err, asset.ErrNodeNotFound)
}
