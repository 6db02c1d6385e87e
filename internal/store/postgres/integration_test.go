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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gridguard/gridguard/internal/asset"
	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/group"
	"github.com/gridguard/gridguard/internal/id"
	"github.com/gridguard/gridguard/internal/identity"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupTestDB connects to the database described by the DB_* environment
// variables (docker-compose defaults otherwise) and applies the schema.
// Tests skip when no database is reachable.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := New(ctx, Config{
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "gridguard"),
		Password:     envOr("DB_PASSWORD", "gridguard"),
		Database:     envOr("DB_NAME", "gridguard_test"),
		SSLMode:      envOr("DB_SSLMODE", "disable"),
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Migrate(ctx, InitialSchema); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *identity.User {
	t.Helper()
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	user := &identity.User{
		ID:        id.NewUUIDv7(),
		Username:  username,
		Email:     username + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	credentials := &identity.Credentials{UserID: user.ID, PasswordHash: "not-a-real-hash", UpdatedAt: now}
	if err := repo.CreateWithCredentials(context.Background(), user, credentials); err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		db.Pool().Exec(context.Background(), "DELETE FROM users WHERE id = $1", user.ID)
	})
	return user
}

func TestUserRepository_Roundtrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, fmt.Sprintf("it-user-%d", time.Now().UnixNano()))

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Username != user.Username {
		t.Errorf("username = %q, want %q", got.Username, user.Username)
	}

	actor, err := repo.GetActor(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetActor: %v", err)
	}
	if actor.Superuser || actor.Disabled {
		t.Errorf("fresh actor flags = %+v, want both false", actor)
	}

	if _, err := repo.GetByID(ctx, id.NewUUIDv7()); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("missing user: want ErrUserNotFound, got %v", err)
	}

	// Reusing the username hits the unique index and maps to the domain
	// sentinel; the losing user row must not persist.
	dup := &identity.User{
		ID:        id.NewUUIDv7(),
		Username:  user.Username,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	dupCreds := &identity.Credentials{UserID: dup.ID, PasswordHash: "x", UpdatedAt: time.Now().UTC()}
	if err := repo.CreateWithCredentials(ctx, dup, dupCreds); !errors.Is(err, identity.ErrUserAlreadyExists) {
		t.Errorf("duplicate username: want ErrUserAlreadyExists, got %v", err)
	}
	if _, err := repo.GetByID(ctx, dup.ID); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("losing duplicate row persisted: %v", err)
	}
}

func TestGrantRepository_ChainQuery(t *testing.T) {
	db := setupTestDB(t)
	grants := NewGrantRepository(db)
	assets := NewAssetRepository(db)
	ctx := context.Background()

	owner := createTestUser(t, db, fmt.Sprintf("it-owner-%d", time.Now().UnixNano()))

	siteNode := &asset.Node{
		ID:        id.NewUUIDv7(),
		Type:      authz.ResourceSite,
		Name:      "Integration Site",
		CreatedAt: time.Now().UTC(),
		CreatedBy: owner.ID,
	}
	siteGrant := authz.NewAutoManageGrant(owner.ID, siteNode.Ref(), time.Now().UTC())
	if err := assets.CreateWithGrant(ctx, siteNode, siteGrant); err != nil {
		t.Fatalf("create site: %v", err)
	}
	t.Cleanup(func() {
		db.Pool().Exec(ctx, "DELETE FROM grants WHERE id = $1", siteGrant.ID)
		db.Pool().Exec(ctx, "DELETE FROM assets WHERE id = $1", siteNode.ID)
	})

	planID := siteNode.ID
	planNode := &asset.Node{
		ID:        id.NewUUIDv7(),
		Type:      authz.ResourcePlan,
		Name:      "Integration Plan",
		ParentID:  &planID,
		CreatedAt: time.Now().UTC(),
		CreatedBy: owner.ID,
	}
	planGrant := authz.NewAutoManageGrant(owner.ID, planNode.Ref(), time.Now().UTC())
	if err := assets.CreateWithGrant(ctx, planNode, planGrant); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	t.Cleanup(func() {
		db.Pool().Exec(ctx, "DELETE FROM grants WHERE id = $1", planGrant.ID)
		db.Pool().Exec(ctx, "DELETE FROM assets WHERE id = $1", planNode.ID)
	})

	// The chain query returns grants on any listed (grantee, node) pair.
	found, err := grants.ListForChain(ctx,
		[]authz.Grantee{{Type: authz.GranteeUser, ID: owner.ID}},
		[]authz.Ancestor{
			{NodeRef: planNode.Ref(), Depth: 0},
			{NodeRef: siteNode.Ref(), Depth: 1},
		},
	)
	if err != nil {
		t.Fatalf("ListForChain: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("ListForChain returned %d grants, want 2", len(found))
	}

	// The resource directory resolves the stored parent link.
	directory := NewResourceDirectory(db)
	parentID, err := directory.ParentID(ctx, planNode.Ref())
	if err != nil {
		t.Fatalf("ParentID: %v", err)
	}
	if parentID != siteNode.ID {
		t.Errorf("parent = %q, want %q", parentID, siteNode.ID)
	}
}

func TestGrantRepository_Expiry(t *testing.T) {
	db := setupTestDB(t)
	grants := NewGrantRepository(db)
	ctx := context.Background()

	owner := createTestUser(t, db, fmt.Sprintf("it-exp-%d", time.Now().UnixNano()))
	target := createTestUser(t, db, fmt.Sprintf("it-target-%d", time.Now().UnixNano()))

	now := time.Now().UTC()
	soon := now.Add(10 * 24 * time.Hour)
	gone := now.Add(-time.Hour)

	expiring := &authz.Grant{
		ID:         id.NewUUIDv7(),
		Grantee:    authz.Grantee{Type: authz.GranteeUser, ID: owner.ID},
		Resource:   authz.NodeRef{Type: authz.ResourceUser, ID: target.ID},
		Permission: authz.PermissionWrite,
		Effect:     authz.EffectAllow,
		Fields:     []string{"email"},
		ExpiresAt:  &soon,
		GrantedBy:  owner.ID,
		GrantedAt:  now,
	}
	expired := &authz.Grant{
		ID:         id.NewUUIDv7(),
		Grantee:    authz.Grantee{Type: authz.GranteeUser, ID: owner.ID},
		Resource:   authz.NodeRef{Type: authz.ResourceUser, ID: target.ID},
		Permission: authz.PermissionRead,
		Effect:     authz.EffectAllow,
		ExpiresAt:  &gone,
		GrantedBy:  owner.ID,
		GrantedAt:  now.Add(-48 * time.Hour),
	}
	for _, g := range []*authz.Grant{expiring, expired} {
		if err := grants.Insert(ctx, g); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	t.Cleanup(func() {
		db.Pool().Exec(ctx, "DELETE FROM grants WHERE id = ANY($1)", []string{expiring.ID, expired.ID})
	})

	// Field list survives the TEXT[] roundtrip.
	got, err := grants.GetByID(ctx, expiring.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Fields) != 1 || got.Fields[0] != "email" {
		t.Errorf("fields = %v, want [email]", got.Fields)
	}

	within, err := grants.ListExpiringWithin(ctx, now, now.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("ListExpiringWithin: %v", err)
	}
	var seen bool
	for _, g := range within {
		if g.ID == expired.ID {
			t.Error("already expired grant must not appear in the window")
		}
		if g.ID == expiring.ID {
			seen = true
		}
	}
	if !seen {
		t.Error("expiring grant missing from the window")
	}

	purged, err := grants.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if purged < 1 {
		t.Errorf("purged = %d, want at least the expired grant", purged)
	}
	if _, err := grants.GetByID(ctx, expired.ID); !errors.Is(err, authz.ErrGrantNotFound) {
		t.Errorf("expired grant should be gone, got %v", err)
	}
}

func TestGroupRepository_Memberships(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupRepository(db)
	ctx := context.Background()

	owner := createTestUser(t, db, fmt.Sprintf("it-gowner-%d", time.Now().UnixNano()))
	member := createTestUser(t, db, fmt.Sprintf("it-member-%d", time.Now().UnixNano()))

	g := &group.Group{
		ID:        id.NewUUIDv7(),
		Name:      fmt.Sprintf("it-group-%d", time.Now().UnixNano()),
		CreatedAt: time.Now().UTC(),
		CreatedBy: owner.ID,
	}
	groupGrant := authz.NewAutoManageGrant(owner.ID, authz.NodeRef{Type: authz.ResourceGroup, ID: g.ID}, time.Now().UTC())
	if err := groups.CreateGroupWithGrant(ctx, g, groupGrant); err != nil {
		t.Fatalf("CreateGroupWithGrant: %v", err)
	}
	t.Cleanup(func() {
		db.Pool().Exec(ctx, "DELETE FROM grants WHERE id = $1", groupGrant.ID)
		db.Pool().Exec(ctx, "DELETE FROM groups WHERE id = $1", g.ID)
	})

	// Both halves of the transactional create landed.
	if _, err := NewGrantRepository(db).GetByID(ctx, groupGrant.ID); err != nil {
		t.Fatalf("creator grant missing after group creation: %v", err)
	}

	m := &group.Membership{
		GroupID: g.ID,
		UserID:  member.ID,
		AddedAt: time.Now().UTC(),
		AddedBy: owner.ID,
	}
	if err := groups.AddMember(ctx, m); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := groups.AddMember(ctx, m); !errors.Is(err, group.ErrMemberAlreadyExists) {
		t.Errorf("duplicate member: want ErrMemberAlreadyExists, got %v", err)
	}

	forUser, err := groups.ListForUser(ctx, member.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(forUser) != 1 || forUser[0].GroupID != g.ID {
		t.Errorf("ListForUser = %+v, want one membership in %s", forUser, g.ID)
	}

	if err := groups.RemoveMember(ctx, g.ID, member.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := groups.RemoveMember(ctx, g.ID, member.ID); !errors.Is(err, group.ErrMemberNotFound) {
		t.Errorf("removing twice: want ErrMemberNotFound, got %v", err)
	}
}
