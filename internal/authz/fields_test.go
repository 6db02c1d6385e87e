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

package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gridguard/gridguard/internal/authz"
)

// TestPurpose: Validates self-service field rules: ordinary users can
// touch their profile fields but never their own username, superuser or
// disabled flags. No grant is consulted for self-updates.
func TestUpdateValidator_SelfService(t *testing.T) {
	f := newFixture()
	v := authz.NewUpdateValidator(f.actors, f.resolver)
	ctx := context.Background()

	if err := v.ValidateUpdateFields(ctx, "alice", "alice", []string{"email", "display_name"}); err != nil {
		t.Errorf("profile fields should pass: %v", err)
	}

	for _, field := range []string{"username", "superuser", "disabled"} {
		err := v.ValidateUpdateFields(ctx, "alice", "alice", []string{"email", field})
		var rejected *authz.FieldRejectedError
		if !errors.As(err, &rejected) || rejected.Field != field {
			t.Errorf("field %s: want FieldRejectedError for it, got %v", field, err)
		}
		if !errors.Is(err, authz.ErrFieldRejected) {
			t.Errorf("field %s: rejection should match ErrFieldRejected", field)
		}
	}
}

// TestPurpose: Validates that a superuser's self-update bypasses the
// forbidden-field rules entirely.
func TestUpdateValidator_SuperuserSelfService(t *testing.T) {
	f := newFixture()
	v := authz.NewUpdateValidator(f.actors, f.resolver)

	err := v.ValidateUpdateFields(context.Background(), "root", "root", []string{"username", "superuser", "disabled"})
	if err != nil {
		t.Errorf("superuser self-update should bypass field rules: %v", err)
	}
}

// TestPurpose: Validates cross-actor updates: each field needs a write
// decision carrying that field, and the first failing field rejects the
// whole update.
func TestUpdateValidator_CrossActor(t *testing.T) {
	f := newFixture()
	v := authz.NewUpdateValidator(f.actors, f.resolver)
	ctx := context.Background()

	f.addGrant(&authz.Grant{
		ID:         "g-email-only",
		Grantee:    userGrantee("alice"),
		Resource:   userRef("bob"),
		Permission: authz.PermissionWrite,
		Effect:     authz.EffectAllow,
		Fields:     []string{"email", "display_name"},
	})

	if err := v.ValidateUpdateFields(ctx, "alice", "bob", []string{"email"}); err != nil {
		t.Errorf("granted field should pass: %v", err)
	}
	if err := v.ValidateUpdateFields(ctx, "alice", "bob", []string{"email", "display_name"}); err != nil {
		t.Errorf("both granted fields should pass: %v", err)
	}

	err := v.ValidateUpdateFields(ctx, "alice", "bob", []string{"email", "username"})
	var rejected *authz.FieldRejectedError
	if !errors.As(err, &rejected) || rejected.Field != "username" {
		t.Errorf("want FieldRejectedError{username}, got %v", err)
	}

	// No grant at all: the first requested field is the rejection.
	err = v.ValidateUpdateFields(ctx, "bob", "alice", []string{"email", "display_name"})
	if !errors.As(err, &rejected) || rejected.Field != "email" {
		t.Errorf("want FieldRejectedError{email}, got %v", err)
	}
}

// TestPurpose: Validates that an unrestricted write grant on a user
// record covers any field in a cross-actor update, and that superusers
// pass the ACL check by bypass.
func TestUpdateValidator_CrossActorUnrestricted(t *testing.T) {
	f := newFixture()
	v := authz.NewUpdateValidator(f.actors, f.resolver)
	ctx := context.Background()

	f.addGrant(&authz.Grant{
		ID:         "g-open",
		Grantee:    userGrantee("alice"),
		Resource:   userRef("bob"),
		Permission: authz.PermissionWrite,
		Effect:     authz.EffectAllow,
	})

	if err := v.ValidateUpdateFields(ctx, "alice", "bob", []string{"username", "disabled"}); err != nil {
		t.Errorf("unrestricted grant should cover any field: %v", err)
	}

	if err := v.ValidateUpdateFields(ctx, "root", "bob", []string{"superuser"}); err != nil {
		t.Errorf("superuser bypass should cover cross-actor updates: %v", err)
	}
}
