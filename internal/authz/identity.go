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

import "context"

// IdentityExpander resolves an actor into its full grantee set: the
// actor itself plus every group with an active, non-expired membership.
// Pure function of current store state; no side effects.
type IdentityExpander struct {
	memberships MembershipReader
	now         Clock
}

// NewIdentityExpander creates a new identity expander.
func NewIdentityExpander(memberships MembershipReader, now Clock) *IdentityExpander {
	return &IdentityExpander{memberships: memberships, now: now}
}

// Identities returns the grantee set for an actor. Expired memberships
// are excluded lazily; nesting of groups inside groups is not expanded.
func (e *IdentityExpander) Identities(ctx context.Context, actorID string) ([]Grantee, error) {
	grantees := []Grantee{{Type: GranteeUser, ID: actorID}}

	memberships, err := e.memberships.ListForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, m := range memberships {
		if m.Active(now) {
			grantees = append(grantees, Grantee{Type: GranteeGroup, ID: m.GroupID})
		}
	}
	return grantees, nil
}
