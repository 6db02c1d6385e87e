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
	"sort"
)

// CheckRequest describes one access question put to the resolver.
type CheckRequest struct {
	ActorID    string
	Resource   NodeRef
	Permission Permission

	// Field narrows the question to a single attribute. Empty means the
	// resource-level question.
	Field string
}

// Resolver is the permission decision engine. All methods are pure
// functions of the store's current snapshot and the injected clock, so
// they may run fully in parallel. "No access" is a deny decision, never
// an error.
type Resolver struct {
	actors    ActorReader
	ancestors *AncestorResolver
	identity  *IdentityExpander
	grants    GrantRepository
	now       Clock
}

// NewResolver creates a new permission resolver.
func NewResolver(
	actors ActorReader,
	ancestors *AncestorResolver,
	identity *IdentityExpander,
	grants GrantRepository,
	now Clock,
) *Resolver {
	return &Resolver{
		actors:    actors,
		ancestors: ancestors,
		identity:  identity,
		grants:    grants,
		now:       now,
	}
}

// Check decides whether the actor may perform the requested permission
// on the resource. Deny overrides allow at any depth of the ancestor
// chain; with no applicable grant the answer is deny.
func (r *Resolver) Check(ctx context.Context, req CheckRequest) (bool, error) {
	d, err := r.resolve(ctx, req)
	if err != nil {
		return false, err
	}
	return d.allowed, nil
}

// chainGrant pairs an applicable grant with the depth of the chain node
// it was found on.
type chainGrant struct {
	grant *Grant
	depth int
}

// decision is the internal resolution result: the verdict plus the
// applicable grants that produced it, in canonical order (smallest
// depth, then earliest GrantedAt). The ordering is for explanatory
// output only; the verdict is order-independent.
type decision struct {
	allowed    bool
	bypass     bool // superuser short-circuit, no grants evaluated
	applicable []chainGrant
}

func (r *Resolver) resolve(ctx context.Context, req CheckRequest) (*decision, error) {
	if !req.Permission.Valid() {
		return nil, ErrInvalidPermission
	}
	if !req.Resource.Type.Valid() {
		return nil, ErrInvalidResource
	}

	actor, err := r.actors.GetActor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}

	// Superuser bypass is absolute and evaluated first.
	if actor.Superuser {
		return &decision{allowed: true, bypass: true}, nil
	}
	if actor.Disabled {
		return &decision{allowed: false}, nil
	}

	chain, err := r.ancestors.Chain(ctx, req.Resource)
	if err != nil {
		return nil, err
	}

	grantees, err := r.identity.Identities(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}

	stored, err := r.grants.ListForChain(ctx, grantees, chain)
	if err != nil {
		return nil, err
	}

	depths := make(map[NodeRef]int, len(chain))
	for _, a := range chain {
		depths[a.NodeRef] = a.Depth
	}

	now := r.now()
	d := &decision{}
	for _, g := range stored {
		depth, ok := depths[g.Resource]
		if !ok {
			continue
		}
		if g.Permission == PermissionMember {
			continue
		}
		if g.Expired(now) {
			continue
		}
		if depth > 0 && !g.Inherit {
			continue
		}
		if !Satisfies(g.Permission, req.Permission) {
			continue
		}
		if req.Field != "" && !g.AppliesToField(req.Field) {
			continue
		}
		d.applicable = append(d.applicable, chainGrant{grant: g, depth: depth})
	}

	sortCanonical(d.applicable)

	// Any deny wins, regardless of depth relative to any allow. This is
	// deliberate policy, not most-specific-wins.
	anyAllow := false
	for _, cg := range d.applicable {
		if cg.grant.Effect == EffectDeny {
			return d, nil
		}
		if cg.grant.Effect == EffectAllow {
			anyAllow = true
		}
	}
	d.allowed = anyAllow
	return d, nil
}

// sortCanonical orders applicable grants by smallest depth, then
// earliest GrantedAt, then ID as a final tie-break.
func sortCanonical(grants []chainGrant) {
	sort.SliceStable(grants, func(i, j int) bool {
		if grants[i].depth != grants[j].depth {
			return grants[i].depth < grants[j].depth
		}
		if !grants[i].grant.GrantedAt.Equal(grants[j].grant.GrantedAt) {
			return grants[i].grant.GrantedAt.Before(grants[j].grant.GrantedAt)
		}
		return grants[i].grant.ID < grants[j].grant.ID
	})
}
