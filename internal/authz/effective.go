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
	"math"
	"sort"
	"time"
)

// NameResolver looks up display names for hierarchy nodes so aggregated
// views can annotate grants with something readable.
type NameResolver interface {
	NodeName(ctx context.Context, ref NodeRef) (string, error)
}

// GrantView is a grant annotated for administrative display.
type GrantView struct {
	Grant        *Grant `json:"grant"`
	ResourceName string `json:"resource_name,omitempty"`
	Depth        int    `json:"depth"`
	ViaGroup     string `json:"via_group,omitempty"`
}

// ActorGrants separates an actor's own grants from those held through
// group membership.
type ActorGrants struct {
	Direct    []GrantView `json:"direct"`
	ViaGroups []GrantView `json:"via_groups"`
}

// EffectiveEntry is the aggregated view for one actor on one resource:
// the resolved permission set, merged field scope and the contributing
// grant IDs in canonical order.
type EffectiveEntry struct {
	ActorID     string       `json:"actor_id"`
	Permissions []Permission `json:"permissions"`
	Fields      []string     `json:"fields,omitempty"` // nil = unrestricted
	Sources     []string     `json:"sources"`
}

// NodeGrants is the full permission picture of one hierarchy node.
type NodeGrants struct {
	Parent    *NodeRef         `json:"parent,omitempty"`
	Inherited []GrantView      `json:"inherited"`
	Direct    []*Grant         `json:"direct"`
	Effective []EffectiveEntry `json:"effective"`
}

// ExpiringGrant is a grant approaching its expiry.
type ExpiringGrant struct {
	Grant           *Grant `json:"grant"`
	ResourceName    string `json:"resource_name,omitempty"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
}

// MatrixCell is one permission verdict in the matrix.
type MatrixCell struct {
	Allowed      bool `json:"allowed"`
	Inherited    bool `json:"inherited"`
	FieldLimited bool `json:"field_limited"`
}

// MatrixRow holds the verdicts for one actor across all access
// permission kinds.
type MatrixRow struct {
	ActorID string                    `json:"actor_id"`
	Cells   map[Permission]MatrixCell `json:"cells"`
}

// Aggregator produces the explainable views over the grant store:
// who holds what, where it came from, and when it runs out.
type Aggregator struct {
	grants      GrantRepository
	memberships MembershipReader
	ancestors   *AncestorResolver
	identity    *IdentityExpander
	resolver    *Resolver
	names       NameResolver
	now         Clock
}

// NewAggregator creates a new effective-permission aggregator.
func NewAggregator(
	grants GrantRepository,
	memberships MembershipReader,
	ancestors *AncestorResolver,
	identity *IdentityExpander,
	resolver *Resolver,
	names NameResolver,
	now Clock,
) *Aggregator {
	return &Aggregator{
		grants:      grants,
		memberships: memberships,
		ancestors:   ancestors,
		identity:    identity,
		resolver:    resolver,
		names:       names,
		now:         now,
	}
}

// MyPermissions lists every non-expired grant an actor holds, split into
// direct grants and grants held via active group memberships.
func (a *Aggregator) MyPermissions(ctx context.Context, actorID string) (*ActorGrants, error) {
	now := a.now()
	out := &ActorGrants{Direct: []GrantView{}, ViaGroups: []GrantView{}}

	direct, err := a.grants.ListByGrantee(ctx, Grantee{Type: GranteeUser, ID: actorID})
	if err != nil {
		return nil, err
	}
	for _, g := range direct {
		if g.Expired(now) {
			continue
		}
		out.Direct = append(out.Direct, a.view(ctx, g, 0, ""))
	}

	memberships, err := a.memberships.ListForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if !m.Active(now) {
			continue
		}
		held, err := a.grants.ListByGrantee(ctx, Grantee{Type: GranteeGroup, ID: m.GroupID})
		if err != nil {
			return nil, err
		}
		for _, g := range held {
			if g.Expired(now) {
				continue
			}
			out.ViaGroups = append(out.ViaGroups, a.view(ctx, g, 0, m.GroupID))
		}
	}

	return out, nil
}

// ResourcePermissions lists the non-expired grants scoped to exactly one
// resource; no ancestor expansion.
func (a *Aggregator) ResourcePermissions(ctx context.Context, ref NodeRef) ([]*Grant, error) {
	if !ref.Type.Valid() {
		return nil, ErrInvalidResource
	}
	stored, err := a.grants.ListByResource(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := a.now()
	out := make([]*Grant, 0, len(stored))
	for _, g := range stored {
		if !g.Expired(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

// NodePermissions explains a node's full permission picture: what it
// inherits, what is granted directly, and the effective per-actor union.
func (a *Aggregator) NodePermissions(ctx context.Context, ref NodeRef) (*NodeGrants, error) {
	chain, err := a.ancestors.Chain(ctx, ref)
	if err != nil {
		return nil, err
	}

	out := &NodeGrants{Inherited: []GrantView{}, Direct: []*Grant{}, Effective: []EffectiveEntry{}}
	if len(chain) > 1 {
		parent := chain[1].NodeRef
		out.Parent = &parent
	}

	now := a.now()
	var applicable []chainGrant
	for _, ancestor := range chain {
		stored, err := a.grants.ListByResource(ctx, ancestor.NodeRef)
		if err != nil {
			return nil, err
		}
		for _, g := range stored {
			if g.Expired(now) {
				continue
			}
			if ancestor.Depth == 0 {
				out.Direct = append(out.Direct, g)
			} else if g.Inherit {
				out.Inherited = append(out.Inherited, a.view(ctx, g, ancestor.Depth, ""))
			} else {
				continue
			}
			if g.Permission != PermissionMember {
				applicable = append(applicable, chainGrant{grant: g, depth: ancestor.Depth})
			}
		}
	}

	effective, err := a.effectiveEntries(ctx, applicable)
	if err != nil {
		return nil, err
	}
	out.Effective = effective
	return out, nil
}

// ExpiringPermissions lists grants expiring within the next withinDays
// days, soonest first, each carrying the whole days left (rounded up).
func (a *Aggregator) ExpiringPermissions(ctx context.Context, withinDays int) ([]ExpiringGrant, error) {
	now := a.now()
	cutoff := now.Add(time.Duration(withinDays) * 24 * time.Hour)

	stored, err := a.grants.ListExpiringWithin(ctx, now, cutoff)
	if err != nil {
		return nil, err
	}

	out := make([]ExpiringGrant, 0, len(stored))
	for _, g := range stored {
		days := int(math.Ceil(g.ExpiresAt.Sub(now).Hours() / 24))
		name, err := a.names.NodeName(ctx, g.Resource)
		if err != nil {
			name = ""
		}
		out = append(out, ExpiringGrant{Grant: g, ResourceName: name, DaysUntilExpiry: days})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Grant.ExpiresAt.Before(*out[j].Grant.ExpiresAt)
	})
	return out, nil
}

// PermissionMatrix derives one row per reachable actor by running the
// resolver for every access permission kind.
func (a *Aggregator) PermissionMatrix(ctx context.Context, ref NodeRef) ([]MatrixRow, error) {
	chain, err := a.ancestors.Chain(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := a.now()
	actorSet := map[string]bool{}
	for _, ancestor := range chain {
		stored, err := a.grants.ListByResource(ctx, ancestor.NodeRef)
		if err != nil {
			return nil, err
		}
		for _, g := range stored {
			if g.Expired(now) || g.Permission == PermissionMember {
				continue
			}
			if ancestor.Depth > 0 && !g.Inherit {
				continue
			}
			actors, err := a.expandGrantee(ctx, g.Grantee, now)
			if err != nil {
				return nil, err
			}
			for _, id := range actors {
				actorSet[id] = true
			}
		}
	}

	actorIDs := make([]string, 0, len(actorSet))
	for id := range actorSet {
		actorIDs = append(actorIDs, id)
	}
	sort.Strings(actorIDs)

	rows := make([]MatrixRow, 0, len(actorIDs))
	for _, actorID := range actorIDs {
		row := MatrixRow{ActorID: actorID, Cells: map[Permission]MatrixCell{}}
		for _, perm := range AccessPermissions {
			d, err := a.resolver.resolve(ctx, CheckRequest{
				ActorID:    actorID,
				Resource:   ref,
				Permission: perm,
			})
			if err != nil {
				return nil, err
			}
			row.Cells[perm] = cellFromDecision(d)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cellFromDecision derives the matrix flags from a resolved decision.
// The deciding grant is the first applicable one (canonical order) whose
// effect matches the verdict.
func cellFromDecision(d *decision) MatrixCell {
	cell := MatrixCell{Allowed: d.allowed}
	if d.bypass {
		return cell
	}

	var allows []*Grant
	for _, cg := range d.applicable {
		deciding := (d.allowed && cg.grant.Effect == EffectAllow) ||
			(!d.allowed && cg.grant.Effect == EffectDeny)
		if deciding && !cell.Inherited && cg.depth > 0 {
			cell.Inherited = true
		}
		if cg.grant.Effect == EffectAllow {
			allows = append(allows, cg.grant)
		}
	}
	if d.allowed {
		merged, unrestricted := mergeFields(allows)
		cell.FieldLimited = !unrestricted && merged != nil
	}
	return cell
}

// effectiveEntries folds applicable grants into one entry per reachable
// actor. Allow grants contribute their implication closure; deny grants
// subtract theirs. Field sets merge with nil (unrestricted) winning.
func (a *Aggregator) effectiveEntries(ctx context.Context, applicable []chainGrant) ([]EffectiveEntry, error) {
	sortCanonical(applicable)
	now := a.now()

	type acc struct {
		allowed map[Permission]bool
		denied  map[Permission]bool
		allows  []*Grant
		sources []string
	}
	byActor := map[string]*acc{}

	for _, cg := range applicable {
		actors, err := a.expandGrantee(ctx, cg.grant.Grantee, now)
		if err != nil {
			return nil, err
		}
		for _, actorID := range actors {
			entry := byActor[actorID]
			if entry == nil {
				entry = &acc{allowed: map[Permission]bool{}, denied: map[Permission]bool{}}
				byActor[actorID] = entry
			}
			entry.sources = append(entry.sources, cg.grant.ID)
			for _, p := range Implies(cg.grant.Permission) {
				if cg.grant.Effect == EffectDeny {
					entry.denied[p] = true
				} else {
					entry.allowed[p] = true
				}
			}
			if cg.grant.Effect == EffectAllow {
				entry.allows = append(entry.allows, cg.grant)
			}
		}
	}

	actorIDs := make([]string, 0, len(byActor))
	for id := range byActor {
		actorIDs = append(actorIDs, id)
	}
	sort.Strings(actorIDs)

	out := make([]EffectiveEntry, 0, len(actorIDs))
	for _, actorID := range actorIDs {
		entry := byActor[actorID]
		perms := []Permission{}
		for _, p := range AccessPermissions {
			if entry.allowed[p] && !entry.denied[p] {
				perms = append(perms, p)
			}
		}
		fields, unrestricted := mergeFields(entry.allows)
		if unrestricted {
			fields = nil
		}
		out = append(out, EffectiveEntry{
			ActorID:     actorID,
			Permissions: perms,
			Fields:      fields,
			Sources:     entry.sources,
		})
	}
	return out, nil
}

// expandGrantee resolves a grantee to the actors behind it: the actor
// itself, or a group's currently active members.
func (a *Aggregator) expandGrantee(ctx context.Context, g Grantee, now time.Time) ([]string, error) {
	if g.Type == GranteeUser {
		return []string{g.ID}, nil
	}
	memberships, err := a.memberships.ListForGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	var actors []string
	for _, m := range memberships {
		if m.Active(now) {
			actors = append(actors, m.UserID)
		}
	}
	return actors, nil
}

// mergeFields merges the field sets of contributing allow grants. If any
// grant is unrestricted (nil fields), the merge is unrestricted;
// otherwise it is the union, sorted for stable output.
func mergeFields(grants []*Grant) ([]string, bool) {
	set := map[string]bool{}
	for _, g := range grants {
		if g.Fields == nil {
			return nil, true
		}
		for _, f := range g.Fields {
			set[f] = true
		}
	}
	if len(grants) == 0 {
		return nil, false
	}
	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields, false
}

// view annotates a grant with its resource name; grants may outlive
// their resource, so a failed lookup leaves the name blank.
func (a *Aggregator) view(ctx context.Context, g *Grant, depth int, viaGroup string) GrantView {
	name, err := a.names.NodeName(ctx, g.Resource)
	if err != nil {
		name = ""
	}
	return GrantView{Grant: g, ResourceName: name, Depth: depth, ViaGroup: viaGroup}
}
