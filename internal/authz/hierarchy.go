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

// ResourceType enumerates the node kinds of the static asset hierarchy.
type ResourceType string

const (
	ResourceSite   ResourceType = "site"
	ResourcePlan   ResourceType = "plan"
	ResourceSensor ResourceType = "sensor"
	ResourceUser   ResourceType = "user"
	ResourceGroup  ResourceType = "group"
)

// parentTypes is the static hierarchy schema: one parent type per child
// type. Types absent from the map are roots. The schema is a strict path
// to a root; cycles and fan-in are impossible by construction.
var parentTypes = map[ResourceType]ResourceType{
	ResourceSensor: ResourcePlan,
	ResourcePlan:   ResourceSite,
}

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceSite, ResourcePlan, ResourceSensor, ResourceUser, ResourceGroup:
		return true
	}
	return false
}

// ParentType returns the parent resource type per the hierarchy schema,
// or false for root types.
func ParentType(t ResourceType) (ResourceType, bool) {
	p, ok := parentTypes[t]
	return p, ok
}

// NodeRef identifies one node in the hierarchy.
type NodeRef struct {
	Type ResourceType `json:"resource_type"`
	ID   string       `json:"resource_id"`
}

// Ancestor is one link of a resolved ancestor chain. Depth 0 is the
// resource itself, increasing toward the root.
type Ancestor struct {
	NodeRef
	Depth int
}

// ResourceResolver resolves parent links for hierarchy walking. The
// implementation dispatches on resource type; the walk itself is uniform.
type ResourceResolver interface {
	// ParentID returns the ID of the node's parent, or "" for nodes of a
	// root type. Returns ErrResourceNotFound if the node itself does not
	// exist.
	ParentID(ctx context.Context, ref NodeRef) (string, error)
}

// AncestorResolver walks parent pointers up the static schema to produce
// an ordered ancestor chain.
type AncestorResolver struct {
	resources ResourceResolver
}

// NewAncestorResolver creates a new ancestor resolver.
func NewAncestorResolver(resources ResourceResolver) *AncestorResolver {
	return &AncestorResolver{resources: resources}
}

// Chain resolves the ancestor chain of ref, the node itself first. A
// broken parent reference surfaces as ErrResourceNotFound: a fatal
// lookup error, never a permission denial.
func (r *AncestorResolver) Chain(ctx context.Context, ref NodeRef) ([]Ancestor, error) {
	if !ref.Type.Valid() {
		return nil, ErrInvalidResource
	}

	var chain []Ancestor
	cur := ref
	for depth := 0; ; depth++ {
		parentID, err := r.resources.ParentID(ctx, cur)
		if err != nil {
			return nil, err
		}

		chain = append(chain, Ancestor{NodeRef: cur, Depth: depth})

		parentType, ok := ParentType(cur.Type)
		if !ok {
			return chain, nil
		}
		if parentID == "" {
			// Schema demands a parent but the store has none.
			return nil, ErrResourceNotFound
		}
		cur = NodeRef{Type: parentType, ID: parentID}
	}
}
