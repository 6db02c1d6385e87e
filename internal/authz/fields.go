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

// selfServiceForbiddenFields are the account-identity fields a
// non-superuser may never change on their own record, regardless of any
// ACL grant.
var selfServiceForbiddenFields = map[string]bool{
	"username":  true,
	"superuser": true,
	"disabled":  true,
}

// UpdateValidator merges the resource-level write decision with
// field-level restrictions for partial updates of user records.
//
// Self-updates consult only the business-rule layer; cross-actor updates
// consult only the ACL layer. The two layers are never combined for a
// single request.
type UpdateValidator struct {
	actors   ActorReader
	resolver *Resolver
}

// NewUpdateValidator creates a new field-restricted update validator.
func NewUpdateValidator(actors ActorReader, resolver *Resolver) *UpdateValidator {
	return &UpdateValidator{actors: actors, resolver: resolver}
}

// ValidateUpdateFields decides whether the actor may update the named
// fields on the target user record. All-or-nothing: the first failing
// field rejects the whole update via FieldRejectedError.
func (v *UpdateValidator) ValidateUpdateFields(ctx context.Context, actorID, targetID string, fields []string) error {
	if actorID == targetID {
		actor, err := v.actors.GetActor(ctx, actorID)
		if err != nil {
			return err
		}
		// Superusers bypass the business-rule layer entirely, including
		// on their own account.
		if actor.Superuser {
			return nil
		}
		for _, f := range fields {
			if selfServiceForbiddenFields[f] {
				return &FieldRejectedError{Field: f}
			}
		}
		return nil
	}

	for _, f := range fields {
		allowed, err := v.resolver.Check(ctx, CheckRequest{
			ActorID:    actorID,
			Resource:   NodeRef{Type: ResourceUser, ID: targetID},
			Permission: PermissionWrite,
			Field:      f,
		})
		if err != nil {
			return err
		}
		if !allowed {
			return &FieldRejectedError{Field: f}
		}
	}
	return nil
}
