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

// implies is the static implication closure: a stored grant of the key
// permission satisfies requests for any permission in the value set.
// PermissionMember is deliberately absent; it satisfies nothing.
var implies = map[Permission][]Permission{
	PermissionManage: {PermissionRead, PermissionWrite, PermissionDelete, PermissionCreate, PermissionManage},
	PermissionWrite:  {PermissionRead, PermissionWrite},
	PermissionDelete: {PermissionRead, PermissionDelete},
	PermissionCreate: {PermissionRead, PermissionCreate},
	PermissionRead:   {PermissionRead},
}

// Implies returns the set of permission kinds satisfied by a grant of
// the given permission.
func Implies(granted Permission) []Permission {
	return implies[granted]
}

// Satisfies reports whether a stored grant of permission granted covers
// a request for permission requested.
func Satisfies(granted, requested Permission) bool {
	for _, p := range implies[granted] {
		if p == requested {
			return true
		}
	}
	return false
}
