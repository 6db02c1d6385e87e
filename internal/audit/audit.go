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

package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types
const (
	TypePermissionGranted = "permission_granted"
	TypePermissionRevoked = "permission_revoked"
	TypePermissionDenied  = "permission_denied"
	TypeMembershipAdded   = "membership_added"
	TypeMembershipRemoved = "membership_removed"
	TypeResourceCreated   = "resource_created"
	TypeUserCreated       = "user_created"
	TypeUserUpdated       = "user_updated"
	TypeLoginSuccess      = "login_success"
	TypeLoginFailed       = "login_failed"
)

// Metadata attribute keys
const (
	AttrReason      = "reason"
	AttrGrantID     = "grant_id"
	AttrGrantee     = "grantee"
	AttrPermission  = "permission"
	AttrEffect      = "effect"
	AttrInherit     = "inherit"
	AttrFields      = "fields"
	AttrExpiresAt   = "expires_at"
	AttrGroupID     = "group_id"
	AttrAutoGranted = "auto_granted"
)

// System actor markers for events not triggered by a user
const (
	ActorSystemCleanup = "system:cleanup"
)

// Event represents an auditable decision or mutation. Durable storage
// and querying of events belongs to the external audit subsystem; this
// core only emits them.
type Event struct {
	Type         string
	ActorID      string
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
	Timestamp    time.Time
}

// Logger defines the interface for the audit event sink
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID),
		slog.Time("timestamp", event.Timestamp),
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}
