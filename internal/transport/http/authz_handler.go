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

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/observability/logger"
)

// CheckRequest is the wire form of a permission check.
type CheckRequest struct {
	ActorID      string `json:"actor_id,omitempty"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	Permission   string `json:"permission"`
	Field        string `json:"field,omitempty"`
}

// Check resolves a single permission question. Callers may ask about
// themselves or, with no restriction, about any actor: check results
// are not secrets, grants are.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actorID := req.ActorID
	if actorID == "" {
		actorID = GetActorID(r.Context())
	}

	started := time.Now()
	allowed, err := h.resolver.Check(r.Context(), authz.CheckRequest{
		ActorID:    actorID,
		Resource:   authz.NodeRef{Type: authz.ResourceType(req.ResourceType), ID: req.ResourceID},
		Permission: authz.Permission(req.Permission),
		Field:      req.Field,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "permission check failed",
			logger.Error(err),
			logger.ActorID(actorID),
			logger.ResourceType(req.ResourceType),
			logger.ResourceID(req.ResourceID),
			logger.Permission(req.Permission),
		)
		respondDomainError(w, err)
		return
	}

	if h.checkCounter != nil {
		decision := "deny"
		if allowed {
			decision = "allow"
		}
		h.checkCounter.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("decision", decision),
			attribute.String("permission", req.Permission),
		))
	}
	if h.checkDuration != nil {
		h.checkDuration.Record(r.Context(), time.Since(started).Seconds())
	}

	if !allowed {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:         audit.TypePermissionDenied,
			ActorID:      actorID,
			ResourceType: req.ResourceType,
			ResourceID:   req.ResourceID,
			Metadata: map[string]any{
				audit.AttrPermission: req.Permission,
				"ip_address":         getIPAddress(r),
			},
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"allowed": allowed,
	})
}

// GrantRequest is the wire form of a grant creation.
type GrantRequest struct {
	GranteeType  string     `json:"grantee_type"`
	GranteeID    string     `json:"grantee_id"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	Permission   string     `json:"permission"`
	Effect       string     `json:"effect"`
	Inherit      bool       `json:"inherit"`
	Fields       []string   `json:"fields,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// CreateGrant creates a new grant record
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	effect := authz.Effect(req.Effect)
	if req.Effect == "" {
		effect = authz.EffectAllow
	}

	grant, err := h.grantManager.Grant(r.Context(), authz.GrantRequest{
		GrantorID:  GetActorID(r.Context()),
		Grantee:    authz.Grantee{Type: authz.GranteeType(req.GranteeType), ID: req.GranteeID},
		Resource:   authz.NodeRef{Type: authz.ResourceType(req.ResourceType), ID: req.ResourceID},
		Permission: authz.Permission(req.Permission),
		Effect:     effect,
		Inherit:    req.Inherit,
		Fields:     req.Fields,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if h.grantCounter != nil {
		h.grantCounter.Add(r.Context(), 1, metric.WithAttributes(attribute.String("operation", "grant")))
	}
	respondJSON(w, http.StatusCreated, grant)
}

// RevokeGrant deletes a grant record
func (h *Handler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "grantID")

	if err := h.grantManager.Revoke(r.Context(), GetActorID(r.Context()), grantID); err != nil {
		respondDomainError(w, err)
		return
	}

	if h.grantCounter != nil {
		h.grantCounter.Add(r.Context(), 1, metric.WithAttributes(attribute.String("operation", "revoke")))
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "grant revoked",
	})
}

// MyPermissions lists the caller's grants, direct and via groups
func (h *Handler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	grants, err := h.aggregator.MyPermissions(r.Context(), GetActorID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, grants)
}

// ExpiringPermissions lists grants expiring within ?days (default 30)
func (h *Handler) ExpiringPermissions(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	expiring, err := h.aggregator.ExpiringPermissions(r.Context(), days)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, expiring)
}

func resourceRefFromURL(r *http.Request) authz.NodeRef {
	return authz.NodeRef{
		Type: authz.ResourceType(chi.URLParam(r, "resourceType")),
		ID:   chi.URLParam(r, "resourceID"),
	}
}

// ResourcePermissions lists the grants scoped to exactly one resource
func (h *Handler) ResourcePermissions(w http.ResponseWriter, r *http.Request) {
	grants, err := h.aggregator.ResourcePermissions(r.Context(), resourceRefFromURL(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, grants)
}

// NodePermissions explains a node's full permission picture
func (h *Handler) NodePermissions(w http.ResponseWriter, r *http.Request) {
	node, err := h.aggregator.NodePermissions(r.Context(), resourceRefFromURL(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, node)
}

// PermissionMatrix renders the actor x permission matrix of a node
func (h *Handler) PermissionMatrix(w http.ResponseWriter, r *http.Request) {
	matrix, err := h.aggregator.PermissionMatrix(r.Context(), resourceRefFromURL(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, matrix)
}
