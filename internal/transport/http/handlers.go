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
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/gridguard/gridguard/internal/asset"
	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/authz"
	"github.com/gridguard/gridguard/internal/group"
	"github.com/gridguard/gridguard/internal/identity"
	"github.com/gridguard/gridguard/internal/observability/metrics"
	"github.com/gridguard/gridguard/internal/token"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	groupService    *group.Service
	assetService    *asset.Service
	tokenService    *token.Service
	grantManager    *authz.Manager
	resolver        *authz.Resolver
	aggregator      *authz.Aggregator
	auditLogger     audit.Logger

	checkCounter  metric.Int64Counter
	checkDuration metric.Float64Histogram
	grantCounter  metric.Int64Counter
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	groupService *group.Service,
	assetService *asset.Service,
	tokenService *token.Service,
	grantManager *authz.Manager,
	resolver *authz.Resolver,
	aggregator *authz.Aggregator,
	auditLogger audit.Logger,
	meter *metrics.Meter,
) *Handler {
	h := &Handler{
		identityService: identityService,
		groupService:    groupService,
		assetService:    assetService,
		tokenService:    tokenService,
		grantManager:    grantManager,
		resolver:        resolver,
		aggregator:      aggregator,
		auditLogger:     auditLogger,
	}
	if meter != nil {
		// Best effort; a nil instrument just skips recording.
		h.checkCounter, _ = meter.CheckCounter()
		h.checkDuration, _ = meter.CheckDuration()
		h.grantCounter, _ = meter.GrantMutationCounter()
	}
	return h
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", h.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Permission checks and grant management
			r.Post("/authz/check", h.Check)
			r.Post("/grants", h.CreateGrant)
			r.Delete("/grants/{grantID}", h.RevokeGrant)

			// Aggregated views
			r.Get("/me/permissions", h.MyPermissions)
			r.Get("/permissions/expiring", h.ExpiringPermissions)
			r.Route("/resources", func(r chi.Router) {
				r.Post("/", h.CreateResource)
				r.Route("/{resourceType}/{resourceID}", func(r chi.Router) {
					r.Get("/", h.GetResource)
					r.Get("/permissions", h.ResourcePermissions)
					r.Get("/effective", h.NodePermissions)
					r.Get("/matrix", h.PermissionMatrix)
				})
			})

			// Accounts
			r.Post("/users", h.ProvisionUser)
			r.Get("/users/{userID}", h.GetUser)
			r.Patch("/users/{userID}", h.UpdateUser)
			r.Post("/users/change-password", h.ChangePassword)

			// Groups
			r.Route("/groups", func(r chi.Router) {
				r.Post("/", h.CreateGroup)
				r.Route("/{groupID}", func(r chi.Router) {
					r.Get("/", h.GetGroup)
					r.Get("/members", h.ListMembers)
					r.Post("/members", h.AddMember)
					r.Delete("/members/{userID}", h.RemoveMember)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "gridguard",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps domain sentinel errors to HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, authz.ErrFieldRejected):
		var fieldErr *authz.FieldRejectedError
		if errors.As(err, &fieldErr) {
			respondError(w, http.StatusForbidden, fieldErr.Error())
			return
		}
		respondError(w, http.StatusForbidden, "field update rejected")
	case errors.Is(err, authz.ErrResourceNotFound),
		errors.Is(err, authz.ErrActorNotFound),
		errors.Is(err, authz.ErrGrantNotFound),
		errors.Is(err, asset.ErrNodeNotFound),
		errors.Is(err, group.ErrGroupNotFound),
		errors.Is(err, group.ErrMemberNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrInvalidPermission),
		errors.Is(err, authz.ErrInvalidEffect),
		errors.Is(err, authz.ErrInvalidGranteeType),
		errors.Is(err, authz.ErrInvalidResource),
		errors.Is(err, asset.ErrInvalidNode),
		errors.Is(err, asset.ErrParentRequired),
		errors.Is(err, identity.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, group.ErrGroupAlreadyExists),
		errors.Is(err, group.ErrMemberAlreadyExists),
		errors.Is(err, identity.ErrUserAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func getIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
