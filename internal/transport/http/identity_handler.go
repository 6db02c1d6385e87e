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

	"github.com/go-chi/chi/v5"

	"github.com/gridguard/gridguard/internal/identity"
	"github.com/gridguard/gridguard/internal/observability/logger"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		// Uniform response; the audit trail carries the real reason.
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokenString, err := h.tokenService.Issue(user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", logger.Error(err), logger.ActorID(user.ID))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"token":    tokenString,
	})
}

// ProvisionRequest represents account provisioning data
type ProvisionRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProvisionUser creates a new user account
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	user, err := h.identityService.Provision(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to provision user",
			logger.Error(err),
			logger.Username(req.Username),
		)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, userResponse(user))
}

// GetUser retrieves a user account
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, userResponse(user))
}

// UpdateUserRequest is a partial account update. Absent fields are left
// unchanged.
type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	Superuser *bool   `json:"superuser,omitempty"`
	Disabled  *bool   `json:"disabled,omitempty"`
}

// UpdateUser applies a field-validated partial update to a user record
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.UpdateAccount(
		r.Context(),
		GetActorID(r.Context()),
		chi.URLParam(r, "userID"),
		identity.AccountUpdate{
			Username:  req.Username,
			Email:     req.Email,
			Superuser: req.Superuser,
			Disabled:  req.Disabled,
		},
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, userResponse(user))
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword changes the caller's password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.ChangePassword(r.Context(), GetActorID(r.Context()), req.OldPassword, req.NewPassword)
	if err != nil {
		switch err {
		case identity.ErrInvalidCredentials:
			respondError(w, http.StatusUnauthorized, "invalid old password")
		case identity.ErrWeakPassword:
			respondError(w, http.StatusBadRequest, "new password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "password changed successfully",
	})
}

func userResponse(user *identity.User) map[string]any {
	return map[string]any{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"superuser":  user.Superuser,
		"disabled":   user.Disabled,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	}
}
