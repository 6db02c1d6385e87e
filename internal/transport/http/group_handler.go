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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// CreateGroupRequest represents group creation data
type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateGroup creates a group; the creator receives manage on it
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	g, err := h.groupService.CreateGroup(r.Context(), GetActorID(r.Context()), req.Name, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, g)
}

// GetGroup retrieves a group
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.groupService.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

// AddMemberRequest represents membership data
type AddMemberRequest struct {
	UserID    string     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AddMember adds a user to a group, optionally time-bounded
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	m, err := h.groupService.AddMember(
		r.Context(),
		GetActorID(r.Context()),
		chi.URLParam(r, "groupID"),
		req.UserID,
		req.ExpiresAt,
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, m)
}

// RemoveMember removes a user from a group
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.groupService.RemoveMember(
		r.Context(),
		GetActorID(r.Context()),
		chi.URLParam(r, "groupID"),
		chi.URLParam(r, "userID"),
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "member removed",
	})
}

// ListMembers lists the memberships of a group
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.groupService.ListMembers(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}
