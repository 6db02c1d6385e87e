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

	"github.com/gridguard/gridguard/internal/authz"
)

// CreateResourceRequest represents node creation data
type CreateResourceRequest struct {
	ResourceType string  `json:"resource_type"`
	Name         string  `json:"name"`
	ParentID     *string `json:"parent_id,omitempty"`
}

// CreateResource persists a hierarchy node; the creator receives manage
// on it in the same transaction
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	node, err := h.assetService.CreateNode(
		r.Context(),
		GetActorID(r.Context()),
		authz.ResourceType(req.ResourceType),
		req.Name,
		req.ParentID,
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, node)
}

// GetResource retrieves a hierarchy node
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	ref := resourceRefFromURL(r)
	node, err := h.assetService.GetNode(r.Context(), ref.Type, ref.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, node)
}
