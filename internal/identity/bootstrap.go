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

package identity

import (
	"context"
	"fmt"
	"os"

	"github.com/gridguard/gridguard/internal/audit"
)

const (
	EnvBootstrapAdminUsername = "GG_BOOTSTRAP_ADMIN_USERNAME"
	EnvBootstrapAdminPassword = "GG_BOOTSTRAP_ADMIN_PASSWORD"
)

// BootstrapService seeds the first superuser account so the system is
// administrable before any grants exist.
type BootstrapService struct {
	identityService *Service
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		auditLogger:     auditLogger,
	}
}

// Bootstrap checks for bootstrap configuration and executes it if
// necessary. A no-op when the env vars are unset or the account exists.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	username := os.Getenv(EnvBootstrapAdminUsername)
	password := os.Getenv(EnvBootstrapAdminPassword)

	if username == "" || password == "" {
		return nil
	}

	existing, err := s.identityService.repo.GetByUsername(ctx, username)
	if err == nil && existing != nil {
		// Already bootstrapped, skip silently.
		return nil
	}

	user, err := s.identityService.Provision(ctx, username, "", password)
	if err != nil {
		return fmt.Errorf("failed to provision bootstrap superuser: %w", err)
	}

	user.Superuser = true
	if err := s.identityService.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to flag bootstrap superuser: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeUserUpdated,
		ActorID:    user.ID,
		ResourceID: user.ID,
		Metadata:   map[string]any{audit.AttrReason: "bootstrap_superuser"},
	})

	return nil
}
