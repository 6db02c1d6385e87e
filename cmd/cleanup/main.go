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

// Purges expired grants and group memberships. Resolution never depends
// on this job: expiry is evaluated lazily on every decision, so the
// purge is pure housekeeping and safe to run at any cadence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gridguard/gridguard/internal/audit"
	"github.com/gridguard/gridguard/internal/config"
	"github.com/gridguard/gridguard/internal/observability/logger"
	"github.com/gridguard/gridguard/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-cleanup",
	})

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	grantRepo := postgres.NewGrantRepository(db)
	groupRepo := postgres.NewGroupRepository(db)
	auditLogger := audit.NewSlogLogger()
	now := time.Now()

	grants, err := grantRepo.DeleteExpired(ctx, now)
	if err != nil {
		slog.Error("failed to purge expired grants", logger.Error(err))
		os.Exit(1)
	}

	memberships, err := groupRepo.DeleteExpiredMemberships(ctx, now)
	if err != nil {
		slog.Error("failed to purge expired memberships", logger.Error(err))
		os.Exit(1)
	}

	auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypePermissionRevoked,
		ActorID: audit.ActorSystemCleanup,
		Metadata: map[string]any{
			audit.AttrReason:     "expired",
			"grants_purged":      grants,
			"memberships_purged": memberships,
		},
	})

	slog.Info("cleanup completed",
		logger.RowsAffected(grants),
		logger.Component("cleanup"),
	)
}
