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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter constructs the engine's instruments on the global meter
// provider. When disabled it hands out instruments from the no-op
// meter, so call sites never branch on configuration.
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// CheckCounter counts resolved permission checks. Recording sites label
// it with the decision and the requested permission.
func (m *Meter) CheckCounter() (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		"authz_checks_total",
		metric.WithDescription("Total permission checks resolved, labeled by decision"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create check counter: %w", err)
	}
	return counter, nil
}

// CheckDuration measures end-to-end check resolution latency, ancestor
// walk and grant fetch included.
func (m *Meter) CheckDuration() (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		"authz_check_duration_seconds",
		metric.WithDescription("Permission check resolution latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create check duration histogram: %w", err)
	}
	return histogram, nil
}

// GrantMutationCounter counts grant and revoke mutations, labeled by
// operation.
func (m *Meter) GrantMutationCounter() (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		"authz_grant_mutations_total",
		metric.WithDescription("Total grant and revoke mutations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant mutation counter: %w", err)
	}
	return counter, nil
}
