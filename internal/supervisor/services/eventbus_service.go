// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package services

import (
	"context"
)

// EventBusService wraps internal/eventbus.Bus's Consume loop as a
// supervised service: the Release Materializer's asynchronous consumer
// when EventBusConfig.Enabled is set. Adapted from the teacher's
// NATSComponentsService wrapper — the same Start-then-block-on-ctx
// shape, simplified to match Consume's own blocking signature instead
// of a separate Start/Shutdown pair.
type EventBusService struct {
	consume func(ctx context.Context) error
	name    string
}

// NewEventBusService builds a service that calls consume(ctx) and
// returns whatever it returns; consume is expected to block until ctx
// is canceled (internal/eventbus.Bus.Consume does this).
func NewEventBusService(consume func(ctx context.Context) error) *EventBusService {
	return &EventBusService{consume: consume, name: "eventbus-consumer"}
}

// Serve implements suture.Service.
func (s *EventBusService) Serve(ctx context.Context) error {
	return s.consume(ctx)
}

// String implements fmt.Stringer for logging.
func (s *EventBusService) String() string {
	return s.name
}
