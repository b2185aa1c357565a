// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package eventbus is the optional asynchronous path between the Binary
Assembler and the Release Materializer, backed by NATS JetStream via
watermill. It is off by default: config.EventBusConfig.Enabled gates
whether the Group Scheduler publishes completed binaries onto the bus
(for a separate consumer service to materialize) or calls the
materializer directly and synchronously, which remains the default and
the path exercised by most tests.
*/
package eventbus
