// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package progress is an operator-facing WebSocket feed of Group
Scheduler activity: one message per completed loop tick, per group
pass, and per materialized release. It exists alongside /metrics as a
lower-latency, human-readable view into what the indexer is doing
right now, without needing a Prometheus/Grafana stack running.

Connect at /progress on the indexer's HTTP server and read
newline-delimited JSON Message values; the stream never expects
anything back from the client beyond keepalive pings.
*/
package progress
