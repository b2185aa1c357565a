// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package progress broadcasts Group Scheduler activity (update/backfill
// loop ticks, per-group header counts, materialized releases) to
// connected WebSocket clients, so an operator can watch the indexer
// work without polling /metrics.
package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Message types for progress stream communication.
const (
	MessageTypeLoopTick    = "loop_tick"
	MessageTypeGroupResult = "group_result"
	MessageTypeRelease     = "release"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

// Message represents one progress stream event.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of connected progress-stream clients and
// broadcasts Scheduler events to them. Adapted from the teacher's
// websocket hub: same deterministic priority-select shutdown and
// broadcast-drop-on-full-channel behavior, with the media-server
// event vocabulary replaced by the scheduler's.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub until ctx is canceled, at which point all
// clients are closed and the method returns ctx.Err(). Designed for
// suture supervision.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Msg("progress hub stopped")
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			logging.Info().Msg("progress hub stopped")
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	logging.Debug().Int("total_clients", h.GetClientCount()).Msg("progress client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	logging.Debug().Int("total_clients", h.GetClientCount()).Msg("progress client disconnected")
}

func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastOrDrop(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("message_type", msg.Type).Msg("progress broadcast channel full, dropping message")
	}
}

// LoopTickData describes one completed update/backfill loop tick.
type LoopTickData struct {
	Loop      string    `json:"loop"`
	Timestamp time.Time `json:"timestamp"`
	DurationMs int64    `json:"duration_ms"`
}

// BroadcastLoopTick notifies clients that a scheduler loop tick completed.
func (h *Hub) BroadcastLoopTick(loop string, duration time.Duration) {
	h.broadcastOrDrop(Message{
		Type: MessageTypeLoopTick,
		Data: LoopTickData{Loop: loop, Timestamp: time.Now().UTC(), DurationMs: duration.Milliseconds()},
	})
}

// GroupResultData describes one group's worth of headers processed
// during a loop pass.
type GroupResultData struct {
	Loop     string `json:"loop"`
	Group    string `json:"group"`
	Articles int    `json:"articles"`
}

// BroadcastGroupResult notifies clients that a group pass processed
// articles headers.
func (h *Hub) BroadcastGroupResult(loop, group string, articles int) {
	h.broadcastOrDrop(Message{
		Type: MessageTypeGroupResult,
		Data: GroupResultData{Loop: loop, Group: group, Articles: articles},
	})
}

// ReleaseData describes one materialized release.
type ReleaseData struct {
	Group string `json:"group"`
	Name  string `json:"name"`
	GUID  string `json:"guid"`
}

// BroadcastRelease notifies clients that a release was materialized.
func (h *Hub) BroadcastRelease(group, name, guid string) {
	h.broadcastOrDrop(Message{
		Type: MessageTypeRelease,
		Data: ReleaseData{Group: group, Name: name, GUID: guid},
	})
}
