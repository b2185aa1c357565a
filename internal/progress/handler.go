// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package progress

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cartographus/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Progress is an operator-facing stream behind the same host the
	// indexer's own HTTP server serves; it carries no credentials, so
	// any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades a request to a websocket connection and registers a
// new Client on hub.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn().Err(err).Msg("progress: websocket upgrade failed")
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}
}
