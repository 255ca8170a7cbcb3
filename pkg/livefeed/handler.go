// Package livefeed serves the values published by the reader over HTTP and websockets.
package livefeed

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards on the LAN connect from anywhere
	},
}

// NewHandler serves "/" (status), "/latest" and the "/ws" live feed.
func NewHandler(collector *Collector, hub *Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, hub.log, http.StatusOK, map[string]any{
			"message": "P1 Mini",
			"status":  "running",
			"clients": hub.Len(),
		})
	})

	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		reading := collector.Latest()
		if reading == nil {
			writeJSON(w, hub.log, http.StatusNotFound, map[string]string{
				"error": "No readings available yet",
			})
			return
		}
		writeJSON(w, hub.log, http.StatusOK, reading)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warnf("WebSocket upgrade error: %v", err)
			return
		}

		c := hub.add(conn)

		// Send current reading immediately if available
		if reading := collector.Latest(); reading != nil {
			if err := c.write(reading.ToJsonBytes()); err != nil {
				hub.remove(c)
				return
			}
		}

		// Keep connection alive until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.remove(c)
				return
			}
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Writing response: %v", err)
	}
}
