package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// keepAliveInterval is how often an idle stream is pinged so proxies
	// and clients keep the connection open.
	keepAliveInterval = 15 * time.Second

	// writeWait bounds a single WebSocket write.
	writeWait = 10 * time.Second

	// pongWait is how long a WebSocket client may stay silent after a ping.
	pongWait = 2 * keepAliveInterval
)

// pump drains a subscriber into a channel so stream handlers can select
// between events, keep-alive ticks, and disconnects.
func pump(ctx context.Context, sub *Subscriber) <-chan StreamEvent {
	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		for {
			ev, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

// SSEHandler serves bridge events as a Server-Sent Events stream, one JSON
// object per event, with keep-alive comments on idle connections.
func (b *Bridge) SSEHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
		flusher.Flush()

		ctx := r.Context()
		sub := b.Subscribe()
		defer sub.Close()
		events := pump(ctx, sub)

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					b.logger.Error("failed to marshal stream event", "error", err)
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			}
		}
	})
}

// WSHandler serves bridge events over a WebSocket connection, one JSON text
// message per event. Lag notifications arrive as regular events with type
// "lag". Pings maintain the connection on idle.
func (b *Bridge) WSHandler() http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool {
			// The stream is read-only broadcast data; origin checks are
			// left to the deployment's proxy.
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub := b.Subscribe()
		defer sub.Close()
		events := pump(ctx, sub)

		// Reader loop detects client disconnects and answers pings; the
		// stream itself is write-only.
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					logDisconnect(b.logger, err)
					return
				}
			}
		}
	})
}

func logDisconnect(logger *slog.Logger, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		logger.Warn("websocket write failed", "error", err)
	}
}
