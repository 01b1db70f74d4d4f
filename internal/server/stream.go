package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"roomDesignAi/internal/events"
)

const (
	heartbeatInterval = 15 * time.Second
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens travel in the query string, so any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamEvents handles GET /api/design-jobs/{id}/events as server-sent events.
// The current snapshot is sent first and the stream ends after a terminal event.
func (h jobHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) || !h.streamReady(w) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before reading the snapshot so no transition is missed.
	ch := h.events.Subscribe(chi.URLParam(r, "id"))
	defer h.events.Unsubscribe(ch)

	job, ok := h.visibleJob(r)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(evt events.Event) bool {
		payload, err := json.Marshal(evt)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	snapshot := events.FromJob(job)
	if !send(snapshot) || snapshot.Status.IsTerminal() {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, open := <-ch:
			if !open || !send(evt) || evt.Status.IsTerminal() {
				return
			}
		}
	}
}

// Socket handles GET /api/design-jobs/{id}/ws. It mirrors StreamEvents over a
// WebSocket and closes normally after a terminal event.
func (h jobHandler) Socket(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) || !h.streamReady(w) {
		return
	}

	ch := h.events.Subscribe(chi.URLParam(r, "id"))
	defer h.events.Unsubscribe(ch)

	job, ok := h.visibleJob(r)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Client frames are ignored; reading keeps pong and close handling alive.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(evt events.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt) == nil
	}
	finish := func() {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
	}

	snapshot := events.FromJob(job)
	if !send(snapshot) {
		return
	}
	if snapshot.Status.IsTerminal() {
		finish()
		return
	}

	ping := time.NewTicker(wsPongWait * 9 / 10)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, open := <-ch:
			if !open || !send(evt) {
				return
			}
			if evt.Status.IsTerminal() {
				finish()
				return
			}
		}
	}
}

func (h jobHandler) streamReady(w http.ResponseWriter) bool {
	if h.events == nil {
		http.Error(w, "progress events unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}
