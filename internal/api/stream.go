package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const streamHeartbeat = 30 * time.Second

// handleStream serves GET /api/v1/stream?classroom_id=N as Server-Sent
// Events. Each schedule change for the classroom becomes one event; a
// periodic heartbeat keeps proxies from closing the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	classroomID, err := strconv.ParseInt(r.URL.Query().Get("classroom_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "classroom_id is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cleanup := s.dispatcher.Subscribe(r.Context(), classroomID)
	defer cleanup()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case msg := <-stream:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error().Err(err).Msg("stream encode failed")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.EventType, data)
			flusher.Flush()
		}
	}
}
