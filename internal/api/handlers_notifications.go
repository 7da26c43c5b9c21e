package api

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	session := sessionFrom(r)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": s.notifications.ListByUser(session.UserID, unreadOnly),
		"unread_count":  s.notifications.UnreadCount(session.UserID),
	})
}

// handleNotificationAction serves POST /api/v1/notifications/{id}/read and
// POST /api/v1/notifications/read_all.
func (s *Server) handleNotificationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	session := sessionFrom(r)
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/notifications/")

	if rest == "read_all" {
		count := s.notifications.MarkAllRead(session.UserID)
		writeJSON(w, http.StatusOK, map[string]int{"marked": count})
		return
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "read" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.notifications.MarkRead(id, session.UserID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
