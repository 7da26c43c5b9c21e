package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		session := sessionFrom(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"waitlist": s.waitlist.ListByUser(session.UserID),
		})
	case http.MethodPost:
		s.createWaitlistEntry(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	var body struct {
		ClassroomID int64  `json:"classroom_id"`
		Date        string `json:"date"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	room, err := s.dir.GetClassroom(r.Context(), body.ClassroomID)
	if err != nil {
		s.logger.Error().Err(err).Msg("classroom lookup failed")
		writeError(w, http.StatusInternalServerError, "classroom lookup failed")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "classroom not found")
		return
	}

	entry, err := s.waitlist.Create(r.Context(), session.UserID, body.ClassroomID,
		body.Date, body.StartTime, body.EndTime)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleWaitlistByID serves DELETE /api/v1/waitlist/{id}.
func (s *Server) handleWaitlistByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/waitlist/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid waitlist id")
		return
	}

	session := sessionFrom(r)
	if err := s.waitlist.Cancel(r.Context(), id, session.UserID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
