package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"classbook/internal/metrics"
	"classbook/internal/models"
	"classbook/internal/store"
)

type reservationRequest struct {
	ClassroomID  int64    `json:"classroom_id"`
	Date         string   `json:"date"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Participants []string `json:"participants"`
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMyReservations(w, r)
	case http.MethodPost:
		s.createReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listMyReservations(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": s.reservations.ListByUser(session.UserID),
	})
}

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	var body reservationRequest
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

	res, err := s.reservations.Create(r.Context(), session.UserID, body.ClassroomID,
		body.Date, body.StartTime, body.EndTime, body.Participants)
	if err != nil {
		if errors.Is(err, store.ErrTimeConflict) {
			metrics.IncReservationConflicts()
		}
		writeStoreError(w, err)
		return
	}
	metrics.IncReservationsCreated()

	message := fmt.Sprintf("[%s] Reservation confirmed. (%s %s~%s)",
		room.Name, res.Date, res.StartTime, res.EndTime)
	s.notifications.Create(session.UserID, res.ID, models.NotificationConfirmation, message)

	writeJSON(w, http.StatusCreated, res)
}

// handleReservationByID serves DELETE /api/v1/reservations/{id}: owner
// cancellation, which may promote a waitlist entry.
func (s *Server) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/reservations/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	session := sessionFrom(r)
	res, err := s.reservations.Cancel(r.Context(), id, session.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdminReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": s.reservations.ListAll(),
	})
}

// handleAdminReservationByID removes a reservation without an ownership
// check and without waitlist promotion.
func (s *Server) handleAdminReservationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/admin/reservations/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	session := sessionFrom(r)
	res, err := s.reservations.Delete(r.Context(), id, session.UserID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func pathID(path, prefix string) (int64, error) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0, fmt.Errorf("invalid path id")
	}
	return strconv.ParseInt(rest, 10, 64)
}
