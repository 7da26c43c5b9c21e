package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"classbook/internal/directory"
	"classbook/internal/models"
)

// handleClassrooms lists the catalog, optionally filtered by capacity,
// equipment and location query parameters.
func (s *Server) handleClassrooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter := directory.ClassroomFilter{Location: strings.TrimSpace(r.URL.Query().Get("location"))}
	if raw := r.URL.Query().Get("min_capacity"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_capacity")
			return
		}
		filter.MinCapacity = &v
	}
	for name, dst := range map[string]**bool{
		"projector":  &filter.Projector,
		"whiteboard": &filter.Whiteboard,
	} {
		if raw := r.URL.Query().Get(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = &v
		}
	}

	rooms, err := s.dir.FilterClassrooms(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("classroom filter failed")
		writeError(w, http.StatusInternalServerError, "classroom lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classrooms": rooms})
}

// handleClassroomSchedule serves GET /api/v1/classrooms/{id}/schedule.
func (s *Server) handleClassroomSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/classrooms/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "schedule" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	classroomID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid classroom id")
		return
	}

	room, err := s.dir.GetClassroom(r.Context(), classroomID)
	if err != nil {
		s.logger.Error().Err(err).Msg("classroom lookup failed")
		writeError(w, http.StatusInternalServerError, "classroom lookup failed")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "classroom not found")
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	reservations := s.reservations.ListByClassroom(classroomID, date)
	writeJSON(w, http.StatusOK, map[string]any{
		"classroom":    room,
		"reservations": reservations,
	})
}

// handleSearch returns classrooms free for a slot, with optional catalog
// filters applied on top of availability.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	date := strings.TrimSpace(query.Get("date"))
	start := strings.TrimSpace(query.Get("start"))
	end := strings.TrimSpace(query.Get("end"))
	if date == "" || start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "date, start and end are required")
		return
	}

	availableIDs := s.reservations.FindAvailableClassrooms(r.Context(), date, start, end)
	idSet := make(map[int64]bool, len(availableIDs))
	for _, id := range availableIDs {
		idSet[id] = true
	}

	rooms, err := s.dir.GetAllClassrooms(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("classroom lookup failed")
		writeError(w, http.StatusInternalServerError, "classroom lookup failed")
		return
	}

	var available []models.Classroom
	for id, room := range rooms {
		if idSet[id] {
			available = append(available, room)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"classrooms": available})
}

// handleAdminClassrooms adds a classroom to the catalog.
func (s *Server) handleAdminClassrooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var room models.Classroom
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if room.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := s.dir.CreateClassroom(r.Context(), room)
	if err != nil {
		s.logger.Error().Err(err).Msg("classroom create failed")
		writeError(w, http.StatusInternalServerError, "classroom create failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleAdminClassroomByID serves PUT /api/v1/admin/classrooms/{id}.
func (s *Server) handleAdminClassroomByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := pathID(r.URL.Path, "/api/v1/admin/classrooms/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid classroom id")
		return
	}

	var room models.Classroom
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if room.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	room.ID = id

	if err := s.dir.UpdateClassroom(r.Context(), room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "classroom not found")
			return
		}
		s.logger.Error().Err(err).Msg("classroom update failed")
		writeError(w, http.StatusInternalServerError, "classroom update failed")
		return
	}
	writeJSON(w, http.StatusOK, room)
}
