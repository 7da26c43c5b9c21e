package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"classbook/internal/config"
	"classbook/internal/directory"
	"classbook/internal/domain"
	"classbook/internal/realtime"
	"classbook/internal/store"

	"github.com/rs/zerolog"
)

// Server exposes the reservation system over HTTP: JSON endpoints plus an
// SSE stream for live schedule updates.
type Server struct {
	cfg           config.Config
	dir           *directory.DB
	reservations  *store.ReservationStore
	waitlist      *store.WaitlistStore
	notifications *store.NotificationStore
	sessions      domain.SessionRepository
	dispatcher    *realtime.Dispatcher
	logger        *zerolog.Logger
	limiter       *clientLimiter
	server        *http.Server
}

func NewServer(
	cfg config.Config,
	dir *directory.DB,
	reservations *store.ReservationStore,
	waitlist *store.WaitlistStore,
	notifications *store.NotificationStore,
	sessions domain.SessionRepository,
	dispatcher *realtime.Dispatcher,
	logger *zerolog.Logger,
) *Server {
	s := &Server{
		cfg:           cfg,
		dir:           dir,
		reservations:  reservations,
		waitlist:      waitlist,
		notifications: notifications,
		sessions:      sessions,
		dispatcher:    dispatcher,
		logger:        logger,
		limiter:       newClientLimiter(cfg.Server.RequestsPerSecond, cfg.Server.RequestBurst),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("/api/v1/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("/api/v1/classrooms", s.requireAuth(s.handleClassrooms))
	mux.HandleFunc("/api/v1/classrooms/", s.requireAuth(s.handleClassroomSchedule))
	mux.HandleFunc("/api/v1/search", s.requireAuth(s.handleSearch))

	mux.HandleFunc("/api/v1/reservations", s.requireAuth(s.handleReservations))
	mux.HandleFunc("/api/v1/reservations/", s.requireAuth(s.handleReservationByID))

	mux.HandleFunc("/api/v1/waitlist", s.requireAuth(s.handleWaitlist))
	mux.HandleFunc("/api/v1/waitlist/", s.requireAuth(s.handleWaitlistByID))

	mux.HandleFunc("/api/v1/notifications", s.requireAuth(s.handleNotifications))
	mux.HandleFunc("/api/v1/notifications/", s.requireAuth(s.handleNotificationAction))

	mux.HandleFunc("/api/v1/stream", s.requireAuth(s.handleStream))

	mux.HandleFunc("/api/v1/admin/reservations", s.requireAdmin(s.handleAdminReservations))
	mux.HandleFunc("/api/v1/admin/reservations/", s.requireAdmin(s.handleAdminReservationByID))
	mux.HandleFunc("/api/v1/admin/classrooms", s.requireAdmin(s.handleAdminClassrooms))
	mux.HandleFunc("/api/v1/admin/classrooms/", s.requireAdmin(s.handleAdminClassroomByID))
	mux.HandleFunc("/api/v1/admin/export", s.requireAdmin(s.handleExport))

	mux.HandleFunc("/healthz", s.handleHealthz)

	handler := s.loggingMiddleware(s.rateLimitMiddleware(mux))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler; tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeStoreError maps a store sentinel to an HTTP status, keeping the
// wrapped detail (conflicting intervals, participant id) in the message.
func writeStoreError(w http.ResponseWriter, err error) {
	writeError(w, statusFromError(err), err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, store.ErrTimeConflict),
		errors.Is(err, store.ErrQuotaExceeded),
		errors.Is(err, store.ErrParticipantQuotaExceeded),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidFormat),
		errors.Is(err, store.ErrPastTime),
		errors.Is(err, store.ErrOutOfWindow),
		errors.Is(err, store.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, directory.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, directory.ErrUserExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps the recorder usable for the SSE stream.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
