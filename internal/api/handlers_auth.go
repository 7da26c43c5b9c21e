package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"classbook/internal/directory"
	"classbook/internal/models"

	"github.com/google/uuid"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ID == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "id and password are required")
		return
	}
	if body.Name == "" {
		body.Name = body.ID
	}

	user, err := s.dir.RegisterUser(r.Context(), body.ID, body.Name, body.Password, models.RoleUser)
	if err != nil {
		if errors.Is(err, directory.ErrUserExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("register failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limitKey := fmt.Sprintf("login:%s", clientIP(r))
	window := time.Duration(s.cfg.Server.LoginRateWindow) * time.Second
	allowed, err := s.sessions.CheckRateLimit(r.Context(), limitKey, s.cfg.Server.LoginRateLimit, window)
	if err != nil {
		s.logger.Error().Err(err).Msg("login rate limit check failed")
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var body struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.dir.Authenticate(r.Context(), body.ID, body.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.SetSession(r.Context(), session); err != nil {
		s.logger.Error().Err(err).Msg("session store failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   s.cfg.Sessions.TTLSeconds,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.sessions.ClearSession(r.Context(), cookie.Value); err != nil {
			s.logger.Error().Err(err).Msg("session clear failed")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	session := sessionFrom(r)
	user, err := s.dir.GetUser(r.Context(), session.UserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("user lookup failed")
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
