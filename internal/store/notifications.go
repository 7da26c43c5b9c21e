package store

import (
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"classbook/internal/models"
	"classbook/internal/storage"

	"github.com/rs/zerolog"
)

// NotificationStore owns the notification collection. Notifications are
// append-only; the read flag is the only field ever updated.
type NotificationStore struct {
	mu     sync.Mutex
	path   string
	logger *zerolog.Logger
	now    func() time.Time

	notifications map[int64]*models.Notification
	nextID        int64
}

type notificationSnapshot struct {
	Notifications map[int64]*models.Notification `json:"notifications"`
	NextID        int64                          `json:"next_id"`
}

func NewNotificationStore(path string, logger *zerolog.Logger) *NotificationStore {
	s := &NotificationStore{
		path:          path,
		logger:        logger,
		now:           time.Now,
		notifications: make(map[int64]*models.Notification),
		nextID:        1,
	}
	s.load()
	return s
}

func (s *NotificationStore) load() {
	var snap notificationSnapshot
	if err := storage.LoadJSON(s.path, &snap); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("notification snapshot unreadable, starting empty")
		}
		return
	}
	if snap.Notifications != nil {
		s.notifications = snap.Notifications
	}
	if snap.NextID > 0 {
		s.nextID = snap.NextID
	}
}

func (s *NotificationStore) save() {
	snap := notificationSnapshot{Notifications: s.notifications, NextID: s.nextID}
	if err := storage.SaveJSON(s.path, snap); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("persist notifications failed")
	}
}

// Create records a notification for a user.
func (s *NotificationStore) Create(userID string, reservationID int64, kind, message string) *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &models.Notification{
		ID:            s.nextID,
		UserID:        userID,
		ReservationID: reservationID,
		Kind:          kind,
		Message:       message,
		CreatedAt:     s.now(),
	}
	s.nextID++
	s.notifications[n.ID] = n
	s.save()

	cp := *n
	return &cp
}

// Has reports whether a notification of the given kind already exists for
// the reservation and user. The reminder scheduler uses this as its
// idempotency check.
func (s *NotificationStore) Has(reservationID int64, userID, kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ReservationID == reservationID && n.UserID == userID && n.Kind == kind {
			return true
		}
	}
	return false
}

// ListByUser returns the user's notifications, newest first.
func (s *NotificationStore) ListByUser(userID string, unreadOnly bool) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationStore) MarkRead(id int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	if n.UserID != userID {
		return ErrNotOwner
	}
	if !n.Read {
		n.Read = true
		s.save()
	}
	return nil
}

// MarkAllRead flags every unread notification of the user as read and
// returns how many were updated.
func (s *NotificationStore) MarkAllRead(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	if count > 0 {
		s.save()
	}
	return count
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationStore) UnreadCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count
}
