package domain

import (
	"context"
	"time"

	"classbook/internal/models"
)

// UserDirectory resolves registered users. Get returns (nil, nil) when the
// id is unknown.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// ClassroomDirectory is the read side of the classroom catalog.
type ClassroomDirectory interface {
	GetClassroom(ctx context.Context, id int64) (*models.Classroom, error)
	GetAllClassrooms(ctx context.Context) (map[int64]models.Classroom, error)
}

// ReservationBooker is the slice of the reservation store the waitlist needs
// to promote entries and enforce quotas.
type ReservationBooker interface {
	Create(ctx context.Context, userID string, classroomID int64, date, start, end string, participants []string) (*models.Reservation, error)
	CountActive(userID string) int
}

// Promoter is invoked after a reservation is cancelled to hand the freed slot
// to the waitlist. It returns the auto-created reservation, if any.
type Promoter interface {
	ProcessReservationCancelled(ctx context.Context, classroomID int64, date, start, end string) *models.Reservation
}

// NotificationSink records a notification for a user.
type NotificationSink interface {
	Create(userID string, reservationID int64, kind, message string) *models.Notification
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SessionRepository stores authenticated sessions keyed by token and tracks
// per-client rate limits.
type SessionRepository interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
