package models

import "time"

// Equipment describes the fixed equipment of a classroom.
type Equipment struct {
	Projector  bool `json:"projector" yaml:"projector"`
	Whiteboard bool `json:"whiteboard" yaml:"whiteboard"`
}

type Classroom struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Capacity  int       `json:"capacity"`
	Equipment Equipment `json:"equipment"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reservation is an hour-aligned booking of a classroom on a single day.
// Date is "YYYY-MM-DD", StartTime/EndTime are "HH:MM". Participants never
// contains the owner and holds no duplicates.
type Reservation struct {
	ID           int64    `json:"id"`
	UserID       string   `json:"user_id"`
	ClassroomID  int64    `json:"classroom_id"`
	Date         string   `json:"date"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Participants []string `json:"participants"`
}

// WaitlistEntry queues a user for a slot that could not be booked. Priority
// is a dense zero-based FIFO rank within the (classroom, date, start, end)
// group and is recomputed whenever a sibling entry is removed.
type WaitlistEntry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	ClassroomID int64     `json:"classroom_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
	Priority    int       `json:"priority"`
}

type Notification struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	ReservationID int64     `json:"reservation_id"`
	Kind          string    `json:"kind"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
	Read          bool      `json:"read"`
}

// Session is an authenticated browser session stored server-side; the cookie
// carries only the token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
