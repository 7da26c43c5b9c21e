package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"classbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReservations struct {
	list []models.Reservation
}

func (f *fakeReservations) ListAll() []models.Reservation { return f.list }

type fakeNotifications struct {
	created []models.Notification
}

func (f *fakeNotifications) Create(userID string, reservationID int64, kind, message string) *models.Notification {
	n := models.Notification{UserID: userID, ReservationID: reservationID, Kind: kind, Message: message}
	f.created = append(f.created, n)
	return &n
}

func (f *fakeNotifications) Has(reservationID int64, userID, kind string) bool {
	for _, n := range f.created {
		if n.ReservationID == reservationID && n.UserID == userID && n.Kind == kind {
			return true
		}
	}
	return false
}

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	if f.known[id] {
		return &models.User{ID: id}, nil
	}
	return nil, nil
}

type fakeRooms struct{}

func (f *fakeRooms) GetClassroom(ctx context.Context, id int64) (*models.Classroom, error) {
	return &models.Classroom{ID: id, Name: "Room 101"}, nil
}

func (f *fakeRooms) GetAllClassrooms(ctx context.Context) (map[int64]models.Classroom, error) {
	return nil, nil
}

func newTestReminder(res *fakeReservations, notes *fakeNotifications, now time.Time) *Reminder {
	logger := zerolog.New(io.Discard)
	r := NewReminder(res, notes, &fakeUsers{known: map[string]bool{"alice": true, "bob": true}}, &fakeRooms{}, &logger, time.Minute)
	r.now = func() time.Time { return now }
	return r
}

func reservationAt(start time.Time) models.Reservation {
	return models.Reservation{
		ID:          1,
		UserID:      "alice",
		ClassroomID: 1,
		Date:        start.Format("2006-01-02"),
		StartTime:   start.Format("15:04"),
		EndTime:     start.Add(time.Hour).Format("15:04"),
	}
}

func TestDueWindow(t *testing.T) {
	start := time.Date(2030, 6, 10, 14, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"too early", start.Add(-31 * time.Minute), false},
		{"window opens", start.Add(-30 * time.Minute), true},
		{"inside window", start.Add(-27 * time.Minute), true},
		{"window closed", start.Add(-25 * time.Minute), false},
		{"already started", start, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, due(start, tt.now))
		})
	}
}

func TestTickCreatesReminder(t *testing.T) {
	start := time.Date(2030, 6, 10, 14, 0, 0, 0, time.Local)
	res := reservationAt(start)
	res.Participants = []string{"bob", "ghost"}

	notes := &fakeNotifications{}
	r := newTestReminder(&fakeReservations{list: []models.Reservation{res}}, notes, start.Add(-29*time.Minute))

	r.Tick(context.Background())

	// Owner and the registered participant, never the unknown id.
	require.Len(t, notes.created, 2)
	assert.Equal(t, "alice", notes.created[0].UserID)
	assert.Equal(t, "bob", notes.created[1].UserID)
	assert.Equal(t, models.NotificationReminder, notes.created[0].Kind)
	assert.Contains(t, notes.created[0].Message, "Room 101")
	assert.Contains(t, notes.created[0].Message, "14:00~15:00")
}

func TestTickIsIdempotent(t *testing.T) {
	start := time.Date(2030, 6, 10, 14, 0, 0, 0, time.Local)
	notes := &fakeNotifications{}
	r := newTestReminder(&fakeReservations{list: []models.Reservation{reservationAt(start)}}, notes, start.Add(-29*time.Minute))

	r.Tick(context.Background())
	r.Tick(context.Background())

	assert.Len(t, notes.created, 1)
}

func TestTickSkipsOutsideWindow(t *testing.T) {
	start := time.Date(2030, 6, 10, 14, 0, 0, 0, time.Local)
	notes := &fakeNotifications{}

	r := newTestReminder(&fakeReservations{list: []models.Reservation{reservationAt(start)}}, notes, start.Add(-2*time.Hour))
	r.Tick(context.Background())
	assert.Empty(t, notes.created)

	r = newTestReminder(&fakeReservations{list: []models.Reservation{reservationAt(start)}}, notes, start.Add(time.Minute))
	r.Tick(context.Background())
	assert.Empty(t, notes.created)
}

func TestTickSkipsUnparseableReservation(t *testing.T) {
	notes := &fakeNotifications{}
	bad := models.Reservation{ID: 2, UserID: "alice", Date: "soon", StartTime: "later"}
	r := newTestReminder(&fakeReservations{list: []models.Reservation{bad}}, notes, time.Now())

	assert.NotPanics(t, func() { r.Tick(context.Background()) })
	assert.Empty(t, notes.created)
}

func TestRunStopsOnCancel(t *testing.T) {
	start := time.Date(2030, 6, 10, 14, 0, 0, 0, time.Local)
	notes := &fakeNotifications{}
	r := newTestReminder(&fakeReservations{}, notes, start)
	r.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
