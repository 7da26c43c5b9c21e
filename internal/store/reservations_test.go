package store

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"classbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2030, 6, 10, 12, 0, 0, 0, time.Local)

func testDate(daysFromNow int) string {
	return testNow.AddDate(0, 0, daysFromNow).Format("2006-01-02")
}

type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

type fakeRooms struct {
	rooms map[int64]models.Classroom
}

func (f *fakeRooms) GetClassroom(ctx context.Context, id int64) (*models.Classroom, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (f *fakeRooms) GetAllClassrooms(ctx context.Context) (map[int64]models.Classroom, error) {
	return f.rooms, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	types  []string
	events []interface{}
}

func (r *eventRecorder) PublishJSON(eventType string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	r.events = append(r.events, payload)
	return nil
}

type promoterRecorder struct {
	calls int
}

func (p *promoterRecorder) ProcessReservationCancelled(ctx context.Context, classroomID int64, date, start, end string) *models.Reservation {
	p.calls++
	return nil
}

func registeredUsers(ids ...string) *fakeUsers {
	users := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		users[id] = &models.User{ID: id, Role: models.RoleUser}
	}
	return &fakeUsers{users: users}
}

func newTestReservationStore(t *testing.T) (*ReservationStore, *eventRecorder) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	rec := &eventRecorder{}
	rooms := &fakeRooms{rooms: map[int64]models.Classroom{
		1: {ID: 1, Name: "Room 101", Capacity: 20},
		2: {ID: 2, Name: "Room 102", Capacity: 40},
	}}
	s := NewReservationStore(
		filepath.Join(t.TempDir(), "reservations.json"),
		registeredUsers("alice", "bob", "carol", "dave"),
		rooms,
		rec,
		&logger,
	)
	s.now = func() time.Time { return testNow }
	return s, rec
}

func TestCreateReservation(t *testing.T) {
	s, rec := newTestReservationStore(t)
	ctx := context.Background()

	res, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", []string{"bob", "alice", "bob", " "})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, []string{"bob"}, res.Participants, "participants deduplicated, owner and blanks dropped")
	assert.Equal(t, []string{"reservation_created"}, rec.types)
}

func TestCreateValidationOrder(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		start   string
		end     string
		wantErr error
	}{
		{"bad date", "2030/06/11", "14:00", "15:00", ErrInvalidFormat},
		{"bad start", testDate(1), "14h00", "15:00", ErrInvalidFormat},
		{"bad end", testDate(1), "14:00", "25:00", ErrInvalidFormat},
		{"junk in start minutes", testDate(1), "14:0x", "15:00", ErrInvalidFormat},
		{"junk in end minutes", testDate(1), "14:00", "15:5a", ErrInvalidFormat},
		{"past time", testDate(0), "09:00", "10:00", ErrPastTime},
		{"out of window", testDate(7), "14:00", "15:00", ErrOutOfWindow},
		{"misaligned start", testDate(1), "14:30", "15:00", ErrInvalidSlot},
		{"zero length", testDate(1), "14:00", "14:00", ErrInvalidSlot},
		{"midnight end not from 23", testDate(1), "21:00", "00:00", ErrInvalidSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, "alice", 1, tt.date, tt.start, tt.end, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreatePastDateStillChecksFormatFirst(t *testing.T) {
	s, _ := newTestReservationStore(t)

	_, err := s.Create(context.Background(), "alice", 1, "not-a-date", "bad", "worse", nil)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestQuotaExceeded(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	for hour := 10; hour < 13; hour++ {
		_, err := s.Create(ctx, "alice", 1, testDate(1),
			timeString(hour), timeString(hour+1), nil)
		require.NoError(t, err)
	}

	_, err := s.Create(ctx, "alice", 1, testDate(2), "14:00", "15:00", nil)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Cancelling one immediately frees the quota.
	_, err = s.Cancel(ctx, 1, "alice")
	require.NoError(t, err)
	_, err = s.Create(ctx, "alice", 1, testDate(2), "14:00", "15:00", nil)
	assert.NoError(t, err)
}

func TestQuotaCountsParticipantRole(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	// bob owns one and participates in two: that is three active.
	_, err := s.Create(ctx, "bob", 1, testDate(1), "10:00", "11:00", nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, "alice", 1, testDate(1), "11:00", "12:00", []string{"bob"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "alice", 2, testDate(1), "12:00", "13:00", []string{"bob"})
	require.NoError(t, err)

	_, err = s.Create(ctx, "bob", 2, testDate(2), "14:00", "15:00", nil)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// And bob cannot be named as a participant either.
	_, err = s.Create(ctx, "carol", 2, testDate(2), "14:00", "15:00", []string{"bob"})
	assert.ErrorIs(t, err, ErrParticipantQuotaExceeded)
	assert.Contains(t, err.Error(), "bob")
}

func TestParticipantQuotaIgnoresUnregistered(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	// "ghost" is not a registered user; no quota applies.
	res, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", []string{"ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, res.Participants)
}

func TestTimeConflict(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", nil)
	require.NoError(t, err)

	_, err = s.Create(ctx, "bob", 1, testDate(1), "14:00", "15:00", nil)
	assert.ErrorIs(t, err, ErrTimeConflict)
	assert.Contains(t, err.Error(), "14:00~15:00 (owner: alice)")

	// Same classroom, touching interval: no conflict.
	_, err = s.Create(ctx, "bob", 1, testDate(1), "15:00", "16:00", nil)
	assert.NoError(t, err)

	// Other classroom, same interval: no conflict.
	_, err = s.Create(ctx, "carol", 2, testDate(1), "14:00", "15:00", nil)
	assert.NoError(t, err)
}

func TestCancelReservation(t *testing.T) {
	s, rec := newTestReservationStore(t)
	promoter := &promoterRecorder{}
	s.SetPromoter(promoter)
	ctx := context.Background()

	res, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", nil)
	require.NoError(t, err)

	_, err = s.Cancel(ctx, 999, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Cancel(ctx, res.ID, "bob")
	assert.ErrorIs(t, err, ErrNotOwner)

	cancelled, err := s.Cancel(ctx, res.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, res.ID, cancelled.ID)
	assert.Equal(t, 1, promoter.calls, "cancellation hands the slot to the waitlist")

	_, err = s.Get(res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, rec.types, "reservation_cancelled")
}

func TestAdminDelete(t *testing.T) {
	s, _ := newTestReservationStore(t)
	promoter := &promoterRecorder{}
	s.SetPromoter(promoter)
	ctx := context.Background()

	res, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", nil)
	require.NoError(t, err)

	_, err = s.Delete(ctx, res.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 0, promoter.calls, "admin removal frees the slot without promoting the waitlist")

	_, err = s.Delete(ctx, res.ID, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountActiveExcludesPast(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CountActive("alice"))

	// Move the clock past the reservation.
	s.now = func() time.Time { return testNow.AddDate(0, 0, 2) }
	assert.Equal(t, 0, s.CountActive("alice"))
}

func TestListByUser(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "alice", 1, testDate(2), "14:00", "15:00", nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, "bob", 1, testDate(1), "10:00", "11:00", []string{"alice"})
	require.NoError(t, err)

	list := s.ListByUser("alice")
	require.Len(t, list, 2)
	assert.False(t, list[0].IsOwner, "participant entry sorts first by date")
	assert.True(t, list[1].IsOwner)
}

func TestFindAvailableClassrooms(t *testing.T) {
	s, _ := newTestReservationStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "alice", 1, testDate(1), "14:00", "15:00", nil)
	require.NoError(t, err)

	available := s.FindAvailableClassrooms(ctx, testDate(1), "14:00", "15:00")
	assert.Equal(t, []int64{2}, available)

	available = s.FindAvailableClassrooms(ctx, testDate(1), "15:00", "16:00")
	assert.Equal(t, []int64{1, 2}, available)

	// Invalid input yields an empty set rather than an error.
	assert.Empty(t, s.FindAvailableClassrooms(ctx, "bad-date", "14:00", "15:00"))
	assert.Empty(t, s.FindAvailableClassrooms(ctx, testDate(1), "14:30", "15:00"))
}

func TestReservationPersistence(t *testing.T) {
	logger := zerolog.New(io.Discard)
	path := filepath.Join(t.TempDir(), "reservations.json")
	users := registeredUsers("alice")
	rooms := &fakeRooms{rooms: map[int64]models.Classroom{1: {ID: 1, Name: "Room 101"}}}

	s := NewReservationStore(path, users, rooms, nil, &logger)
	s.now = func() time.Time { return testNow }
	_, err := s.Create(context.Background(), "alice", 1, testDate(1), "14:00", "15:00", nil)
	require.NoError(t, err)

	reloaded := NewReservationStore(path, users, rooms, nil, &logger)
	reloaded.now = func() time.Time { return testNow }

	res, err := reloaded.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "alice", res.UserID)

	// The id counter survives the reload.
	next, err := reloaded.Create(context.Background(), "alice", 1, testDate(1), "15:00", "16:00", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.ID)
}

func timeString(hour int) string {
	return time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:04")
}
