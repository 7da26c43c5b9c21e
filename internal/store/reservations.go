package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"classbook/internal/domain"
	"classbook/internal/events"
	"classbook/internal/models"
	"classbook/internal/storage"
	"classbook/internal/timeslot"

	"github.com/rs/zerolog"
)

// ReservationStore owns the reservation collection and its id counter. All
// mutations run under a single store-wide mutex so overlap and quota checks
// always observe a consistent snapshot.
type ReservationStore struct {
	mu       sync.Mutex
	path     string
	users    domain.UserDirectory
	rooms    domain.ClassroomDirectory
	eventBus domain.EventPublisher
	promoter domain.Promoter
	logger   *zerolog.Logger
	now      func() time.Time

	reservations map[int64]*models.Reservation
	nextID       int64
}

type reservationSnapshot struct {
	Reservations map[int64]*models.Reservation `json:"reservations"`
	NextID       int64                         `json:"next_id"`
}

func NewReservationStore(path string, users domain.UserDirectory, rooms domain.ClassroomDirectory, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReservationStore {
	s := &ReservationStore{
		path:         path,
		users:        users,
		rooms:        rooms,
		eventBus:     eventBus,
		logger:       logger,
		now:          time.Now,
		reservations: make(map[int64]*models.Reservation),
		nextID:       1,
	}
	s.load()
	return s
}

// SetPromoter wires the waitlist promotion hook. Set after construction
// because the waitlist store in turn needs this store to create reservations.
func (s *ReservationStore) SetPromoter(p domain.Promoter) {
	s.promoter = p
}

func (s *ReservationStore) load() {
	var snap reservationSnapshot
	if err := storage.LoadJSON(s.path, &snap); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("reservation snapshot unreadable, starting empty")
		}
		return
	}
	if snap.Reservations != nil {
		s.reservations = snap.Reservations
	}
	if snap.NextID > 0 {
		s.nextID = snap.NextID
	}
}

// save persists the full collection. Persistence failures are logged and
// swallowed: an operation that succeeded in memory is still reported as
// successful. Called with s.mu held.
func (s *ReservationStore) save() {
	snap := reservationSnapshot{Reservations: s.reservations, NextID: s.nextID}
	if err := storage.SaveJSON(s.path, snap); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("persist reservations failed")
	}
}

// Create validates and books a reservation. Checks run in a fixed order and
// the first failure wins: format, past time, booking window, slot shape, own
// quota, participant quota, time conflict.
func (s *ReservationStore) Create(ctx context.Context, userID string, classroomID int64, date, start, end string, participants []string) (*models.Reservation, error) {
	day, err := timeslot.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, date)
	}
	startT, err := timeslot.ParseTime(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, start)
	}
	endT, err := timeslot.ParseTime(end)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, end)
	}

	// Store the parsed forms, never the raw request strings: slot identity
	// is string-keyed, so the persisted value must match what validated.
	date = day.Format("2006-01-02")
	start = startT.String()
	end = endT.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if timeslot.At(day, startT).Before(now) {
		return nil, ErrPastTime
	}
	if !timeslot.WithinBookingWindow(day, now, models.BookingWindowDays) {
		return nil, ErrOutOfWindow
	}
	if !timeslot.IsValidSlot(startT, endT) {
		return nil, ErrInvalidSlot
	}

	if s.countActiveLocked(userID, now) >= models.MaxActiveReservations {
		return nil, ErrQuotaExceeded
	}

	participants = normalizeParticipants(userID, participants)
	for _, participantID := range participants {
		user, err := s.users.GetUser(ctx, participantID)
		if err != nil {
			s.logger.Warn().Err(err).Str("participant", participantID).Msg("participant lookup failed, skipping quota check")
			continue
		}
		// Unregistered participants are allowed and carry no quota.
		if user == nil {
			continue
		}
		if s.countActiveLocked(participantID, now) >= models.MaxActiveReservations {
			return nil, fmt.Errorf("%w: %s", ErrParticipantQuotaExceeded, participantID)
		}
	}

	if conflicts := s.conflictsLocked(classroomID, date, startT, endT); len(conflicts) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrTimeConflict, strings.Join(conflicts, ", "))
	}

	res := &models.Reservation{
		ID:           s.nextID,
		UserID:       userID,
		ClassroomID:  classroomID,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		Participants: participants,
	}
	s.nextID++
	s.reservations[res.ID] = res
	s.save()

	s.publishEvent(events.EventReservationCreated, res, userID)

	return copyReservation(res), nil
}

// Cancel removes a reservation owned by the requesting user, then hands the
// freed slot to the waitlist. Promotion runs after the store lock is released
// and its failures never roll back the cancellation.
func (s *ReservationStore) Cancel(ctx context.Context, id int64, userID string) (*models.Reservation, error) {
	s.mu.Lock()
	res, ok := s.reservations[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if res.UserID != userID {
		s.mu.Unlock()
		return nil, ErrNotOwner
	}
	delete(s.reservations, id)
	s.save()
	s.mu.Unlock()

	s.publishEvent(events.EventReservationCancelled, res, userID)

	if s.promoter != nil {
		s.promoter.ProcessReservationCancelled(ctx, res.ClassroomID, res.Date, res.StartTime, res.EndTime)
	}

	return copyReservation(res), nil
}

// Delete removes a reservation without an ownership check. Admin only; does
// not trigger waitlist promotion.
func (s *ReservationStore) Delete(ctx context.Context, id int64, actor string) (*models.Reservation, error) {
	s.mu.Lock()
	res, ok := s.reservations[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(s.reservations, id)
	s.save()
	s.mu.Unlock()

	s.publishEvent(events.EventReservationCancelled, res, actor)
	return copyReservation(res), nil
}

// CountActive returns the number of reservations at or after the current
// moment in which the user is the owner or a participant.
func (s *ReservationStore) CountActive(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(userID, s.now())
}

func (s *ReservationStore) countActiveLocked(userID string, now time.Time) int {
	count := 0
	for _, res := range s.reservations {
		if res.UserID != userID && !contains(res.Participants, userID) {
			continue
		}
		startAt, err := reservationStart(res)
		if err != nil {
			continue
		}
		if !startAt.Before(now) {
			count++
		}
	}
	return count
}

func (s *ReservationStore) conflictsLocked(classroomID int64, date string, startT, endT timeslot.Time) []string {
	var conflicts []string
	for _, res := range s.reservations {
		if res.ClassroomID != classroomID || res.Date != date {
			continue
		}
		existingStart, err := timeslot.ParseTime(res.StartTime)
		if err != nil {
			continue
		}
		existingEnd, err := timeslot.ParseTime(res.EndTime)
		if err != nil {
			continue
		}
		if timeslot.Overlaps(startT, endT, existingStart, existingEnd) {
			conflicts = append(conflicts, fmt.Sprintf("%s~%s (owner: %s)", res.StartTime, res.EndTime, res.UserID))
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// Get returns a reservation by id.
func (s *ReservationStore) Get(id int64) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyReservation(res), nil
}

// UserReservation is a reservation seen from one user's perspective.
type UserReservation struct {
	models.Reservation
	IsOwner bool `json:"is_owner"`
}

// ListByUser returns reservations the user owns or participates in, sorted
// by date then start time.
func (s *ReservationStore) ListByUser(userID string) []UserReservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []UserReservation
	for _, res := range s.reservations {
		switch {
		case res.UserID == userID:
			out = append(out, UserReservation{Reservation: *copyReservation(res), IsOwner: true})
		case contains(res.Participants, userID):
			out = append(out, UserReservation{Reservation: *copyReservation(res), IsOwner: false})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListByClassroom returns the reservations for a classroom, optionally
// filtered to one date, sorted by date then start time.
func (s *ReservationStore) ListByClassroom(classroomID int64, date string) []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reservation
	for _, res := range s.reservations {
		if res.ClassroomID != classroomID {
			continue
		}
		if date != "" && res.Date != date {
			continue
		}
		out = append(out, *copyReservation(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListAll returns every reservation; used by the reminder scheduler and the
// admin export.
func (s *ReservationStore) ListAll() []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Reservation, 0, len(s.reservations))
	for _, res := range s.reservations {
		out = append(out, *copyReservation(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindAvailableClassrooms returns the ids of classrooms with no overlapping
// reservation for the slot. Invalid input yields an empty result, not an
// error.
func (s *ReservationStore) FindAvailableClassrooms(ctx context.Context, date, start, end string) []int64 {
	if _, err := timeslot.ParseDate(date); err != nil {
		return nil
	}
	startT, err := timeslot.ParseTime(start)
	if err != nil {
		return nil
	}
	endT, err := timeslot.ParseTime(end)
	if err != nil {
		return nil
	}
	if !timeslot.IsValidSlot(startT, endT) {
		return nil
	}

	rooms, err := s.rooms.GetAllClassrooms(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("classroom directory lookup failed")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var available []int64
	for id := range rooms {
		if len(s.conflictsLocked(id, date, startT, endT)) == 0 {
			available = append(available, id)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i] < available[j] })
	return available
}

func (s *ReservationStore) publishEvent(eventType string, res *models.Reservation, actor string) {
	if s.eventBus == nil {
		return
	}
	payload := events.ReservationEventPayload{
		ReservationID: res.ID,
		UserID:        res.UserID,
		ClassroomID:   res.ClassroomID,
		Date:          res.Date,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		Actor:         actor,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", res.ID).Msg("publish event error")
	}
}

func reservationStart(res *models.Reservation) (time.Time, error) {
	day, err := timeslot.ParseDate(res.Date)
	if err != nil {
		return time.Time{}, err
	}
	startT, err := timeslot.ParseTime(res.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return timeslot.At(day, startT), nil
}

// normalizeParticipants trims, deduplicates and drops the owner from the
// participant list, preserving first-seen order.
func normalizeParticipants(ownerID string, participants []string) []string {
	seen := make(map[string]bool, len(participants))
	var out []string
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" || p == ownerID || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func copyReservation(res *models.Reservation) *models.Reservation {
	cp := *res
	cp.Participants = append([]string(nil), res.Participants...)
	return &cp
}
