package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"classbook/internal/domain"
	"classbook/internal/events"
	"classbook/internal/models"
	"classbook/internal/storage"
	"classbook/internal/timeslot"

	"github.com/rs/zerolog"
)

// WaitlistStore owns the waitlist collection. Entries queue for an exact
// slot; priority is a dense zero-based FIFO rank within the identical
// (classroom, date, start, end) group.
type WaitlistStore struct {
	mu            sync.Mutex
	path          string
	reservations  domain.ReservationBooker
	notifications domain.NotificationSink
	rooms         domain.ClassroomDirectory
	eventBus      domain.EventPublisher
	logger        *zerolog.Logger
	now           func() time.Time

	entries map[int64]*models.WaitlistEntry
	nextID  int64
}

type waitlistSnapshot struct {
	Entries map[int64]*models.WaitlistEntry `json:"waitlist"`
	NextID  int64                           `json:"next_id"`
}

func NewWaitlistStore(path string, reservations domain.ReservationBooker, notifications domain.NotificationSink, rooms domain.ClassroomDirectory, eventBus domain.EventPublisher, logger *zerolog.Logger) *WaitlistStore {
	s := &WaitlistStore{
		path:          path,
		reservations:  reservations,
		notifications: notifications,
		rooms:         rooms,
		eventBus:      eventBus,
		logger:        logger,
		now:           time.Now,
		entries:       make(map[int64]*models.WaitlistEntry),
		nextID:        1,
	}
	s.load()
	return s
}

func (s *WaitlistStore) load() {
	var snap waitlistSnapshot
	if err := storage.LoadJSON(s.path, &snap); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("waitlist snapshot unreadable, starting empty")
		}
		return
	}
	if snap.Entries != nil {
		s.entries = snap.Entries
	}
	if snap.NextID > 0 {
		s.nextID = snap.NextID
	}
}

func (s *WaitlistStore) save() {
	snap := waitlistSnapshot{Entries: s.entries, NextID: s.nextID}
	if err := storage.SaveJSON(s.path, snap); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("persist waitlist failed")
	}
}

// Create queues the user for a slot. There is no overlap check: any slot may
// be waited on regardless of current conflicts. Priority is the count of
// existing entries for the identical interval, giving FIFO order.
func (s *WaitlistStore) Create(ctx context.Context, userID string, classroomID int64, date, start, end string) (*models.WaitlistEntry, error) {
	if s.reservations.CountActive(userID) >= models.MaxActiveReservations {
		return nil, ErrQuotaExceeded
	}

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

	// Queue entries join reservations in a string-keyed identity space, so
	// only the parsed forms are stored.
	date = day.Format("2006-01-02")
	start = startT.String()
	end = endT.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	priority := 0
	for _, entry := range s.entries {
		if entry.UserID == userID && entry.ClassroomID == classroomID &&
			entry.Date == date && entry.StartTime == start && entry.EndTime == end {
			return nil, ErrDuplicate
		}
		if entry.ClassroomID == classroomID && entry.Date == date &&
			entry.StartTime == start && entry.EndTime == end {
			priority++
		}
	}

	entry := &models.WaitlistEntry{
		ID:          s.nextID,
		UserID:      userID,
		ClassroomID: classroomID,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		CreatedAt:   s.now(),
		Priority:    priority,
	}
	s.nextID++
	s.entries[entry.ID] = entry
	s.save()

	return copyEntry(entry), nil
}

// Cancel removes the user's own entry and restores a dense priority ranking
// among the remaining entries for the same interval.
func (s *WaitlistStore) Cancel(ctx context.Context, id int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if entry.UserID != userID {
		return ErrNotOwner
	}

	s.removeLocked(entry)
	s.save()
	return nil
}

// removeLocked deletes an entry and re-ranks its interval group by creation
// order, keeping priorities dense and gapless.
func (s *WaitlistStore) removeLocked(entry *models.WaitlistEntry) {
	delete(s.entries, entry.ID)
	s.resyncPrioritiesLocked(entry.ClassroomID, entry.Date, entry.StartTime, entry.EndTime)
}

func (s *WaitlistStore) resyncPrioritiesLocked(classroomID int64, date, start, end string) {
	var group []*models.WaitlistEntry
	for _, e := range s.entries {
		if e.ClassroomID == classroomID && e.Date == date && e.StartTime == start && e.EndTime == end {
			group = append(group, e)
		}
	}
	sort.Slice(group, func(i, j int) bool {
		if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		}
		return group[i].ID < group[j].ID
	})
	for rank, e := range group {
		e.Priority = rank
	}
}

// Get returns a waitlist entry by id.
func (s *WaitlistStore) Get(id int64) (*models.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(entry), nil
}

// ListByUser returns the user's entries sorted by date then start time.
func (s *WaitlistStore) ListByUser(userID string) []models.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WaitlistEntry
	for _, entry := range s.entries {
		if entry.UserID == userID {
			out = append(out, *copyEntry(entry))
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

// ListBySlot returns the queue for one classroom slot ordered by priority.
func (s *WaitlistStore) ListBySlot(classroomID int64, date, start string) []models.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WaitlistEntry
	for _, entry := range s.entries {
		if entry.ClassroomID == classroomID && entry.Date == date && entry.StartTime == start {
			out = append(out, *copyEntry(entry))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ProcessReservationCancelled hands a freed slot to the waitlist. Every entry
// for the classroom and date whose interval overlaps the freed one is a
// candidate, ordered by priority then creation time. Candidates over quota
// are dropped from the queue; the first candidate whose own full interval can
// be booked is promoted. Returns the auto-created reservation, or nil when
// nobody could be promoted.
func (s *WaitlistStore) ProcessReservationCancelled(ctx context.Context, classroomID int64, date, start, end string) *models.Reservation {
	freedStart, err := timeslot.ParseTime(start)
	if err != nil {
		return nil
	}
	freedEnd, err := timeslot.ParseTime(end)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*models.WaitlistEntry
	for _, entry := range s.entries {
		if entry.ClassroomID != classroomID || entry.Date != date {
			continue
		}
		entryStart, err := timeslot.ParseTime(entry.StartTime)
		if err != nil {
			continue
		}
		entryEnd, err := timeslot.ParseTime(entry.EndTime)
		if err != nil {
			continue
		}
		if timeslot.Overlaps(freedStart, freedEnd, entryStart, entryEnd) {
			candidates = append(candidates, entry)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	for _, entry := range candidates {
		if s.reservations.CountActive(entry.UserID) >= models.MaxActiveReservations {
			// Over quota: the entry can never be promoted, treat it as
			// cancelled so the rest of the queue moves up.
			s.removeLocked(entry)
			s.save()
			continue
		}

		// The candidate gets its own full requested interval, which may be
		// wider than the freed one; creation re-checks every booking rule.
		res, err := s.reservations.Create(ctx, entry.UserID, classroomID, date, entry.StartTime, entry.EndTime, nil)
		if err != nil {
			s.logger.Debug().Err(err).Int64("entry_id", entry.ID).Msg("waitlist candidate not promotable, keeping queued")
			continue
		}

		s.removeLocked(entry)
		s.save()
		s.notifyPromotion(ctx, entry, res)
		s.publishPromotion(res, entry.UserID)
		return res
	}

	return nil
}

func (s *WaitlistStore) notifyPromotion(ctx context.Context, entry *models.WaitlistEntry, res *models.Reservation) {
	if s.notifications == nil {
		return
	}
	name := fmt.Sprintf("classroom %d", entry.ClassroomID)
	if s.rooms != nil {
		if room, err := s.rooms.GetClassroom(ctx, entry.ClassroomID); err == nil && room != nil {
			name = room.Name
		}
	}
	message := fmt.Sprintf("[%s] Your waitlisted slot was booked automatically. (%s %s~%s)",
		name, entry.Date, entry.StartTime, entry.EndTime)
	s.notifications.Create(entry.UserID, res.ID, models.NotificationPromotion, message)
}

func (s *WaitlistStore) publishPromotion(res *models.Reservation, actor string) {
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
	if err := s.eventBus.PublishJSON(events.EventWaitlistPromoted, payload); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", res.ID).Msg("publish promotion event error")
	}
}

func copyEntry(entry *models.WaitlistEntry) *models.WaitlistEntry {
	cp := *entry
	return &cp
}
