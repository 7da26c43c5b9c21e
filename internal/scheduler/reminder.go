package scheduler

import (
	"context"
	"fmt"
	"time"

	"classbook/internal/domain"
	"classbook/internal/metrics"
	"classbook/internal/models"
	"classbook/internal/timeslot"

	"github.com/rs/zerolog"
)

// ReservationSource is the slice of the reservation store the scheduler scans.
type ReservationSource interface {
	ListAll() []models.Reservation
}

// NotificationSink records reminders and answers whether one already exists
// for a (reservation, user) pair.
type NotificationSink interface {
	Create(userID string, reservationID int64, kind, message string) *models.Notification
	Has(reservationID int64, userID, kind string) bool
}

// Reminder scans reservations on a fixed interval and creates a reminder
// notification for the owner and every registered participant shortly before
// the start time. The dedup check makes ticks idempotent, so overlapping or
// delayed ticks never double-notify.
type Reminder struct {
	reservations  ReservationSource
	notifications NotificationSink
	users         domain.UserDirectory
	rooms         domain.ClassroomDirectory
	logger        *zerolog.Logger
	interval      time.Duration
	now           func() time.Time
}

func NewReminder(reservations ReservationSource, notifications NotificationSink, users domain.UserDirectory, rooms domain.ClassroomDirectory, logger *zerolog.Logger, interval time.Duration) *Reminder {
	if interval <= 0 {
		interval = models.DefaultSchedulerInterval * time.Second
	}
	return &Reminder{
		reservations:  reservations,
		notifications: notifications,
		users:         users,
		rooms:         rooms,
		logger:        logger,
		interval:      interval,
		now:           time.Now,
	}
}

// Run ticks until the context is cancelled. The first scan happens
// immediately so a restart does not miss reminders that came due while the
// process was down.
func (r *Reminder) Run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("reminder scheduler started")
	defer r.logger.Info().Msg("reminder scheduler stopped")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one scan. Exported so tests and a restart hook can drive scans
// directly.
func (r *Reminder) Tick(ctx context.Context) {
	now := r.now()
	for _, res := range r.reservations.ListAll() {
		startAt, err := reservationStart(res)
		if err != nil {
			r.logger.Warn().Err(err).Int64("reservation_id", res.ID).Msg("reminder: unparseable reservation skipped")
			continue
		}
		if !due(startAt, now) {
			continue
		}
		r.remind(ctx, res)
	}
}

// due reports whether a reservation starting at startAt should be reminded
// about now. The window opens ReminderLead before the start and stays open
// for ReminderTolerance, so a tick that lands late still fires.
func due(startAt, now time.Time) bool {
	remindAt := startAt.Add(-models.ReminderLead)
	return !now.Before(remindAt) && now.Before(remindAt.Add(models.ReminderTolerance))
}

func (r *Reminder) remind(ctx context.Context, res models.Reservation) {
	message := r.message(ctx, res)

	for _, userID := range append([]string{res.UserID}, res.Participants...) {
		if userID != res.UserID && !r.registered(ctx, userID) {
			continue
		}
		if r.notifications.Has(res.ID, userID, models.NotificationReminder) {
			continue
		}
		r.notifications.Create(userID, res.ID, models.NotificationReminder, message)
		metrics.IncRemindersSent()
		r.logger.Info().Int64("reservation_id", res.ID).Str("user_id", userID).Msg("reminder created")
	}
}

// registered reports whether a participant id resolves to a real user.
// Unregistered participants were allowed onto the reservation but have no
// account to notify.
func (r *Reminder) registered(ctx context.Context, userID string) bool {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("reminder: participant lookup failed")
		return false
	}
	return user != nil
}

func (r *Reminder) message(ctx context.Context, res models.Reservation) string {
	name := fmt.Sprintf("classroom %d", res.ClassroomID)
	if r.rooms != nil {
		if room, err := r.rooms.GetClassroom(ctx, res.ClassroomID); err == nil && room != nil {
			name = room.Name
		}
	}
	return fmt.Sprintf("[%s] Your reservation starts in 30 minutes. (%s %s~%s)",
		name, res.Date, res.StartTime, res.EndTime)
}

func reservationStart(res models.Reservation) (time.Time, error) {
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
