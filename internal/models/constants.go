package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	NotificationConfirmation = "confirmation"
	NotificationPromotion    = "promotion"
	NotificationReminder     = "reminder"
)

const (
	// MaxActiveReservations ограничивает число активных броней на пользователя,
	// включая участие в чужих бронях.
	MaxActiveReservations = 3

	// BookingWindowDays размер окна бронирования: сегодня + 6 дней.
	BookingWindowDays = 7

	// ReminderLead за сколько до начала брони создается напоминание.
	ReminderLead = 30 * time.Minute

	// ReminderTolerance допуск срабатывания напоминания.
	ReminderTolerance = 5 * time.Minute

	// DefaultSessionTTL время жизни сессии в секундах.
	DefaultSessionTTL = 24 * 60 * 60

	// DefaultSchedulerInterval период сканирования броней планировщиком, в секундах.
	DefaultSchedulerInterval = 60

	// LoginRateLimitAttempts количество попыток входа в окне.
	LoginRateLimitAttempts = 10

	// LoginRateLimitWindow окно ограничения попыток входа в секундах.
	LoginRateLimitWindow = 60
)
