package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "reservations_created_total",
			Help:      "Reservations booked, including waitlist promotions.",
		},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "reservation_conflicts_total",
			Help:      "Booking attempts rejected because the slot was taken.",
		},
	)

	waitlistPromotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "waitlist_promotions_total",
			Help:      "Waitlist entries promoted to reservations.",
		},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classbook",
			Name:      "reminders_sent_total",
			Help:      "Reminder notifications created by the scheduler.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsCreated,
			reservationConflicts,
			waitlistPromotions,
			remindersSent,
		)
	})
}

// IncHTTP increments the request counter for an endpoint and status label.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

func IncReservationsCreated() { reservationsCreated.Inc() }

func IncReservationConflicts() { reservationConflicts.Inc() }

func IncWaitlistPromotions() { waitlistPromotions.Inc() }

func IncRemindersSent() { remindersSent.Inc() }
