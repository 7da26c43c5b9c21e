// Package timeslot contains the pure date/time validation rules for
// hour-aligned classroom slots. Nothing here touches storage or the clock;
// callers pass "now" in explicitly.
package timeslot

import (
	"fmt"
	"time"
)

// Time is a wall-clock time of day with minute precision.
type Time struct {
	Hour   int
	Minute int
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// minutes returns the offset from midnight. An end time of 00:00 is the
// midnight that closes the day, so endMinutes maps it to 24:00.
func (t Time) minutes() int {
	return t.Hour*60 + t.Minute
}

func endMinutes(t Time) int {
	if t.Hour == 0 && t.Minute == 0 {
		return 24 * 60
	}
	return t.minutes()
}

// ParseTime parses a strict HH:MM string. All four positions must be
// digits; Sscanf-style leniency would let trailing junk through.
func ParseTime(s string) (Time, error) {
	if len(s) != 5 || s[2] != ':' {
		return Time{}, fmt.Errorf("invalid time format: %q", s)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return Time{}, fmt.Errorf("invalid time format: %q", s)
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return Time{}, fmt.Errorf("invalid time format: %q", s)
	}
	return Time{Hour: hour, Minute: minute}, nil
}

// ParseDate parses a strict YYYY-MM-DD string into local midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %q", s)
	}
	return d, nil
}

// At combines a calendar day with a time of day.
func At(date time.Time, t Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// IsValidSlot reports whether [start, end) is a whole-hour slot within a
// single day. End may be midnight only for the 23:00 hour, which represents
// booking up to the end of the day.
func IsValidSlot(start, end Time) bool {
	if start.Minute != 0 || end.Minute != 0 {
		return false
	}
	if end.Hour == 0 {
		return start.Hour == 23
	}
	return end.Hour > start.Hour
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints (10:00-11:00 vs 11:00-12:00) do not overlap.
func Overlaps(startA, endA, startB, endB Time) bool {
	return startA.minutes() < endMinutes(endB) && startB.minutes() < endMinutes(endA)
}

// WithinBookingWindow reports whether date falls inside the booking horizon
// [today, today+windowDays-1], computed against the supplied current time.
func WithinBookingWindow(date time.Time, now time.Time, windowDays int) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	last := today.AddDate(0, 0, windowDays-1)
	return !date.Before(today) && !date.After(last)
}
