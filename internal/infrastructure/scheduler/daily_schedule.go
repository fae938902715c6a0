package scheduler

import (
	"fmt"
	"time"
)

// DailySchedule runs a job once a day at a fixed hour and minute
// in the scheduler's timezone.
type DailySchedule struct {
	hour   int
	minute int
}

// NewDailySchedule creates a schedule that fires daily at hour:minute.
func NewDailySchedule(hour, minute int) (*DailySchedule, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("hour must be in [0, 23], got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return nil, fmt.Errorf("minute must be in [0, 59], got %d", minute)
	}
	return &DailySchedule{hour: hour, minute: minute}, nil
}

// Next returns the next occurrence of hour:minute after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns a human-readable representation.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}
