package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at fixed intervals.
type IntervalSchedule struct {
	interval time.Duration
}

// NewIntervalSchedule creates a schedule that fires every interval.
func NewIntervalSchedule(interval time.Duration) (*IntervalSchedule, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval must be at least one second, got %s", interval)
	}
	return &IntervalSchedule{interval: interval}, nil
}

// MustIntervalSchedule is like NewIntervalSchedule but panics on error.
// Intended for wiring with compile-time constant intervals.
func MustIntervalSchedule(interval time.Duration) *IntervalSchedule {
	s, err := NewIntervalSchedule(interval)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next run time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// String returns a human-readable representation.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.interval)
}
