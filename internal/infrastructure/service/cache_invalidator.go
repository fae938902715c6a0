// Package service contains infrastructure-level services that react to
// domain events: cache invalidation and ID generation.
package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// IDGenerator produces unique identifiers for new aggregates.
type IDGenerator struct{}

// NewIDGenerator creates an IDGenerator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GenerateID returns a new random UUID string.
func (g *IDGenerator) GenerateID() string {
	return uuid.New().String()
}

// CacheInvalidator drops cached finals and counters when the underlying
// course data changes. It subscribes to the write-side events so that
// readers never observe a cached final that predates a new grade,
// a new evaluation, or a roster change.
type CacheInvalidator struct {
	cache   course.FinalCache
	logger  *slog.Logger
	timeout time.Duration

	invalidations atomic.Int64
	failures      atomic.Int64
}

// NewCacheInvalidator creates a CacheInvalidator.
func NewCacheInvalidator(cache course.FinalCache, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{
		cache:   cache,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Register subscribes the invalidator to every event that makes cached
// values stale. Grade writes and new evaluations invalidate finals;
// all three invalidate the counters entry because the counts payload
// is cached alongside them.
func (ci *CacheInvalidator) Register(subscriber shared.EventSubscriber) error {
	for _, eventType := range []shared.EventType{
		shared.EventGradeRecorded,
		shared.EventEvaluationCreated,
		shared.EventStudentEnrolled,
		shared.EventTeacherRegistered,
	} {
		if err := subscriber.Subscribe(eventType, ci.handle); err != nil {
			return err
		}
	}
	return nil
}

// handle drops the cached entries for the event's course.
func (ci *CacheInvalidator) handle(event shared.Event) error {
	courseID, err := shared.NewCourseID(event.AggregateID())
	if err != nil {
		ci.logger.Warn("cache invalidation skipped: bad aggregate id",
			"event", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ci.timeout)
	defer cancel()

	if err := ci.cache.InvalidateFinals(ctx, courseID); err != nil {
		ci.failures.Add(1)
		ci.logger.Error("finals invalidation failed",
			"course_id", courseID.String(),
			"event", string(event.EventType()),
			"error", err,
		)
		return err
	}

	ci.invalidations.Add(1)
	ci.logger.Debug("cache invalidated",
		"course_id", courseID.String(),
		"event", string(event.EventType()),
	)

	return nil
}

// Stats returns invalidation counters.
func (ci *CacheInvalidator) Stats() (invalidations, failures int64) {
	return ci.invalidations.Load(), ci.failures.Load()
}
