package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/messaging"
)

const testCourseID = "3f1f9be2-6c1a-4c62-9ef1-0a9f6f3f8a11"

// memFinalCache tracks invalidation calls.
type memFinalCache struct {
	invalidated []shared.CourseID
}

func (c *memFinalCache) GetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID) (course.FinalGrade, error) {
	return course.FinalGrade{}, shared.ErrNotFound
}

func (c *memFinalCache) SetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID, final course.FinalGrade, ttl time.Duration) error {
	return nil
}

func (c *memFinalCache) InvalidateFinals(ctx context.Context, id shared.CourseID) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

func (c *memFinalCache) GetCounts(ctx context.Context, id shared.CourseID) (course.Counts, error) {
	return course.Counts{}, shared.ErrNotFound
}

func (c *memFinalCache) SetCounts(ctx context.Context, id shared.CourseID, counts course.Counts, ttl time.Duration) error {
	return nil
}

func newSyncBus() *messaging.InMemoryEventBus {
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	return messaging.NewInMemoryEventBus(cfg)
}

func TestCacheInvalidator_DropsFinalsOnGradeWrite(t *testing.T) {
	cache := &memFinalCache{}
	bus := newSyncBus()
	defer bus.Close()

	invalidator := NewCacheInvalidator(cache, nil)
	require.NoError(t, invalidator.Register(bus))

	event := shared.NewGradeRecordedEvent(testCourseID, "acct:student", 0, "numeric", 800)
	require.NoError(t, bus.Publish(event))

	require.Len(t, cache.invalidated, 1)
	assert.Equal(t, shared.CourseID(testCourseID), cache.invalidated[0])

	invalidations, failures := invalidator.Stats()
	assert.Equal(t, int64(1), invalidations)
	assert.Equal(t, int64(0), failures)
}

func TestCacheInvalidator_ReactsToRosterAndEvaluationEvents(t *testing.T) {
	cache := &memFinalCache{}
	bus := newSyncBus()
	defer bus.Close()

	invalidator := NewCacheInvalidator(cache, nil)
	require.NoError(t, invalidator.Register(bus))

	require.NoError(t, bus.Publish(shared.NewEvaluationCreatedEvent(testCourseID, 0, "Midterm", 60)))
	require.NoError(t, bus.Publish(shared.NewStudentEnrolledEvent(testCourseID, "acct:student", "Grace Hopper", true)))
	require.NoError(t, bus.Publish(shared.NewTeacherRegisteredEvent(testCourseID, "acct:teacher", "Dr. Silva")))

	assert.Len(t, cache.invalidated, 3)
}

func TestCacheInvalidator_IgnoresLifecycleEvents(t *testing.T) {
	cache := &memFinalCache{}
	bus := newSyncBus()
	defer bus.Close()

	invalidator := NewCacheInvalidator(cache, nil)
	require.NoError(t, invalidator.Register(bus))

	// Closing a course changes neither grades nor counters.
	require.NoError(t, bus.Publish(shared.NewCourseClosedEvent(testCourseID, "acct:coordinator")))

	assert.Empty(t, cache.invalidated)
}

func TestCacheInvalidator_SkipsMalformedAggregateID(t *testing.T) {
	cache := &memFinalCache{}
	bus := newSyncBus()
	defer bus.Close()

	invalidator := NewCacheInvalidator(cache, nil)
	require.NoError(t, invalidator.Register(bus))

	event := shared.NewGradeRecordedEvent("not-a-uuid", "acct:student", 0, "numeric", 800)
	require.NoError(t, bus.Publish(event))

	assert.Empty(t, cache.invalidated)
}

func TestIDGenerator_ProducesValidCourseIDs(t *testing.T) {
	g := NewIDGenerator()

	id, err := shared.NewCourseID(g.GenerateID())
	require.NoError(t, err)
	assert.False(t, id.IsEmpty())
}
