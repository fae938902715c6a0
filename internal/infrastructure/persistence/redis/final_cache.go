package redis

import (
	"context"
	"errors"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINAL GRADE CACHE
// Implements course.FinalCache. Stored values mirror the aggregator output;
// a fresh grade or evaluation write drops every final of the course.
// ══════════════════════════════════════════════════════════════════════════════

// cachedFinal is the JSON shape of a stored final grade.
type cachedFinal struct {
	Kind  string `json:"kind"`
	Score int    `json:"score"`
}

// FinalGradeCache caches computed final grades and course counters.
type FinalGradeCache struct {
	cache *Cache
}

// NewFinalGradeCache creates a new FinalGradeCache.
func NewFinalGradeCache(cache *Cache) *FinalGradeCache {
	return &FinalGradeCache{cache: cache}
}

// GetFinal returns the cached final grade of a student.
func (f *FinalGradeCache) GetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID) (course.FinalGrade, error) {
	var stored cachedFinal
	err := f.cache.Get(ctx, FinalKey(id.String(), student.String()), &stored)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return course.FinalGrade{}, shared.ErrNotFound
		}
		return course.FinalGrade{}, err
	}

	kind, err := course.ParseGradeKind(stored.Kind)
	if err != nil {
		// A corrupt entry behaves like a miss; the caller recomputes.
		return course.FinalGrade{}, shared.ErrNotFound
	}

	return course.FinalGrade{Kind: kind, Score: shared.Score(stored.Score)}, nil
}

// SetFinal stores a computed final grade with a TTL.
func (f *FinalGradeCache) SetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID, final course.FinalGrade, ttl time.Duration) error {
	stored := cachedFinal{
		Kind:  final.Kind.String(),
		Score: final.Score.Int(),
	}
	return f.cache.Set(ctx, FinalKey(id.String(), student.String()), stored, ttl)
}

// InvalidateFinals drops every cached final of a course along with its
// counters entry. Counters change on the same writes that stale finals,
// so they share one invalidation path.
func (f *FinalGradeCache) InvalidateFinals(ctx context.Context, id shared.CourseID) error {
	if err := f.cache.DeleteByPattern(ctx, CourseFinalsPattern(id.String())); err != nil {
		return err
	}
	return f.cache.Delete(ctx, CountsKey(id.String()))
}

// GetCounts returns the cached public counters of a course.
func (f *FinalGradeCache) GetCounts(ctx context.Context, id shared.CourseID) (course.Counts, error) {
	var counts course.Counts
	err := f.cache.Get(ctx, CountsKey(id.String()), &counts)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return course.Counts{}, shared.ErrNotFound
		}
		return course.Counts{}, err
	}
	return counts, nil
}

// SetCounts stores the public counters of a course with a TTL.
func (f *FinalGradeCache) SetCounts(ctx context.Context, id shared.CourseID, counts course.Counts, ttl time.Duration) error {
	return f.cache.Set(ctx, CountsKey(id.String()), counts, ttl)
}
