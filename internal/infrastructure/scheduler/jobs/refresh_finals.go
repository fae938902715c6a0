// Package jobs содержит фоновые задачи воркера: пересчёт и прогрев
// кеша итоговых оценок и счётчиков курсов.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// RefreshFinalsConfig - настройки задачи пересчёта итогов.
type RefreshFinalsConfig struct {
	// CacheTTL - время жизни прогретых записей кеша.
	CacheTTL time.Duration

	// MaxCourses - верхняя граница на число курсов за один прогон
	// (0 - без ограничения).
	MaxCourses int
}

// DefaultRefreshFinalsConfig возвращает настройки по умолчанию.
func DefaultRefreshFinalsConfig() RefreshFinalsConfig {
	return RefreshFinalsConfig{
		CacheTTL:   10 * time.Minute,
		MaxCourses: 0,
	}
}

// RefreshFinalsJob пересчитывает итоговые оценки всех зачисленных
// студентов каждого курса и прогревает ими кеш. Счётчики курса
// прогреваются тем же прогоном. Пустые и блокированные итоги
// (GradeEmpty) не кешируются: промах кеша для них дешевле, чем
// рассинхронизация после записи недостающей оценки.
type RefreshFinalsJob struct {
	repo      course.Repository
	cache     course.FinalCache
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    RefreshFinalsConfig

	runsTotal     atomic.Int64
	coursesTotal  atomic.Int64
	studentsTotal atomic.Int64
}

// NewRefreshFinalsJob создаёт задачу пересчёта итогов.
func NewRefreshFinalsJob(
	repo course.Repository,
	cache course.FinalCache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config RefreshFinalsConfig,
) *RefreshFinalsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultRefreshFinalsConfig().CacheTTL
	}

	return &RefreshFinalsJob{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name implements scheduler.Job.
func (j *RefreshFinalsJob) Name() string {
	return "refresh_finals"
}

// Description implements scheduler.Job.
func (j *RefreshFinalsJob) Description() string {
	return "recomputes final grades for every enrolled student and warms the cache"
}

// Run implements scheduler.Job.
func (j *RefreshFinalsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	j.runsTotal.Add(1)

	ids, err := j.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list courses: %w", err)
	}

	if j.config.MaxCourses > 0 && len(ids) > j.config.MaxCourses {
		ids = ids[:j.config.MaxCourses]
	}

	var refreshedCourses, refreshedStudents, failures int

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		warmed, err := j.refreshCourse(ctx, id)
		if err != nil {
			failures++
			j.logger.Error("course refresh failed",
				"course_id", id.String(),
				"error", err,
			)
			continue
		}

		refreshedCourses++
		refreshedStudents += warmed
	}

	j.coursesTotal.Add(int64(refreshedCourses))
	j.studentsTotal.Add(int64(refreshedStudents))

	j.logger.Info("finals refresh completed",
		"courses", refreshedCourses,
		"students", refreshedStudents,
		"failures", failures,
		"duration", time.Since(startedAt).String(),
	)

	if failures > 0 {
		return fmt.Errorf("finals refresh finished with %d failed course(s)", failures)
	}

	return nil
}

// refreshCourse пересчитывает итоги одного курса и прогревает кеш.
// Возвращает число закешированных студенческих итогов.
func (j *RefreshFinalsJob) refreshCourse(ctx context.Context, id shared.CourseID) (int, error) {
	c, err := j.repo.Get(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load course: %w", err)
	}

	counts := course.Counts{
		Teachers:    c.TeacherCount(),
		Students:    c.StudentCount(),
		Evaluations: c.EvaluationCount(),
	}
	if err := j.cache.SetCounts(ctx, id, counts, j.config.CacheTTL); err != nil {
		j.logger.Warn("counts warm failed",
			"course_id", id.String(),
			"error", err,
		)
	}

	warmed := 0
	for _, student := range c.EnrollmentOrder {
		final := c.ComputeFinal(student)
		if final.Kind == course.GradeEmpty {
			continue
		}

		if err := j.cache.SetFinal(ctx, id, student, final, j.config.CacheTTL); err != nil {
			j.logger.Warn("final warm failed",
				"course_id", id.String(),
				"student", student.String(),
				"error", err,
			)
			continue
		}
		warmed++
	}

	if j.publisher != nil && warmed > 0 {
		event := shared.NewFinalsRefreshedEvent(id.String(), warmed)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("finals refreshed event publish failed",
				"course_id", id.String(),
				"error", err,
			)
		}
	}

	return warmed, nil
}

// Stats возвращает накопленную статистику задачи.
func (j *RefreshFinalsJob) Stats() (runs, courses, students int64) {
	return j.runsTotal.Load(), j.coursesTotal.Load(), j.studentsTotal.Load()
}
