package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COUNTS QUERY
// Публичные счётчики курса: преподаватели, студенты, испытания.
// Без охраны. Счётчики кешируются с коротким TTL.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultCountsTTL - TTL закешированных счётчиков.
const DefaultCountsTTL = 1 * time.Minute

// GetCountsQuery содержит параметры запроса счётчиков.
type GetCountsQuery struct {
	// CourseID - идентификатор курса.
	CourseID shared.CourseID
}

// Validate проверяет корректность параметров запроса.
func (q GetCountsQuery) Validate() error {
	if q.CourseID.IsEmpty() {
		return shared.NewDomainError("query", "GetCounts", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// CountsDTO - счётчики курса для выдачи наружу.
type CountsDTO struct {
	// Teachers - количество зарегистрированных преподавателей.
	Teachers int `json:"teachers"`

	// Students - количество зачисленных студентов.
	Students int `json:"students"`

	// Evaluations - количество испытаний.
	Evaluations int `json:"evaluations"`
}

// GetCountsHandler обрабатывает GetCountsQuery.
type GetCountsHandler struct {
	repo  course.Repository
	cache course.FinalCache
	ttl   time.Duration
}

// NewGetCountsHandler создаёт новый GetCountsHandler.
// Кеш опционален: при nil счётчики каждый раз читаются из хранилища.
func NewGetCountsHandler(repo course.Repository, cache course.FinalCache) *GetCountsHandler {
	return &GetCountsHandler{
		repo:  repo,
		cache: cache,
		ttl:   DefaultCountsTTL,
	}
}

// Handle выполняет запрос счётчиков.
func (h *GetCountsHandler) Handle(ctx context.Context, q GetCountsQuery) (*CountsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil {
		if counts, err := h.cache.GetCounts(ctx, q.CourseID); err == nil {
			return &CountsDTO{
				Teachers:    counts.Teachers,
				Students:    counts.Students,
				Evaluations: counts.Evaluations,
			}, nil
		}
	}

	crs, err := h.repo.Get(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_counts: failed to load course: %w", err)
	}

	counts := course.Counts{
		Teachers:    crs.TeacherCount(),
		Students:    crs.StudentCount(),
		Evaluations: crs.EvaluationCount(),
	}

	if h.cache != nil {
		_ = h.cache.SetCounts(ctx, q.CourseID, counts, h.ttl)
	}

	return &CountsDTO{
		Teachers:    counts.Teachers,
		Students:    counts.Students,
		Evaluations: counts.Evaluations,
	}, nil
}
