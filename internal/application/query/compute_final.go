package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE FINAL QUERY
// Итоговая оценка студента. Два входа - самообслуживание (guard {Enrolled})
// и запрос по идентификатору (без охраны) - зовут один и тот же алгоритм
// агрегатора: никаких расхождений в округлении или ограничении сверху.
// Результат кешируется; кеш сбрасывается при новой оценке или испытании.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultFinalTTL - TTL закешированного итога.
const DefaultFinalTTL = 10 * time.Minute

// ComputeFinalQuery содержит параметры запроса итоговой оценки.
type ComputeFinalQuery struct {
	// CourseID - идентификатор курса.
	CourseID shared.CourseID

	// Student - аккаунт студента, чей итог вычисляется.
	Student shared.AccountID

	// SelfService - true, если студент запрашивает собственный итог;
	// в этом случае Student обязан совпадать с вызывающим и охрана
	// {Enrolled} применяется.
	SelfService bool
}

// Validate проверяет корректность параметров запроса.
func (q ComputeFinalQuery) Validate() error {
	if q.CourseID.IsEmpty() {
		return shared.NewDomainError("query", "ComputeFinal", shared.ErrInvalidID, "course id is required")
	}
	if !q.Student.IsValid() {
		return shared.NewDomainError("query", "ComputeFinal", shared.ErrInvalidID, "student account is required")
	}
	return nil
}

// FinalGradeDTO - итоговая оценка для выдачи наружу.
type FinalGradeDTO struct {
	// Student - аккаунт студента.
	Student string `json:"student"`

	// Kind - вид итога: empty, not_presented или numeric.
	Kind string `json:"kind"`

	// Score - итоговый балл x100 (0 для нечисловых видов).
	Score int `json:"score"`

	// ScoreText - балл в человекочитаемом виде ("7.20").
	ScoreText string `json:"score_text"`
}

// ComputeFinalHandler обрабатывает ComputeFinalQuery.
type ComputeFinalHandler struct {
	repo  course.Repository
	cache course.FinalCache
	ttl   time.Duration
}

// NewComputeFinalHandler создаёт новый ComputeFinalHandler.
// Кеш опционален: при nil каждый запрос пересчитывает итог заново.
func NewComputeFinalHandler(repo course.Repository, cache course.FinalCache) *ComputeFinalHandler {
	return &ComputeFinalHandler{
		repo:  repo,
		cache: cache,
		ttl:   DefaultFinalTTL,
	}
}

// Handle выполняет запрос итоговой оценки.
func (h *ComputeFinalHandler) Handle(ctx context.Context, q ComputeFinalQuery) (*FinalGradeDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// Самообслуживание требует охраны {Enrolled}, поэтому кеш
	// спрашиваем только после загрузки агрегата и проверки. Для
	// неохраняемого входа кеш можно спросить сразу.
	if !q.SelfService && h.cache != nil {
		if final, err := h.cache.GetFinal(ctx, q.CourseID, q.Student); err == nil {
			return toFinalDTO(q.Student, final), nil
		}
	}

	crs, err := h.repo.Get(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("compute_final: failed to load course: %w", err)
	}

	var final course.FinalGrade
	if q.SelfService {
		final, err = crs.ComputeOwnFinal(q.Student)
		if err != nil {
			return nil, err
		}
	} else {
		final = crs.ComputeFinal(q.Student)
	}

	if h.cache != nil {
		_ = h.cache.SetFinal(ctx, q.CourseID, q.Student, final, h.ttl)
	}

	return toFinalDTO(q.Student, final), nil
}

// toFinalDTO преобразует доменный итог в DTO.
func toFinalDTO(student shared.AccountID, final course.FinalGrade) *FinalGradeDTO {
	return &FinalGradeDTO{
		Student:   student.String(),
		Kind:      final.Kind.String(),
		Score:     final.Score.Int(),
		ScoreText: final.Score.String(),
	}
}
