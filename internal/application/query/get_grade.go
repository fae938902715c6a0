package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET OWN GRADE QUERY
// Самообслуживание: студент читает только собственную ячейку оценки.
// Guard: {Enrolled}; индекс испытания должен существовать. Для пары, в
// которую никогда не писали, возвращается пустая ячейка (empty, 0).
// ══════════════════════════════════════════════════════════════════════════════

// GetOwnGradeQuery содержит параметры запроса собственной оценки.
type GetOwnGradeQuery struct {
	// CourseID - идентификатор курса.
	CourseID shared.CourseID

	// Caller - аккаунт вызывающего студента.
	Caller shared.AccountID

	// EvalIndex - индекс испытания.
	EvalIndex int
}

// Validate проверяет корректность параметров запроса.
func (q GetOwnGradeQuery) Validate() error {
	if q.CourseID.IsEmpty() {
		return shared.NewDomainError("query", "GetOwnGrade", shared.ErrInvalidID, "course id is required")
	}
	if !q.Caller.IsValid() {
		return shared.NewDomainError("query", "GetOwnGrade", shared.ErrInvalidID, "caller account is required")
	}
	return nil
}

// GradeDTO - ячейка оценки для выдачи наружу.
type GradeDTO struct {
	// EvalIndex - индекс испытания.
	EvalIndex int `json:"eval_index"`

	// Kind - вид значения: empty, not_presented или numeric.
	Kind string `json:"kind"`

	// Score - балл x100 (0 для нечисловых видов).
	Score int `json:"score"`

	// ScoreText - балл в человекочитаемом виде ("8.00").
	ScoreText string `json:"score_text"`
}

// GetOwnGradeHandler обрабатывает GetOwnGradeQuery.
type GetOwnGradeHandler struct {
	repo course.Repository
}

// NewGetOwnGradeHandler создаёт новый GetOwnGradeHandler.
func NewGetOwnGradeHandler(repo course.Repository) *GetOwnGradeHandler {
	return &GetOwnGradeHandler{repo: repo}
}

// Handle выполняет запрос собственной оценки.
func (h *GetOwnGradeHandler) Handle(ctx context.Context, q GetOwnGradeQuery) (*GradeDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.repo.Get(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_own_grade: failed to load course: %w", err)
	}

	cell, err := crs.OwnGradeAt(q.Caller, q.EvalIndex)
	if err != nil {
		return nil, err
	}

	return &GradeDTO{
		EvalIndex: q.EvalIndex,
		Kind:      cell.Kind.String(),
		Score:     cell.Score.Int(),
		ScoreText: cell.Score.String(),
	}, nil
}
