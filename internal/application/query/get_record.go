// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET OWN RECORD QUERY
// Самообслуживание: студент читает только собственную запись.
// Guard: {Enrolled}. Доступен и после закрытия курса.
// ══════════════════════════════════════════════════════════════════════════════

// GetOwnRecordQuery содержит параметры запроса собственной записи.
type GetOwnRecordQuery struct {
	// CourseID - идентификатор курса.
	CourseID shared.CourseID

	// Caller - аккаунт вызывающего студента.
	Caller shared.AccountID
}

// Validate проверяет корректность параметров запроса.
func (q GetOwnRecordQuery) Validate() error {
	if q.CourseID.IsEmpty() {
		return shared.NewDomainError("query", "GetOwnRecord", shared.ErrInvalidID, "course id is required")
	}
	if !q.Caller.IsValid() {
		return shared.NewDomainError("query", "GetOwnRecord", shared.ErrInvalidID, "caller account is required")
	}
	return nil
}

// StudentRecordDTO - запись студента для выдачи наружу.
type StudentRecordDTO struct {
	// Account - аккаунт студента.
	Account string `json:"account"`

	// Name - полное имя.
	Name string `json:"name"`

	// IDDocument - удостоверяющий документ.
	IDDocument string `json:"id_document"`

	// Email - адрес электронной почты.
	Email string `json:"email,omitempty"`

	// Position - порядковый номер зачисления.
	Position int `json:"position"`

	// EnrolledAt - время зачисления.
	EnrolledAt time.Time `json:"enrolled_at"`
}

// GetOwnRecordHandler обрабатывает GetOwnRecordQuery.
type GetOwnRecordHandler struct {
	repo course.Repository
}

// NewGetOwnRecordHandler создаёт новый GetOwnRecordHandler.
func NewGetOwnRecordHandler(repo course.Repository) *GetOwnRecordHandler {
	return &GetOwnRecordHandler{repo: repo}
}

// Handle выполняет запрос собственной записи.
func (h *GetOwnRecordHandler) Handle(ctx context.Context, q GetOwnRecordQuery) (*StudentRecordDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.repo.Get(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_own_record: failed to load course: %w", err)
	}

	if err := crs.Guard(q.Caller, course.IsEnrolled); err != nil {
		return nil, err
	}

	rec, err := crs.StudentRecordOf(q.Caller)
	if err != nil {
		return nil, err
	}

	return &StudentRecordDTO{
		Account:    rec.Account.String(),
		Name:       rec.Name,
		IDDocument: rec.IDDocument,
		Email:      rec.Email,
		Position:   rec.Position,
		EnrolledAt: rec.EnrolledAt,
	}, nil
}
