package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET GRADE COMMAND
// Guard: {Teacher, Open}. Writing a grade cell unconditionally overwrites
// any prior value; no history is retained. A rejected write (bad index,
// out-of-range score, student not enrolled) leaves no cell behind.
// ══════════════════════════════════════════════════════════════════════════════

// SetGradeCommand contains the data to write a grade cell.
type SetGradeCommand struct {
	// Caller is the teacher account recording the grade.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// Student is the graded student's account.
	Student shared.AccountID

	// EvalIndex is the evaluation index.
	EvalIndex int

	// Kind is the cell kind: not_presented or numeric.
	Kind course.GradeKind

	// RawUnits is the numeric score in whole grade units (0..10);
	// ignored for not_presented.
	RawUnits int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SetGradeCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "SetGrade", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "SetGrade", shared.ErrInvalidID, "course id is required")
	}
	if !c.Student.IsValid() {
		return shared.NewDomainError("command", "SetGrade", shared.ErrInvalidID, "student account is required")
	}
	return nil
}

// SetGradeHandler handles the SetGradeCommand.
type SetGradeHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewSetGradeHandler creates a new SetGradeHandler.
func NewSetGradeHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *SetGradeHandler {
	return &SetGradeHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle executes the set grade command.
func (h *SetGradeHandler) Handle(ctx context.Context, cmd SetGradeCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set_grade: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	crs, err := uow.Courses().Get(ctx, cmd.CourseID)
	if err != nil {
		return fmt.Errorf("set_grade: failed to load course: %w", err)
	}

	if err := crs.SetGrade(cmd.Caller, cmd.Student, cmd.EvalIndex, cmd.Kind, cmd.RawUnits); err != nil {
		return err
	}

	key := course.GradeKey{Student: cmd.Student, EvalIndex: cmd.EvalIndex}
	cell := crs.Grades[key]

	if err := uow.Courses().UpsertGrade(ctx, crs.ID, key, cell); err != nil {
		return fmt.Errorf("set_grade: failed to persist grade cell: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("set_grade: failed to commit: %w", err)
	}

	event := shared.NewGradeRecordedEvent(crs.ID.String(), cmd.Student.String(), cmd.EvalIndex, cell.Kind.String(), cell.Score.Int())
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.publisher.Publish(event)

	return nil
}
