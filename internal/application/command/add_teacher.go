package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD TEACHER COMMAND
// Guard: {Owner, Open}. First-write-wins: the first registered name for an
// account is permanent, and a repeat call is a silent no-op, not an error.
// ══════════════════════════════════════════════════════════════════════════════

// AddTeacherCommand contains the data to register a teacher.
type AddTeacherCommand struct {
	// Caller is the account performing the registration.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// Account is the teacher account to register.
	Account shared.AccountID

	// Name is the teacher's display name; must be non-empty.
	Name string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AddTeacherCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "AddTeacher", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "AddTeacher", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// AddTeacherResult contains the result of registering a teacher.
type AddTeacherResult struct {
	// Registered is true when a new entry was written, false when the call
	// was a first-write-wins no-op.
	Registered bool
}

// AddTeacherHandler handles the AddTeacherCommand.
type AddTeacherHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewAddTeacherHandler creates a new AddTeacherHandler.
func NewAddTeacherHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *AddTeacherHandler {
	return &AddTeacherHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle executes the add teacher command.
func (h *AddTeacherHandler) Handle(ctx context.Context, cmd AddTeacherCommand) (*AddTeacherResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("add_teacher: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	crs, err := uow.Courses().Get(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("add_teacher: failed to load course: %w", err)
	}

	registered, err := crs.AddTeacher(cmd.Caller, cmd.Account, cmd.Name)
	if err != nil {
		return nil, err
	}

	if registered {
		if err := uow.Courses().InsertTeacher(ctx, crs.ID, crs.Teachers[cmd.Account]); err != nil {
			return nil, fmt.Errorf("add_teacher: failed to persist teacher entry: %w", err)
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("add_teacher: failed to commit: %w", err)
	}

	if registered {
		event := shared.NewTeacherRegisteredEvent(crs.ID.String(), cmd.Account.String(), crs.Teachers[cmd.Account].Name)
		event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
		_ = h.publisher.Publish(event)
	}

	return &AddTeacherResult{Registered: registered}, nil
}
