package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE COURSE COMMAND
// Guard: {Coordinator, Open}. The transition is one-way: once closed, no
// operation reopens the course. Queries keep working indefinitely.
// ══════════════════════════════════════════════════════════════════════════════

// CloseCourseCommand contains the data to close a course.
type CloseCourseCommand struct {
	// Caller is the account performing the close.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CloseCourseCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "CloseCourse", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "CloseCourse", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// CloseCourseHandler handles the CloseCourseCommand.
type CloseCourseHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewCloseCourseHandler creates a new CloseCourseHandler.
func NewCloseCourseHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *CloseCourseHandler {
	return &CloseCourseHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle executes the close course command.
func (h *CloseCourseHandler) Handle(ctx context.Context, cmd CloseCourseCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("close_course: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	crs, err := uow.Courses().Get(ctx, cmd.CourseID)
	if err != nil {
		return fmt.Errorf("close_course: failed to load course: %w", err)
	}

	if err := crs.Close(cmd.Caller); err != nil {
		return err
	}

	if err := uow.Courses().MarkClosed(ctx, crs.ID, crs.ClosedAt); err != nil {
		return fmt.Errorf("close_course: failed to persist closed state: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("close_course: failed to commit: %w", err)
	}

	event := shared.NewCourseClosedEvent(crs.ID.String(), cmd.Caller.String())
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.publisher.Publish(event)

	return nil
}
