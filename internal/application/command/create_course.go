// Package command contains write operations (CQRS - Commands).
//
// Every command loads the course aggregate inside one unit of work, runs the
// guarded domain operation, and commits all writes or none: an early guard
// failure rolls the whole operation back with zero observable side effects.
// Serialization of concurrent commands is the storage layer's concern.
package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE COURSE COMMAND
// The constructor of the whole record. The caller becomes the immutable
// owner; there is no way to change ownership afterwards.
// ══════════════════════════════════════════════════════════════════════════════

// CreateCourseCommand contains the data to create a course record.
type CreateCourseCommand struct {
	// Caller is the account creating the course; it becomes the owner.
	Caller shared.AccountID

	// Name is the course name.
	Name string

	// Term is the academic term label.
	Term string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreateCourseCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "CreateCourse", shared.ErrInvalidID, "caller account is required")
	}
	return nil
}

// CreateCourseResult contains the result of creating a course.
type CreateCourseResult struct {
	// CourseID is the generated identifier of the new course.
	CourseID shared.CourseID

	// Owner is the account that now owns the course.
	Owner shared.AccountID
}

// CreateCourseHandler handles the CreateCourseCommand.
type CreateCourseHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *CreateCourseHandler {
	return &CreateCourseHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle executes the create course command.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*CreateCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewCourseID(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create_course: failed to generate id: %w", err)
	}

	crs, err := course.NewCourse(course.NewCourseParams{
		ID:      id,
		Name:    cmd.Name,
		Term:    cmd.Term,
		Creator: cmd.Caller,
	})
	if err != nil {
		return nil, err
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create_course: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.Courses().Create(ctx, crs); err != nil {
		return nil, fmt.Errorf("create_course: failed to persist course: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create_course: failed to commit: %w", err)
	}

	event := shared.NewCourseCreatedEvent(id.String(), crs.Name, crs.Term.String(), crs.Owner.String())
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.publisher.Publish(event)

	return &CreateCourseResult{
		CourseID: id,
		Owner:    crs.Owner,
	}, nil
}
