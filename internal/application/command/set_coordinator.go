package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET COORDINATOR COMMAND
// Guard: {Owner, Open}. The coordinator slot is overwritten unconditionally;
// there is no confirmation step on the new coordinator's side.
// ══════════════════════════════════════════════════════════════════════════════

// SetCoordinatorCommand contains the data to replace the course coordinator.
type SetCoordinatorCommand struct {
	// Caller is the account performing the change.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// Coordinator is the account to install as coordinator.
	Coordinator shared.AccountID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SetCoordinatorCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "SetCoordinator", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "SetCoordinator", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// SetCoordinatorHandler handles the SetCoordinatorCommand.
type SetCoordinatorHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewSetCoordinatorHandler creates a new SetCoordinatorHandler.
func NewSetCoordinatorHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *SetCoordinatorHandler {
	return &SetCoordinatorHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle executes the set coordinator command.
func (h *SetCoordinatorHandler) Handle(ctx context.Context, cmd SetCoordinatorCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set_coordinator: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	crs, err := uow.Courses().Get(ctx, cmd.CourseID)
	if err != nil {
		return fmt.Errorf("set_coordinator: failed to load course: %w", err)
	}

	oldCoordinator := crs.Coordinator
	if err := crs.SetCoordinator(cmd.Caller, cmd.Coordinator); err != nil {
		return err
	}

	if err := uow.Courses().UpdateCoordinator(ctx, crs.ID, crs.Coordinator); err != nil {
		return fmt.Errorf("set_coordinator: failed to persist coordinator: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("set_coordinator: failed to commit: %w", err)
	}

	event := shared.NewCoordinatorChangedEvent(crs.ID.String(), oldCoordinator.String(), crs.Coordinator.String())
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.publisher.Publish(event)

	return nil
}
