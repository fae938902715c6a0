package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE EVALUATION COMMAND
// Guard: {Teacher, Open}. Evaluations are append-only: the returned index
// equals the previous length of the registry and is stable forever.
// Weights are accepted independently; nothing checks that they sum to 100.
// ══════════════════════════════════════════════════════════════════════════════

// CreateEvaluationCommand contains the data to append an evaluation.
type CreateEvaluationCommand struct {
	// Caller is the teacher account creating the evaluation.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// Name is the evaluation name; must be non-empty.
	Name string

	// DueAt is the due timestamp.
	DueAt time.Time

	// WeightPct is the weight in plain integer percentage points.
	WeightPct int

	// MinPassUnits is the minimum passing score in whole grade units;
	// it is stored x100 internally.
	MinPassUnits int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreateEvaluationCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "CreateEvaluation", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "CreateEvaluation", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// CreateEvaluationResult contains the result of appending an evaluation.
type CreateEvaluationResult struct {
	// Index is the stable index of the new evaluation.
	Index int
}

// CreateEvaluationHandler handles the CreateEvaluationCommand.
type CreateEvaluationHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewCreateEvaluationHandler creates a new CreateEvaluationHandler.
func NewCreateEvaluationHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *CreateEvaluationHandler {
	return &CreateEvaluationHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle executes the create evaluation command.
func (h *CreateEvaluationHandler) Handle(ctx context.Context, cmd CreateEvaluationCommand) (*CreateEvaluationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create_evaluation: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	crs, err := uow.Courses().Get(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("create_evaluation: failed to load course: %w", err)
	}

	index, err := crs.CreateEvaluation(cmd.Caller, cmd.Name, cmd.DueAt, cmd.WeightPct, cmd.MinPassUnits)
	if err != nil {
		return nil, err
	}

	eval, err := crs.EvaluationAt(index)
	if err != nil {
		return nil, fmt.Errorf("create_evaluation: evaluation missing after append: %w", err)
	}

	if err := uow.Courses().AppendEvaluation(ctx, crs.ID, eval); err != nil {
		return nil, fmt.Errorf("create_evaluation: failed to persist evaluation: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create_evaluation: failed to commit: %w", err)
	}

	event := shared.NewEvaluationCreatedEvent(crs.ID.String(), index, eval.Name, eval.Weight.Int())
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.publisher.Publish(event)

	return &CreateEvaluationResult{Index: index}, nil
}
