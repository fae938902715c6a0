package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMANDS
// Two paths onto the roster: the owner enrolls any account (admin path,
// guard {Owner, Open}), or an account enrolls itself (self-service path,
// guard {NotEnrolled}). Both create the same kind of StudentRecord and
// append the account to the stable enrollment sequence.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollByAdminCommand contains the data for the admin enrollment path.
type EnrollByAdminCommand struct {
	// Caller is the account performing the enrollment.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// Account is the student account to enroll.
	Account shared.AccountID

	// Name is the student's full name; must be non-empty.
	Name string

	// IDDocument is the identification document; must be non-empty.
	IDDocument string

	// Email is the contact address (optional).
	Email string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c EnrollByAdminCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "EnrollByAdmin", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "EnrollByAdmin", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// SelfEnrollCommand contains the data for the self-service enrollment path.
type SelfEnrollCommand struct {
	// Caller is the account enrolling itself.
	Caller shared.AccountID

	// CourseID identifies the course.
	CourseID shared.CourseID

	// Name is the student's full name; must be non-empty.
	Name string

	// IDDocument is the identification document; must be non-empty.
	IDDocument string

	// Email is the contact address (optional).
	Email string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SelfEnrollCommand) Validate() error {
	if !c.Caller.IsValid() {
		return shared.NewDomainError("command", "SelfEnroll", shared.ErrInvalidID, "caller account is required")
	}
	if c.CourseID.IsEmpty() {
		return shared.NewDomainError("command", "SelfEnroll", shared.ErrInvalidID, "course id is required")
	}
	return nil
}

// EnrollStudentResult contains the result of either enrollment path.
type EnrollStudentResult struct {
	// Account is the enrolled student account.
	Account shared.AccountID

	// Position is the student's stable position in the enrollment sequence.
	Position int
}

// EnrollStudentHandler handles both enrollment commands.
type EnrollStudentHandler struct {
	uowFactory course.UnitOfWorkFactory
	publisher  shared.EventPublisher
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(uowFactory course.UnitOfWorkFactory, publisher shared.EventPublisher) *EnrollStudentHandler {
	return &EnrollStudentHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// HandleAdmin executes the admin enrollment command.
func (h *EnrollStudentHandler) HandleAdmin(ctx context.Context, cmd EnrollByAdminCommand) (*EnrollStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.enroll(ctx, cmd.CourseID, cmd.CorrelationID, false, func(crs *course.Course) (shared.AccountID, error) {
		return cmd.Account, crs.EnrollByAdmin(cmd.Caller, cmd.Account, cmd.Name, cmd.IDDocument, cmd.Email)
	})
}

// HandleSelf executes the self-service enrollment command.
func (h *EnrollStudentHandler) HandleSelf(ctx context.Context, cmd SelfEnrollCommand) (*EnrollStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.enroll(ctx, cmd.CourseID, cmd.CorrelationID, true, func(crs *course.Course) (shared.AccountID, error) {
		return cmd.Caller, crs.SelfEnroll(cmd.Caller, cmd.Name, cmd.IDDocument, cmd.Email)
	})
}

// enroll is the shared load-mutate-persist path for both enrollment commands.
func (h *EnrollStudentHandler) enroll(
	ctx context.Context,
	courseID shared.CourseID,
	correlationID string,
	selfService bool,
	mutate func(*course.Course) (shared.AccountID, error),
) (*EnrollStudentResult, error) {
	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: failed to begin unit of work: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	crs, err := uow.Courses().Get(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: failed to load course: %w", err)
	}

	account, err := mutate(crs)
	if err != nil {
		return nil, err
	}

	rec, err := crs.StudentRecordOf(account)
	if err != nil {
		return nil, fmt.Errorf("enroll_student: record missing after enrollment: %w", err)
	}

	if err := uow.Courses().InsertStudent(ctx, crs.ID, rec); err != nil {
		return nil, fmt.Errorf("enroll_student: failed to persist student record: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("enroll_student: failed to commit: %w", err)
	}

	event := shared.NewStudentEnrolledEvent(crs.ID.String(), account.String(), rec.Name, selfService)
	event.BaseEvent = event.WithCorrelationID(correlationID)
	_ = h.publisher.Publish(event)

	return &EnrollStudentResult{
		Account:  account,
		Position: rec.Position,
	}, nil
}
