// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Course lifecycle events
	EventCourseCreated      EventType = "course.created"
	EventCoordinatorChanged EventType = "course.coordinator_changed"
	EventCourseClosed       EventType = "course.closed"

	// Roster events
	EventTeacherRegistered EventType = "roster.teacher_registered"
	EventStudentEnrolled   EventType = "roster.student_enrolled"

	// Evaluation events
	EventEvaluationCreated EventType = "evaluation.created"

	// Grading events
	EventGradeRecorded EventType = "grade.recorded"

	// System events
	EventFinalsRefreshed EventType = "system.finals_refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseCreatedEvent is emitted when a new course record is created.
type CourseCreatedEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
	Term     string `json:"term"`
	Owner    string `json:"owner"`
}

// Payload implements Event interface.
func (e CourseCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"name":      e.Name,
		"term":      e.Term,
		"owner":     e.Owner,
	}
}

// NewCourseCreatedEvent creates a new CourseCreatedEvent.
func NewCourseCreatedEvent(courseID, name, term, owner string) CourseCreatedEvent {
	return CourseCreatedEvent{
		BaseEvent: NewBaseEvent(EventCourseCreated, courseID),
		CourseID:  courseID,
		Name:      name,
		Term:      term,
		Owner:     owner,
	}
}

// CoordinatorChangedEvent is emitted when the course coordinator is replaced.
type CoordinatorChangedEvent struct {
	BaseEvent
	CourseID       string `json:"course_id"`
	OldCoordinator string `json:"old_coordinator,omitempty"`
	NewCoordinator string `json:"new_coordinator"`
}

// Payload implements Event interface.
func (e CoordinatorChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":       e.CourseID,
		"old_coordinator": e.OldCoordinator,
		"new_coordinator": e.NewCoordinator,
	}
}

// NewCoordinatorChangedEvent creates a new CoordinatorChangedEvent.
func NewCoordinatorChangedEvent(courseID, oldCoordinator, newCoordinator string) CoordinatorChangedEvent {
	return CoordinatorChangedEvent{
		BaseEvent:      NewBaseEvent(EventCoordinatorChanged, courseID),
		CourseID:       courseID,
		OldCoordinator: oldCoordinator,
		NewCoordinator: newCoordinator,
	}
}

// CourseClosedEvent is emitted when a course is irreversibly closed.
type CourseClosedEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	ClosedBy string `json:"closed_by"`
}

// Payload implements Event interface.
func (e CourseClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"closed_by": e.ClosedBy,
	}
}

// NewCourseClosedEvent creates a new CourseClosedEvent.
func NewCourseClosedEvent(courseID, closedBy string) CourseClosedEvent {
	return CourseClosedEvent{
		BaseEvent: NewBaseEvent(EventCourseClosed, courseID),
		CourseID:  courseID,
		ClosedBy:  closedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Roster Events
// ═══════════════════════════════════════════════════════════════════════════

// TeacherRegisteredEvent is emitted the first time an account is registered
// as a teacher. Repeat registrations are silent no-ops and emit nothing.
type TeacherRegisteredEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	Account  string `json:"account"`
	Name     string `json:"name"`
}

// Payload implements Event interface.
func (e TeacherRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"account":   e.Account,
		"name":      e.Name,
	}
}

// NewTeacherRegisteredEvent creates a new TeacherRegisteredEvent.
func NewTeacherRegisteredEvent(courseID, account, name string) TeacherRegisteredEvent {
	return TeacherRegisteredEvent{
		BaseEvent: NewBaseEvent(EventTeacherRegistered, courseID),
		CourseID:  courseID,
		Account:   account,
		Name:      name,
	}
}

// StudentEnrolledEvent is emitted when a student joins the roster,
// through either the admin or the self-service path.
type StudentEnrolledEvent struct {
	BaseEvent
	CourseID    string `json:"course_id"`
	Account     string `json:"account"`
	Name        string `json:"name"`
	SelfService bool   `json:"self_service"`
}

// Payload implements Event interface.
func (e StudentEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":    e.CourseID,
		"account":      e.Account,
		"name":         e.Name,
		"self_service": e.SelfService,
	}
}

// NewStudentEnrolledEvent creates a new StudentEnrolledEvent.
func NewStudentEnrolledEvent(courseID, account, name string, selfService bool) StudentEnrolledEvent {
	return StudentEnrolledEvent{
		BaseEvent:   NewBaseEvent(EventStudentEnrolled, courseID),
		CourseID:    courseID,
		Account:     account,
		Name:        name,
		SelfService: selfService,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Evaluation & Grading Events
// ═══════════════════════════════════════════════════════════════════════════

// EvaluationCreatedEvent is emitted when a new evaluation is appended.
type EvaluationCreatedEvent struct {
	BaseEvent
	CourseID  string `json:"course_id"`
	EvalIndex int    `json:"eval_index"`
	Name      string `json:"name"`
	WeightPct int    `json:"weight_pct"`
}

// Payload implements Event interface.
func (e EvaluationCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":  e.CourseID,
		"eval_index": e.EvalIndex,
		"name":       e.Name,
		"weight_pct": e.WeightPct,
	}
}

// NewEvaluationCreatedEvent creates a new EvaluationCreatedEvent.
func NewEvaluationCreatedEvent(courseID string, evalIndex int, name string, weightPct int) EvaluationCreatedEvent {
	return EvaluationCreatedEvent{
		BaseEvent: NewBaseEvent(EventEvaluationCreated, courseID),
		CourseID:  courseID,
		EvalIndex: evalIndex,
		Name:      name,
		WeightPct: weightPct,
	}
}

// GradeRecordedEvent is emitted every time a grade cell is written,
// including overwrites of an earlier value.
type GradeRecordedEvent struct {
	BaseEvent
	CourseID  string `json:"course_id"`
	Student   string `json:"student"`
	EvalIndex int    `json:"eval_index"`
	Kind      string `json:"kind"`
	Score     int    `json:"score"`
}

// Payload implements Event interface.
func (e GradeRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":  e.CourseID,
		"student":    e.Student,
		"eval_index": e.EvalIndex,
		"kind":       e.Kind,
		"score":      e.Score,
	}
}

// NewGradeRecordedEvent creates a new GradeRecordedEvent.
func NewGradeRecordedEvent(courseID, student string, evalIndex int, kind string, score int) GradeRecordedEvent {
	return GradeRecordedEvent{
		BaseEvent: NewBaseEvent(EventGradeRecorded, courseID),
		CourseID:  courseID,
		Student:   student,
		EvalIndex: evalIndex,
		Kind:      kind,
		Score:     score,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// FinalsRefreshedEvent is emitted by the background worker after it
// recomputes and re-caches final grades for a course.
type FinalsRefreshedEvent struct {
	BaseEvent
	CourseID string `json:"course_id"`
	Students int    `json:"students"`
}

// Payload implements Event interface.
func (e FinalsRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"students":  e.Students,
	}
}

// NewFinalsRefreshedEvent creates a new FinalsRefreshedEvent.
func NewFinalsRefreshedEvent(courseID string, students int) FinalsRefreshedEvent {
	return FinalsRefreshedEvent{
		BaseEvent: NewBaseEvent(EventFinalsRefreshed, courseID),
		CourseID:  courseID,
		Students:  students,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
