package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ──────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ──────────────────────────────────────────────────────────────────────────────

// memStore is the backing store shared by all units of work in a test.
type memStore struct {
	courses map[shared.CourseID]*course.Course
}

func newMemStore() *memStore {
	return &memStore{courses: make(map[shared.CourseID]*course.Course)}
}

// seed puts a course into the store directly, bypassing any transaction.
func (s *memStore) seed(c *course.Course) {
	s.courses[c.ID] = c.Clone()
}

func (s *memStore) get(id shared.CourseID) *course.Course {
	return s.courses[id]
}

// memUnitOfWork stages clones of loaded aggregates and writes them back to
// the store only on Commit. Rollback discards everything staged, which is
// exactly the all-or-nothing contract the handlers rely on.
type memUnitOfWork struct {
	store     *memStore
	staged    map[shared.CourseID]*course.Course
	committed bool
}

func (u *memUnitOfWork) Courses() course.Repository { return &memRepo{uow: u} }

func (u *memUnitOfWork) Commit(_ context.Context) error {
	for id, c := range u.staged {
		u.store.courses[id] = c
	}
	u.committed = true
	return nil
}

func (u *memUnitOfWork) Rollback(_ context.Context) error {
	if !u.committed {
		u.staged = make(map[shared.CourseID]*course.Course)
	}
	return nil
}

type memUnitOfWorkFactory struct {
	store *memStore
	last  *memUnitOfWork
}

func newMemFactory(store *memStore) *memUnitOfWorkFactory {
	return &memUnitOfWorkFactory{store: store}
}

func (f *memUnitOfWorkFactory) Begin(_ context.Context) (course.UnitOfWork, error) {
	f.last = &memUnitOfWork{
		store:  f.store,
		staged: make(map[shared.CourseID]*course.Course),
	}
	return f.last, nil
}

// memRepo operates on the staged clones of its unit of work. The handlers
// mutate the aggregate they loaded, so the fine-grained persistence calls
// only need to confirm the aggregate is staged.
type memRepo struct {
	uow *memUnitOfWork
}

func (r *memRepo) Create(_ context.Context, c *course.Course) error {
	if _, ok := r.uow.store.courses[c.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.uow.staged[c.ID] = c
	return nil
}

func (r *memRepo) Get(_ context.Context, id shared.CourseID) (*course.Course, error) {
	if c, ok := r.uow.staged[id]; ok {
		return c, nil
	}
	stored, ok := r.uow.store.courses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := stored.Clone()
	r.uow.staged[id] = clone
	return clone, nil
}

func (r *memRepo) List(_ context.Context) ([]shared.CourseID, error) {
	ids := make([]shared.CourseID, 0, len(r.uow.store.courses))
	for id := range r.uow.store.courses {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memRepo) requireStaged(id shared.CourseID) error {
	if _, ok := r.uow.staged[id]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (r *memRepo) UpdateCoordinator(_ context.Context, id shared.CourseID, _ shared.AccountID) error {
	return r.requireStaged(id)
}

func (r *memRepo) MarkClosed(_ context.Context, id shared.CourseID, _ time.Time) error {
	return r.requireStaged(id)
}

func (r *memRepo) InsertTeacher(_ context.Context, id shared.CourseID, _ course.TeacherEntry) error {
	return r.requireStaged(id)
}

func (r *memRepo) InsertStudent(_ context.Context, id shared.CourseID, _ course.StudentRecord) error {
	return r.requireStaged(id)
}

func (r *memRepo) AppendEvaluation(_ context.Context, id shared.CourseID, _ course.Evaluation) error {
	return r.requireStaged(id)
}

func (r *memRepo) UpsertGrade(_ context.Context, id shared.CourseID, _ course.GradeKey, _ course.GradeCell) error {
	return r.requireStaged(id)
}

// memPublisher captures published events for assertions.
type memPublisher struct {
	events []shared.Event
}

func (p *memPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *memPublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Test fixtures
// ──────────────────────────────────────────────────────────────────────────────

var (
	ownerAcc    = mustAccount("acct-owner-001")
	teacherAcc  = mustAccount("acct-teacher-001")
	studentAcc  = mustAccount("acct-student-001")
	strangerAcc = mustAccount("acct-stranger-001")
)

func mustAccount(s string) shared.AccountID {
	a, err := shared.NewAccountID(s)
	if err != nil {
		panic(err)
	}
	return a
}

// seedCourse stores a fresh open course and returns its id.
func seedCourse(t *testing.T, store *memStore) shared.CourseID {
	t.Helper()
	id, err := shared.NewCourseID("3f1f9be2-6c1a-4c62-9ef1-0a9f6f3f8a11")
	require.NoError(t, err)
	crs, err := course.NewCourse(course.NewCourseParams{
		ID:      id,
		Name:    "Distributed Systems",
		Term:    "2026-spring",
		Creator: ownerAcc,
	})
	require.NoError(t, err)
	store.seed(crs)
	return id
}

// seedCourseWithTeacher additionally registers one teacher.
func seedCourseWithTeacher(t *testing.T, store *memStore) shared.CourseID {
	t.Helper()
	id := seedCourse(t, store)
	crs := store.get(id)
	_, err := crs.AddTeacher(ownerAcc, teacherAcc, "Dr. Silva")
	require.NoError(t, err)
	return id
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateCourse
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateCourse_PersistsAndPublishes(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	h := NewCreateCourseHandler(newMemFactory(store), pub)

	res, err := h.Handle(context.Background(), CreateCourseCommand{
		Caller: ownerAcc,
		Name:   "Compilers",
		Term:   "2026-fall",
	})
	require.NoError(t, err)
	assert.Equal(t, ownerAcc, res.Owner)

	stored := store.get(res.CourseID)
	require.NotNil(t, stored)
	assert.Equal(t, "Compilers", stored.Name)
	assert.Equal(t, ownerAcc, stored.Owner)
	assert.False(t, stored.Closed)

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventCourseCreated, pub.events[0].EventType())
}

func TestCreateCourse_RejectsEmptyName(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	h := NewCreateCourseHandler(newMemFactory(store), pub)

	_, err := h.Handle(context.Background(), CreateCourseCommand{
		Caller: ownerAcc,
		Name:   "",
		Term:   "2026-fall",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyField)
	assert.Empty(t, store.courses)
	assert.Empty(t, pub.events)
}

// ──────────────────────────────────────────────────────────────────────────────
// SetCoordinator / CloseCourse
// ──────────────────────────────────────────────────────────────────────────────

func TestSetCoordinator_OwnerOnly(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourse(t, store)
	h := NewSetCoordinatorHandler(newMemFactory(store), pub)

	err := h.Handle(context.Background(), SetCoordinatorCommand{
		Caller:      strangerAcc,
		CourseID:    id,
		Coordinator: teacherAcc,
	})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.False(t, store.get(id).Coordinator.IsValid())

	err = h.Handle(context.Background(), SetCoordinatorCommand{
		Caller:      ownerAcc,
		CourseID:    id,
		Coordinator: teacherAcc,
	})
	require.NoError(t, err)
	assert.Equal(t, teacherAcc, store.get(id).Coordinator)
	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventCoordinatorChanged, pub.events[0].EventType())
}

func TestCloseCourse_CoordinatorOnlyAndOneWay(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourse(t, store)
	store.get(id).Coordinator = teacherAcc

	h := NewCloseCourseHandler(newMemFactory(store), pub)

	// The owner is not the coordinator here and may not close.
	err := h.Handle(context.Background(), CloseCourseCommand{Caller: ownerAcc, CourseID: id})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.False(t, store.get(id).Closed)

	err = h.Handle(context.Background(), CloseCourseCommand{Caller: teacherAcc, CourseID: id})
	require.NoError(t, err)
	assert.True(t, store.get(id).Closed)

	// Closing twice fails on the lifecycle predicate.
	err = h.Handle(context.Background(), CloseCourseCommand{Caller: teacherAcc, CourseID: id})
	assert.ErrorIs(t, err, shared.ErrCourseClosed)
	assert.Equal(t, []shared.EventType{shared.EventCourseClosed}, pub.types())
}

func TestCloseCourse_GuardFailureLeavesStoreUntouched(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourse(t, store)
	store.get(id).Coordinator = teacherAcc
	factory := newMemFactory(store)
	h := NewCloseCourseHandler(factory, pub)

	err := h.Handle(context.Background(), CloseCourseCommand{Caller: strangerAcc, CourseID: id})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.False(t, factory.last.committed)
	assert.False(t, store.get(id).Closed)
	assert.Empty(t, pub.events)
}

// ──────────────────────────────────────────────────────────────────────────────
// AddTeacher
// ──────────────────────────────────────────────────────────────────────────────

func TestAddTeacher_FirstWriteWins(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourse(t, store)
	h := NewAddTeacherHandler(newMemFactory(store), pub)

	res, err := h.Handle(context.Background(), AddTeacherCommand{
		Caller:   ownerAcc,
		CourseID: id,
		Account:  teacherAcc,
		Name:     "Dr. Silva",
	})
	require.NoError(t, err)
	assert.True(t, res.Registered)

	// The repeat call succeeds but writes nothing and publishes nothing.
	res, err = h.Handle(context.Background(), AddTeacherCommand{
		Caller:   ownerAcc,
		CourseID: id,
		Account:  teacherAcc,
		Name:     "Dr. Impostor",
	})
	require.NoError(t, err)
	assert.False(t, res.Registered)
	assert.Equal(t, "Dr. Silva", store.get(id).Teachers[teacherAcc].Name)
	require.Len(t, pub.events, 1)
}

func TestAddTeacher_OwnerOnly(t *testing.T) {
	store := newMemStore()
	id := seedCourse(t, store)
	h := NewAddTeacherHandler(newMemFactory(store), &memPublisher{})

	_, err := h.Handle(context.Background(), AddTeacherCommand{
		Caller:   strangerAcc,
		CourseID: id,
		Account:  teacherAcc,
		Name:     "Dr. Silva",
	})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.Equal(t, 0, store.get(id).TeacherCount())
}

// ──────────────────────────────────────────────────────────────────────────────
// Enrollment
// ──────────────────────────────────────────────────────────────────────────────

func TestEnrollByAdmin_WritesRecordWithPosition(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourse(t, store)
	h := NewEnrollStudentHandler(newMemFactory(store), pub)

	res, err := h.HandleAdmin(context.Background(), EnrollByAdminCommand{
		Caller:     ownerAcc,
		CourseID:   id,
		Account:    studentAcc,
		Name:       "Alice Cooper",
		IDDocument: "ID-1001",
		Email:      "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, studentAcc, res.Account)
	assert.Equal(t, 0, res.Position)

	rec, err := store.get(id).StudentRecordOf(studentAcc)
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", rec.Name)
	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventStudentEnrolled, pub.events[0].EventType())
}

func TestEnrollByAdmin_DuplicateRollsBack(t *testing.T) {
	store := newMemStore()
	id := seedCourse(t, store)
	h := NewEnrollStudentHandler(newMemFactory(store), &memPublisher{})

	cmd := EnrollByAdminCommand{
		Caller:     ownerAcc,
		CourseID:   id,
		Account:    studentAcc,
		Name:       "Alice Cooper",
		IDDocument: "ID-1001",
	}
	_, err := h.HandleAdmin(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Name = "Alice Again"
	_, err = h.HandleAdmin(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrAlreadyEnrolled)

	rec, err := store.get(id).StudentRecordOf(studentAcc)
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", rec.Name)
	assert.Equal(t, 1, store.get(id).StudentCount())
}

func TestSelfEnroll_AssignsSequentialPositions(t *testing.T) {
	store := newMemStore()
	id := seedCourse(t, store)
	h := NewEnrollStudentHandler(newMemFactory(store), &memPublisher{})

	first, err := h.HandleSelf(context.Background(), SelfEnrollCommand{
		Caller:     studentAcc,
		CourseID:   id,
		Name:       "Alice Cooper",
		IDDocument: "ID-1001",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)

	second, err := h.HandleSelf(context.Background(), SelfEnrollCommand{
		Caller:     strangerAcc,
		CourseID:   id,
		Name:       "Bob Marley",
		IDDocument: "ID-1002",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
}

func TestSelfEnroll_WorksAfterClose(t *testing.T) {
	store := newMemStore()
	id := seedCourse(t, store)
	store.get(id).Coordinator = ownerAcc
	require.NoError(t, store.get(id).Close(ownerAcc))

	h := NewEnrollStudentHandler(newMemFactory(store), &memPublisher{})
	_, err := h.HandleSelf(context.Background(), SelfEnrollCommand{
		Caller:     studentAcc,
		CourseID:   id,
		Name:       "Alice Cooper",
		IDDocument: "ID-1001",
	})
	assert.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateEvaluation / SetGrade
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateEvaluation_ReturnsStableIndex(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourseWithTeacher(t, store)
	h := NewCreateEvaluationHandler(newMemFactory(store), pub)

	due := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	res, err := h.Handle(context.Background(), CreateEvaluationCommand{
		Caller:       teacherAcc,
		CourseID:     id,
		Name:         "Midterm",
		DueAt:        due,
		WeightPct:    60,
		MinPassUnits: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Index)

	res, err = h.Handle(context.Background(), CreateEvaluationCommand{
		Caller:       teacherAcc,
		CourseID:     id,
		Name:         "Final",
		DueAt:        due.AddDate(0, 2, 0),
		WeightPct:    40,
		MinPassUnits: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, 2, store.get(id).EvaluationCount())
	require.Len(t, pub.events, 2)
	assert.Equal(t, shared.EventEvaluationCreated, pub.events[0].EventType())
}

func TestCreateEvaluation_TeacherOnly(t *testing.T) {
	store := newMemStore()
	id := seedCourseWithTeacher(t, store)
	h := NewCreateEvaluationHandler(newMemFactory(store), &memPublisher{})

	_, err := h.Handle(context.Background(), CreateEvaluationCommand{
		Caller:    ownerAcc,
		CourseID:  id,
		Name:      "Midterm",
		WeightPct: 60,
	})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
	assert.Equal(t, 0, store.get(id).EvaluationCount())
}

func TestSetGrade_OverwritesAndPublishes(t *testing.T) {
	store := newMemStore()
	pub := &memPublisher{}
	id := seedCourseWithTeacher(t, store)
	crs := store.get(id)
	require.NoError(t, crs.EnrollByAdmin(ownerAcc, studentAcc, "Alice Cooper", "ID-1001", ""))
	_, err := crs.CreateEvaluation(teacherAcc, "Midterm", time.Now(), 60, 5)
	require.NoError(t, err)

	h := NewSetGradeHandler(newMemFactory(store), pub)

	err = h.Handle(context.Background(), SetGradeCommand{
		Caller:    teacherAcc,
		CourseID:  id,
		Student:   studentAcc,
		EvalIndex: 0,
		Kind:      course.GradeNumeric,
		RawUnits:  8,
	})
	require.NoError(t, err)

	cell, err := store.get(id).GradeAt(studentAcc, 0)
	require.NoError(t, err)
	assert.Equal(t, 800, cell.Score.Int())

	// The overwrite replaces the cell with no trace of the old value.
	err = h.Handle(context.Background(), SetGradeCommand{
		Caller:    teacherAcc,
		CourseID:  id,
		Student:   studentAcc,
		EvalIndex: 0,
		Kind:      course.GradeNotPresented,
	})
	require.NoError(t, err)
	cell, err = store.get(id).GradeAt(studentAcc, 0)
	require.NoError(t, err)
	assert.Equal(t, course.GradeNotPresented, cell.Kind)
	assert.Equal(t, 0, cell.Score.Int())
	require.Len(t, pub.events, 2)
	assert.Equal(t, shared.EventGradeRecorded, pub.events[1].EventType())
}

func TestSetGrade_OutOfRangeLeavesNoCell(t *testing.T) {
	store := newMemStore()
	id := seedCourseWithTeacher(t, store)
	crs := store.get(id)
	require.NoError(t, crs.EnrollByAdmin(ownerAcc, studentAcc, "Alice Cooper", "ID-1001", ""))
	_, err := crs.CreateEvaluation(teacherAcc, "Midterm", time.Now(), 60, 5)
	require.NoError(t, err)

	h := NewSetGradeHandler(newMemFactory(store), &memPublisher{})
	err = h.Handle(context.Background(), SetGradeCommand{
		Caller:    teacherAcc,
		CourseID:  id,
		Student:   studentAcc,
		EvalIndex: 0,
		Kind:      course.GradeNumeric,
		RawUnits:  11,
	})
	assert.ErrorIs(t, err, shared.ErrScoreOutOfRange)

	cell, err := store.get(id).GradeAt(studentAcc, 0)
	require.NoError(t, err)
	assert.Equal(t, course.GradeEmpty, cell.Kind)
}

func TestSetGrade_UnknownCourse(t *testing.T) {
	store := newMemStore()
	h := NewSetGradeHandler(newMemFactory(store), &memPublisher{})

	id, err := shared.NewCourseID("9e107d9d-372b-4c81-a1f0-7d3bfa7f2b19")
	require.NoError(t, err)
	err = h.Handle(context.Background(), SetGradeCommand{
		Caller:    teacherAcc,
		CourseID:  id,
		Student:   studentAcc,
		EvalIndex: 0,
		Kind:      course.GradeNumeric,
		RawUnits:  8,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
