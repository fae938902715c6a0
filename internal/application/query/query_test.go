package query

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

// readRepo serves clones of seeded aggregates. The write methods are never
// reached from the query side.
type readRepo struct {
	courses map[shared.CourseID]*course.Course
}

func newReadRepo() *readRepo {
	return &readRepo{courses: make(map[shared.CourseID]*course.Course)}
}

func (r *readRepo) seed(c *course.Course) { r.courses[c.ID] = c }

func (r *readRepo) Get(_ context.Context, id shared.CourseID) (*course.Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *readRepo) List(_ context.Context) ([]shared.CourseID, error) {
	ids := make([]shared.CourseID, 0, len(r.courses))
	for id := range r.courses {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *readRepo) Create(context.Context, *course.Course) error { return nil }
func (r *readRepo) UpdateCoordinator(context.Context, shared.CourseID, shared.AccountID) error {
	return nil
}
func (r *readRepo) MarkClosed(context.Context, shared.CourseID, time.Time) error { return nil }
func (r *readRepo) InsertTeacher(context.Context, shared.CourseID, course.TeacherEntry) error {
	return nil
}
func (r *readRepo) InsertStudent(context.Context, shared.CourseID, course.StudentRecord) error {
	return nil
}
func (r *readRepo) AppendEvaluation(context.Context, shared.CourseID, course.Evaluation) error {
	return nil
}
func (r *readRepo) UpsertGrade(context.Context, shared.CourseID, course.GradeKey, course.GradeCell) error {
	return nil
}

type finalKey struct {
	course  shared.CourseID
	student shared.AccountID
}

// memCache is a map-backed FinalCache with call counters for cache-aside
// assertions. TTLs are accepted and ignored.
type memCache struct {
	finals     map[finalKey]course.FinalGrade
	counts     map[shared.CourseID]course.Counts
	finalHits  int
	finalSets  int
	countsHits int
	countsSets int
}

func newMemCache() *memCache {
	return &memCache{
		finals: make(map[finalKey]course.FinalGrade),
		counts: make(map[shared.CourseID]course.Counts),
	}
}

func (m *memCache) GetFinal(_ context.Context, id shared.CourseID, student shared.AccountID) (course.FinalGrade, error) {
	final, ok := m.finals[finalKey{course: id, student: student}]
	if !ok {
		return course.FinalGrade{}, shared.ErrNotFound
	}
	m.finalHits++
	return final, nil
}

func (m *memCache) SetFinal(_ context.Context, id shared.CourseID, student shared.AccountID, final course.FinalGrade, _ time.Duration) error {
	m.finals[finalKey{course: id, student: student}] = final
	m.finalSets++
	return nil
}

func (m *memCache) InvalidateFinals(_ context.Context, id shared.CourseID) error {
	for k := range m.finals {
		if k.course == id {
			delete(m.finals, k)
		}
	}
	return nil
}

func (m *memCache) GetCounts(_ context.Context, id shared.CourseID) (course.Counts, error) {
	counts, ok := m.counts[id]
	if !ok {
		return course.Counts{}, shared.ErrNotFound
	}
	m.countsHits++
	return counts, nil
}

func (m *memCache) SetCounts(_ context.Context, id shared.CourseID, counts course.Counts, _ time.Duration) error {
	m.counts[id] = counts
	m.countsSets++
	return nil
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

// seedGradedCourse builds a course with one teacher, one enrolled student
// and two evaluations (weights 60 and 40).
func seedGradedCourse(t *testing.T, repo *readRepo) shared.CourseID {
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
	_, err = crs.AddTeacher(ownerAcc, teacherAcc, "Dr. Silva")
	require.NoError(t, err)
	require.NoError(t, crs.EnrollByAdmin(ownerAcc, studentAcc, "Alice Cooper", "ID-1001", "alice@example.com"))
	_, err = crs.CreateEvaluation(teacherAcc, "Midterm", time.Now(), 60, 5)
	require.NoError(t, err)
	_, err = crs.CreateEvaluation(teacherAcc, "Final", time.Now(), 40, 5)
	require.NoError(t, err)
	repo.seed(crs)
	return id
}

func gradedCourse(repo *readRepo, id shared.CourseID) *course.Course {
	return repo.courses[id]
}

// ──────────────────────────────────────────────────────────────────────────────
// GetOwnRecord
// ──────────────────────────────────────────────────────────────────────────────

func TestGetOwnRecord_ReturnsOwnRecordOnly(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewGetOwnRecordHandler(repo)

	dto, err := h.Handle(context.Background(), GetOwnRecordQuery{CourseID: id, Caller: studentAcc})
	require.NoError(t, err)
	assert.Equal(t, studentAcc.String(), dto.Account)
	assert.Equal(t, "Alice Cooper", dto.Name)
	assert.Equal(t, "ID-1001", dto.IDDocument)
	assert.Equal(t, 0, dto.Position)
}

func TestGetOwnRecord_DeniedForUnenrolled(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewGetOwnRecordHandler(repo)

	_, err := h.Handle(context.Background(), GetOwnRecordQuery{CourseID: id, Caller: strangerAcc})
	assert.ErrorIs(t, err, shared.ErrNotEnrolled)
}

func TestGetOwnRecord_UnknownCourse(t *testing.T) {
	repo := newReadRepo()
	h := NewGetOwnRecordHandler(repo)

	id, err := shared.NewCourseID("9e107d9d-372b-4c81-a1f0-7d3bfa7f2b19")
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), GetOwnRecordQuery{CourseID: id, Caller: studentAcc})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetOwnGrade
// ──────────────────────────────────────────────────────────────────────────────

func TestGetOwnGrade_ReturnsCell(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	crs := gradedCourse(repo, id)
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 0, course.GradeNumeric, 8))

	h := NewGetOwnGradeHandler(repo)
	dto, err := h.Handle(context.Background(), GetOwnGradeQuery{CourseID: id, Caller: studentAcc, EvalIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, "numeric", dto.Kind)
	assert.Equal(t, 800, dto.Score)
	assert.Equal(t, "8.00", dto.ScoreText)
}

func TestGetOwnGrade_NeverWrittenCellIsEmpty(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewGetOwnGradeHandler(repo)

	dto, err := h.Handle(context.Background(), GetOwnGradeQuery{CourseID: id, Caller: studentAcc, EvalIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, "empty", dto.Kind)
	assert.Equal(t, 0, dto.Score)
}

func TestGetOwnGrade_BadIndexAndGuard(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewGetOwnGradeHandler(repo)

	_, err := h.Handle(context.Background(), GetOwnGradeQuery{CourseID: id, Caller: studentAcc, EvalIndex: 7})
	assert.ErrorIs(t, err, shared.ErrInvalidEvaluationIndex)

	_, err = h.Handle(context.Background(), GetOwnGradeQuery{CourseID: id, Caller: strangerAcc, EvalIndex: 0})
	assert.ErrorIs(t, err, shared.ErrNotEnrolled)
}

// ──────────────────────────────────────────────────────────────────────────────
// ComputeFinal
// ──────────────────────────────────────────────────────────────────────────────

func TestComputeFinal_WeightedResult(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	crs := gradedCourse(repo, id)
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 0, course.GradeNumeric, 8))
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 1, course.GradeNumeric, 6))

	h := NewComputeFinalHandler(repo, nil)
	dto, err := h.Handle(context.Background(), ComputeFinalQuery{CourseID: id, Student: studentAcc})
	require.NoError(t, err)
	assert.Equal(t, "numeric", dto.Kind)
	assert.Equal(t, 720, dto.Score)
	assert.Equal(t, "7.20", dto.ScoreText)
}

func TestComputeFinal_SelfServiceMatchesByID(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	crs := gradedCourse(repo, id)
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 0, course.GradeNumeric, 8))
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 1, course.GradeNotPresented, 0))

	h := NewComputeFinalHandler(repo, nil)
	own, err := h.Handle(context.Background(), ComputeFinalQuery{CourseID: id, Student: studentAcc, SelfService: true})
	require.NoError(t, err)
	byID, err := h.Handle(context.Background(), ComputeFinalQuery{CourseID: id, Student: studentAcc})
	require.NoError(t, err)
	assert.Equal(t, own, byID)
	assert.Equal(t, 499, own.Score)
}

func TestComputeFinal_SelfServiceGuarded(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewComputeFinalHandler(repo, nil)

	_, err := h.Handle(context.Background(), ComputeFinalQuery{CourseID: id, Student: strangerAcc, SelfService: true})
	assert.ErrorIs(t, err, shared.ErrNotEnrolled)
}

func TestComputeFinal_UnenrolledByIDIsEmpty(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewComputeFinalHandler(repo, nil)

	dto, err := h.Handle(context.Background(), ComputeFinalQuery{CourseID: id, Student: strangerAcc})
	require.NoError(t, err)
	assert.Equal(t, "empty", dto.Kind)
	assert.Equal(t, 0, dto.Score)
}

func TestComputeFinal_CacheAside(t *testing.T) {
	repo := newReadRepo()
	cache := newMemCache()
	id := seedGradedCourse(t, repo)
	crs := gradedCourse(repo, id)
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 0, course.GradeNumeric, 8))
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 1, course.GradeNumeric, 6))

	h := NewComputeFinalHandler(repo, cache)
	q := ComputeFinalQuery{CourseID: id, Student: studentAcc}

	first, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.finalHits)
	assert.Equal(t, 1, cache.finalSets)

	second, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.finalHits)
	assert.Equal(t, first, second)
}

func TestComputeFinal_SelfServiceSkipsCacheLookup(t *testing.T) {
	repo := newReadRepo()
	cache := newMemCache()
	id := seedGradedCourse(t, repo)
	crs := gradedCourse(repo, id)
	require.NoError(t, crs.SetGrade(teacherAcc, studentAcc, 0, course.GradeNumeric, 8))

	h := NewComputeFinalHandler(repo, cache)
	q := ComputeFinalQuery{CourseID: id, Student: studentAcc, SelfService: true}

	_, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), q)
	require.NoError(t, err)
	// The guarded path never consults the cache before the guard runs.
	assert.Equal(t, 0, cache.finalHits)
	assert.Equal(t, 2, cache.finalSets)
}

// ──────────────────────────────────────────────────────────────────────────────
// GetCounts
// ──────────────────────────────────────────────────────────────────────────────

func TestGetCounts_Unguarded(t *testing.T) {
	repo := newReadRepo()
	id := seedGradedCourse(t, repo)
	h := NewGetCountsHandler(repo, nil)

	dto, err := h.Handle(context.Background(), GetCountsQuery{CourseID: id})
	require.NoError(t, err)
	assert.Equal(t, 1, dto.Teachers)
	assert.Equal(t, 1, dto.Students)
	assert.Equal(t, 2, dto.Evaluations)
}

func TestGetCounts_CacheAside(t *testing.T) {
	repo := newReadRepo()
	cache := newMemCache()
	id := seedGradedCourse(t, repo)
	h := NewGetCountsHandler(repo, cache)

	_, err := h.Handle(context.Background(), GetCountsQuery{CourseID: id})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.countsSets)

	dto, err := h.Handle(context.Background(), GetCountsQuery{CourseID: id})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.countsHits)
	assert.Equal(t, 2, dto.Evaluations)
}
