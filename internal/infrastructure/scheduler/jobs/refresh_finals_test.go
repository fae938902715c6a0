package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

const testCourseID = shared.CourseID("3f1f9be2-6c1a-4c62-9ef1-0a9f6f3f8a11")

var (
	ownerAcc   = shared.AccountID("acct:owner")
	teacherAcc = shared.AccountID("acct:teacher")
	gradedAcc  = shared.AccountID("acct:graded")
	blockedAcc = shared.AccountID("acct:blocked")
)

// fakeRepo отдаёт заранее построенные агрегаты.
type fakeRepo struct {
	courses map[shared.CourseID]*course.Course
}

func (r *fakeRepo) Create(ctx context.Context, c *course.Course) error { return nil }

func (r *fakeRepo) Get(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *fakeRepo) List(ctx context.Context) ([]shared.CourseID, error) {
	ids := make([]shared.CourseID, 0, len(r.courses))
	for id := range r.courses {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeRepo) UpdateCoordinator(ctx context.Context, id shared.CourseID, coordinator shared.AccountID) error {
	return nil
}
func (r *fakeRepo) MarkClosed(ctx context.Context, id shared.CourseID, closedAt time.Time) error {
	return nil
}
func (r *fakeRepo) InsertTeacher(ctx context.Context, id shared.CourseID, entry course.TeacherEntry) error {
	return nil
}
func (r *fakeRepo) InsertStudent(ctx context.Context, id shared.CourseID, rec course.StudentRecord) error {
	return nil
}
func (r *fakeRepo) AppendEvaluation(ctx context.Context, id shared.CourseID, eval course.Evaluation) error {
	return nil
}
func (r *fakeRepo) UpsertGrade(ctx context.Context, id shared.CourseID, key course.GradeKey, cell course.GradeCell) error {
	return nil
}

// fakeCache запоминает прогретые значения.
type fakeCache struct {
	finals map[string]course.FinalGrade
	counts map[shared.CourseID]course.Counts
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		finals: make(map[string]course.FinalGrade),
		counts: make(map[shared.CourseID]course.Counts),
	}
}

func (c *fakeCache) GetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID) (course.FinalGrade, error) {
	final, ok := c.finals[id.String()+":"+student.String()]
	if !ok {
		return course.FinalGrade{}, shared.ErrNotFound
	}
	return final, nil
}

func (c *fakeCache) SetFinal(ctx context.Context, id shared.CourseID, student shared.AccountID, final course.FinalGrade, ttl time.Duration) error {
	c.finals[id.String()+":"+student.String()] = final
	return nil
}

func (c *fakeCache) InvalidateFinals(ctx context.Context, id shared.CourseID) error {
	c.finals = make(map[string]course.FinalGrade)
	delete(c.counts, id)
	return nil
}

func (c *fakeCache) GetCounts(ctx context.Context, id shared.CourseID) (course.Counts, error) {
	counts, ok := c.counts[id]
	if !ok {
		return course.Counts{}, shared.ErrNotFound
	}
	return counts, nil
}

func (c *fakeCache) SetCounts(ctx context.Context, id shared.CourseID, counts course.Counts, ttl time.Duration) error {
	c.counts[id] = counts
	return nil
}

// fakePublisher собирает опубликованные события.
type fakePublisher struct {
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

// seedCourse строит курс с одним испытанием, полностью оценённым
// студентом и студентом без оценки.
func seedCourse(t *testing.T) *course.Course {
	t.Helper()

	c, err := course.NewCourse(course.NewCourseParams{
		ID:      testCourseID,
		Name:    "Distributed Systems",
		Term:    "2026-spring",
		Creator: ownerAcc,
	})
	require.NoError(t, err)

	_, err = c.AddTeacher(ownerAcc, teacherAcc, "Dr. Silva")
	require.NoError(t, err)
	require.NoError(t, c.EnrollByAdmin(ownerAcc, gradedAcc, "Grace Hopper", "ID-001", ""))
	require.NoError(t, c.EnrollByAdmin(ownerAcc, blockedAcc, "Alan Kay", "ID-002", ""))

	due := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	_, err = c.CreateEvaluation(teacherAcc, "Final Exam", due, 100, 5)
	require.NoError(t, err)

	require.NoError(t, c.SetGrade(teacherAcc, gradedAcc, 0, course.GradeNumeric, 9))

	return c
}

func newTestJob(t *testing.T) (*RefreshFinalsJob, *fakeCache, *fakePublisher) {
	t.Helper()

	repo := &fakeRepo{courses: map[shared.CourseID]*course.Course{
		testCourseID: seedCourse(t),
	}}
	cache := newFakeCache()
	publisher := &fakePublisher{}

	job := NewRefreshFinalsJob(repo, cache, publisher, nil, DefaultRefreshFinalsConfig())
	return job, cache, publisher
}

func TestRefreshFinals_WarmsComputedFinals(t *testing.T) {
	job, cache, _ := newTestJob(t)

	require.NoError(t, job.Run(context.Background()))

	final, err := cache.GetFinal(context.Background(), testCourseID, gradedAcc)
	require.NoError(t, err)
	assert.Equal(t, course.GradeNumeric, final.Kind)
	assert.Equal(t, shared.Score(900), final.Score)
}

func TestRefreshFinals_SkipsBlockedFinals(t *testing.T) {
	job, cache, _ := newTestJob(t)

	require.NoError(t, job.Run(context.Background()))

	// Непроставленная ячейка блокирует итог; пустые итоги не кешируются.
	_, err := cache.GetFinal(context.Background(), testCourseID, blockedAcc)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRefreshFinals_WarmsCounts(t *testing.T) {
	job, cache, _ := newTestJob(t)

	require.NoError(t, job.Run(context.Background()))

	counts, err := cache.GetCounts(context.Background(), testCourseID)
	require.NoError(t, err)
	assert.Equal(t, course.Counts{Teachers: 1, Students: 2, Evaluations: 1}, counts)
}

func TestRefreshFinals_PublishesEvent(t *testing.T) {
	job, _, publisher := newTestJob(t)

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, shared.EventFinalsRefreshed, publisher.events[0].EventType())
	assert.Equal(t, testCourseID.String(), publisher.events[0].AggregateID())
}

func TestRefreshFinals_EmptyStore(t *testing.T) {
	repo := &fakeRepo{courses: map[shared.CourseID]*course.Course{}}
	job := NewRefreshFinalsJob(repo, newFakeCache(), &fakePublisher{}, nil, DefaultRefreshFinalsConfig())

	assert.NoError(t, job.Run(context.Background()))
}
