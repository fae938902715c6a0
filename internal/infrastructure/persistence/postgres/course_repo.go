// Package postgres implements the PostgreSQL persistence layer for
// Campus Course Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository over a Querier, so the same
// code serves both pooled reads and transactional writes.
type CourseRepository struct {
	q Querier
}

// NewCourseRepository creates a repository backed by the connection pool.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{q: conn.Pool()}
}

// newTxCourseRepository creates a repository bound to a transaction.
func newTxCourseRepository(q Querier) *CourseRepository {
	return &CourseRepository{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// Course row
// ─────────────────────────────────────────────────────────────────────────────

// Create persists a new course row. The child tables start empty.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	query := `
		INSERT INTO courses (
			id, name, term, owner_account, coordinator_account,
			closed, closed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var closedAt *time.Time
	if !c.ClosedAt.IsZero() {
		closedAt = &c.ClosedAt
	}

	_, err := r.q.Exec(ctx, query,
		c.ID.String(),
		c.Name,
		c.Term.String(),
		c.Owner.String(),
		c.Coordinator.String(),
		c.Closed,
		closedAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("postgres", "Create", shared.ErrAlreadyExists, "course already exists")
		}
		return fmt.Errorf("failed to create course: %w", err)
	}

	return nil
}

// Get loads the full aggregate: the course row plus its teacher registry,
// student roster, evaluation list and grade cells.
func (r *CourseRepository) Get(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	c, err := r.getCourseRow(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.loadTeachers(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadStudents(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadEvaluations(ctx, c); err != nil {
		return nil, err
	}
	if err := r.loadGrades(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (r *CourseRepository) getCourseRow(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	query := `
		SELECT id, name, term, owner_account, coordinator_account,
			   closed, closed_at, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var (
		c        course.Course
		rawID    string
		term     string
		owner    string
		coord    string
		closedAt *time.Time
	)

	err := r.q.QueryRow(ctx, query, id.String()).Scan(
		&rawID,
		&c.Name,
		&term,
		&owner,
		&coord,
		&c.Closed,
		&closedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "Get", shared.ErrNotFound, "course not found")
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	c.ID = shared.CourseID(rawID)
	c.Term = shared.Term(term)
	c.Owner = shared.AccountID(owner)
	c.Coordinator = shared.AccountID(coord)
	if closedAt != nil {
		c.ClosedAt = *closedAt
	}

	c.Teachers = make(map[shared.AccountID]course.TeacherEntry)
	c.Students = make(map[shared.AccountID]course.StudentRecord)
	c.EnrollmentOrder = make([]shared.AccountID, 0)
	c.Evaluations = make([]course.Evaluation, 0)
	c.Grades = make(map[course.GradeKey]course.GradeCell)

	return &c, nil
}

func (r *CourseRepository) loadTeachers(ctx context.Context, c *course.Course) error {
	query := `
		SELECT account, name, registered_at
		FROM course_teachers
		WHERE course_id = $1
	`

	rows, err := r.q.Query(ctx, query, c.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load teachers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry   course.TeacherEntry
			account string
		)
		if err := rows.Scan(&account, &entry.Name, &entry.AddedAt); err != nil {
			return fmt.Errorf("failed to scan teacher row: %w", err)
		}
		entry.Account = shared.AccountID(account)
		c.Teachers[entry.Account] = entry
	}

	return rows.Err()
}

func (r *CourseRepository) loadStudents(ctx context.Context, c *course.Course) error {
	query := `
		SELECT account, name, id_document, email, position, enrolled_at
		FROM course_students
		WHERE course_id = $1
		ORDER BY position
	`

	rows, err := r.q.Query(ctx, query, c.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     course.StudentRecord
			account string
		)
		if err := rows.Scan(&account, &rec.Name, &rec.IDDocument, &rec.Email, &rec.Position, &rec.EnrolledAt); err != nil {
			return fmt.Errorf("failed to scan student row: %w", err)
		}
		rec.Account = shared.AccountID(account)
		c.Students[rec.Account] = rec
		c.EnrollmentOrder = append(c.EnrollmentOrder, rec.Account)
	}

	return rows.Err()
}

func (r *CourseRepository) loadEvaluations(ctx context.Context, c *course.Course) error {
	query := `
		SELECT eval_index, name, due_at, weight_pct, min_pass_score, created_at
		FROM course_evaluations
		WHERE course_id = $1
		ORDER BY eval_index
	`

	rows, err := r.q.Query(ctx, query, c.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load evaluations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eval    course.Evaluation
			weight  int
			minPass int
		)
		if err := rows.Scan(&eval.Index, &eval.Name, &eval.DueAt, &weight, &minPass, &eval.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan evaluation row: %w", err)
		}
		eval.Weight = shared.Weight(weight)
		eval.MinPassScore = shared.Score(minPass)
		c.Evaluations = append(c.Evaluations, eval)
	}

	return rows.Err()
}

func (r *CourseRepository) loadGrades(ctx context.Context, c *course.Course) error {
	query := `
		SELECT student_account, eval_index, kind, score
		FROM course_grades
		WHERE course_id = $1
	`

	rows, err := r.q.Query(ctx, query, c.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load grades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			account string
			index   int
			kind    string
			score   int
		)
		if err := rows.Scan(&account, &index, &kind, &score); err != nil {
			return fmt.Errorf("failed to scan grade row: %w", err)
		}

		gradeKind, err := course.ParseGradeKind(kind)
		if err != nil {
			return fmt.Errorf("stored grade has unknown kind %q: %w", kind, err)
		}

		key := course.GradeKey{Student: shared.AccountID(account), EvalIndex: index}
		c.Grades[key] = course.GradeCell{Kind: gradeKind, Score: shared.Score(score)}
	}

	return rows.Err()
}

// List returns the identifiers of all stored courses.
func (r *CourseRepository) List(ctx context.Context) ([]shared.CourseID, error) {
	rows, err := r.q.Query(ctx, "SELECT id FROM courses ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var ids []shared.CourseID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan course id: %w", err)
		}
		ids = append(ids, shared.CourseID(id))
	}

	return ids, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Fine-grained writes
// ─────────────────────────────────────────────────────────────────────────────

// UpdateCoordinator rewrites the coordinator of an open course.
func (r *CourseRepository) UpdateCoordinator(ctx context.Context, id shared.CourseID, coordinator shared.AccountID) error {
	tag, err := r.q.Exec(ctx,
		"UPDATE courses SET coordinator_account = $2 WHERE id = $1",
		id.String(), coordinator.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update coordinator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "UpdateCoordinator", shared.ErrNotFound, "course not found")
	}
	return nil
}

// MarkClosed irreversibly marks a course closed.
func (r *CourseRepository) MarkClosed(ctx context.Context, id shared.CourseID, closedAt time.Time) error {
	tag, err := r.q.Exec(ctx,
		"UPDATE courses SET closed = TRUE, closed_at = $2 WHERE id = $1",
		id.String(), closedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark course closed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "MarkClosed", shared.ErrNotFound, "course not found")
	}
	return nil
}

// InsertTeacher writes a teacher entry unless one already exists for the
// account. ON CONFLICT DO NOTHING realizes first-write-wins at the storage
// level as well.
func (r *CourseRepository) InsertTeacher(ctx context.Context, id shared.CourseID, entry course.TeacherEntry) error {
	query := `
		INSERT INTO course_teachers (course_id, account, name, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (course_id, account) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, id.String(), entry.Account.String(), entry.Name, entry.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to insert teacher: %w", err)
	}
	return nil
}

// InsertStudent writes a student record.
func (r *CourseRepository) InsertStudent(ctx context.Context, id shared.CourseID, rec course.StudentRecord) error {
	query := `
		INSERT INTO course_students (course_id, account, name, id_document, email, position, enrolled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		id.String(),
		rec.Account.String(),
		rec.Name,
		rec.IDDocument,
		rec.Email,
		rec.Position,
		rec.EnrolledAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("postgres", "InsertStudent", shared.ErrAlreadyEnrolled, "student already enrolled")
		}
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// AppendEvaluation writes an evaluation with its stable index.
func (r *CourseRepository) AppendEvaluation(ctx context.Context, id shared.CourseID, eval course.Evaluation) error {
	query := `
		INSERT INTO course_evaluations (course_id, eval_index, name, due_at, weight_pct, min_pass_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		id.String(),
		eval.Index,
		eval.Name,
		eval.DueAt,
		eval.Weight.Int(),
		eval.MinPassScore.Int(),
		eval.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append evaluation: %w", err)
	}
	return nil
}

// UpsertGrade writes a grade cell, replacing any previous value.
func (r *CourseRepository) UpsertGrade(ctx context.Context, id shared.CourseID, key course.GradeKey, cell course.GradeCell) error {
	query := `
		INSERT INTO course_grades (course_id, student_account, eval_index, kind, score, recorded_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (course_id, student_account, eval_index)
		DO UPDATE SET kind = EXCLUDED.kind, score = EXCLUDED.score, recorded_at = NOW()
	`

	_, err := r.q.Exec(ctx, query,
		id.String(),
		key.Student.String(),
		key.EvalIndex,
		cell.Kind.String(),
		cell.Score.Int(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grade: %w", err)
	}
	return nil
}
