// Package postgres implements the PostgreSQL persistence layer for
// Campus Course Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	_, err := m.conn.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}

			insertQuery := fmt.Sprintf(
				"INSERT INTO %s (version, name) VALUES ($1, $2)",
				m.tableName,
			)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}

	if lastVersion == 0 {
		return nil // Nothing to rollback
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}

	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}

		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_courses",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_rosters",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_evaluations_and_grades",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_api_keys",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create courses table
-- Version: 001

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    term VARCHAR(50) NOT NULL,
    owner_account VARCHAR(100) NOT NULL,
    coordinator_account VARCHAR(100) NOT NULL DEFAULT '',
    closed BOOLEAN NOT NULL DEFAULT FALSE,
    closed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT nonempty_name CHECK (length(trim(name)) > 0),
    CONSTRAINT nonempty_term CHECK (length(trim(term)) > 0),
    CONSTRAINT closed_has_timestamp CHECK (NOT closed OR closed_at IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_courses_owner ON courses(owner_account);
CREATE INDEX IF NOT EXISTS idx_courses_term ON courses(term);
CREATE INDEX IF NOT EXISTS idx_courses_open ON courses(id) WHERE NOT closed;

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_courses_updated_at ON courses;
CREATE TRIGGER update_courses_updated_at
    BEFORE UPDATE ON courses
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_courses_updated_at ON courses;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ROSTERS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create teacher and student roster tables
-- Version: 002

-- Teacher registry. The primary key makes the first write final: a repeat
-- registration for the same account conflicts and is skipped.
CREATE TABLE IF NOT EXISTS course_teachers (
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    account VARCHAR(100) NOT NULL,
    name VARCHAR(200) NOT NULL,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (course_id, account),
    CONSTRAINT nonempty_teacher_name CHECK (length(trim(name)) > 0)
);

-- Student records. Position is the stable zero-based enrollment sequence
-- number within a course.
CREATE TABLE IF NOT EXISTS course_students (
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    account VARCHAR(100) NOT NULL,
    name VARCHAR(200) NOT NULL,
    id_document VARCHAR(100) NOT NULL,
    email VARCHAR(200) NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (course_id, account),
    UNIQUE (course_id, position),
    CONSTRAINT nonempty_student_name CHECK (length(trim(name)) > 0),
    CONSTRAINT nonempty_id_document CHECK (length(trim(id_document)) > 0),
    CONSTRAINT valid_position CHECK (position >= 0)
);

CREATE INDEX IF NOT EXISTS idx_course_students_order ON course_students(course_id, position);
`

const migration002Down = `
DROP TABLE IF EXISTS course_students;
DROP TABLE IF EXISTS course_teachers;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE EVALUATIONS AND GRADES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create evaluation registry and grade store
-- Version: 003

-- Append-only evaluation registry. eval_index is assigned by the aggregate
-- and never reused; rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS course_evaluations (
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    eval_index INTEGER NOT NULL,
    name VARCHAR(200) NOT NULL,
    due_at TIMESTAMP WITH TIME ZONE NOT NULL,
    weight_pct INTEGER NOT NULL,
    min_pass_score INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (course_id, eval_index),
    CONSTRAINT nonempty_eval_name CHECK (length(trim(name)) > 0),
    CONSTRAINT valid_eval_index CHECK (eval_index >= 0),
    CONSTRAINT valid_weight CHECK (weight_pct >= 0)
);

-- Grade store. One cell per (student, evaluation); a new write replaces the
-- old value with no history. Scores are fixed-point x100 (800 = "8.00").
CREATE TABLE IF NOT EXISTS course_grades (
    course_id UUID NOT NULL,
    student_account VARCHAR(100) NOT NULL,
    eval_index INTEGER NOT NULL,
    kind VARCHAR(20) NOT NULL,
    score INTEGER NOT NULL DEFAULT 0,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (course_id, student_account, eval_index),
    FOREIGN KEY (course_id, student_account)
        REFERENCES course_students(course_id, account) ON DELETE CASCADE,
    FOREIGN KEY (course_id, eval_index)
        REFERENCES course_evaluations(course_id, eval_index) ON DELETE CASCADE,
    CONSTRAINT valid_kind CHECK (kind IN ('not_presented', 'numeric')),
    CONSTRAINT valid_score CHECK (score >= 0 AND score <= 1000),
    CONSTRAINT np_has_zero_score CHECK (kind != 'not_presented' OR score = 0)
);

CREATE INDEX IF NOT EXISTS idx_course_grades_student ON course_grades(course_id, student_account);
`

const migration003Down = `
DROP TABLE IF EXISTS course_grades;
DROP TABLE IF EXISTS course_evaluations;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE API KEYS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create API key registry for caller identity
-- Version: 004

-- Bearer keys are stored as bcrypt hashes; the plaintext key is shown to
-- the caller once and never persisted.
CREATE TABLE IF NOT EXISTS api_keys (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    account VARCHAR(100) NOT NULL,
    key_prefix VARCHAR(12) NOT NULL,
    key_hash TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    revoked_at TIMESTAMP WITH TIME ZONE,

    UNIQUE (key_prefix)
);

CREATE INDEX IF NOT EXISTS idx_api_keys_account ON api_keys(account);
CREATE INDEX IF NOT EXISTS idx_api_keys_active ON api_keys(key_prefix) WHERE revoked_at IS NULL;
`

const migration004Down = `
DROP TABLE IF EXISTS api_keys;
`
