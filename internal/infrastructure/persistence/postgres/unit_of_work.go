// Package postgres implements the PostgreSQL persistence layer for
// Campus Course Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/campus-course-hub/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork wraps a pgx transaction. All repository writes made through
// Courses() become visible together at Commit or not at all.
type UnitOfWork struct {
	tx   pgx.Tx
	repo *CourseRepository
	done bool
}

// Courses returns the course repository bound to this transaction.
func (u *UnitOfWork) Courses() course.Repository {
	return u.repo
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return ErrTransactionFailed
	}
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	u.done = true
	return nil
}

// Rollback rolls the transaction back. After a successful Commit it is a
// no-op, so it is safe to defer unconditionally.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// UnitOfWorkFactory creates transactional units of work. Serializable
// isolation means two concurrent commands on the same course cannot both
// commit with interleaved effects.
type UnitOfWorkFactory struct {
	conn *Connection
	opts TxOptions
}

// NewUnitOfWorkFactory creates a factory over the given connection.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		conn: conn,
		opts: SerializableTxOptions(),
	}
}

// Begin starts a new transaction.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (course.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, f.opts)
	if err != nil {
		return nil, err
	}

	return &UnitOfWork{
		tx:   tx,
		repo: newTxCourseRepository(tx),
	}, nil
}
