package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is a unique constraint violation.
	ErrConflict = errors.New("record already exists")
	// ErrMissingReference is a foreign key pointing at a row that does not exist.
	ErrMissingReference = errors.New("referenced record does not exist")
	// ErrConstraint is a CHECK constraint violation.
	ErrConstraint = errors.New("check constraint violated")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so repository methods can
// run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TxRunnerInterface interface {
	RunInTx(ctx context.Context, fn func(tx DBTX) error) error
}

type TxRunner struct {
	db *sql.DB
}

var _ TxRunnerInterface = (*TxRunner)(nil)

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx DBTX) error) error {
	return runInTx(ctx, r.db, nil, func(tx *sql.Tx) error { return fn(tx) })
}

// snapshotTx is used for reads that pair a count with a page.
var snapshotTx = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func runInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", ErrMissingReference, pqErr.Constraint)
		case "23514":
			return fmt.Errorf("%w: %s", ErrConstraint, pqErr.Constraint)
		}
	}
	return err
}

// likePattern escapes LIKE metacharacters so search is a plain substring.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// args accumulates positional parameters for dynamically built queries.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
