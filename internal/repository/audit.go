package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
)

// auditBatchSize bounds the rows per INSERT statement, keeping each one
// under the 65535 bind parameter limit of the Postgres protocol.
const auditBatchSize = 1000

type AuditInterface interface {
	Insert(ctx context.Context, db DBTX, entry domain.AuditEntry) error
	InsertMany(ctx context.Context, db DBTX, entries []domain.AuditEntry) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int, error)
}

type AuditRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ AuditInterface = (*AuditRepository)(nil)

func NewAuditRepository(db *sql.DB, log *slog.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: log.With(slog.String("component", "repository/audit")),
	}
}

// Insert writes one entry through db; a nil db uses the pool.
func (r *AuditRepository) Insert(ctx context.Context, db DBTX, entry domain.AuditEntry) error {
	return r.InsertMany(ctx, db, []domain.AuditEntry{entry})
}

// InsertMany writes entries with multi-row INSERT statements on db, so a
// caller holding a transaction gets them committed or rolled back with
// the rest of its work.
func (r *AuditRepository) InsertMany(ctx context.Context, db DBTX, entries []domain.AuditEntry) error {
	const op = "repository.Audit.InsertMany"
	if db == nil {
		db = r.db
	}

	for start := 0; start < len(entries); start += auditBatchSize {
		end := min(start+auditBatchSize, len(entries))

		var (
			a      args
			values []string
		)
		for _, e := range entries[start:end] {
			values = append(values, fmt.Sprintf("(%s, %s, %s, %s, %s, %s::jsonb, %s::jsonb)",
				a.add(e.ID), a.add(e.UserID), a.add(e.Action), a.add(e.Entity),
				a.add(e.EntityID), a.add(e.OldValues), a.add(e.NewValues)))
		}
		query := `INSERT INTO audit_logs (id, user_id, action, entity, entity_id, old_values, new_values) VALUES ` +
			strings.Join(values, ", ")

		if _, err := db.ExecContext(ctx, query, a...); err != nil {
			err = translate(err)
			r.log.Error("failed to insert audit entries",
				slog.String("op", op),
				slog.Int("count", end-start),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func auditWhere(filter domain.AuditFilter, a *args) string {
	var conds []string
	if filter.Action != nil {
		conds = append(conds, "l.action = "+a.add(*filter.Action))
	}
	if filter.Entity != nil {
		conds = append(conds, "l.entity = "+a.add(*filter.Entity))
	}
	if filter.UserID != nil {
		conds = append(conds, "l.user_id = "+a.add(*filter.UserID))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// List pages through the log with the actor's name joined in. Count and
// page come from the same snapshot.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int, error) {
	const op = "repository.Audit.List"

	var a args
	where := auditWhere(filter, &a)
	countQuery := `SELECT COUNT(*) FROM audit_logs l` + where

	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}
	pageArgs := append(args{}, a...)
	pageQuery := `
	SELECT l.id, l.user_id, u.name, l.action, l.entity, l.entity_id, l.old_values, l.new_values, l.created_at
	FROM audit_logs l
	JOIN users u ON u.id = l.user_id` + where +
		fmt.Sprintf(" ORDER BY l.created_at %s, l.id %s LIMIT %s OFFSET %s",
			order, order, pageArgs.add(filter.Limit), pageArgs.add(filter.Offset()))

	var (
		total   int
		entries []domain.AuditEntry
	)
	err := runInTx(ctx, r.db, snapshotTx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, a...).Scan(&total); err != nil {
			return fmt.Errorf("count: %w", err)
		}

		rows, err := tx.QueryContext(ctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e domain.AuditEntry
			if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Action, &e.Entity, &e.EntityID,
				&e.OldValues, &e.NewValues, &e.CreatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			e.CreatedAt = e.CreatedAt.UTC()
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		r.log.Error("failed to list audit log", slog.String("op", op), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return entries, total, nil
}
