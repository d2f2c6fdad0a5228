package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads ledger_audit_logs.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the Postgres backed audit reader.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const timelineColumns = `id, occurred_at, COALESCE(request_id::text, ''), COALESCE(actor_id, 0), action, entity, entity_id, meta`

func (r *repository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM ledger_audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		timelineColumns, where, len(args)-1, len(args))
	return r.query(ctx, query, args...)
}

func (r *repository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	return r.query(ctx, `SELECT `+timelineColumns+` FROM ledger_audit_logs WHERE `+where+` ORDER BY occurred_at DESC, id DESC`, args...)
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]TimelineRow, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var out TimelineRow
		var meta []byte
		if err := row.Scan(&out.ID, &out.At, &out.RequestID, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if len(meta) > 0 && string(meta) != "null" {
			out.Meta = meta
		}
		return out, nil
	})
}

func timelineWhere(f TimelineFilters) (string, []any) {
	where := []string{"TRUE"}
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < $%d", f.To.AddDate(0, 0, 1))
	}
	if f.ActorID != 0 {
		add("actor_id = $%d", f.ActorID)
	}
	if v := strings.TrimSpace(f.Entity); v != "" {
		add("entity = $%d", v)
	}
	if v := strings.TrimSpace(f.EntityID); v != "" {
		add("entity_id = $%d", v)
	}
	if v := strings.TrimSpace(f.Action); v != "" {
		add("action = $%d", v)
	}
	return strings.Join(where, " AND "), args
}
