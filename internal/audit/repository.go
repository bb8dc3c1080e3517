package audit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Execer is the subset of pgxpool.Pool the repository needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists audit events to PostgreSQL.
type Repository struct {
	db Execer
}

// NewRepository constructs a Repository.
func NewRepository(db Execer) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the session_audit table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

// Insert stores event. An event already stored under the same id is not an error.
func (r *Repository) Insert(ctx context.Context, event Event) error {
	_, err := r.db.Exec(ctx, `INSERT INTO session_audit (id, kind, username, session_id, remote_addr, user_agent, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID.String(), string(event.Kind), event.Username, event.SessionID, event.RemoteAddr, event.UserAgent, event.OccurredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil
		}
		return fmt.Errorf("audit: insert %s: %w", event.ID, err)
	}
	return nil
}

// Prune deletes events that occurred before cutoff and returns how many were removed.
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM session_audit WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
