package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecer struct {
	sql  []string
	args [][]any
	err  error
}

func (s *stubExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.sql = append(s.sql, sql)
	s.args = append(s.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), s.err
}

func TestRepositoryInsert(t *testing.T) {
	db := &stubExecer{}
	repo := NewRepository(db)
	event := Event{ID: uuid.New(), Kind: KindLogin, Username: "admin", SessionID: "s", OccurredAt: time.Now()}

	require.NoError(t, repo.Insert(context.Background(), event))
	require.Len(t, db.args, 1)
	assert.Contains(t, db.sql[0], "INSERT INTO session_audit")
	assert.Equal(t, event.ID.String(), db.args[0][0])
	assert.Equal(t, "login", db.args[0][1])
}

func TestRepositoryInsertDuplicateIsSuccess(t *testing.T) {
	repo := NewRepository(&stubExecer{err: &pgconn.PgError{Code: "23505"}})
	assert.NoError(t, repo.Insert(context.Background(), Event{ID: uuid.New()}))
}

func TestRepositoryInsertError(t *testing.T) {
	cause := errors.New("connection refused")
	repo := NewRepository(&stubExecer{err: cause})
	assert.ErrorIs(t, repo.Insert(context.Background(), Event{ID: uuid.New()}), cause)
}

func TestRepositoryEnsureSchema(t *testing.T) {
	db := &stubExecer{}
	require.NoError(t, NewRepository(db).EnsureSchema(context.Background()))
	assert.Contains(t, db.sql[0], "CREATE TABLE IF NOT EXISTS session_audit")
}

func TestRepositoryPrune(t *testing.T) {
	db := &stubExecer{}
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	removed, err := NewRepository(db).Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Contains(t, db.sql[0], "DELETE FROM session_audit")
	assert.Equal(t, cutoff, db.args[0][0])
}
