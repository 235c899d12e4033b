package syncmeta

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryklein/sheetsync/internal/common"
	"github.com/aryklein/sheetsync/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE sync_metadata (
  table_name TEXT PRIMARY KEY,
  last_sync_at INTEGER,
  sync_status TEXT NOT NULL DEFAULT 'idle',
  sync_error TEXT NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)

	return db
}

func TestWatermark_MissingRowIsBeginningOfTime(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	wm, err := r.Watermark(context.Background(), "sheets")
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestRecordSuccess_SetsWatermarkAndClearsError(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.RecordFailure(ctx, "sheets", "network down"))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.RecordSuccess(ctx, "sheets", at))

	wm, err := r.Watermark(ctx, "sheets")
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, at, *wm)

	m, err := r.Get(ctx, "sheets")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateIdle, m.Status)
	assert.Empty(t, m.Error)
}

func TestRecordFailure_DoesNotMoveWatermark(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.RecordSuccess(ctx, "sheets", at))
	require.NoError(t, r.RecordFailure(ctx, "sheets", "push aborted"))

	wm, err := r.Watermark(ctx, "sheets")
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, at, *wm, "failure must leave the watermark unchanged")

	m, err := r.Get(ctx, "sheets")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateError, m.Status)
	assert.Equal(t, "push aborted", m.Error)
}

func TestRecordFailure_FirstEverAttemptKeepsNilWatermark(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.RecordFailure(ctx, "sheets", "offline"))

	wm, err := r.Watermark(ctx, "sheets")
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestGet_MissingRow(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.Get(context.Background(), "sheets")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestOneRowPerTable(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.RecordSuccess(ctx, "sheets", time.Now().UTC()))
	require.NoError(t, r.RecordFailure(ctx, "sheets", "x"))
	require.NoError(t, r.RecordSuccess(ctx, "sheets", time.Now().UTC()))

	var n int
	require.NoError(t, r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_metadata`).Scan(&n))
	assert.Equal(t, 1, n)
}
