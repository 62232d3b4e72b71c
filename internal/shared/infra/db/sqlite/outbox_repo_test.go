package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/davicafu/vidflow/internal/shared/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Una sola conexión: cada conexión a :memory: vería una BD distinta.
	db.SetMaxOpenConns(1)
	require.NoError(t, InitSchema(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_InMemory(t *testing.T) {
	db := newTestDB(t)
	// El driver queda registrado por el import en blanco de este paquete.
	require.NoError(t, db.Ping())
}

func TestOutboxRepo_AppendTx_CommitAndFetch(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	evt := domain.NewOutboxEvent("video.transcribed", map[string]interface{}{"videoId": float64(7)}, "vidflow")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.AppendTx(ctx, tx, evt))
	require.NoError(t, tx.Commit())

	events, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, evt.ID, events[0].ID)
	assert.Equal(t, "video.transcribed", events[0].Topic)
	assert.Equal(t, float64(7), events[0].Payload["videoId"])
	assert.False(t, events[0].Published)
	assert.Equal(t, 0, events[0].Attempts)
}

func TestOutboxRepo_AppendTx_RollbackLeavesNothing(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	evt := domain.NewOutboxEvent("video.transcribed", map[string]interface{}{"videoId": float64(7)}, "vidflow")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.AppendTx(ctx, tx, evt))
	// La mutación de dominio falló: todo o nada.
	require.NoError(t, tx.Rollback())

	events, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOutboxRepo_MarkPublished_Idempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	evt := domain.NewOutboxEvent("video.summarized", map[string]interface{}{}, "vidflow")
	tx, _ := db.BeginTx(ctx, nil)
	require.NoError(t, repo.AppendTx(ctx, tx, evt))
	require.NoError(t, tx.Commit())

	require.NoError(t, repo.MarkPublished(ctx, evt.ID))
	// Marcar dos veces no es un error.
	require.NoError(t, repo.MarkPublished(ctx, evt.ID))

	events, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOutboxRepo_FetchUnpublished_OldestFirstAndLimited(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		evt := domain.NewOutboxEvent("video.transcribed", map[string]interface{}{"n": float64(i)}, "vidflow")
		tx, _ := db.BeginTx(ctx, nil)
		require.NoError(t, repo.AppendTx(ctx, tx, evt))
		require.NoError(t, tx.Commit())
		ids = append(ids, evt.ID)
	}

	events, err := repo.FetchUnpublished(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ids[0], events[0].ID)
	assert.Equal(t, ids[1], events[1].ID)
}

func TestOutboxRepo_IncrementAttempts(t *testing.T) {
	db := newTestDB(t)
	repo := NewOutboxRepoSQLite(db)
	ctx := context.Background()

	evt := domain.NewOutboxEvent("video.failed", map[string]interface{}{}, "vidflow")
	tx, _ := db.BeginTx(ctx, nil)
	require.NoError(t, repo.AppendTx(ctx, tx, evt))
	require.NoError(t, tx.Commit())

	require.NoError(t, repo.IncrementAttempts(ctx, evt.ID))
	require.NoError(t, repo.IncrementAttempts(ctx, evt.ID))

	events, err := repo.FetchUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Attempts)

	// Un ID inexistente sí es un error.
	assert.Error(t, repo.IncrementAttempts(ctx, uuid.New()))
}
