package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedSqlite "github.com/davicafu/vidflow/internal/shared/infra/db/sqlite"
	"github.com/davicafu/vidflow/internal/transcription/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sharedSqlite.InitSchema(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedVideo(t *testing.T, db *sql.DB, id int64) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO videos (id, title, user_id, key, status) VALUES (?, 'demo', 1, 'videos/x.mp4', 'transcribing')`,
		id,
	)
	require.NoError(t, err)
}

func TestTranscriptRepo_SaveReady_AllThreeWritesLand(t *testing.T) {
	db := newTestDB(t)
	repo := NewTranscriptRepoSQLite(db, sharedSqlite.NewOutboxRepoSQLite(db))
	ctx := context.Background()
	seedVideo(t, db, 42)

	evt := sharedDomain.NewOutboxEvent("video.transcribed", map[string]interface{}{"videoId": float64(42)}, "vidflow")
	transcript := &domain.VideoTranscript{
		VideoID:         42,
		Text:            "hola mundo.",
		Path:            "transcripts/42.json",
		Status:          domain.TranscriptReady,
		DurationSeconds: 5,
		ModelInfo:       map[string]interface{}{"engine": "whisper"},
	}

	require.NoError(t, repo.SaveReady(ctx, transcript, evt, "summarizing"))

	// Transcript legible con su metadata.
	got, err := repo.GetByVideoID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "hola mundo.", got.Text)
	assert.Equal(t, domain.TranscriptReady, got.Status)
	assert.Equal(t, 5, got.DurationSeconds)
	assert.Equal(t, "whisper", got.ModelInfo["engine"])

	// Evento en el outbox.
	var outboxCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox_events WHERE published = 0`).Scan(&outboxCount))
	assert.Equal(t, 1, outboxCount)

	// Estado del vídeo avanzado en la misma transacción.
	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM videos WHERE id = 42`).Scan(&status))
	assert.Equal(t, "summarizing", status)
}

func TestTranscriptRepo_SaveReady_UpsertByVideoID(t *testing.T) {
	db := newTestDB(t)
	repo := NewTranscriptRepoSQLite(db, sharedSqlite.NewOutboxRepoSQLite(db))
	ctx := context.Background()
	seedVideo(t, db, 42)

	first := &domain.VideoTranscript{VideoID: 42, Text: "v1", Status: domain.TranscriptReady}
	require.NoError(t, repo.SaveReady(ctx, first,
		sharedDomain.NewOutboxEvent("video.transcribed", map[string]interface{}{}, "vidflow"), "summarizing"))

	// Un reintento reescribe en sitio: sigue habiendo una sola fila.
	second := &domain.VideoTranscript{VideoID: 42, Text: "v2", Status: domain.TranscriptReady}
	require.NoError(t, repo.SaveReady(ctx, second,
		sharedDomain.NewOutboxEvent("video.transcribed", map[string]interface{}{}, "vidflow"), "summarizing"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM video_transcripts WHERE video_id = 42`).Scan(&count))
	assert.Equal(t, 1, count)

	got, err := repo.GetByVideoID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Text)
}

func TestTranscriptRepo_SaveReady_DuplicateOutboxIDRollsBackAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewTranscriptRepoSQLite(db, sharedSqlite.NewOutboxRepoSQLite(db))
	ctx := context.Background()
	seedVideo(t, db, 42)

	evt := sharedDomain.NewOutboxEvent("video.transcribed", map[string]interface{}{}, "vidflow")
	transcript := &domain.VideoTranscript{VideoID: 42, Text: "v1", Status: domain.TranscriptReady}
	require.NoError(t, repo.SaveReady(ctx, transcript, evt, "summarizing"))

	// Reutilizar el mismo ID de outbox viola la clave primaria: nada de la
	// segunda llamada debe quedar escrito.
	again := &domain.VideoTranscript{VideoID: 42, Text: "v2", Status: domain.TranscriptReady}
	err := repo.SaveReady(ctx, again, evt, "indexing")
	require.Error(t, err)

	got, _ := repo.GetByVideoID(ctx, 42)
	assert.Equal(t, "v1", got.Text)

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM videos WHERE id = 42`).Scan(&status))
	assert.Equal(t, "summarizing", status)
}

func TestTranscriptRepo_GetByVideoID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewTranscriptRepoSQLite(db, sharedSqlite.NewOutboxRepoSQLite(db))

	_, err := repo.GetByVideoID(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrTranscriptNotFound)
}
