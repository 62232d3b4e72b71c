package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/davicafu/vidflow/internal/transcription/domain"
)

type TranscriptRepoSQLite struct {
	db     *sql.DB
	outbox sharedDomain.OutboxRepository
}

func NewTranscriptRepoSQLite(db *sql.DB, outbox sharedDomain.OutboxRepository) *TranscriptRepoSQLite {
	return &TranscriptRepoSQLite{db: db, outbox: outbox}
}

func (r *TranscriptRepoSQLite) GetByVideoID(ctx context.Context, videoID int64) (*domain.VideoTranscript, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, video_id, transcript_text, transcript_path, status, duration_seconds, model_info, created_at, updated_at
		 FROM video_transcripts WHERE video_id = ?`, videoID)

	var t domain.VideoTranscript
	var text, path, modelInfo sql.NullString
	var duration sql.NullInt64
	if err := row.Scan(&t.ID, &t.VideoID, &text, &path, &t.Status, &duration, &modelInfo, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTranscriptNotFound
		}
		return nil, err
	}
	t.Text = text.String
	t.Path = path.String
	t.DurationSeconds = int(duration.Int64)
	if modelInfo.Valid && modelInfo.String != "" {
		if err := json.Unmarshal([]byte(modelInfo.String), &t.ModelInfo); err != nil {
			return nil, fmt.Errorf("invalid model_info JSON for video %d: %w", videoID, err)
		}
	}
	return &t, nil
}

// SaveReady hace upsert del transcript y, en la misma transacción, inserta
// el evento de outbox y actualiza el estado del vídeo.
func (r *TranscriptRepoSQLite) SaveReady(ctx context.Context, t *domain.VideoTranscript, evt sharedDomain.OutboxEvent, videoStatus string) error {
	modelInfoBytes, err := json.Marshal(t.ModelInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal model_info: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO video_transcripts (video_id, transcript_text, transcript_path, status, duration_seconds, model_info, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
			transcript_text = excluded.transcript_text,
			transcript_path = excluded.transcript_path,
			status = excluded.status,
			duration_seconds = excluded.duration_seconds,
			model_info = excluded.model_info,
			updated_at = excluded.updated_at`,
		t.VideoID, t.Text, t.Path, t.Status, t.DurationSeconds, string(modelInfoBytes), now, now,
	); err != nil {
		return err
	}

	if err := r.outbox.AppendTx(ctx, tx, evt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`,
		videoStatus, now, t.VideoID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Verificación en tiempo de compilación.
var _ domain.TranscriptRepository = (*TranscriptRepoSQLite)(nil)
