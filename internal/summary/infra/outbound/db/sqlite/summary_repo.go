package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/davicafu/vidflow/internal/summary/domain"
)

type SummaryRepoSQLite struct {
	db     *sql.DB
	outbox sharedDomain.OutboxRepository
}

func NewSummaryRepoSQLite(db *sql.DB, outbox sharedDomain.OutboxRepository) *SummaryRepoSQLite {
	return &SummaryRepoSQLite{db: db, outbox: outbox}
}

func (r *SummaryRepoSQLite) GetByVideoID(ctx context.Context, videoID int64) (*domain.VideoSummary, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, video_id, summary_text, summary_path, model_info, quality_score, created_at, updated_at
		 FROM video_summaries WHERE video_id = ?`, videoID)

	var s domain.VideoSummary
	var text, path, modelInfo sql.NullString
	var score sql.NullFloat64
	if err := row.Scan(&s.ID, &s.VideoID, &text, &path, &modelInfo, &score, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSummaryNotFound
		}
		return nil, err
	}
	s.SummaryText = text.String
	s.Path = path.String
	if score.Valid {
		s.QualityScore = &score.Float64
	}
	if modelInfo.Valid && modelInfo.String != "" {
		if err := json.Unmarshal([]byte(modelInfo.String), &s.ModelInfo); err != nil {
			return nil, fmt.Errorf("invalid model_info JSON for video %d: %w", videoID, err)
		}
	}
	return &s, nil
}

// SaveReady hace upsert del resumen y, en la misma transacción, inserta el
// evento de outbox y actualiza el estado del vídeo.
func (r *SummaryRepoSQLite) SaveReady(ctx context.Context, s *domain.VideoSummary, evt sharedDomain.OutboxEvent, videoStatus string) error {
	modelInfoBytes, err := json.Marshal(s.ModelInfo)
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
		`INSERT INTO video_summaries (video_id, summary_text, summary_path, model_info, quality_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
			summary_text = excluded.summary_text,
			summary_path = excluded.summary_path,
			model_info = excluded.model_info,
			quality_score = excluded.quality_score,
			updated_at = excluded.updated_at`,
		s.VideoID, s.SummaryText, s.Path, string(modelInfoBytes), s.QualityScore, now, now,
	); err != nil {
		return err
	}

	if err := r.outbox.AppendTx(ctx, tx, evt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE id = ?`,
		videoStatus, now, s.VideoID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Verificación en tiempo de compilación.
var _ domain.SummaryRepository = (*SummaryRepoSQLite)(nil)
