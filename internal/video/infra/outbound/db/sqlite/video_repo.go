package sqlite

import (
	"context"
	"database/sql"
	"time"

	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/davicafu/vidflow/internal/video/domain"
)

// VideoRepoSQLite escribe el evento de outbox a través del puerto compartido
// para que todas las etapas compartan una única sentencia de inserción.
type VideoRepoSQLite struct {
	db     *sql.DB
	outbox sharedDomain.OutboxRepository
}

func NewVideoRepoSQLite(db *sql.DB, outbox sharedDomain.OutboxRepository) *VideoRepoSQLite {
	return &VideoRepoSQLite{db: db, outbox: outbox}
}

func (r *VideoRepoSQLite) GetByID(ctx context.Context, id int64) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, user_id, user_name, key, status, status_message, processed_at, created_at, updated_at
		 FROM videos WHERE id = ?`, id)

	var v domain.Video
	var statusMessage sql.NullString
	var processedAt sql.NullTime
	if err := row.Scan(&v.ID, &v.Title, &v.Description, &v.UserID, &v.UserName, &v.Key,
		&v.Status, &statusMessage, &processedAt, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrVideoNotFound
		}
		return nil, err
	}
	if statusMessage.Valid {
		v.StatusMessage = &statusMessage.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		v.ProcessedAt = &t
	}
	return &v, nil
}

// UpdateStatus denormaliza el estado actual en la fila del vídeo.
func (r *VideoRepoSQLite) UpdateStatus(ctx context.Context, id int64, status string, message *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE videos SET status = ?, status_message = ?, updated_at = ? WHERE id = ?`,
		status, message, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrVideoNotFound
	}
	return nil
}

// MarkFailed deja el vídeo en failed y encola el evento video.failed en la
// misma transacción.
func (r *VideoRepoSQLite) MarkFailed(ctx context.Context, id int64, message string, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	res, err := tx.ExecContext(ctx,
		`UPDATE videos SET status = ?, status_message = ?, updated_at = ? WHERE id = ?`,
		domain.StatusFailed, message, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrVideoNotFound
	}

	if err := r.outbox.AppendTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkCompleted deja el vídeo en completed con processed_at y encola el
// evento video.indexed en la misma transacción.
func (r *VideoRepoSQLite) MarkCompleted(ctx context.Context, id int64, evt sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE videos SET status = ?, status_message = NULL, processed_at = ?, updated_at = ? WHERE id = ?`,
		domain.StatusCompleted, now, now, id,
	)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrVideoNotFound
	}

	if err := r.outbox.AppendTx(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *VideoRepoSQLite) LatestStatusLog(ctx context.Context, videoID int64) (*domain.StatusLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, video_id, status, actor, status_message, created_at
		 FROM video_status_logs WHERE video_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, videoID)

	entry, err := scanStatusLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

func (r *VideoRepoSQLite) AppendStatusLog(ctx context.Context, entry domain.StatusLog) (*domain.StatusLog, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO video_status_logs (video_id, status, actor, status_message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.VideoID, entry.Status, entry.Actor, entry.Message, now,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	entry.ID = id
	entry.CreatedAt = now
	return &entry, nil
}

func (r *VideoRepoSQLite) StatusHistory(ctx context.Context, videoID int64) ([]domain.StatusLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, video_id, status, actor, status_message, created_at
		 FROM video_status_logs WHERE video_id = ?
		 ORDER BY created_at DESC, id DESC`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusLog
	for rows.Next() {
		entry, err := scanStatusLog(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *entry)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStatusLog(row rowScanner) (*domain.StatusLog, error) {
	var entry domain.StatusLog
	var message sql.NullString
	if err := row.Scan(&entry.ID, &entry.VideoID, &entry.Status, &entry.Actor, &message, &entry.CreatedAt); err != nil {
		return nil, err
	}
	if message.Valid {
		entry.Message = &message.String
	}
	return &entry, nil
}

// Verificación en tiempo de compilación.
var _ domain.VideoRepository = (*VideoRepoSQLite)(nil)
