package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/google/uuid"
)

const uniqueViolation = "23505"

// ProcessedRepoPostgres implementa la guardia de idempotencia sobre PostgreSQL.
type ProcessedRepoPostgres struct {
	db  *sql.DB
	log *zap.Logger
}

func NewProcessedRepoPostgres(db *sql.DB, log *zap.Logger) *ProcessedRepoPostgres {
	return &ProcessedRepoPostgres{db: db, log: log}
}

// IsProcessed falla en abierto: error de almacenamiento => false.
func (r *ProcessedRepoPostgres) IsProcessed(ctx context.Context, eventID uuid.UUID, topic string) bool {
	var storedTopic string
	err := r.db.QueryRowContext(ctx,
		`SELECT topic FROM processed_messages WHERE id = $1`, eventID,
	).Scan(&storedTopic)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		r.log.Error("❌ Error comprobando mensaje procesado", zap.String("event_id", eventID.String()), zap.Error(err))
		return false
	}
	if topic != "" && storedTopic != topic {
		r.log.Warn("⚠️ Evento encontrado pero con topic distinto",
			zap.String("event_id", eventID.String()),
			zap.String("expected", topic),
			zap.String("found", storedTopic),
		)
	}
	return true
}

// MarkProcessed registra el evento; la violación de clave única (dos
// consumidores con la misma reentrega) se trata como éxito.
func (r *ProcessedRepoPostgres) MarkProcessed(ctx context.Context, eventID uuid.UUID, topic string, skipCheck bool) (*domain.ProcessedMessage, error) {
	if !skipCheck {
		if existing := r.find(ctx, eventID); existing != nil {
			return existing, nil
		}
	}

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_messages (id, topic, created_at, processed_at) VALUES ($1, $2, $3, $4)`,
		eventID, topic, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if existing := r.find(ctx, eventID); existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to mark processed %s: %w", eventID, err)
	}

	return &domain.ProcessedMessage{ID: eventID, Topic: topic, CreatedAt: now, ProcessedAt: now}, nil
}

func (r *ProcessedRepoPostgres) find(ctx context.Context, eventID uuid.UUID) *domain.ProcessedMessage {
	var msg domain.ProcessedMessage
	err := r.db.QueryRowContext(ctx,
		`SELECT id, topic, created_at, processed_at FROM processed_messages WHERE id = $1`,
		eventID,
	).Scan(&msg.ID, &msg.Topic, &msg.CreatedAt, &msg.ProcessedAt)
	if err != nil {
		return nil
	}
	return &msg
}

// Verificación en tiempo de compilación.
var _ domain.ProcessedMessageRepository = (*ProcessedRepoPostgres)(nil)
