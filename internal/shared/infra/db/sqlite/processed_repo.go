package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/google/uuid"
)

// ProcessedRepoSQLite implementa la guardia de idempotencia sobre SQLite.
type ProcessedRepoSQLite struct {
	db  *sql.DB
	log *zap.Logger
}

func NewProcessedRepoSQLite(db *sql.DB, log *zap.Logger) *ProcessedRepoSQLite {
	return &ProcessedRepoSQLite{db: db, log: log}
}

// IsProcessed comprueba si el evento ya fue aceptado. Falla en abierto: un
// error de almacenamiento devuelve false y deja que el procesado siga su
// curso (los handlers de etapa son idempotentes sobre su propio estado).
func (r *ProcessedRepoSQLite) IsProcessed(ctx context.Context, eventID uuid.UUID, topic string) bool {
	var storedTopic string
	err := r.db.QueryRowContext(ctx,
		`SELECT topic FROM processed_messages WHERE id = ?`, eventID.String(),
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

// MarkProcessed registra el evento como procesado. Si dos consumidores
// compiten por la misma reentrega, la violación de clave única se trata como
// éxito y se devuelve la fila existente.
func (r *ProcessedRepoSQLite) MarkProcessed(ctx context.Context, eventID uuid.UUID, topic string, skipCheck bool) (*domain.ProcessedMessage, error) {
	if !skipCheck {
		if existing := r.find(ctx, eventID); existing != nil {
			return existing, nil
		}
	}

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_messages (id, topic, created_at, processed_at) VALUES (?, ?, ?, ?)`,
		eventID.String(), topic, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if existing := r.find(ctx, eventID); existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to mark processed %s: %w", eventID, err)
	}

	return &domain.ProcessedMessage{ID: eventID, Topic: topic, CreatedAt: now, ProcessedAt: now}, nil
}

func (r *ProcessedRepoSQLite) find(ctx context.Context, eventID uuid.UUID) *domain.ProcessedMessage {
	var msg domain.ProcessedMessage
	var idStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, topic, created_at, processed_at FROM processed_messages WHERE id = ?`,
		eventID.String(),
	).Scan(&idStr, &msg.Topic, &msg.CreatedAt, &msg.ProcessedAt)
	if err != nil {
		return nil
	}
	msg.ID = eventID
	return &msg
}

// Verificación en tiempo de compilación.
var _ domain.ProcessedMessageRepository = (*ProcessedRepoSQLite)(nil)
