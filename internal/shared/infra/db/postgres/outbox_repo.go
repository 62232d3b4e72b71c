package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
)

// OutboxRepoPostgres implementa la interfaz domain.OutboxRepository.
type OutboxRepoPostgres struct {
	db *sql.DB
}

func NewOutboxRepoPostgres(db *sql.DB) *OutboxRepoPostgres {
	return &OutboxRepoPostgres{db: db}
}

// AppendTx inserta el evento dentro de la transacción del llamador.
func (r *OutboxRepoPostgres) AppendTx(ctx context.Context, tx *sql.Tx, evt domain.OutboxEvent) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, topic, payload, published, attempts, service, created_at)
		 VALUES ($1, $2, $3, false, 0, $4, $5)`,
		evt.ID, evt.Topic, payloadBytes, evt.Service, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished obtiene los eventos no publicados, los más antiguos primero.
func (r *OutboxRepoPostgres) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, topic, payload, published, attempts, service, created_at, published_at
		 FROM outbox_events
		 WHERE published = false
		 ORDER BY created_at
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var evt domain.OutboxEvent
		var payloadBytes []byte // El payload se lee como JSONB
		var service sql.NullString
		var publishedAt sql.NullTime

		if err := rows.Scan(&evt.ID, &evt.Topic, &payloadBytes, &evt.Published, &evt.Attempts, &service, &evt.CreatedAt, &publishedAt); err != nil {
			return nil, err
		}
		evt.Service = service.String
		if publishedAt.Valid {
			t := publishedAt.Time
			evt.PublishedAt = &t
		}

		if err := json.Unmarshal(payloadBytes, &evt.Payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", evt.ID, err)
		}

		events = append(events, evt)
	}

	return events, rows.Err()
}

// MarkPublished marca un evento como publicado (idempotente).
func (r *OutboxRepoPostgres) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET published = true, published_at = $1 WHERE id = $2 AND published = false`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// IncrementAttempts suma un intento fallido de publicación.
func (r *OutboxRepoPostgres) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("outbox event not found: %s", id)
	}
	return nil
}

// Verificación en tiempo de compilación.
var _ domain.OutboxRepository = (*OutboxRepoPostgres)(nil)
