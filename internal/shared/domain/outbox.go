package domain

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent representa un evento pendiente de publicar en el broker.
// Se escribe en la misma transacción que la mutación de dominio que lo
// origina, de forma que ambos se persisten o se descartan juntos.
type OutboxEvent struct {
	ID          uuid.UUID              `json:"id"`
	Topic       string                 `json:"topic"` // ej. "video.transcribed"
	Payload     map[string]interface{} `json:"payload"`
	Published   bool                   `json:"published"`
	Attempts    int                    `json:"attempts"`
	Service     string                 `json:"service"` // servicio que creó el evento
	CreatedAt   time.Time              `json:"created_at"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
}

// NewOutboxEvent construye un evento listo para insertar (no publicado, 0 intentos).
func NewOutboxEvent(topic string, payload map[string]interface{}, service string) OutboxEvent {
	return OutboxEvent{
		ID:        uuid.New(),
		Topic:     topic,
		Payload:   payload,
		Published: false,
		Attempts:  0,
		Service:   service,
		CreatedAt: time.Now().UTC(),
	}
}

// OutboxRepository define el contrato para acceder a la tabla outbox.
//
// AppendTx inserta dentro de la transacción del llamador: nunca abre la suya
// propia. Los demás métodos son de uso exclusivo del relayer una vez creado
// el registro.
type OutboxRepository interface {
	AppendTx(ctx context.Context, tx *sql.Tx, evt OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)
	// MarkPublished es idempotente: marcar dos veces no es un error.
	MarkPublished(ctx context.Context, id uuid.UUID) error
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
}
