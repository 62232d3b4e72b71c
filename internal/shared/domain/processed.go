package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProcessedMessage marca que un evento ya fue aceptado para procesarse en un
// topic. La existencia de la fila es el marcador de idempotencia; nunca se
// actualiza ni se borra.
type ProcessedMessage struct {
	ID          uuid.UUID `json:"id"` // ID del evento (mismo que OutboxEvent.ID aguas arriba)
	Topic       string    `json:"topic"`
	CreatedAt   time.Time `json:"created_at"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ProcessedMessageRepository define la guardia de consumo idempotente.
//
// IsProcessed falla en abierto: ante un error de almacenamiento devuelve
// false (se prefiere un posible reprocesado a descartar trabajo en silencio).
// MarkProcessed trata la violación de clave única como éxito y devuelve la
// fila existente, para tolerar dos consumidores compitiendo por la misma
// reentrega.
type ProcessedMessageRepository interface {
	IsProcessed(ctx context.Context, eventID uuid.UUID, topic string) bool
	MarkProcessed(ctx context.Context, eventID uuid.UUID, topic string, skipCheck bool) (*ProcessedMessage, error)
}
