package domain

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
)

// Estados del pipeline. `completed` y `failed` son terminales para este
// servicio; un proceso externo puede re-encolar un vídeo fallido, lo que se
// registra como una transición nueva hacia un estado anterior.
const (
	StatusPending      = "pending"
	StatusTranscribing = "transcribing"
	StatusSummarizing  = "summarizing"
	StatusIndexing     = "indexing"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)

var (
	ErrVideoNotFound = errors.New("video not found")
)

// Video es la entidad del catálogo (tabla compartida con el servicio de
// subida). Este servicio solo muta status, status_message y processed_at.
type Video struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	UserID        int64      `json:"user_id"`
	UserName      string     `json:"user_name"`
	Key           string     `json:"key"` // clave del fichero original en el almacén de medios
	Status        string     `json:"status"`
	StatusMessage *string    `json:"status_message,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StatusLog es una entrada del histórico append-only de transiciones.
type StatusLog struct {
	ID        int64     `json:"id"`
	VideoID   int64     `json:"video_id"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"` // 'system', nombre de servicio o id de usuario
	Message   *string   `json:"status_message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VideoRepository da acceso al catálogo de vídeos y su status log.
type VideoRepository interface {
	GetByID(ctx context.Context, id int64) (*Video, error)
	// UpdateStatus escribe el estado denormalizado en la fila del vídeo.
	UpdateStatus(ctx context.Context, id int64, status string, message *string) error
	// MarkFailed deja el vídeo en failed y anuncia el fallo por el outbox,
	// ambos en una transacción.
	MarkFailed(ctx context.Context, id int64, message string, evt sharedDomain.OutboxEvent) error
	// MarkCompleted deja el vídeo en completed con processed_at y anuncia
	// el final del pipeline por el outbox, ambos en una transacción.
	MarkCompleted(ctx context.Context, id int64, evt sharedDomain.OutboxEvent) error
	LatestStatusLog(ctx context.Context, videoID int64) (*StatusLog, error)
	AppendStatusLog(ctx context.Context, entry StatusLog) (*StatusLog, error)
	StatusHistory(ctx context.Context, videoID int64) ([]StatusLog, error)
}
