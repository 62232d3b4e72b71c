package domain

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
)

const (
	TranscriptProcessing = "processing"
	TranscriptReady      = "ready"
)

var ErrTranscriptNotFound = errors.New("transcript not found")

// VideoTranscript es el resultado relacional de la etapa de transcripción.
// El documento completo con segmentos vive en el docstore bajo Path.
type VideoTranscript struct {
	ID              int64                  `json:"id"`
	VideoID         int64                  `json:"video_id"`
	Text            string                 `json:"transcript_text"`
	Path            string                 `json:"transcript_path"`
	Status          string                 `json:"status"`
	DurationSeconds int                    `json:"duration_seconds"`
	ModelInfo       map[string]interface{} `json:"model_info,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// TranscriptRepository persiste transcripciones.
//
// SaveReady es la escritura principal de la etapa: upsert del transcript,
// evento de outbox y estado del vídeo, todo en una transacción. Si algo
// falla, nada queda a medias.
type TranscriptRepository interface {
	GetByVideoID(ctx context.Context, videoID int64) (*VideoTranscript, error)
	SaveReady(ctx context.Context, t *VideoTranscript, evt sharedDomain.OutboxEvent, videoStatus string) error
}

// TranscriptSegment es un fragmento con marcas de tiempo.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult es lo que devuelve el motor de transcripción.
type TranscriptionResult struct {
	Text            string
	Segments        []TranscriptSegment
	DurationSeconds int
	ModelInfo       map[string]interface{}
}

// Transcriber es el puerto hacia el motor de transcripción (colaborador
// externo: Whisper, un servicio gRPC, etc.).
type Transcriber interface {
	Transcribe(ctx context.Context, videoID int64, mediaKey string) (*TranscriptionResult, error)
}
