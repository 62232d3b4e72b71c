package domain

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
)

var ErrSummaryNotFound = errors.New("summary not found")

// VideoSummary es el resultado relacional de la etapa de resumen. El
// documento completo vive en el docstore bajo Path. Un resumen con texto
// vacío no cuenta como artefacto: la fila puede existir a medias si un
// intento anterior murió entre escrituras.
type VideoSummary struct {
	ID           int64                  `json:"id"`
	VideoID      int64                  `json:"video_id"`
	SummaryText  string                 `json:"summary_text"`
	Path         string                 `json:"summary_path"`
	QualityScore *float64               `json:"quality_score,omitempty"`
	ModelInfo    map[string]interface{} `json:"model_info,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Ready indica si el resumen está completo.
func (s *VideoSummary) Ready() bool {
	return s != nil && s.SummaryText != ""
}

// SummaryRepository persiste resúmenes. SaveReady agrupa upsert del resumen,
// evento de outbox y estado del vídeo en una transacción.
type SummaryRepository interface {
	GetByVideoID(ctx context.Context, videoID int64) (*VideoSummary, error)
	SaveReady(ctx context.Context, s *VideoSummary, evt sharedDomain.OutboxEvent, videoStatus string) error
}

// SummaryResult es lo que devuelve el motor de resumen.
type SummaryResult struct {
	Text         string
	QualityScore *float64
	ModelInfo    map[string]interface{}
}

// Summarizer es el puerto hacia el motor de resumen (un LLM, normalmente).
type Summarizer interface {
	Summarize(ctx context.Context, videoID int64, transcriptText string) (*SummaryResult, error)
}
