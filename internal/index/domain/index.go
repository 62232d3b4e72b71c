package domain

import (
	"context"
	"time"
)

// SearchDocument es la fila que la etapa de indexado publica en el índice de
// búsqueda. Se desnormaliza todo lo necesario para buscar sin tocar el
// catálogo.
type SearchDocument struct {
	VideoID        int64     `json:"video_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	UserName       string    `json:"user_name"`
	TranscriptText string    `json:"transcript_text"`
	SummaryText    string    `json:"summary_text"`
	QualityScore   float64   `json:"quality_score"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// SearchIndex es el puerto hacia el motor de búsqueda analítico.
//
// Index es idempotente por video_id: reindexar el mismo vídeo sustituye la
// versión visible (el motor colapsa por clave de ordenación).
type SearchIndex interface {
	Index(ctx context.Context, doc SearchDocument) error
	Search(ctx context.Context, query string, limit int) ([]SearchDocument, error)
}
