package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/davicafu/vidflow/internal/transcription/domain"
)

// LocalTranscriber es un motor determinista para desarrollo local: genera un
// transcript sintético a partir de la clave del medio, sin GPU ni servicios
// externos. En producción este puerto lo cubre un worker de Whisper.
type LocalTranscriber struct {
	segmentSeconds float64
	latency        time.Duration
}

func NewLocalTranscriber() *LocalTranscriber {
	return &LocalTranscriber{
		segmentSeconds: 5,
		latency:        100 * time.Millisecond,
	}
}

func (t *LocalTranscriber) Transcribe(ctx context.Context, videoID int64, mediaKey string) (*domain.TranscriptionResult, error) {
	// Simula la latencia del motor real respetando la cancelación.
	select {
	case <-time.After(t.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	words := strings.FieldsFunc(mediaKey, func(r rune) bool {
		return r == '/' || r == '.' || r == '-' || r == '_'
	})
	if len(words) == 0 {
		words = []string{"video"}
	}

	var segments []domain.TranscriptSegment
	var sb strings.Builder
	for i, w := range words {
		text := fmt.Sprintf("Fragmento %d sobre %s del vídeo %d.", i+1, w, videoID)
		segments = append(segments, domain.TranscriptSegment{
			Start: float64(i) * t.segmentSeconds,
			End:   float64(i+1) * t.segmentSeconds,
			Text:  text,
		})
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
	}

	return &domain.TranscriptionResult{
		Text:            sb.String(),
		Segments:        segments,
		DurationSeconds: int(float64(len(segments)) * t.segmentSeconds),
		ModelInfo: map[string]interface{}{
			"engine": "local-stub",
			"model":  "deterministic-v1",
		},
	}, nil
}

// Verificación en tiempo de compilación.
var _ domain.Transcriber = (*LocalTranscriber)(nil)
