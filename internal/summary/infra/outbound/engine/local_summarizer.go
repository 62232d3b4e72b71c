package engine

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/davicafu/vidflow/internal/summary/domain"
)

// LocalSummarizer es un motor extractivo trivial para desarrollo local:
// devuelve las primeras frases del transcript. En producción este puerto lo
// cubre un servicio con LLM.
type LocalSummarizer struct {
	maxSentences int
	latency      time.Duration
}

func NewLocalSummarizer() *LocalSummarizer {
	return &LocalSummarizer{
		maxSentences: 3,
		latency:      50 * time.Millisecond,
	}
}

func (s *LocalSummarizer) Summarize(ctx context.Context, videoID int64, transcriptText string) (*domain.SummaryResult, error) {
	select {
	case <-time.After(s.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sentences := splitSentences(transcriptText)
	if len(sentences) > s.maxSentences {
		sentences = sentences[:s.maxSentences]
	}
	text := strings.Join(sentences, " ")
	if text == "" {
		text = "Sin contenido transcrito."
	}

	score := 0.5
	if len(sentences) >= s.maxSentences {
		score = 0.8
	}

	return &domain.SummaryResult{
		Text:         text,
		QualityScore: &score,
		ModelInfo: map[string]interface{}{
			"engine": "local-stub",
			"model":  "extractive-v1",
		},
	}, nil
}

func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimFunc(sb.String(), unicode.IsSpace)
			if s != "" {
				sentences = append(sentences, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimFunc(sb.String(), unicode.IsSpace); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Verificación en tiempo de compilación.
var _ domain.Summarizer = (*LocalSummarizer)(nil)
