package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/davicafu/vidflow/internal/shared/events"
	"github.com/davicafu/vidflow/internal/shared/infra/docstore"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	"github.com/davicafu/vidflow/internal/summary/domain"
	transcriptDomain "github.com/davicafu/vidflow/internal/transcription/domain"
	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// TaskSummarizeVideo es el nombre de la tarea en el executor.
const TaskSummarizeVideo = "tasks.summarize_video"

// SummaryPolicy: reintentos a los 5s, 10s; al tercer fallo, terminal.
var SummaryPolicy = sharedDomain.StagePolicy{
	InitialDelay: 5 * time.Second,
	MaxDelay:     5 * time.Minute,
	MaxAttempts:  3,
}

// SummarizeTask orquesta la etapa de resumen: lee el transcript, invoca el
// motor de resumen y escribe resultado + outbox + estado en una transacción.
type SummarizeTask struct {
	videos      videoDomain.VideoRepository
	transcripts transcriptDomain.TranscriptRepository
	summaries   domain.SummaryRepository
	summarizer  domain.Summarizer
	docs        docstore.Store
	tracker     *videoApp.StatusTracker
	service     string
	log         *zap.Logger
}

func NewSummarizeTask(
	videos videoDomain.VideoRepository,
	transcripts transcriptDomain.TranscriptRepository,
	summaries domain.SummaryRepository,
	summarizer domain.Summarizer,
	docs docstore.Store,
	tracker *videoApp.StatusTracker,
	service string,
	log *zap.Logger,
) *SummarizeTask {
	return &SummarizeTask{
		videos:      videos,
		transcripts: transcripts,
		summaries:   summaries,
		summarizer:  summarizer,
		docs:        docs,
		tracker:     tracker,
		service:     service,
		log:         log,
	}
}

func (h *SummarizeTask) Handle(ctx context.Context, task executor.Task) executor.Result {
	evt, err := events.Decode[events.VideoTranscribed](task.Payload)
	if err != nil {
		h.log.Error("Payload de resumen inválido, descartado", zap.Error(err))
		return executor.Terminal(err)
	}
	videoID := evt.VideoID

	h.log.Info("📝 Iniciando resumen",
		zap.Int64("video_id", videoID),
		zap.Int("attempt", task.Attempts),
	)

	// Idempotencia real: un resumen completo convierte la reentrega en no-op.
	existing, err := h.summaries.GetByVideoID(ctx, videoID)
	if err == nil && existing.Ready() {
		h.log.Info("⏭️ Resumen ya existe, se omite", zap.Int64("video_id", videoID))
		return executor.Success()
	}
	if err != nil && !errors.Is(err, domain.ErrSummaryNotFound) {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to check existing summary: %w", err))
	}

	transcript, err := h.transcripts.GetByVideoID(ctx, videoID)
	if err != nil {
		// El transcript debería existir (esta etapa corre después); si no
		// está, se reintenta por si la escritura aguas arriba va retrasada.
		return h.fail(ctx, task, videoID, fmt.Errorf("transcript not available: %w", err))
	}

	if _, err := h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusSummarizing, h.service, nil); err != nil {
		h.log.Warn("⚠️ No se pudo actualizar el estado a summarizing", zap.Int64("video_id", videoID), zap.Error(err))
	}

	result, err := h.summarizer.Summarize(ctx, videoID, transcript.Text)
	if err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("summarization failed: %w", err))
	}

	summaryKey := fmt.Sprintf("summaries/%d.json", videoID)
	doc := docstore.Document{
		Key:     summaryKey,
		VideoID: videoID,
		Kind:    "summary",
		Body: map[string]interface{}{
			"summary":       result.Text,
			"quality_score": result.QualityScore,
			"model_info":    result.ModelInfo,
		},
	}
	if err := h.docs.Put(ctx, doc); err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to store summary document: %w", err))
	}

	outEvt := sharedDomain.NewOutboxEvent(events.TopicVideoSummarized, events.ToMap(events.VideoSummarized{
		Envelope:       events.Envelope{VideoID: videoID, TS: time.Now().UTC().Format(time.RFC3339)},
		SummaryFileKey: summaryKey,
		QualityScore:   result.QualityScore,
	}), h.service)

	summary := &domain.VideoSummary{
		VideoID:      videoID,
		SummaryText:  result.Text,
		Path:         summaryKey,
		QualityScore: result.QualityScore,
		ModelInfo:    result.ModelInfo,
	}
	if err := h.summaries.SaveReady(ctx, summary, outEvt, videoDomain.StatusIndexing); err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to save summary: %w", err))
	}

	h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusIndexing, h.service, nil)

	h.log.Info("✅ Resumen completado", zap.Int64("video_id", videoID))
	return executor.Success()
}

// fail decide entre reintento con backoff exponencial y fallo terminal.
func (h *SummarizeTask) fail(ctx context.Context, task executor.Task, videoID int64, err error) executor.Result {
	if !SummaryPolicy.Exhausted(task.Attempts) {
		return executor.RetryIn(SummaryPolicy.Delay(task.Attempts), err)
	}

	msg := err.Error()
	failEvt := sharedDomain.NewOutboxEvent(events.TopicVideoFailed, events.ToMap(events.VideoFailed{
		Envelope: events.Envelope{VideoID: videoID, TS: time.Now().UTC().Format(time.RFC3339)},
		Stage:    "summary",
		Reason:   msg,
	}), h.service)

	if serr := h.videos.MarkFailed(ctx, videoID, msg, failEvt); serr != nil {
		h.log.Warn("⚠️ No se pudo marcar el vídeo como failed",
			zap.Int64("video_id", videoID),
			zap.Error(serr),
		)
	} else {
		h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusFailed, h.service, &msg)
	}
	return executor.Terminal(err)
}
