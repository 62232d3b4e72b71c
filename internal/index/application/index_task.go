package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/vidflow/internal/index/domain"
	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	"github.com/davicafu/vidflow/internal/shared/events"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	summaryDomain "github.com/davicafu/vidflow/internal/summary/domain"
	transcriptDomain "github.com/davicafu/vidflow/internal/transcription/domain"
	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// TaskIndexVideo es el nombre de la tarea en el executor.
const TaskIndexVideo = "tasks.index_video"

// IndexPolicy: reintentos a los 5s, 10s; al tercer fallo, terminal.
var IndexPolicy = sharedDomain.StagePolicy{
	InitialDelay: 5 * time.Second,
	MaxDelay:     5 * time.Minute,
	MaxAttempts:  3,
}

// IndexTask es la última etapa del pipeline: publica el documento de
// búsqueda y cierra el vídeo en completed.
type IndexTask struct {
	videos      videoDomain.VideoRepository
	transcripts transcriptDomain.TranscriptRepository
	summaries   summaryDomain.SummaryRepository
	search      domain.SearchIndex
	tracker     *videoApp.StatusTracker
	service     string
	log         *zap.Logger
}

func NewIndexTask(
	videos videoDomain.VideoRepository,
	transcripts transcriptDomain.TranscriptRepository,
	summaries summaryDomain.SummaryRepository,
	search domain.SearchIndex,
	tracker *videoApp.StatusTracker,
	service string,
	log *zap.Logger,
) *IndexTask {
	return &IndexTask{
		videos:      videos,
		transcripts: transcripts,
		summaries:   summaries,
		search:      search,
		tracker:     tracker,
		service:     service,
		log:         log,
	}
}

func (h *IndexTask) Handle(ctx context.Context, task executor.Task) executor.Result {
	evt, err := events.Decode[events.VideoSummarized](task.Payload)
	if err != nil {
		h.log.Error("Payload de indexado inválido, descartado", zap.Error(err))
		return executor.Terminal(err)
	}
	videoID := evt.VideoID

	h.log.Info("🔎 Iniciando indexado",
		zap.Int64("video_id", videoID),
		zap.Int("attempt", task.Attempts),
	)

	video, err := h.videos.GetByID(ctx, videoID)
	if err != nil {
		if err == videoDomain.ErrVideoNotFound {
			h.log.Error("Vídeo inexistente, tarea descartada", zap.Int64("video_id", videoID))
			return executor.Terminal(err)
		}
		return h.fail(ctx, task, videoID, err)
	}

	// completed es terminal: la reentrega de un vídeo ya cerrado es un no-op.
	if video.Status == videoDomain.StatusCompleted {
		h.log.Info("⏭️ Vídeo ya completado, se omite", zap.Int64("video_id", videoID))
		return executor.Success()
	}

	if _, err := h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusIndexing, h.service, nil); err != nil {
		h.log.Warn("⚠️ No se pudo actualizar el estado a indexing", zap.Int64("video_id", videoID), zap.Error(err))
	}

	transcript, err := h.transcripts.GetByVideoID(ctx, videoID)
	if err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("transcript not available: %w", err))
	}
	summary, err := h.summaries.GetByVideoID(ctx, videoID)
	if err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("summary not available: %w", err))
	}

	doc := domain.SearchDocument{
		VideoID:        videoID,
		Title:          video.Title,
		Description:    video.Description,
		UserName:       video.UserName,
		TranscriptText: transcript.Text,
		SummaryText:    summary.SummaryText,
		IndexedAt:      time.Now().UTC(),
	}
	if summary.QualityScore != nil {
		doc.QualityScore = *summary.QualityScore
	}
	if err := h.search.Index(ctx, doc); err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to index video: %w", err))
	}

	outEvt := sharedDomain.NewOutboxEvent(events.TopicVideoIndexed, events.ToMap(events.Envelope{
		VideoID: videoID,
		TS:      time.Now().UTC().Format(time.RFC3339),
	}), h.service)
	if err := h.videos.MarkCompleted(ctx, videoID, outEvt); err != nil {
		// El documento ya está en el índice; reindexar en el reintento es
		// idempotente, así que se reintenta el cierre completo.
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to mark video completed: %w", err))
	}

	h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusCompleted, h.service, nil)

	h.log.Info("✅ Vídeo indexado y completado", zap.Int64("video_id", videoID))
	return executor.Success()
}

// fail decide entre reintento con backoff exponencial y fallo terminal.
func (h *IndexTask) fail(ctx context.Context, task executor.Task, videoID int64, err error) executor.Result {
	if !IndexPolicy.Exhausted(task.Attempts) {
		return executor.RetryIn(IndexPolicy.Delay(task.Attempts), err)
	}

	msg := err.Error()
	failEvt := sharedDomain.NewOutboxEvent(events.TopicVideoFailed, events.ToMap(events.VideoFailed{
		Envelope: events.Envelope{VideoID: videoID, TS: time.Now().UTC().Format(time.RFC3339)},
		Stage:    "index",
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
