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
	"github.com/davicafu/vidflow/internal/transcription/domain"
	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// TaskTranscribeVideo es el nombre de la tarea en el executor.
const TaskTranscribeVideo = "tasks.transcribe_video"

// TranscriptionPolicy: reintentos a los 10s, 20s; al tercer fallo, terminal.
var TranscriptionPolicy = sharedDomain.StagePolicy{
	InitialDelay: 10 * time.Second,
	MaxDelay:     5 * time.Minute,
	MaxAttempts:  3,
}

// TranscribeTask orquesta la etapa de transcripción: estado transcribing,
// motor de transcripción, artefacto en el docstore y escritura transaccional
// de resultado + outbox + estado.
type TranscribeTask struct {
	videos      videoDomain.VideoRepository
	transcripts domain.TranscriptRepository
	transcriber domain.Transcriber
	docs        docstore.Store
	tracker     *videoApp.StatusTracker
	service     string
	log         *zap.Logger
}

func NewTranscribeTask(
	videos videoDomain.VideoRepository,
	transcripts domain.TranscriptRepository,
	transcriber domain.Transcriber,
	docs docstore.Store,
	tracker *videoApp.StatusTracker,
	service string,
	log *zap.Logger,
) *TranscribeTask {
	return &TranscribeTask{
		videos:      videos,
		transcripts: transcripts,
		transcriber: transcriber,
		docs:        docs,
		tracker:     tracker,
		service:     service,
		log:         log,
	}
}

func (h *TranscribeTask) Handle(ctx context.Context, task executor.Task) executor.Result {
	evt, err := events.Decode[events.VideoTranscoded](task.Payload)
	if err != nil {
		// Un payload roto no se reintenta: reintentar no lo repara.
		h.log.Error("Payload de transcripción inválido, descartado", zap.Error(err))
		return executor.Terminal(err)
	}
	videoID := evt.VideoID

	h.log.Info("🎤 Iniciando transcripción",
		zap.Int64("video_id", videoID),
		zap.Int("attempt", task.Attempts),
	)

	// Idempotencia real: si el transcript ya está listo, la reentrega es un no-op.
	existing, err := h.transcripts.GetByVideoID(ctx, videoID)
	if err == nil && existing.Status == domain.TranscriptReady {
		h.log.Info("⏭️ Transcript ya existe, se omite", zap.Int64("video_id", videoID))
		return executor.Success()
	}
	if err != nil && !errors.Is(err, domain.ErrTranscriptNotFound) {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to check existing transcript: %w", err))
	}

	video, err := h.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, videoDomain.ErrVideoNotFound) {
			h.log.Error("Vídeo inexistente, tarea descartada", zap.Int64("video_id", videoID))
			return executor.Terminal(err)
		}
		return h.fail(ctx, task, videoID, err)
	}

	// En reintentos de la misma etapa el estado no cambia: la transición
	// duplicada se suprime y el log no crece.
	if _, err := h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusTranscribing, h.service, nil); err != nil {
		h.log.Warn("⚠️ No se pudo actualizar el estado a transcribing", zap.Int64("video_id", videoID), zap.Error(err))
	}

	result, err := h.transcriber.Transcribe(ctx, videoID, video.Key)
	if err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("transcription failed: %w", err))
	}

	transcriptKey := fmt.Sprintf("transcripts/%d.json", videoID)
	doc := docstore.Document{
		Key:     transcriptKey,
		VideoID: videoID,
		Kind:    "transcript",
		Body: map[string]interface{}{
			"text":       result.Text,
			"segments":   result.Segments,
			"model_info": result.ModelInfo,
		},
	}
	if err := h.docs.Put(ctx, doc); err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to store transcript document: %w", err))
	}

	outEvt := sharedDomain.NewOutboxEvent(events.TopicVideoTranscribed, events.ToMap(events.VideoTranscribed{
		Envelope:          events.Envelope{VideoID: videoID, TS: time.Now().UTC().Format(time.RFC3339)},
		TranscriptFileKey: transcriptKey,
		SnippetCount:      len(result.Segments),
	}), h.service)

	transcript := &domain.VideoTranscript{
		VideoID:         videoID,
		Text:            result.Text,
		Path:            transcriptKey,
		Status:          domain.TranscriptReady,
		DurationSeconds: result.DurationSeconds,
		ModelInfo:       result.ModelInfo,
	}
	if err := h.transcripts.SaveReady(ctx, transcript, outEvt, videoDomain.StatusSummarizing); err != nil {
		return h.fail(ctx, task, videoID, fmt.Errorf("failed to save transcript: %w", err))
	}

	h.tracker.RecordTransition(ctx, videoID, videoDomain.StatusSummarizing, h.service, nil)

	h.log.Info("✅ Transcripción completada",
		zap.Int64("video_id", videoID),
		zap.Int("snippets", len(result.Segments)),
	)
	return executor.Success()
}

// fail decide entre reintento con backoff exponencial y fallo terminal.
func (h *TranscribeTask) fail(ctx context.Context, task executor.Task, videoID int64, err error) executor.Result {
	if !TranscriptionPolicy.Exhausted(task.Attempts) {
		return executor.RetryIn(TranscriptionPolicy.Delay(task.Attempts), err)
	}

	// Presupuesto agotado: el vídeo queda en failed y el fallo se anuncia
	// por el outbox. Si la escritura de estado falla, se loggea pero el
	// error original es el que se propaga.
	msg := err.Error()
	failEvt := sharedDomain.NewOutboxEvent(events.TopicVideoFailed, events.ToMap(events.VideoFailed{
		Envelope: events.Envelope{VideoID: videoID, TS: time.Now().UTC().Format(time.RFC3339)},
		Stage:    "transcription",
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
