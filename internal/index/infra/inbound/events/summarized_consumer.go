package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/vidflow/internal/index/application"
	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/vidflow/internal/shared/events"
	infraEvents "github.com/davicafu/vidflow/internal/shared/infra/events"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// SummarizedConsumer recibe video.summarized y encola la tarea de indexado.
type SummarizedConsumer struct {
	videos    videoDomain.VideoRepository
	processed sharedDomain.ProcessedMessageRepository
	exec      executor.Executor
	log       *zap.Logger
}

func NewSummarizedConsumer(
	videos videoDomain.VideoRepository,
	processed sharedDomain.ProcessedMessageRepository,
	exec executor.Executor,
	log *zap.Logger,
) *SummarizedConsumer {
	return &SummarizedConsumer{
		videos:    videos,
		processed: processed,
		exec:      exec,
		log:       log,
	}
}

func (c *SummarizedConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	evt, err := sharedEvents.Decode[sharedEvents.VideoSummarized](payload)
	if err != nil {
		c.log.Error("❌ Evento video.summarized inválido, descartado",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	eventID, _ := evt.ResolveEventID()

	// El estado terminal hace de artefacto: un vídeo completed ya pasó por
	// el indexado.
	video, err := c.videos.GetByID(ctx, evt.VideoID)
	if err != nil {
		c.log.Warn("⚠️ No se pudo comprobar el vídeo, se continúa",
			zap.Int64("video_id", evt.VideoID),
			zap.Error(err),
		)
	}
	if video != nil && video.Status == videoDomain.StatusCompleted {
		// Aunque se omita, el marcador se registra si faltaba: deja rastro
		// de la reentrega en la tabla de procesados.
		if !c.processed.IsProcessed(ctx, eventID, sharedEvents.TopicVideoSummarized) {
			if _, merr := c.processed.MarkProcessed(ctx, eventID, sharedEvents.TopicVideoSummarized, true); merr != nil {
				c.log.Warn("⚠️ No se pudo registrar el marcador de procesado",
					zap.String("event_id", eventID.String()),
					zap.Error(merr),
				)
			}
		}
		c.log.Info("⏭️ Duplicado ignorado: vídeo ya completado",
			zap.String("event_id", eventID.String()),
			zap.Int64("video_id", evt.VideoID),
		)
		return
	}

	if c.processed.IsProcessed(ctx, eventID, sharedEvents.TopicVideoSummarized) {
		c.log.Warn("🔁 Marcador presente sin vídeo completado, se reprocesa",
			zap.String("event_id", eventID.String()),
			zap.Int64("video_id", evt.VideoID),
		)
	}

	if err := c.exec.Enqueue(ctx, application.TaskIndexVideo, evt); err != nil {
		c.log.Error("❌ No se pudo encolar la tarea de indexado",
			zap.Int64("video_id", evt.VideoID),
			zap.Error(err),
		)
		return
	}

	// Best-effort: si falla, la reentrega se filtrará por el estado.
	if _, err := c.processed.MarkProcessed(ctx, eventID, sharedEvents.TopicVideoSummarized, true); err != nil {
		c.log.Warn("⚠️ No se pudo registrar el marcador de procesado",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}

	c.log.Info("📬 Tarea de indexado encolada",
		zap.String("event_id", eventID.String()),
		zap.Int64("video_id", evt.VideoID),
	)
}

// Verificación en tiempo de compilación.
var _ infraEvents.MessageHandler = (*SummarizedConsumer)(nil)
