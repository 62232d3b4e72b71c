package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/vidflow/internal/shared/events"
	infraEvents "github.com/davicafu/vidflow/internal/shared/infra/events"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	"github.com/davicafu/vidflow/internal/summary/application"
	"github.com/davicafu/vidflow/internal/summary/domain"
)

// TranscribedConsumer recibe video.transcribed y encola la tarea de resumen.
type TranscribedConsumer struct {
	summaries domain.SummaryRepository
	processed sharedDomain.ProcessedMessageRepository
	exec      executor.Executor
	log       *zap.Logger
}

func NewTranscribedConsumer(
	summaries domain.SummaryRepository,
	processed sharedDomain.ProcessedMessageRepository,
	exec executor.Executor,
	log *zap.Logger,
) *TranscribedConsumer {
	return &TranscribedConsumer{
		summaries: summaries,
		processed: processed,
		exec:      exec,
		log:       log,
	}
}

func (c *TranscribedConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	evt, err := sharedEvents.Decode[sharedEvents.VideoTranscribed](payload)
	if err != nil {
		c.log.Error("❌ Evento video.transcribed inválido, descartado",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	eventID, _ := evt.ResolveEventID()

	// El artefacto real manda: un resumen completo marca el duplicado.
	existing, err := c.summaries.GetByVideoID(ctx, evt.VideoID)
	if err != nil && !errors.Is(err, domain.ErrSummaryNotFound) {
		c.log.Warn("⚠️ No se pudo comprobar el resumen, se continúa",
			zap.Int64("video_id", evt.VideoID),
			zap.Error(err),
		)
	}
	if err == nil && existing.Ready() {
		// Aunque se omita, el marcador se registra si faltaba: deja rastro
		// de la reentrega en la tabla de procesados.
		if !c.processed.IsProcessed(ctx, eventID, sharedEvents.TopicVideoTranscribed) {
			if _, merr := c.processed.MarkProcessed(ctx, eventID, sharedEvents.TopicVideoTranscribed, true); merr != nil {
				c.log.Warn("⚠️ No se pudo registrar el marcador de procesado",
					zap.String("event_id", eventID.String()),
					zap.Error(merr),
				)
			}
		}
		c.log.Info("⏭️ Duplicado ignorado: resumen ya listo",
			zap.String("event_id", eventID.String()),
			zap.Int64("video_id", evt.VideoID),
		)
		return
	}

	if c.processed.IsProcessed(ctx, eventID, sharedEvents.TopicVideoTranscribed) {
		c.log.Warn("🔁 Marcador presente sin resumen, se reprocesa",
			zap.String("event_id", eventID.String()),
			zap.Int64("video_id", evt.VideoID),
		)
	}

	if err := c.exec.Enqueue(ctx, application.TaskSummarizeVideo, evt); err != nil {
		c.log.Error("❌ No se pudo encolar la tarea de resumen",
			zap.Int64("video_id", evt.VideoID),
			zap.Error(err),
		)
		return
	}

	// Best-effort: si falla, la reentrega se filtrará por el artefacto.
	if _, err := c.processed.MarkProcessed(ctx, eventID, sharedEvents.TopicVideoTranscribed, true); err != nil {
		c.log.Warn("⚠️ No se pudo registrar el marcador de procesado",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}

	c.log.Info("📬 Tarea de resumen encolada",
		zap.String("event_id", eventID.String()),
		zap.Int64("video_id", evt.VideoID),
	)
}

// Verificación en tiempo de compilación.
var _ infraEvents.MessageHandler = (*TranscribedConsumer)(nil)
