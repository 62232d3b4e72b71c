package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/vidflow/internal/shared/events"
	infraEvents "github.com/davicafu/vidflow/internal/shared/infra/events"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	"github.com/davicafu/vidflow/internal/transcription/application"
	"github.com/davicafu/vidflow/internal/transcription/domain"
)

// TranscodedConsumer recibe video.transcoded y encola la tarea de
// transcripción. La entrega es at-least-once: aquí se filtran las reentregas
// antes de tocar el executor.
type TranscodedConsumer struct {
	transcripts domain.TranscriptRepository
	processed   sharedDomain.ProcessedMessageRepository
	exec        executor.Executor
	log         *zap.Logger
}

func NewTranscodedConsumer(
	transcripts domain.TranscriptRepository,
	processed sharedDomain.ProcessedMessageRepository,
	exec executor.Executor,
	log *zap.Logger,
) *TranscodedConsumer {
	return &TranscodedConsumer{
		transcripts: transcripts,
		processed:   processed,
		exec:        exec,
		log:         log,
	}
}

func (c *TranscodedConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	evt, err := sharedEvents.Decode[sharedEvents.VideoTranscoded](payload)
	if err != nil {
		// Malformado: se descarta sin reintento.
		c.log.Error("❌ Evento video.transcoded inválido, descartado",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	eventID, _ := evt.ResolveEventID() // Validate() ya lo garantizó

	// El artefacto real manda: si el transcript ya está listo, la reentrega
	// es un duplicado y se omite.
	existing, err := c.transcripts.GetByVideoID(ctx, evt.VideoID)
	artifactReady := err == nil && existing.Status == domain.TranscriptReady
	if err != nil && !errors.Is(err, domain.ErrTranscriptNotFound) {
		c.log.Warn("⚠️ No se pudo comprobar el transcript, se continúa",
			zap.Int64("video_id", evt.VideoID),
			zap.Error(err),
		)
	}
	if artifactReady {
		// Aunque se omita, el marcador se registra si faltaba: deja rastro
		// de la reentrega en la tabla de procesados.
		if !c.processed.IsProcessed(ctx, eventID, sharedEvents.TopicVideoTranscoded) {
			if _, err := c.processed.MarkProcessed(ctx, eventID, sharedEvents.TopicVideoTranscoded, true); err != nil {
				c.log.Warn("⚠️ No se pudo registrar el marcador de procesado",
					zap.String("event_id", eventID.String()),
					zap.Error(err),
				)
			}
		}
		c.log.Info("⏭️ Duplicado ignorado: transcript ya listo",
			zap.String("event_id", eventID.String()),
			zap.Int64("video_id", evt.VideoID),
		)
		return
	}

	// El marcador es solo una optimización. Si está puesto pero el artefacto
	// no existe, un intento anterior murió a medias: se reprocesa.
	if c.processed.IsProcessed(ctx, eventID, sharedEvents.TopicVideoTranscoded) {
		c.log.Warn("🔁 Marcador presente sin transcript, se reprocesa",
			zap.String("event_id", eventID.String()),
			zap.Int64("video_id", evt.VideoID),
		)
	}

	if err := c.exec.Enqueue(ctx, application.TaskTranscribeVideo, evt); err != nil {
		// Sin marcador: la siguiente reentrega volverá a intentarlo.
		c.log.Error("❌ No se pudo encolar la tarea de transcripción",
			zap.Int64("video_id", evt.VideoID),
			zap.Error(err),
		)
		return
	}

	// Best-effort: si falla, la reentrega se filtrará por el artefacto.
	if _, err := c.processed.MarkProcessed(ctx, eventID, sharedEvents.TopicVideoTranscoded, true); err != nil {
		c.log.Warn("⚠️ No se pudo registrar el marcador de procesado",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}

	c.log.Info("📬 Tarea de transcripción encolada",
		zap.String("event_id", eventID.String()),
		zap.Int64("video_id", evt.VideoID),
	)
}

// Verificación en tiempo de compilación.
var _ infraEvents.MessageHandler = (*TranscodedConsumer)(nil)
