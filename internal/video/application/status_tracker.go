package application

import (
	"context"

	"go.uber.org/zap"

	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// StatusTracker registra las transiciones de estado de un vídeo.
//
// La escritura del log es telemetría best-effort: nunca aborta la operación
// del llamador. El estado autoritativo vive denormalizado en la fila del
// vídeo, que sí se actualiza con la escritura de dominio que acompaña.
type StatusTracker struct {
	repo videoDomain.VideoRepository
	log  *zap.Logger
}

func NewStatusTracker(repo videoDomain.VideoRepository, log *zap.Logger) *StatusTracker {
	return &StatusTracker{repo: repo, log: log}
}

// RecordTransition actualiza el estado del vídeo y añade una entrada al log.
// Si la última entrada ya tiene el mismo estado no se escribe otra (se
// devuelve nil): una reentrega que repite la misma transición es un no-op.
//
// No se valida la "legalidad" de la transición; la disciplina de orden es de
// los handlers de etapa que la invocan.
func (t *StatusTracker) RecordTransition(ctx context.Context, videoID int64, status, actor string, message *string) (*videoDomain.StatusLog, error) {
	if err := t.repo.UpdateStatus(ctx, videoID, status, message); err != nil {
		return nil, err
	}

	latest, err := t.repo.LatestStatusLog(ctx, videoID)
	if err != nil {
		t.log.Warn("⚠️ No se pudo leer el último status log",
			zap.Int64("video_id", videoID),
			zap.Error(err),
		)
		return nil, nil
	}
	if latest != nil && latest.Status == status {
		t.log.Debug("⏭️ Transición duplicada, no se registra",
			zap.Int64("video_id", videoID),
			zap.String("status", status),
		)
		return nil, nil
	}

	entry, err := t.repo.AppendStatusLog(ctx, videoDomain.StatusLog{
		VideoID: videoID,
		Status:  status,
		Actor:   actor,
		Message: message,
	})
	if err != nil {
		// Best-effort: el fallo del log no debe tapar la operación principal.
		t.log.Warn("⚠️ No se pudo registrar la transición de estado",
			zap.Int64("video_id", videoID),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, nil
	}

	t.log.Info("📝 Transición registrada",
		zap.Int64("video_id", videoID),
		zap.String("status", status),
		zap.String("actor", actor),
	)
	return entry, nil
}
