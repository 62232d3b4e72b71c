package relayer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedBus "github.com/davicafu/vidflow/internal/shared/infra/platform/bus"
	"go.uber.org/zap"
)

// Worker publica los eventos pendientes de la tabla outbox.
//
// Un fallo de publicación nunca tumba el bucle: se aísla por registro, se
// incrementa `attempts` y el evento queda pendiente para el siguiente ciclo.
// No hay tope de intentos; la columna attempts es la señal del operador para
// detectar eventos venenosos.
type Worker struct {
	repo      sharedDomain.OutboxRepository
	publisher sharedBus.EventBus
	interval  time.Duration
	batchSize int
	log       *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Start inicia el bucle de polling del worker.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

		for {
			select {
			case <-ctx.Done():
				w.log.Info("🛑 Outbox worker detenido.")
				return
			case <-ticker.C:
				w.ProcessBatch(ctx)
			}
		}
	}()
}

// ProcessBatch publica un lote acotado de eventos no publicados, en paralelo.
func (w *Worker) ProcessBatch(ctx context.Context) {
	events, err := w.repo.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}
	w.log.Info(fmt.Sprintf("📬 %d eventos pendientes de publicar", len(events)))

	g, gctx := errgroup.WithContext(ctx)
	for _, evt := range events {
		evt := evt
		g.Go(func() error {
			w.publishAndMark(gctx, evt)
			return nil // el fallo por registro no aborta el lote
		})
	}
	_ = g.Wait()
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) {
	// Inyectamos el ID de la fila como eventId para que la deduplicación
	// aguas abajo funcione aunque el productor original no lo incluyera.
	payload := make(map[string]interface{}, len(evt.Payload)+1)
	for k, v := range evt.Payload {
		payload[k] = v
	}
	payload["eventId"] = evt.ID.String()

	if err := w.publisher.Publish(ctx, evt.Topic, payload); err != nil {
		w.log.Warn("⚠️ No se pudo publicar evento",
			zap.String("event_id", evt.ID.String()),
			zap.String("topic", evt.Topic),
			zap.Int("attempts", evt.Attempts),
			zap.Error(err),
		)
		if err := w.repo.IncrementAttempts(ctx, evt.ID); err != nil {
			w.log.Warn("⚠️ No se pudo incrementar attempts", zap.String("event_id", evt.ID.String()), zap.Error(err))
		}
		return // Sigue sin publicar; se reintenta en el siguiente ciclo
	}

	if err := w.repo.MarkPublished(ctx, evt.ID); err != nil {
		// El evento se reenviará: al-menos-una-vez, el consumidor deduplica.
		w.log.Warn("⚠️ No se pudo marcar evento como publicado",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
	} else {
		w.log.Info("✅ Evento publicado y marcado", zap.String("event_id", evt.ID.String()), zap.String("topic", evt.Topic))
	}
}
