package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	readyKey     = "executor:ready"
	scheduledKey = "executor:scheduled"
)

// RedisExecutor coordina una cola de tareas lista y un conjunto ordenado de
// tareas diferidas en Redis. No hay lock global: la coordinación entre
// workers la dan las operaciones atómicas de Redis (LPOP / ZREM).
type RedisExecutor struct {
	client      *redis.Client
	poll        time.Duration
	concurrency int
	log         *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRedisExecutor(client *redis.Client, poll time.Duration, concurrency int, log *zap.Logger) *RedisExecutor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &RedisExecutor{
		client:      client,
		poll:        poll,
		concurrency: concurrency,
		log:         log,
		handlers:    make(map[string]Handler),
	}
}

// Register asocia un handler a un nombre de tarea.
func (e *RedisExecutor) Register(name string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = handler
}

// Enqueue encola una tarea para ejecución inmediata.
func (e *RedisExecutor) Enqueue(ctx context.Context, name string, payload interface{}) error {
	return e.push(ctx, name, payload, 0, time.Time{})
}

// EnqueueIn encola una tarea para ejecutarse tras el retardo indicado.
func (e *RedisExecutor) EnqueueIn(ctx context.Context, name string, payload interface{}, delay time.Duration) error {
	return e.push(ctx, name, payload, 0, time.Now().Add(delay))
}

func (e *RedisExecutor) push(ctx context.Context, name string, payload interface{}, attempts int, runAt time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := Task{
		ID:       uuid.New().String(),
		Name:     name,
		Payload:  data,
		Attempts: attempts,
	}
	return e.submit(ctx, task, runAt)
}

func (e *RedisExecutor) submit(ctx context.Context, task Task, runAt time.Time) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if !runAt.IsZero() && runAt.After(time.Now()) {
		return e.client.ZAdd(ctx, scheduledKey, &redis.Z{
			Score:  float64(runAt.UnixMilli()),
			Member: string(raw),
		}).Err()
	}
	return e.client.RPush(ctx, readyKey, string(raw)).Err()
}

// Run arranca los workers y bloquea hasta la cancelación del contexto.
// El bucle observa el shutdown dentro de un intervalo de poll.
func (e *RedisExecutor) Run(ctx context.Context) error {
	e.log.Info("🚀 Executor iniciado", zap.Int("concurrency", e.concurrency), zap.Duration("poll", e.poll))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.concurrency; i++ {
		g.Go(func() error {
			e.workerLoop(gctx)
			return nil
		})
	}
	err := g.Wait()
	e.log.Info("🛑 Executor detenido.")
	return err
}

func (e *RedisExecutor) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.promoteDue(ctx)

		raw, err := e.client.LPop(ctx, readyKey).Result()
		if err == redis.Nil || (err == nil && raw == "") {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.poll):
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Warn("⚠️ Error al leer la cola de tareas", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.poll):
			}
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			e.log.Error("Tarea no deserializable, descartada", zap.Error(err))
			continue
		}

		e.dispatch(ctx, task)
	}
}

// promoteDue mueve a la cola lista las tareas diferidas cuyo momento llegó.
func (e *RedisExecutor) promoteDue(ctx context.Context) {
	now := time.Now().UnixMilli()
	members, err := e.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		return
	}

	pipe := e.client.TxPipeline()
	for _, m := range members {
		pipe.ZRem(ctx, scheduledKey, m)
		pipe.RPush(ctx, readyKey, m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.log.Warn("⚠️ Error promoviendo tareas diferidas", zap.Error(err))
	}
}

func (e *RedisExecutor) dispatch(ctx context.Context, task Task) {
	e.mu.RLock()
	handler, ok := e.handlers[task.Name]
	e.mu.RUnlock()
	if !ok {
		e.log.Error("Tarea sin handler registrado, descartada", zap.String("task", task.Name))
		return
	}

	result := handler(ctx, task)

	switch result.Outcome {
	case OutcomeSuccess:
		e.log.Info("✅ Tarea completada", zap.String("task", task.Name), zap.String("task_id", task.ID))

	case OutcomeRetry:
		retry := task
		retry.Attempts++
		e.log.Warn("🔁 Tarea reprogramada",
			zap.String("task", task.Name),
			zap.String("task_id", task.ID),
			zap.Int("attempt", retry.Attempts),
			zap.Duration("after", result.RetryAfter),
			zap.Error(result.Err),
		)
		if err := e.submit(ctx, retry, time.Now().Add(result.RetryAfter)); err != nil {
			e.log.Error("❌ No se pudo reprogramar la tarea", zap.String("task_id", task.ID), zap.Error(err))
		}

	case OutcomeTerminal:
		// El handler ya dejó a la entidad en estado failed; aquí solo queda
		// constancia del error original.
		e.log.Error("💀 Tarea agotó sus reintentos",
			zap.String("task", task.Name),
			zap.String("task_id", task.ID),
			zap.Int("attempts", task.Attempts+1),
			zap.Error(result.Err),
		)
	}
}

// Verificación estática
var _ Executor = (*RedisExecutor)(nil)
