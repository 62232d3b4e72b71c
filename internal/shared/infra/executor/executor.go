package executor

import (
	"context"
	"encoding/json"
	"time"
)

// Task es la unidad de trabajo que ejecuta el executor. Attempts cuenta los
// intentos ya consumidos (0 en la primera ejecución).
type Task struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRetry    Outcome = "retryable_failure"
	OutcomeTerminal Outcome = "terminal_failure"
)

// Result es el resultado explícito de un handler de etapa. El control de
// reintentos se decide inspeccionando este valor, no propagando errores a
// través de los límites de componente.
type Result struct {
	Outcome    Outcome
	RetryAfter time.Duration // solo para OutcomeRetry
	Err        error
}

func Success() Result {
	return Result{Outcome: OutcomeSuccess}
}

func RetryIn(after time.Duration, err error) Result {
	return Result{Outcome: OutcomeRetry, RetryAfter: after, Err: err}
}

func Terminal(err error) Result {
	return Result{Outcome: OutcomeTerminal, Err: err}
}

// Handler procesa una tarea y devuelve su resultado.
type Handler func(ctx context.Context, task Task) Result

// Executor acepta unidades de trabajo con nombre y soporta ejecución diferida
// (el primitivo "retry after delay" que usan las políticas de backoff).
type Executor interface {
	Enqueue(ctx context.Context, name string, payload interface{}) error
	EnqueueIn(ctx context.Context, name string, payload interface{}, delay time.Duration) error
}
