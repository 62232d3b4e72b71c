package domain

import "time"

// StagePolicy configura los reintentos de una etapa del pipeline.
// Cada etapa lleva su propia política; no hay una global.
type StagePolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// NextDelay calcula el retardo exponencial antes del siguiente intento:
// min(initial * 2^attempt, max). El número de intento empieza en cero.
// Función pura, sin jitter.
func NextDelay(initial time.Duration, attempt int, max time.Duration) time.Duration {
	delay := initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Exhausted indica si el intento actual (0-indexed) agotó el presupuesto.
func (p StagePolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts-1
}

// Delay aplica NextDelay con los parámetros de la política.
func (p StagePolicy) Delay(attempt int) time.Duration {
	return NextDelay(p.InitialDelay, attempt, p.MaxDelay)
}
