package docstore

import (
	"context"
	"errors"
	"time"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document es un artefacto JSON del pipeline (transcripción completa con
// segmentos, resumen) demasiado voluminoso para una columna relacional.
// La clave es la misma que viaja en los eventos (transcriptFileKey, etc.).
type Document struct {
	Key       string                 `json:"key"`
	VideoID   int64                  `json:"video_id"`
	Kind      string                 `json:"kind"` // "transcript" | "summary"
	Body      map[string]interface{} `json:"body"`
	CreatedAt time.Time              `json:"created_at"`
}

// Store guarda y recupera artefactos por clave. Put es idempotente: repetir
// la escritura de la misma clave sobreescribe el documento (upsert).
type Store interface {
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, key string) (*Document, error)
}
