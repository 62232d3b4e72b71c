package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMissingEventID = errors.New("payload sin eventId/id")
	ErrMissingVideoID = errors.New("payload sin videoId")
)

// Envelope contiene los campos comunes a todos los eventos del pipeline.
// `eventId` lo inyecta el relayer al publicar (es el ID de la fila del
// outbox); `id` se acepta como alternativa para productores antiguos.
type Envelope struct {
	ID      string `json:"id,omitempty"`
	EventID string `json:"eventId,omitempty"`
	VideoID int64  `json:"videoId"`
	TS      string `json:"ts,omitempty"`
}

// ResolveEventID devuelve el identificador de idempotencia del evento,
// prefiriendo eventId sobre id.
func (e Envelope) ResolveEventID() (uuid.UUID, error) {
	raw := e.EventID
	if raw == "" {
		raw = e.ID
	}
	if raw == "" {
		return uuid.Nil, ErrMissingEventID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("eventId inválido %q: %w", raw, err)
	}
	return id, nil
}

// Validate comprueba los campos identificativos mínimos. Un evento que no
// los trae se descarta sin reintento: reintentar no repara un payload roto.
func (e Envelope) Validate() error {
	if _, err := e.ResolveEventID(); err != nil {
		return err
	}
	if e.VideoID == 0 {
		return ErrMissingVideoID
	}
	return nil
}

// VideoTranscoded es el payload de video.transcoded (producido por el
// servicio de transcodificación, consumido por la etapa de transcripción).
type VideoTranscoded struct {
	Envelope
	Variants []TranscodedVariant `json:"variants,omitempty"`
}

type TranscodedVariant struct {
	Resolution string `json:"resolution,omitempty"`
	Key        string `json:"key,omitempty"`
}

// VideoTranscribed es el payload de video.transcribed.
type VideoTranscribed struct {
	Envelope
	TranscriptFileKey string `json:"transcriptFileKey,omitempty"`
	SnippetCount      int    `json:"snippetCount,omitempty"`
}

// VideoSummarized es el payload de video.summarized.
type VideoSummarized struct {
	Envelope
	SummaryFileKey string   `json:"summaryFileKey,omitempty"`
	QualityScore   *float64 `json:"qualityScore,omitempty"`
}

// VideoFailed es el payload de video.failed.
type VideoFailed struct {
	Envelope
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Decode deserializa y valida un payload tipado en un solo paso.
func Decode[T interface{ Validate() error }](data []byte) (T, error) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, fmt.Errorf("payload no deserializable: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return evt, err
	}
	return evt, nil
}

// ToMap convierte un payload tipado al mapa genérico que guarda el outbox.
func ToMap(v interface{}) map[string]interface{} {
	data, _ := json.Marshal(v)
	var m map[string]interface{}
	_ = json.Unmarshal(data, &m)
	return m
}
