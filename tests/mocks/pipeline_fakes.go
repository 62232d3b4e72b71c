package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	summaryDomain "github.com/davicafu/vidflow/internal/summary/domain"
	transcriptDomain "github.com/davicafu/vidflow/internal/transcription/domain"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// ---------------- Catálogo de vídeos ----------------

// InMemoryVideoRepo es un fake del catálogo con status log y outbox visibles
// para los asserts.
type InMemoryVideoRepo struct {
	mu        sync.Mutex
	Videos    map[int64]*videoDomain.Video
	Logs      []videoDomain.StatusLog
	Outbox    []sharedDomain.OutboxEvent
	nextLogID int64

	FailUpdateStatus error // si no es nil, UpdateStatus falla con este error
	FailAppendLog    error
}

func NewInMemoryVideoRepo() *InMemoryVideoRepo {
	return &InMemoryVideoRepo{Videos: make(map[int64]*videoDomain.Video)}
}

// Seed añade un vídeo al catálogo y devuelve su puntero.
func (r *InMemoryVideoRepo) Seed(id int64, title, key, status string) *videoDomain.Video {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := &videoDomain.Video{
		ID:        id,
		Title:     title,
		Key:       key,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.Videos[id] = v
	return v
}

func (r *InMemoryVideoRepo) GetByID(ctx context.Context, id int64) (*videoDomain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Videos[id]
	if !ok {
		return nil, videoDomain.ErrVideoNotFound
	}
	copy := *v
	return &copy, nil
}

func (r *InMemoryVideoRepo) UpdateStatus(ctx context.Context, id int64, status string, message *string) error {
	if r.FailUpdateStatus != nil {
		return r.FailUpdateStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Videos[id]
	if !ok {
		return videoDomain.ErrVideoNotFound
	}
	v.Status = status
	v.StatusMessage = message
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryVideoRepo) MarkFailed(ctx context.Context, id int64, message string, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Videos[id]
	if !ok {
		return videoDomain.ErrVideoNotFound
	}
	v.Status = videoDomain.StatusFailed
	v.StatusMessage = &message
	v.UpdatedAt = time.Now().UTC()
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryVideoRepo) MarkCompleted(ctx context.Context, id int64, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Videos[id]
	if !ok {
		return videoDomain.ErrVideoNotFound
	}
	now := time.Now().UTC()
	v.Status = videoDomain.StatusCompleted
	v.StatusMessage = nil
	v.ProcessedAt = &now
	v.UpdatedAt = now
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryVideoRepo) LatestStatusLog(ctx context.Context, videoID int64) (*videoDomain.StatusLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Logs) - 1; i >= 0; i-- {
		if r.Logs[i].VideoID == videoID {
			entry := r.Logs[i]
			return &entry, nil
		}
	}
	return nil, nil
}

func (r *InMemoryVideoRepo) AppendStatusLog(ctx context.Context, entry videoDomain.StatusLog) (*videoDomain.StatusLog, error) {
	if r.FailAppendLog != nil {
		return nil, r.FailAppendLog
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextLogID++
	entry.ID = r.nextLogID
	entry.CreatedAt = time.Now().UTC()
	r.Logs = append(r.Logs, entry)
	return &entry, nil
}

func (r *InMemoryVideoRepo) StatusHistory(ctx context.Context, videoID int64) ([]videoDomain.StatusLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var history []videoDomain.StatusLog
	for i := len(r.Logs) - 1; i >= 0; i-- {
		if r.Logs[i].VideoID == videoID {
			history = append(history, r.Logs[i])
		}
	}
	return history, nil
}

// LogsFor devuelve las entradas del log de un vídeo, en orden de inserción.
func (r *InMemoryVideoRepo) LogsFor(videoID int64) []videoDomain.StatusLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var logs []videoDomain.StatusLog
	for _, l := range r.Logs {
		if l.VideoID == videoID {
			logs = append(logs, l)
		}
	}
	return logs
}

// ---------------- Transcripts ----------------

type InMemoryTranscriptRepo struct {
	mu          sync.Mutex
	Transcripts map[int64]*transcriptDomain.VideoTranscript
	Outbox      []sharedDomain.OutboxEvent

	// Si no es nil, SaveReady propaga el estado del vídeo como lo haría la
	// transacción real.
	Videos *InMemoryVideoRepo

	FailGet  error
	FailSave error
}

func NewInMemoryTranscriptRepo() *InMemoryTranscriptRepo {
	return &InMemoryTranscriptRepo{Transcripts: make(map[int64]*transcriptDomain.VideoTranscript)}
}

func (r *InMemoryTranscriptRepo) GetByVideoID(ctx context.Context, videoID int64) (*transcriptDomain.VideoTranscript, error) {
	if r.FailGet != nil {
		return nil, r.FailGet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Transcripts[videoID]
	if !ok {
		return nil, transcriptDomain.ErrTranscriptNotFound
	}
	copy := *t
	return &copy, nil
}

func (r *InMemoryTranscriptRepo) SaveReady(ctx context.Context, t *transcriptDomain.VideoTranscript, evt sharedDomain.OutboxEvent, videoStatus string) error {
	if r.FailSave != nil {
		return r.FailSave
	}
	r.mu.Lock()
	stored := *t
	stored.UpdatedAt = time.Now().UTC()
	r.Transcripts[t.VideoID] = &stored
	r.Outbox = append(r.Outbox, evt)
	r.mu.Unlock()

	if r.Videos != nil {
		return r.Videos.UpdateStatus(ctx, t.VideoID, videoStatus, nil)
	}
	return nil
}

// ---------------- Summaries ----------------

type InMemorySummaryRepo struct {
	mu        sync.Mutex
	Summaries map[int64]*summaryDomain.VideoSummary
	Outbox    []sharedDomain.OutboxEvent

	Videos *InMemoryVideoRepo

	FailGet  error
	FailSave error
}

func NewInMemorySummaryRepo() *InMemorySummaryRepo {
	return &InMemorySummaryRepo{Summaries: make(map[int64]*summaryDomain.VideoSummary)}
}

func (r *InMemorySummaryRepo) GetByVideoID(ctx context.Context, videoID int64) (*summaryDomain.VideoSummary, error) {
	if r.FailGet != nil {
		return nil, r.FailGet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Summaries[videoID]
	if !ok {
		return nil, summaryDomain.ErrSummaryNotFound
	}
	copy := *s
	return &copy, nil
}

func (r *InMemorySummaryRepo) SaveReady(ctx context.Context, s *summaryDomain.VideoSummary, evt sharedDomain.OutboxEvent, videoStatus string) error {
	if r.FailSave != nil {
		return r.FailSave
	}
	r.mu.Lock()
	stored := *s
	stored.UpdatedAt = time.Now().UTC()
	r.Summaries[s.VideoID] = &stored
	r.Outbox = append(r.Outbox, evt)
	r.mu.Unlock()

	if r.Videos != nil {
		return r.Videos.UpdateStatus(ctx, s.VideoID, videoStatus, nil)
	}
	return nil
}

// ---------------- Guardia de idempotencia ----------------

type InMemoryProcessedRepo struct {
	mu       sync.Mutex
	Messages map[uuid.UUID]*sharedDomain.ProcessedMessage

	FailMark error
}

func NewInMemoryProcessedRepo() *InMemoryProcessedRepo {
	return &InMemoryProcessedRepo{Messages: make(map[uuid.UUID]*sharedDomain.ProcessedMessage)}
}

func (r *InMemoryProcessedRepo) IsProcessed(ctx context.Context, eventID uuid.UUID, topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Messages[eventID]
	return ok
}

func (r *InMemoryProcessedRepo) MarkProcessed(ctx context.Context, eventID uuid.UUID, topic string, skipCheck bool) (*sharedDomain.ProcessedMessage, error) {
	if r.FailMark != nil {
		return nil, r.FailMark
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.Messages[eventID]; ok {
		return existing, nil
	}
	now := time.Now().UTC()
	msg := &sharedDomain.ProcessedMessage{ID: eventID, Topic: topic, CreatedAt: now, ProcessedAt: now}
	r.Messages[eventID] = msg
	return msg, nil
}

// ---------------- Executor ----------------

// RecordedTask es lo que RecordingExecutor guarda por cada Enqueue.
type RecordedTask struct {
	Name    string
	Payload json.RawMessage
	Delay   time.Duration
}

// RecordingExecutor captura los encolados sin ejecutar nada.
type RecordingExecutor struct {
	mu       sync.Mutex
	Enqueued []RecordedTask

	FailEnqueue error
}

func (e *RecordingExecutor) Enqueue(ctx context.Context, name string, payload interface{}) error {
	return e.record(name, payload, 0)
}

func (e *RecordingExecutor) EnqueueIn(ctx context.Context, name string, payload interface{}, delay time.Duration) error {
	return e.record(name, payload, delay)
}

func (e *RecordingExecutor) record(name string, payload interface{}, delay time.Duration) error {
	if e.FailEnqueue != nil {
		return e.FailEnqueue
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Enqueued = append(e.Enqueued, RecordedTask{Name: name, Payload: data, Delay: delay})
	return nil
}

// ---------------- Motores de etapa ----------------

// FlakyTranscriber falla las primeras FailTimes invocaciones y luego devuelve
// un resultado fijo.
type FlakyTranscriber struct {
	FailTimes int
	Calls     int
	Result    *transcriptDomain.TranscriptionResult
}

func (t *FlakyTranscriber) Transcribe(ctx context.Context, videoID int64, mediaKey string) (*transcriptDomain.TranscriptionResult, error) {
	t.Calls++
	if t.Calls <= t.FailTimes {
		return nil, fmt.Errorf("transcription engine unavailable (call %d)", t.Calls)
	}
	if t.Result != nil {
		return t.Result, nil
	}
	return &transcriptDomain.TranscriptionResult{
		Text: "hola mundo.",
		Segments: []transcriptDomain.TranscriptSegment{
			{Start: 0, End: 5, Text: "hola mundo."},
		},
		DurationSeconds: 5,
		ModelInfo:       map[string]interface{}{"engine": "fake"},
	}, nil
}

// FlakySummarizer falla las primeras FailTimes invocaciones.
type FlakySummarizer struct {
	FailTimes int
	Calls     int
}

func (s *FlakySummarizer) Summarize(ctx context.Context, videoID int64, transcriptText string) (*summaryDomain.SummaryResult, error) {
	s.Calls++
	if s.Calls <= s.FailTimes {
		return nil, fmt.Errorf("summarizer unavailable (call %d)", s.Calls)
	}
	score := 0.9
	return &summaryDomain.SummaryResult{
		Text:         "resumen de prueba.",
		QualityScore: &score,
		ModelInfo:    map[string]interface{}{"engine": "fake"},
	}, nil
}
