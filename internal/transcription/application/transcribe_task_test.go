package application

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/vidflow/internal/shared/events"
	"github.com/davicafu/vidflow/internal/shared/infra/docstore"
	"github.com/davicafu/vidflow/internal/shared/infra/executor"
	"github.com/davicafu/vidflow/internal/transcription/domain"
	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
	"github.com/davicafu/vidflow/tests/mocks"
)

func newTranscribeFixture(t *testing.T, transcriber domain.Transcriber) (*TranscribeTask, *mocks.InMemoryVideoRepo, *mocks.InMemoryTranscriptRepo, *docstore.InMemoryStore) {
	t.Helper()
	videos := mocks.NewInMemoryVideoRepo()
	videos.Seed(42, "demo", "videos/42.mp4", videoDomain.StatusPending)
	transcripts := mocks.NewInMemoryTranscriptRepo()
	transcripts.Videos = videos
	docs := docstore.NewInMemoryStore()
	tracker := videoApp.NewStatusTracker(videos, zap.NewNop())

	task := NewTranscribeTask(videos, transcripts, transcriber, docs, tracker, "vidflow", zap.NewNop())
	return task, videos, transcripts, docs
}

func transcribeTask(videoID int64, attempts int) executor.Task {
	payload, _ := json.Marshal(map[string]interface{}{
		"eventId": uuid.New().String(),
		"videoId": videoID,
	})
	return executor.Task{ID: uuid.New().String(), Name: TaskTranscribeVideo, Payload: payload, Attempts: attempts}
}

func TestTranscribeTask_Success(t *testing.T) {
	task, videos, transcripts, docs := newTranscribeFixture(t, &mocks.FlakyTranscriber{})

	result := task.Handle(context.Background(), transcribeTask(42, 0))
	assert.Equal(t, executor.OutcomeSuccess, result.Outcome)

	// Transcript persistido y listo.
	tr, err := transcripts.GetByVideoID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.TranscriptReady, tr.Status)
	assert.Equal(t, "transcripts/42.json", tr.Path)

	// Artefacto en el docstore.
	doc, err := docs.Get(context.Background(), "transcripts/42.json")
	require.NoError(t, err)
	assert.Equal(t, "transcript", doc.Kind)

	// Evento en el outbox con el topic correcto.
	require.Len(t, transcripts.Outbox, 1)
	assert.Equal(t, sharedEvents.TopicVideoTranscribed, transcripts.Outbox[0].Topic)

	// El vídeo avanza a la siguiente etapa.
	v, _ := videos.GetByID(context.Background(), 42)
	assert.Equal(t, videoDomain.StatusSummarizing, v.Status)
}

func TestTranscribeTask_StatusLogsForSingleRun(t *testing.T) {
	task, videos, _, _ := newTranscribeFixture(t, &mocks.FlakyTranscriber{})

	result := task.Handle(context.Background(), transcribeTask(42, 0))
	require.Equal(t, executor.OutcomeSuccess, result.Outcome)

	// Una entrada por transición: transcribing y summarizing.
	logs := videos.LogsFor(42)
	require.Len(t, logs, 2)
	assert.Equal(t, videoDomain.StatusTranscribing, logs[0].Status)
	assert.Equal(t, videoDomain.StatusSummarizing, logs[1].Status)
}

func TestTranscribeTask_RetryDelaysFollowPolicy(t *testing.T) {
	flaky := &mocks.FlakyTranscriber{FailTimes: 2}
	task, videos, _, _ := newTranscribeFixture(t, flaky)
	ctx := context.Background()

	// Primer intento: falla, reintento a los 10s.
	r0 := task.Handle(ctx, transcribeTask(42, 0))
	assert.Equal(t, executor.OutcomeRetry, r0.Outcome)
	assert.Equal(t, 10*time.Second, r0.RetryAfter)

	// Segundo intento: falla, reintento a los 20s.
	r1 := task.Handle(ctx, transcribeTask(42, 1))
	assert.Equal(t, executor.OutcomeRetry, r1.Outcome)
	assert.Equal(t, 20*time.Second, r1.RetryAfter)

	// Tercer intento: el motor ya responde.
	r2 := task.Handle(ctx, transcribeTask(42, 2))
	assert.Equal(t, executor.OutcomeSuccess, r2.Outcome)

	// Los reintentos repiten transcribing (suprimido); al final hay
	// exactamente una entrada por estado visitado.
	logs := videos.LogsFor(42)
	require.Len(t, logs, 2)
	assert.Equal(t, videoDomain.StatusTranscribing, logs[0].Status)
	assert.Equal(t, videoDomain.StatusSummarizing, logs[1].Status)
}

func TestTranscribeTask_ExhaustedMarksFailed(t *testing.T) {
	flaky := &mocks.FlakyTranscriber{FailTimes: 10}
	task, videos, _, _ := newTranscribeFixture(t, flaky)

	// Último intento del presupuesto (0-indexed, MaxAttempts=3).
	result := task.Handle(context.Background(), transcribeTask(42, 2))
	assert.Equal(t, executor.OutcomeTerminal, result.Outcome)
	assert.Error(t, result.Err)

	// El vídeo queda en failed con mensaje y el fallo se anuncia por outbox.
	v, _ := videos.GetByID(context.Background(), 42)
	assert.Equal(t, videoDomain.StatusFailed, v.Status)
	require.NotNil(t, v.StatusMessage)
	require.Len(t, videos.Outbox, 1)
	assert.Equal(t, sharedEvents.TopicVideoFailed, videos.Outbox[0].Topic)
	assert.Equal(t, "transcription", videos.Outbox[0].Payload["stage"])
}

func TestTranscribeTask_ExistingTranscriptIsNoOp(t *testing.T) {
	flaky := &mocks.FlakyTranscriber{}
	task, _, transcripts, _ := newTranscribeFixture(t, flaky)
	transcripts.Transcripts[42] = &domain.VideoTranscript{
		VideoID: 42,
		Text:    "ya transcrito",
		Status:  domain.TranscriptReady,
	}

	result := task.Handle(context.Background(), transcribeTask(42, 0))
	assert.Equal(t, executor.OutcomeSuccess, result.Outcome)
	// El motor ni se invoca.
	assert.Equal(t, 0, flaky.Calls)
}

func TestTranscribeTask_UnknownVideoIsTerminal(t *testing.T) {
	task, _, _, _ := newTranscribeFixture(t, &mocks.FlakyTranscriber{})

	result := task.Handle(context.Background(), transcribeTask(999, 0))
	assert.Equal(t, executor.OutcomeTerminal, result.Outcome)
}

func TestTranscribeTask_MalformedPayloadIsTerminal(t *testing.T) {
	task, _, _, _ := newTranscribeFixture(t, &mocks.FlakyTranscriber{})

	result := task.Handle(context.Background(), executor.Task{
		ID:      uuid.New().String(),
		Name:    TaskTranscribeVideo,
		Payload: []byte("{roto"),
	})
	assert.Equal(t, executor.OutcomeTerminal, result.Outcome)
}
