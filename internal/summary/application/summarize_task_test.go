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
	"github.com/davicafu/vidflow/internal/summary/domain"
	transcriptDomain "github.com/davicafu/vidflow/internal/transcription/domain"
	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
	"github.com/davicafu/vidflow/tests/mocks"
)

func newSummarizeFixture(t *testing.T, summarizer domain.Summarizer) (*SummarizeTask, *mocks.InMemoryVideoRepo, *mocks.InMemorySummaryRepo) {
	t.Helper()
	videos := mocks.NewInMemoryVideoRepo()
	videos.Seed(42, "demo", "videos/42.mp4", videoDomain.StatusSummarizing)

	transcripts := mocks.NewInMemoryTranscriptRepo()
	transcripts.Transcripts[42] = &transcriptDomain.VideoTranscript{
		VideoID: 42,
		Text:    "primera frase. segunda frase. tercera frase. cuarta frase.",
		Status:  transcriptDomain.TranscriptReady,
	}

	summaries := mocks.NewInMemorySummaryRepo()
	summaries.Videos = videos
	docs := docstore.NewInMemoryStore()
	tracker := videoApp.NewStatusTracker(videos, zap.NewNop())

	task := NewSummarizeTask(videos, transcripts, summaries, summarizer, docs, tracker, "vidflow", zap.NewNop())
	return task, videos, summaries
}

func summarizeTask(videoID int64, attempts int) executor.Task {
	payload, _ := json.Marshal(map[string]interface{}{
		"eventId":           uuid.New().String(),
		"videoId":           videoID,
		"transcriptFileKey": "transcripts/42.json",
	})
	return executor.Task{ID: uuid.New().String(), Name: TaskSummarizeVideo, Payload: payload, Attempts: attempts}
}

func TestSummarizeTask_Success(t *testing.T) {
	task, videos, summaries := newSummarizeFixture(t, &mocks.FlakySummarizer{})

	result := task.Handle(context.Background(), summarizeTask(42, 0))
	assert.Equal(t, executor.OutcomeSuccess, result.Outcome)

	s, err := summaries.GetByVideoID(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, s.Ready())
	assert.Equal(t, "summaries/42.json", s.Path)
	require.NotNil(t, s.QualityScore)

	require.Len(t, summaries.Outbox, 1)
	assert.Equal(t, sharedEvents.TopicVideoSummarized, summaries.Outbox[0].Topic)

	v, _ := videos.GetByID(context.Background(), 42)
	assert.Equal(t, videoDomain.StatusIndexing, v.Status)
}

func TestSummarizeTask_RetryDelaysFollowPolicy(t *testing.T) {
	flaky := &mocks.FlakySummarizer{FailTimes: 2}
	task, _, _ := newSummarizeFixture(t, flaky)
	ctx := context.Background()

	r0 := task.Handle(ctx, summarizeTask(42, 0))
	assert.Equal(t, executor.OutcomeRetry, r0.Outcome)
	assert.Equal(t, 5*time.Second, r0.RetryAfter)

	r1 := task.Handle(ctx, summarizeTask(42, 1))
	assert.Equal(t, executor.OutcomeRetry, r1.Outcome)
	assert.Equal(t, 10*time.Second, r1.RetryAfter)

	r2 := task.Handle(ctx, summarizeTask(42, 2))
	assert.Equal(t, executor.OutcomeSuccess, r2.Outcome)
}

func TestSummarizeTask_ExhaustedMarksFailed(t *testing.T) {
	task, videos, _ := newSummarizeFixture(t, &mocks.FlakySummarizer{FailTimes: 10})

	result := task.Handle(context.Background(), summarizeTask(42, 2))
	assert.Equal(t, executor.OutcomeTerminal, result.Outcome)

	v, _ := videos.GetByID(context.Background(), 42)
	assert.Equal(t, videoDomain.StatusFailed, v.Status)
	require.Len(t, videos.Outbox, 1)
	assert.Equal(t, sharedEvents.TopicVideoFailed, videos.Outbox[0].Topic)
	assert.Equal(t, "summary", videos.Outbox[0].Payload["stage"])
}

func TestSummarizeTask_ExistingSummaryIsNoOp(t *testing.T) {
	flaky := &mocks.FlakySummarizer{}
	task, _, summaries := newSummarizeFixture(t, flaky)
	summaries.Summaries[42] = &domain.VideoSummary{VideoID: 42, SummaryText: "ya resumido"}

	result := task.Handle(context.Background(), summarizeTask(42, 0))
	assert.Equal(t, executor.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, flaky.Calls)
}

func TestSummarizeTask_HalfWrittenRowIsReprocessed(t *testing.T) {
	// Una fila con texto vacío no cuenta como artefacto: se reprocesa.
	flaky := &mocks.FlakySummarizer{}
	task, _, summaries := newSummarizeFixture(t, flaky)
	summaries.Summaries[42] = &domain.VideoSummary{VideoID: 42, SummaryText: ""}

	result := task.Handle(context.Background(), summarizeTask(42, 0))
	assert.Equal(t, executor.OutcomeSuccess, result.Outcome)
	assert.Equal(t, 1, flaky.Calls)
}

func TestSummarizeTask_MissingTranscriptRetries(t *testing.T) {
	videos := mocks.NewInMemoryVideoRepo()
	videos.Seed(42, "demo", "videos/42.mp4", videoDomain.StatusSummarizing)
	transcripts := mocks.NewInMemoryTranscriptRepo() // vacío
	summaries := mocks.NewInMemorySummaryRepo()
	tracker := videoApp.NewStatusTracker(videos, zap.NewNop())
	task := NewSummarizeTask(videos, transcripts, summaries, &mocks.FlakySummarizer{},
		docstore.NewInMemoryStore(), tracker, "vidflow", zap.NewNop())

	// La escritura aguas arriba puede ir retrasada: se reintenta.
	result := task.Handle(context.Background(), summarizeTask(42, 0))
	assert.Equal(t, executor.OutcomeRetry, result.Outcome)
}
