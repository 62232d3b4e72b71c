package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
	"github.com/davicafu/vidflow/tests/mocks"
)

func TestRecordTransition_WritesStatusAndLog(t *testing.T) {
	repo := mocks.NewInMemoryVideoRepo()
	repo.Seed(1, "demo", "videos/1.mp4", videoDomain.StatusPending)
	tracker := NewStatusTracker(repo, zap.NewNop())

	entry, err := tracker.RecordTransition(context.Background(), 1, videoDomain.StatusTranscribing, "vidflow", nil)
	assert.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Equal(t, videoDomain.StatusTranscribing, entry.Status)
	assert.Equal(t, "vidflow", entry.Actor)

	v, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, videoDomain.StatusTranscribing, v.Status)
	assert.Len(t, repo.LogsFor(1), 1)
}

func TestRecordTransition_DuplicateSuppressed(t *testing.T) {
	repo := mocks.NewInMemoryVideoRepo()
	repo.Seed(1, "demo", "videos/1.mp4", videoDomain.StatusPending)
	tracker := NewStatusTracker(repo, zap.NewNop())

	_, err := tracker.RecordTransition(context.Background(), 1, videoDomain.StatusTranscribing, "vidflow", nil)
	assert.NoError(t, err)

	// La misma transición repetida (reentrega) no añade otra entrada.
	entry, err := tracker.RecordTransition(context.Background(), 1, videoDomain.StatusTranscribing, "vidflow", nil)
	assert.NoError(t, err)
	assert.Nil(t, entry)
	assert.Len(t, repo.LogsFor(1), 1)
}

func TestRecordTransition_RevisitedStatusLogsAgain(t *testing.T) {
	repo := mocks.NewInMemoryVideoRepo()
	repo.Seed(1, "demo", "videos/1.mp4", videoDomain.StatusPending)
	tracker := NewStatusTracker(repo, zap.NewNop())

	ctx := context.Background()
	tracker.RecordTransition(ctx, 1, videoDomain.StatusTranscribing, "vidflow", nil)
	tracker.RecordTransition(ctx, 1, videoDomain.StatusFailed, "vidflow", nil)
	// Re-encolado externo: volver a un estado anterior es una entrada nueva.
	tracker.RecordTransition(ctx, 1, videoDomain.StatusTranscribing, "vidflow", nil)

	logs := repo.LogsFor(1)
	assert.Len(t, logs, 3)
	assert.Equal(t, videoDomain.StatusTranscribing, logs[2].Status)
}

func TestRecordTransition_UpdateStatusFailurePropagates(t *testing.T) {
	repo := mocks.NewInMemoryVideoRepo()
	repo.Seed(1, "demo", "videos/1.mp4", videoDomain.StatusPending)
	repo.FailUpdateStatus = errors.New("db unavailable")
	tracker := NewStatusTracker(repo, zap.NewNop())

	// El estado denormalizado es autoritativo: su fallo sí se propaga.
	_, err := tracker.RecordTransition(context.Background(), 1, videoDomain.StatusTranscribing, "vidflow", nil)
	assert.Error(t, err)
	assert.Empty(t, repo.LogsFor(1))
}

func TestRecordTransition_LogFailureIsBestEffort(t *testing.T) {
	repo := mocks.NewInMemoryVideoRepo()
	repo.Seed(1, "demo", "videos/1.mp4", videoDomain.StatusPending)
	repo.FailAppendLog = errors.New("log table locked")
	tracker := NewStatusTracker(repo, zap.NewNop())

	// El fallo del log no tapa la operación principal.
	entry, err := tracker.RecordTransition(context.Background(), 1, videoDomain.StatusTranscribing, "vidflow", nil)
	assert.NoError(t, err)
	assert.Nil(t, entry)

	v, _ := repo.GetByID(context.Background(), 1)
	assert.Equal(t, videoDomain.StatusTranscribing, v.Status)
}
