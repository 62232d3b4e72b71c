package relayer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/vidflow/internal/shared/domain"
	sharedBus "github.com/davicafu/vidflow/internal/shared/infra/platform/bus"
	"github.com/davicafu/vidflow/tests/mocks"
)

func outboxEvent(topic string) sharedDomain.OutboxEvent {
	return sharedDomain.OutboxEvent{
		ID:      uuid.New(),
		Topic:   topic,
		Payload: map[string]interface{}{"videoId": float64(42)},
	}
}

func TestOutboxWorker_ProcessBatch_Success(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	evt := outboxEvent("video.transcribed")

	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	publisher.On("Publish", mock.Anything, "video.transcribed", mock.MatchedBy(func(payload interface{}) bool {
		// El relayer inyecta el ID de la fila como eventId.
		m, ok := payload.(map[string]interface{})
		return ok && m["eventId"] == evt.ID.String() && m["videoId"] == float64(42)
	})).Return(nil).Once()
	repo.On("MarkPublished", mock.Anything, evt.ID).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, 0, 10, zap.NewNop())

	// ACT
	worker.ProcessBatch(context.Background())

	// ASSERT
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOutboxWorker_ProcessBatch_PublisherFails(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	evt := outboxEvent("video.summarized")

	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	publisher.On("Publish", mock.Anything, "video.summarized", mock.Anything).Return(errors.New("kafka is down")).Once()
	repo.On("IncrementAttempts", mock.Anything, evt.ID).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, 0, 10, zap.NewNop())

	// ACT
	worker.ProcessBatch(context.Background())

	// ASSERT: el evento queda pendiente para el siguiente ciclo.
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_FailureIsolatedPerRecord(t *testing.T) {
	// ARRANGE: tres eventos, el segundo no se puede publicar.
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	evt1 := outboxEvent("video.transcribed")
	evt2 := outboxEvent("video.summarized")
	evt3 := outboxEvent("video.indexed")

	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt1, evt2, evt3}, nil).Once()

	publisher.On("Publish", mock.Anything, "video.transcribed", mock.Anything).Return(nil).Once()
	publisher.On("Publish", mock.Anything, "video.summarized", mock.Anything).Return(errors.New("broker timeout")).Once()
	publisher.On("Publish", mock.Anything, "video.indexed", mock.Anything).Return(nil).Once()

	repo.On("MarkPublished", mock.Anything, evt1.ID).Return(nil).Once()
	repo.On("IncrementAttempts", mock.Anything, evt2.ID).Return(nil).Once()
	repo.On("MarkPublished", mock.Anything, evt3.ID).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, 0, 10, zap.NewNop())

	// ACT
	worker.ProcessBatch(context.Background())

	// ASSERT: 1 y 3 publicados, 2 con attempts incrementado y sin marcar.
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, evt2.ID)
}

func TestOutboxWorker_ProcessBatch_MarkPublishedFailureTolerated(t *testing.T) {
	// ARRANGE: publicar funciona pero marcar falla; se tolera (el evento se
	// reenviará y el consumidor deduplica).
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)

	evt := outboxEvent("video.transcribed")

	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	publisher.On("Publish", mock.Anything, "video.transcribed", mock.Anything).Return(nil).Once()
	repo.On("MarkPublished", mock.Anything, evt.ID).Return(errors.New("db unavailable")).Once()

	worker := NewOutboxWorker(repo, publisher, 0, 10, zap.NewNop())

	// ACT: no debe entrar en pánico ni incrementar attempts.
	worker.ProcessBatch(context.Background())

	// ASSERT
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything)
}

// Verificación estática de que los mocks cumplen las interfaces.
var _ sharedDomain.OutboxRepository = (*mocks.MockOutboxRepository)(nil)
var _ sharedBus.EventBus = (*mocks.MockPublisher)(nil)
