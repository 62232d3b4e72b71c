package events

import (
	"context"
	"encoding/json"
	"sync"

	sharedBus "github.com/davicafu/vidflow/internal/shared/infra/platform/bus"
)

// InMemoryEventBus implementa un bus multi-topic sobre canales de Go, para
// despliegue local y tests. Entrega al-menos-una-vez igual que Kafka: un
// suscriptor lento puede perder mensajes (canal lleno), nunca se bloquea
// al publicador.
type InMemoryEventBus struct {
	subscribers map[string][]chan []byte
	mu          sync.RWMutex
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]chan []byte),
	}
}

// Publish envía un evento a todos los suscriptores del topic.
func (b *InMemoryEventBus) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	for _, subChan := range subs {
		select {
		case subChan <- data:
		default:
		}
	}
	return nil
}

// Subscribe registra un oyente para un topic y devuelve su canal.
func (b *InMemoryEventBus) Subscribe(topic string, bufferSize int) <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan []byte, bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], subChan)
	return subChan
}

// BackgroundConsumerChan conecta un canal del bus en memoria con un
// MessageHandler, imitando al ConsumerAdapter de Kafka.
func BackgroundConsumerChan(ctx context.Context, ch <-chan []byte, handler MessageHandler) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-ch:
				handler.HandleMessage(ctx, "", payload)
			}
		}
	}()
}
