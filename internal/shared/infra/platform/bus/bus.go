package bus

import "context"

type Keyer interface {
	PartitionKey() string
}

// EventBus publica un payload ya serializable en un topic concreto.
// La semántica de entrega es al-menos-una-vez; la deduplicación es
// responsabilidad del consumidor.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}
