package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Espera tras un error de lectura, para no machacar al broker si el fallo
// persiste (rebalanceo, broker caído).
const readRetryWait = time.Second

// MessageHandler define la interfaz que debe cumplir cualquier consumidor de
// eventos del pipeline (transcripción, resumen, indexado).
type MessageHandler interface {
	HandleMessage(ctx context.Context, key string, payload []byte)
}

// ConsumerAdapter conecta un topic de Kafka con un consumidor de etapa.
type ConsumerAdapter struct {
	reader  *kafka.Reader
	handler MessageHandler
	log     *zap.Logger
}

func NewConsumerAdapter(reader *kafka.Reader, handler MessageHandler, log *zap.Logger) *ConsumerAdapter {
	return &ConsumerAdapter{
		reader:  reader,
		handler: handler,
		log:     log,
	}
}

// Start inicia el bucle de consumo de mensajes en una goroutine. El bucle
// observa la cancelación del contexto dentro de un intervalo acotado.
func (c *ConsumerAdapter) Start(ctx context.Context) {
	topic := c.reader.Config().Topic
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
		zap.String("group_id", c.reader.Config().GroupID),
	)

	go func() {
		for {
			// ReadMessage es una llamada bloqueante; al cancelar el contexto
			// devuelve error y salimos limpiamente.
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", topic))
					return
				}
				c.log.Error("Error al leer mensaje de Kafka",
					zap.String("topic", topic),
					zap.Error(err),
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(readRetryWait):
				}
				continue
			}

			c.handler.HandleMessage(ctx, string(msg.Key), msg.Value)
		}
	}()
}
