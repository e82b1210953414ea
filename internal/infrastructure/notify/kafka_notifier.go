package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer the notifier needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes rate changes to a Kafka topic keyed by source
type KafkaNotifier struct {
	writer MessageWriter
	logger logger.Logger
}

// NewKafkaWriter creates a writer for topic on brokers
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaNotifier creates a notifier over writer
func NewKafkaNotifier(writer MessageWriter, log logger.Logger) *KafkaNotifier {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &KafkaNotifier{writer: writer, logger: log}
}

// NotifyRatesChanged writes one message summarising the persisted rates
func (n *KafkaNotifier) NotifyRatesChanged(ctx context.Context, source string, rates []entity.Rate) error {
	const op = "notify.KafkaNotifier.NotifyRatesChanged"

	if len(rates) == 0 {
		return nil
	}

	payload, err := json.Marshal(newRatesChanged(source, rates))
	if err != nil {
		return errors.Wrap(err, op)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(source),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, op)
	}

	n.logger.Debug("Published rate changes", map[string]interface{}{
		"source":  source,
		"changed": len(rates),
	})
	return nil
}

// Close flushes and closes the writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
