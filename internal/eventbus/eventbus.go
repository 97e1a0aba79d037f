// Package eventbus publishes knowledge-base ingestion jobs to an optional
// async broker so large uploads don't block the request path. Grounded on
// internal/adapters/messaging's producer/broker shape, rewired directly
// onto the real segmentio/kafka-go and rabbitmq/amqp091-go clients instead
// of the absent digital.vasic.messaging wrapper module (see DESIGN.md).
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"dev.helix.agent/internal/apperr"
	"dev.helix.agent/internal/config"
	"dev.helix.agent/internal/logging"
)

// IngestJob describes one document pending ingestion into a session's
// vector/lexical index.
type IngestJob struct {
	SessionID string `json:"session_id"`
	DocID     string `json:"doc_id"`
	Filename  string `json:"filename"`
	FileType  string `json:"file_type"`
	Content   string `json:"content"`
	KB        bool   `json:"kb"`
}

// Publisher publishes ingestion jobs. InMemoryPublisher, KafkaPublisher and
// RabbitMQPublisher each satisfy it.
type Publisher interface {
	Publish(ctx context.Context, job IngestJob) error
	Close() error
}

// New builds the publisher selected by cfg.Backend. An unrecognized or
// disabled backend falls back to an in-memory publisher with no handler,
// whose Publish accepts the job and does nothing with it.
func New(cfg config.MessagingConfig, logger *logrus.Logger) (Publisher, error) {
	logger = logging.OrDefault(logger)
	if !cfg.Enabled {
		return NewInMemoryPublisher(nil), nil
	}

	switch cfg.Backend {
	case "kafka":
		return NewKafkaPublisher(cfg, logger)
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg, logger)
	default:
		return NewInMemoryPublisher(nil), nil
	}
}

// InMemoryPublisher hands jobs straight to a handler on the caller's
// goroutine, matching inmemory_adapter.go's no-broker development mode.
type InMemoryPublisher struct {
	handler func(IngestJob)
}

// NewInMemoryPublisher builds a publisher that invokes handler synchronously.
// A nil handler makes Publish a no-op, useful when messaging is disabled
// entirely and ingestion happens inline in the HTTP handler instead.
func NewInMemoryPublisher(handler func(IngestJob)) *InMemoryPublisher {
	return &InMemoryPublisher{handler: handler}
}

func (p *InMemoryPublisher) Publish(ctx context.Context, job IngestJob) error {
	if p.handler != nil {
		p.handler(job)
	}
	return nil
}

func (p *InMemoryPublisher) Close() error { return nil }

// KafkaPublisher publishes ingestion jobs to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewKafkaPublisher dials a Kafka writer for cfg.Brokers/cfg.Topic.
func NewKafkaPublisher(cfg config.MessagingConfig, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperr.New(apperr.KindInputInvalid, "kafka messaging backend requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaPublisher{writer: writer, logger: logging.OrDefault(logger)}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, job IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "marshal ingest job", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(job.SessionID), Value: payload})
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, "publish to kafka", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// RabbitMQPublisher publishes ingestion jobs to a RabbitMQ queue.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *logrus.Logger
}

// NewRabbitMQPublisher dials the first reachable broker in cfg.Brokers and
// declares cfg.Topic as a durable queue.
func NewRabbitMQPublisher(cfg config.MessagingConfig, logger *logrus.Logger) (*RabbitMQPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperr.New(apperr.KindInputInvalid, "rabbitmq messaging backend requires a broker URL")
	}
	conn, err := amqp.Dial(cfg.Brokers[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "dial rabbitmq", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "open rabbitmq channel", err)
	}
	if _, err := channel.QueueDeclare(cfg.Topic, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "declare rabbitmq queue", err)
	}
	return &RabbitMQPublisher{conn: conn, channel: channel, queue: cfg.Topic, logger: logging.OrDefault(logger)}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, job IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "marshal ingest job", err)
	}
	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindProviderUnavailable, fmt.Sprintf("publish to rabbitmq queue %s", p.queue), err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.channel.Close()
	return p.conn.Close()
}
