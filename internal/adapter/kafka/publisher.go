package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-match-service/internal/config"
	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// Message headers.
const (
	HeaderRoutingKey  = "routing_key"
	HeaderMessageID   = "message_id"
	HeaderPublishedAt = "published_at"
	HeaderRedelivery  = "redelivery"
)

// messageWriter is the subset of *kafkago.Writer the adapters use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends JSON payloads to the broadcast topic. The routing key is the
// message key and a header, so consumers filter on it the way a topic
// exchange binding would.
type Publisher struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a producer for the configured updates topic. Writes wait
// for all in-sync replicas and are attempted once.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaUpdatesTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  1,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: cfg.KafkaTimeout,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish serializes payload and writes it under routingKey. Failures are
// logged and returned wrapped in domain.ErrBroker; they are never retried.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	msg, err := serializeToMessage(routingKey, payload, uuid.NewString(), time.Now().UTC())
	if err != nil {
		p.metrics.Publishes.WithLabelValues(routingKey, "error").Inc()
		p.logger.Error("publish failed", "routing_key", routingKey, "error", err)
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.Publishes.WithLabelValues(routingKey, "error").Inc()
		p.logger.Error("publish failed", "routing_key", routingKey, "error", err)
		return fmt.Errorf("%w: publish %s: %w", domain.ErrBroker, routingKey, err)
	}

	p.metrics.Publishes.WithLabelValues(routingKey, "success").Inc()
	p.logger.Debug("published message", "routing_key", routingKey, "bytes", len(msg.Value))
	return nil
}

// PublishMatches announces the alerting results of one batch.
func (p *Publisher) PublishMatches(ctx context.Context, results []domain.MatchResult) error {
	return p.Publish(ctx, domain.RoutingKeyMatched, domain.MatchedMessage{Count: len(results), Results: results})
}

// PublishSnapshot announces a refreshed live snapshot.
func (p *Publisher) PublishSnapshot(ctx context.Context, records []domain.DisasterRecord) error {
	if records == nil {
		records = []domain.DisasterRecord{}
	}
	return p.Publish(ctx, domain.RoutingKeyUpdate, domain.UpdateMessage{
		Source:    domain.SourceEONET,
		Count:     len(records),
		Disasters: records,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals payload into a Kafka message routed by routingKey.
func serializeToMessage(routingKey string, payload any, id string, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s payload: %w", routingKey, err)
	}
	return kafkago.Message{
		Key:   []byte(routingKey),
		Value: data,
		Time:  now,
		Headers: []kafkago.Header{
			{Key: HeaderRoutingKey, Value: []byte(routingKey)},
			{Key: HeaderMessageID, Value: []byte(id)},
			{Key: HeaderPublishedAt, Value: []byte(now.Format(time.RFC3339))},
		},
	}, nil
}
