package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-match-service/internal/config"
	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

// messageFetcher is the subset of *kafkago.Reader the work-queue reader uses.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Reader consumes calendar-event batches from the work-queue topic one message
// at a time. Offsets are committed only through a Delivery's Ack or Requeue.
type Reader struct {
	reader  messageFetcher
	requeue messageWriter
	topic   string
	logger  *slog.Logger
}

// NewReader creates a consumer-group reader for the events topic. The internal
// queue holds a single message so at most one is in flight.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaEventsTopic,
		GroupID:        cfg.KafkaGroupID,
		QueueCapacity:  1,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.KafkaTimeout,
	}
	return &Reader{reader: r, requeue: w, topic: cfg.KafkaEventsTopic, logger: logger}
}

// Extract blocks until the next message arrives or ctx is done.
func (r *Reader) Extract(ctx context.Context) (domain.Delivery, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("%w: fetch message: %w", domain.ErrBroker, err)
	}

	d := mapMessageToDelivery(msg)
	d.Ack = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	d.Requeue = func(ctx context.Context) error {
		if err := r.requeue.WriteMessages(ctx, requeueMessage(msg)); err != nil {
			return fmt.Errorf("%w: requeue: %w", domain.ErrBroker, err)
		}
		return r.reader.CommitMessages(ctx, msg)
	}
	return d, nil
}

// Close stops the consumer and the requeue producer.
func (r *Reader) Close() error {
	rerr := r.reader.Close()
	werr := r.requeue.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// mapMessageToDelivery converts a Kafka message into a domain.Delivery without
// the Ack and Requeue callbacks.
func mapMessageToDelivery(msg kafkago.Message) domain.Delivery {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.Delivery{
		Key:          msg.Key,
		Value:        msg.Value,
		Topic:        msg.Topic,
		Partition:    msg.Partition,
		Offset:       msg.Offset,
		Timestamp:    msg.Time,
		Headers:      headers,
		Redeliveries: redeliveries(headers),
	}
}

func redeliveries(headers map[string]string) int {
	n, err := strconv.Atoi(headers[HeaderRedelivery])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// requeueMessage copies msg for the back of the queue with its redelivery
// counter incremented. Topic and partition are left for the writer to assign.
func requeueMessage(msg kafkago.Message) kafkago.Message {
	headers := make([]kafkago.Header, 0, len(msg.Headers)+1)
	count := 0
	for _, h := range msg.Headers {
		if h.Key == HeaderRedelivery {
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				count = n
			}
			continue
		}
		headers = append(headers, h)
	}
	headers = append(headers, kafkago.Header{Key: HeaderRedelivery, Value: []byte(strconv.Itoa(count + 1))})

	return kafkago.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}
