package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-match-service/internal/config"
	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// UpdatesReader follows the broadcast topic for the realtime relay. Every
// instance joins its own consumer group so each one sees every partition, and
// the group is new on each start so reading begins at the newest offset.
type UpdatesReader struct {
	reader  messageReader
	groupID string
	logger  *slog.Logger
}

// NewUpdatesReader creates a reader in a fresh group named after
// cfg.KafkaRelayGroupID.
func NewUpdatesReader(cfg *config.Config, logger *slog.Logger) *UpdatesReader {
	group := relayGroupID(cfg.KafkaRelayGroupID)
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaUpdatesTopic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafkago.LastOffset,
	})
	logger.Debug("relay consumer group", "group_id", group)
	return &UpdatesReader{reader: r, groupID: group, logger: logger}
}

func relayGroupID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// GroupID reports the consumer group this reader joined.
func (u *UpdatesReader) GroupID() string {
	return u.groupID
}

// Next blocks for the next broadcast.
func (u *UpdatesReader) Next(ctx context.Context) (domain.Broadcast, error) {
	msg, err := u.reader.ReadMessage(ctx)
	if err != nil {
		return domain.Broadcast{}, fmt.Errorf("%w: read update: %w", domain.ErrBroker, err)
	}
	return mapMessageToBroadcast(msg), nil
}

func (u *UpdatesReader) Close() error {
	return u.reader.Close()
}

func mapMessageToBroadcast(msg kafkago.Message) domain.Broadcast {
	key := string(msg.Key)
	for _, h := range msg.Headers {
		if h.Key == HeaderRoutingKey {
			key = string(h.Value)
			break
		}
	}
	return domain.Broadcast{RoutingKey: key, Payload: msg.Value, ReceivedAt: msg.Time}
}
