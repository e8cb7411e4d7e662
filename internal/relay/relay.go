package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

// Source yields messages read back from the broadcast topic.
type Source interface {
	Next(ctx context.Context) (domain.Broadcast, error)
}

const retryDelay = time.Second

// Run forwards every message from src to b until ctx is done, then closes all
// subscriber channels.
func Run(ctx context.Context, src Source, b *Broadcaster, logger *slog.Logger) error {
	logger.Info("relay started")
	defer b.Close()

	for {
		msg, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("relay stopping", "reason", ctx.Err())
				return nil
			}
			logger.Warn("relay read failed", "error", err)
			select {
			case <-ctx.Done():
				logger.Info("relay stopping", "reason", ctx.Err())
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}
		logger.Debug("relaying message", "routing_key", msg.RoutingKey, "subscribers", b.SubscriberCount())
		b.Broadcast(msg)
	}
}
