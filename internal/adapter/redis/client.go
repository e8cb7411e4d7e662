package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Connect parses url, dials, and pings within timeout. The returned client's
// per-command read and write deadlines are also set to timeout.
func Connect(ctx context.Context, url string, timeout time.Duration) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = timeout
	opt.ReadTimeout = timeout
	opt.WriteTimeout = timeout

	client := goredis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Readiness reports whether Redis answers a ping.
type Readiness struct {
	client *goredis.Client
}

// NewReadiness wraps client as a readiness check.
func NewReadiness(client *goredis.Client) *Readiness {
	return &Readiness{client: client}
}

func (r *Readiness) CheckReadiness(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
