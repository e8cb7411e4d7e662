package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	b := NewBroadcaster(metrics)

	id, ch := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RelaySubscribers))

	b.Unsubscribe(id)
	assert.Equal(t, 0, b.SubscriberCount())
	assert.Zero(t, testutil.ToFloat64(metrics.RelaySubscribers))

	_, ok := <-ch
	assert.False(t, ok, "channel is closed on unsubscribe")

	b.Unsubscribe(id)
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := NewBroadcaster(observability.NewMetricsForTesting())
	id1, ch1 := b.Subscribe()
	defer b.Unsubscribe(id1)
	id2, ch2 := b.Subscribe()
	defer b.Unsubscribe(id2)

	msg := domain.Broadcast{RoutingKey: domain.RoutingKeyUpdate, Payload: []byte(`{"count":1}`)}
	b.Broadcast(msg)

	for _, ch := range []<-chan domain.Broadcast{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, msg, got)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for broadcast")
		}
	}
}

func TestBroadcaster_SkipsSlowSubscriber(t *testing.T) {
	b := NewBroadcaster(observability.NewMetricsForTesting())
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	for range subscriberBuffer + 10 {
		b.Broadcast(domain.Broadcast{RoutingKey: domain.RoutingKeyMatched})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBroadcaster_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster(observability.NewMetricsForTesting())
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := b.Subscribe()
			b.Broadcast(domain.Broadcast{})
			b.Unsubscribe(id)
		}()
	}
	wg.Wait()
	assert.Zero(t, b.SubscriberCount())
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(observability.NewMetricsForTesting())
	id, ch := b.Subscribe()

	b.Close()
	_, ok := <-ch
	assert.False(t, ok)

	b.Unsubscribe(id)
	assert.Zero(t, b.SubscriberCount())
}

// queueSource serves queued messages, then blocks.
type queueSource struct {
	mu   sync.Mutex
	msgs []domain.Broadcast
	errs []error
}

func (q *queueSource) Next(ctx context.Context) (domain.Broadcast, error) {
	q.mu.Lock()
	if len(q.errs) > 0 {
		err := q.errs[0]
		q.errs = q.errs[1:]
		q.mu.Unlock()
		return domain.Broadcast{}, err
	}
	if len(q.msgs) > 0 {
		msg := q.msgs[0]
		q.msgs = q.msgs[1:]
		q.mu.Unlock()
		return msg, nil
	}
	q.mu.Unlock()
	<-ctx.Done()
	return domain.Broadcast{}, ctx.Err()
}

func TestRun_ForwardsMessages(t *testing.T) {
	b := NewBroadcaster(observability.NewMetricsForTesting())
	_, ch := b.Subscribe()
	src := &queueSource{msgs: []domain.Broadcast{
		{RoutingKey: domain.RoutingKeyUpdate},
		{RoutingKey: domain.RoutingKeyMatched},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, src, b, discardLogger()) }()

	assert.Equal(t, domain.RoutingKeyUpdate, (<-ch).RoutingKey)
	assert.Equal(t, domain.RoutingKeyMatched, (<-ch).RoutingKey)

	cancel()
	require.NoError(t, <-done)
	_, ok := <-ch
	assert.False(t, ok, "subscribers are closed when the relay stops")
}

func TestRun_RetriesAfterReadError(t *testing.T) {
	b := NewBroadcaster(observability.NewMetricsForTesting())
	_, ch := b.Subscribe()
	src := &queueSource{
		errs: []error{errors.New("broker unavailable")},
		msgs: []domain.Broadcast{{RoutingKey: domain.RoutingKeyUpdate}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, src, b, discardLogger()) }()

	select {
	case got := <-ch:
		assert.Equal(t, domain.RoutingKeyUpdate, got.RoutingKey)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not recover")
	}

	cancel()
	require.NoError(t, <-done)
}
