package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisFeed(t *testing.T) (*RedisFeed, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFeed(client, "appointments:changes", testLogger()), mr
}

func TestRedisFeedPublishSubscribe(t *testing.T) {
	feed, _ := newRedisFeed(t)
	ctx := context.Background()

	ch, closeFn, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, feed.Publish(ctx, Change{ID: "a1", Kind: ChangeMessage, At: 42}))

	select {
	case change := <-ch:
		assert.Equal(t, Change{ID: "a1", Kind: ChangeMessage, At: 42}, change)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestRedisFeedIgnoresMalformedPayloads(t *testing.T) {
	feed, mr := newRedisFeed(t)
	ctx := context.Background()

	ch, closeFn, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	defer closeFn()

	mr.Publish("appointments:changes", "not json")
	require.NoError(t, feed.Publish(ctx, Change{ID: "ok", Kind: ChangeUpdated}))

	select {
	case change := <-ch:
		assert.Equal(t, "ok", change.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestRedisFeedCloseIsIdempotent(t *testing.T) {
	feed, _ := newRedisFeed(t)
	ch, closeFn, err := feed.Subscribe(context.Background())
	require.NoError(t, err)

	closeFn()
	closeFn()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestRedisFeedDrivesServiceSubscriptions(t *testing.T) {
	feed, _ := newRedisFeed(t)
	svc := NewService(NewMemoryStore(), feed, testLogger(), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	snapshots := make(chan []Appointment, 8)
	unsubscribe := svc.SubscribeAll(ctx, func(list []Appointment) { snapshots <- list }, nil)
	defer unsubscribe()
	assert.Empty(t, receive(t, snapshots))

	_, err := svc.Create(ctx, newInput(t, "Redis", "2024-05-01", "10:00"), ActorSystem)
	require.NoError(t, err)
	assert.Len(t, receive(t, snapshots), 1)
}

func TestRedisFeedSubscribeFailsWhenServerDown(t *testing.T) {
	feed, mr := newRedisFeed(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := feed.Subscribe(ctx)
	assert.Error(t, err)
}
