package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dental-agenda/pkg/logging"
)

const redisFeedBuffer = 64

// RedisFeed fans changes out across API instances over Redis pub/sub.
type RedisFeed struct {
	client  *redis.Client
	channel string
	tracer  trace.Tracer
	logger  *logging.Logger
}

var _ ChangeFeed = (*RedisFeed)(nil)

func NewRedisFeed(client *redis.Client, channel string, logger *logging.Logger) *RedisFeed {
	if client == nil {
		panic("appointments: redis client cannot be nil")
	}
	if channel == "" {
		channel = "appointments:changes"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisFeed{
		client:  client,
		channel: channel,
		tracer:  otel.Tracer("dental.internal.appointments.feed"),
		logger:  logger.Component("change-feed"),
	}
}

// Publish sends change as JSON on the feed channel.
func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	ctx, span := f.tracer.Start(ctx, "appointments.feed.publish")
	defer span.End()

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("appointments: failed to marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("appointments: failed to publish change: %w", err)
	}
	return nil
}

// Subscribe returns after Redis has confirmed the subscription.
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Change, func(), error) {
	ctx, span := f.tracer.Start(ctx, "appointments.feed.subscribe")
	defer span.End()

	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		span.RecordError(err)
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("appointments: failed to subscribe to %s: %w", f.channel, err)
	}

	out := make(chan Change, redisFeedBuffer)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.logger.Warn("dropping malformed change", "error", err)
					continue
				}
				select {
				case out <- change:
				case <-stop:
					return
				default:
					// Subscriber is behind; tell it to reload instead of queueing.
					select {
					case <-out:
					default:
					}
					out <- Change{Kind: ChangeResync, At: change.At}
				}
			}
		}
	}()

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			close(stop)
			if err := pubsub.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				f.logger.Warn("failed to close subscription", "error", err)
			}
			<-done
		})
	}
	return out, closeFn, nil
}
