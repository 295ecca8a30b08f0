package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker publishes auth events on a redis channel so every API instance
// sees sign-outs and profile changes, and relays received events to local
// listeners.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *LocalBroker
	log     zerolog.Logger

	run        func(ctx context.Context) error
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRedisBroker(client *redis.Client, channel string, log zerolog.Logger) *RedisBroker {
	b := &RedisBroker{
		client:     client,
		channel:    channel,
		local:      NewLocalBroker(log),
		log:        log,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
	b.run = b.Run
	return b
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode auth event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish auth event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(listener Listener) Unsubscribe {
	return b.local.Subscribe(listener)
}

// Run relays channel messages until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn().Err(err).Msg("discarding malformed auth event")
				continue
			}
			b.local.dispatch(event)
		}
	}
}

// Relay keeps Run going until ctx is done, resubscribing after every failure
// with exponential backoff. Events published while disconnected are lost;
// session.Registry revalidation covers that gap.
func (b *RedisBroker) Relay(ctx context.Context) {
	backoff := b.minBackoff
	for {
		started := time.Now()
		err := b.run(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > b.maxBackoff {
			backoff = b.minBackoff
		}
		b.log.Error().Err(err).Dur("retry_in", backoff).Msg("auth event relay stopped, resubscribing")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.maxBackoff)
	}
}
