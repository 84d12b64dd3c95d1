package backend

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus is a Realtime backed by redis pub/sub. Each subscription holds
// its own redis.PubSub so teardown of one topic never disturbs another;
// go-redis resubscribes on its own after connection loss, no retry policy
// lives here.
type RedisBus struct {
	client *redis.Client
	sugar  *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRedisBus(client *redis.Client, sugar *zap.SugaredLogger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{client: client, sugar: sugar, ctx: ctx, cancel: cancel}
}

func DialRedis(address string, sugar *zap.SugaredLogger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: "",
		DB:       0,
	})

	err := client.Ping(context.Background()).Err()
	if err != nil {
		return nil, err
	}

	return NewRedisBus(client, sugar), nil
}

func (b *RedisBus) Subscribe(topic string) (*Subscription, error) {
	pubsub := b.client.Subscribe(b.ctx, topic)

	// force the subscription onto the wire before returning
	_, err := pubsub.Receive(b.ctx)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	events := make(chan Event, localBusBuffer)

	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				b.sugar.Errorf("Dropping undecodable frame on topic %s: %v", topic, err)
				continue
			}
			select {
			case events <- event:
			case <-b.ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		err := pubsub.Unsubscribe(b.ctx, topic)
		if err != nil {
			b.sugar.Error(err)
		}
		// closes pubsub.Channel(), which ends the pump and closes events
		err = pubsub.Close()
		if err != nil {
			b.sugar.Error(err)
		}
	}

	return NewSubscription(topic, events, stop), nil
}

func (b *RedisBus) Publish(topic string, event Event) error {
	return b.client.Publish(b.ctx, topic, event.Encode()).Err()
}

func (b *RedisBus) Close() error {
	b.cancel()
	return b.client.Close()
}
