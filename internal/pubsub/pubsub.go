// Package pubsub provides the shared-channel abstraction that the simulated
// acoustic modem and NeST drivers use to model a broadcast medium between
// nodes: a Publish on a topic fans out to every live Subscribe on that topic,
// the same way every modem within range hears every transmission.
package pubsub

import (
	"context"

	"github.com/abyssnet/flochub/internal/config"
)

// PubSub is a topic-based fan-out channel.
type PubSub interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string) Subscription
	Close() error
}

// Subscription is a single subscriber's view of a topic.
type Subscription interface {
	Close() error
	Channel() <-chan []byte
}

// MakePubSub creates a PubSub backed by Redis when enabled in configuration
// and by an in-process fan-out registry otherwise.
func MakePubSub(ctx context.Context, cfg *config.Config) (PubSub, error) {
	if cfg.Redis.Enabled {
		return makePubSubFromRedis(ctx, cfg)
	}
	return makeInMemoryPubSub(), nil
}
