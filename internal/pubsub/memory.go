package pubsub

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// subscriberBuffer is how many unconsumed messages a single subscription
// channel tolerates before Publish starts dropping for that subscriber. A
// slow simulated node shouldn't be able to block the whole mesh.
const subscriberBuffer = 32

func makeInMemoryPubSub() PubSub {
	return &inMemoryPubSub{
		topics: xsync.NewMap[string, *topicSubscribers](),
	}
}

type topicSubscribers struct {
	mu   sync.Mutex
	subs map[*inMemorySubscription]struct{}
}

type inMemoryPubSub struct {
	topics *xsync.Map[string, *topicSubscribers]
}

func (ps *inMemoryPubSub) subscribersFor(topic string) *topicSubscribers {
	existing, _ := ps.topics.LoadOrStore(topic, &topicSubscribers{
		subs: make(map[*inMemorySubscription]struct{}),
	})
	return existing
}

func (ps *inMemoryPubSub) Publish(topic string, message []byte) error {
	t, ok := ps.topics.Load(topic)
	if !ok {
		return nil // no subscribers; nothing hears the transmission
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		select {
		case sub.ch <- message:
		default:
			// subscriber isn't keeping up; drop rather than block the publisher
		}
	}
	return nil
}

func (ps *inMemoryPubSub) Subscribe(topic string) Subscription {
	t := ps.subscribersFor(topic)
	sub := &inMemorySubscription{
		ch:    make(chan []byte, subscriberBuffer),
		topic: t,
	}
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

func (ps *inMemoryPubSub) Close() error {
	return nil
}

type inMemorySubscription struct {
	ch    chan []byte
	topic *topicSubscribers
}

func (s *inMemorySubscription) Close() error {
	s.topic.mu.Lock()
	delete(s.topic.subs, s)
	s.topic.mu.Unlock()
	close(s.ch)
	return nil
}

func (s *inMemorySubscription) Channel() <-chan []byte {
	return s.ch
}
