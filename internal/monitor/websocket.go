package monitor

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/abyssnet/flochub/internal/pubsub"
)

// clientBuffer is how many unconsumed device-action messages a single
// websocket client tolerates before the feed starts dropping for it; a slow
// browser tab must never block the subscribe loop feeding every other tab.
const clientBuffer = 64

// actionFeed fans out messages published on a topic (the device actions the
// core publishes) to every connected websocket client.
type actionFeed struct {
	ps      pubsub.PubSub
	topic   string
	logger  *slog.Logger
	clients *xsync.Map[chan []byte, struct{}]
	upgrade websocket.Upgrader
}

func newActionFeed(ps pubsub.PubSub, topic string, logger *slog.Logger) *actionFeed {
	return &actionFeed{
		ps:      ps,
		topic:   topic,
		logger:  logger,
		clients: xsync.NewMap[chan []byte, struct{}](),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// run subscribes to the feed's topic and broadcasts every message to every
// registered client until ctx is cancelled.
func (f *actionFeed) run(ctx context.Context) {
	if f.ps == nil {
		return
	}
	sub := f.ps.Subscribe(f.topic)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			f.broadcast(msg)
		}
	}
}

func (f *actionFeed) broadcast(msg []byte) {
	f.clients.Range(func(ch chan []byte, _ struct{}) bool {
		select {
		case ch <- msg:
		default:
			f.logger.Warn("monitor: websocket client too slow, dropping message")
		}
		return true
	})
}

func (f *actionFeed) serveWS(c *gin.Context) {
	conn, err := f.upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("monitor: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, clientBuffer)
	f.clients.Store(ch, struct{}{})
	defer f.clients.Delete(ch)

	// Drain incoming frames (pings/close) so the connection is noticed as
	// dead the moment the client disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
