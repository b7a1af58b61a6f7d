// Package modemsim implements a floc.Driver over the in-process pubsub
// abstraction, modelling the acoustic modem's shared broadcast medium for
// simulated multi-node runs and tests without real hardware.
package modemsim

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math/rand"
	"time"

	"github.com/abyssnet/flochub/internal/floc"
	"github.com/abyssnet/flochub/internal/metrics"
	"github.com/abyssnet/flochub/internal/pubsub"
)

// Driver broadcasts and receives FLOC frames over a shared pubsub topic,
// standing in for the real acoustic modem's over-the-air channel. Every
// Driver on the same topic hears every other Driver's Broadcast, the same
// way every modem within range hears every transmission.
//
// A Driver is constructed before the floc.Core that uses it (floc.NewCore
// takes a Driver as an argument), so the core is wired in afterward via
// BindCore rather than passed to New.
type Driver struct {
	ps    pubsub.PubSub
	topic string

	core    *floc.Core
	metrics *metrics.Metrics
	logger  *slog.Logger

	sub     pubsub.Subscription
	pingSub pubsub.Subscription
	pongSub pubsub.Subscription

	statusDelay time.Duration
}

// New builds a simulated modem driver bound to the given topic. BindCore
// must be called with the core it drives before Run is started.
func New(ps pubsub.PubSub, topic string, m *metrics.Metrics, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		ps:          ps,
		topic:       topic,
		metrics:     m,
		logger:      logger,
		statusDelay: 50 * time.Millisecond,
	}
}

// BindCore attaches the core this driver feeds frames into and draws
// identity from. Must be called once, before Run.
func (d *Driver) BindCore(core *floc.Core) {
	d.core = core
}

// Run starts the background receive loops for frames, ranging pings, and
// ranging pongs. It returns once ctx is cancelled, closing all subscriptions.
func (d *Driver) Run(ctx context.Context) {
	d.sub = d.ps.Subscribe(d.topic)
	d.pingSub = d.ps.Subscribe(d.topic + ".ping")
	d.pongSub = d.ps.Subscribe(d.topic + ".pong")
	defer d.sub.Close()
	defer d.pingSub.Close()
	defer d.pongSub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-d.sub.Channel():
			if !ok {
				return
			}
			d.handleFrame(frame)
		case ping, ok := <-d.pingSub.Channel():
			if !ok {
				return
			}
			d.handlePing(ping)
		case pong, ok := <-d.pongSub.Channel():
			if !ok {
				return
			}
			d.handlePong(pong)
		}
	}
}

// handleFrame filters out a driver's own transmission by comparing the
// frame's src_addr (common header, §6) against this node's current device
// id — a half-duplex modem never hears its own broadcast.
func (d *Driver) handleFrame(frame []byte) {
	if len(frame) < floc.HeaderSize {
		return
	}
	src := uint16(frame[6])<<8 | uint16(frame[7])
	_, deviceID := d.core.Identity()
	if src == deviceID {
		return
	}
	d.core.ReceiveFrame(frame)
}

func (d *Driver) handlePing(msg []byte) {
	if len(msg) < 4 {
		return
	}
	target := binary.BigEndian.Uint32(msg)
	networkID, deviceID := d.core.Identity()
	if target != d.ModemIDFrom(deviceID, networkID) {
		return
	}
	var reply [4]byte
	binary.BigEndian.PutUint32(reply[:], target)
	if err := d.ps.Publish(d.topic+".pong", reply[:]); err != nil {
		d.logger.Debug("modemsim: ping reply publish failed", "error", err)
	}
}

func (d *Driver) handlePong(msg []byte) {
	if len(msg) < 4 {
		return
	}
	if d.metrics != nil {
		d.metrics.RecordRangingReplyReceived()
	}
}

// Broadcast publishes frame on the shared topic for every other simulated
// node to hear.
func (d *Driver) Broadcast(_ context.Context, frame []byte) error {
	return d.ps.Publish(d.topic, frame)
}

// Ping publishes a ranging ping request addressed to modemID on the ping
// sub-topic.
func (d *Driver) Ping(_ context.Context, modemID uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], modemID)
	return d.ps.Publish(d.topic+".ping", buf[:])
}

// QueryStatus simulates the modem's asynchronous status read, delivering a
// synthetic voltage sample to core.SendStatus after statusDelay.
func (d *Driver) QueryStatus(ctx context.Context) error {
	_, deviceID := d.core.Identity()
	time.AfterFunc(d.statusDelay, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		voltage := uint16(3600 + rand.Intn(400))
		d.core.SendStatus(deviceID, voltage)
	})
	return nil
}

// ModemIDFrom packs a FLOC device/network id pair into a single simulated
// modem address.
func (d *Driver) ModemIDFrom(deviceID, networkID uint16) uint32 {
	return uint32(networkID)<<16 | uint32(deviceID)
}
