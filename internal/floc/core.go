package floc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/metrics"
)

// recognizedCommands reports whether a command_type is one this node knows
// how to act on. Core takes this as a function rather than a fixed set so a
// caller can back it with a seeded registry (see internal/audit).
type recognizedCommands func(commandType uint8) bool

// auditRecorder is the narrow slice of internal/audit.Writer that Core
// needs: one best-effort row per accepted device action. Core depends on
// this interface rather than the concrete type so tests can stub it.
type auditRecorder interface {
	RecordDeviceAction(action DeviceAction)
}

// identitySnapshot is the hashable subset of identity that Reprovision
// watches for a change. nextPID is deliberately excluded: it advances on
// every allocated packet and is not part of what "re-provisioning" means.
type identitySnapshot struct {
	NetworkID uint16
	DeviceID  uint16
}

// Core is every piece of FLOC's mutable state collected into one record, as
// the design note in the specification calls for: packet-id counter,
// identity, bloom vector, queues, ack set, transmission map, and ping
// roster, with no ambient globals. A single mutex serializes ingress and
// dispatch so a multi-threaded host (goroutines feeding ReceiveFrame
// concurrently with the tick driver) sees the same run-to-completion
// semantics the single-threaded contract assumes.
type Core struct {
	mu sync.Mutex

	identity *identity
	bloom    *bloom

	retransmitQ *fifo
	responseQ   *fifo
	commandQ    *fifo

	txCount map[uint8]uint8
	acked   map[uint8]struct{}

	roster pingRoster

	lastStatusRequester uint16

	inbox [][]byte

	driver     Driver
	metrics    *metrics.Metrics
	logger     *slog.Logger
	recognized recognizedCommands

	audit   auditRecorder
	publish func(DeviceAction)

	identityHash uint64
}

// NewCore builds a Core from configuration. now is injectable for tests
// that need deterministic bloom reset timing; pass nil in production to
// use time.Now.
func NewCore(cfg *config.Config, driver Driver, m *metrics.Metrics, logger *slog.Logger, recognized recognizedCommands, now func() time.Time) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	if recognized == nil {
		recognized = func(uint8) bool { return false }
	}
	hash, _ := hashstructure.Hash(identitySnapshot{NetworkID: cfg.Identity.NetworkID, DeviceID: cfg.Identity.DeviceID}, hashstructure.FormatV2, nil)
	return &Core{
		identity:     newIdentity(cfg.Identity.NetworkID, cfg.Identity.DeviceID),
		bloom:        newBloom(now),
		retransmitQ:  newFIFO(MaxSendBuffer),
		responseQ:    newFIFO(MaxSendBuffer),
		commandQ:     newFIFO(MaxSendBuffer),
		txCount:      make(map[uint8]uint8),
		acked:        make(map[uint8]struct{}),
		driver:       driver,
		metrics:      m,
		logger:       logger,
		recognized:   recognized,
		identityHash: hash,
	}
}

// SetAuditWriter wires a best-effort audit sink. It is a post-construction
// setter, not a NewCore parameter, so the audit database (which needs a
// *config.Config of its own to open) and the core can be built in either
// order without a cyclic dependency.
func (c *Core) SetAuditWriter(w auditRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audit = w
}

// SetActionPublisher wires a callback invoked once per accepted device
// action, in addition to the slice Tick returns. internal/monitor uses this
// to fan device actions out over its "device-actions" feed without Core
// itself depending on internal/pubsub.
func (c *Core) SetActionPublisher(publish func(DeviceAction)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publish = publish
}

func (c *Core) recordAction(action DeviceAction) {
	if c.audit != nil {
		c.audit.RecordDeviceAction(action)
	}
	if c.publish != nil {
		c.publish(action)
	}
}

// Identity exposes the node's current network/device id, e.g. for logging
// or the monitor console.
func (c *Core) Identity() (networkID, deviceID uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.NetworkID(), c.identity.DeviceID()
}

// Reprovision changes the node's network and/or device id after boot. A
// change is expected to be rare (field re-addressing) and is the only
// legitimate mutator of identity outside construction. The new identity is
// hashed and compared to the previous one so a no-op reprovision (same
// addresses resent) does not spam the log.
func (c *Core) Reprovision(networkID, deviceID uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, err := hashstructure.Hash(identitySnapshot{NetworkID: networkID, DeviceID: deviceID}, hashstructure.FormatV2, nil)
	if err == nil && hash == c.identityHash {
		return
	}

	prevNetworkID, prevDeviceID := c.identity.NetworkID(), c.identity.DeviceID()
	c.identity.SetNetworkID(networkID)
	c.identity.SetDeviceID(deviceID)
	if err == nil {
		c.identityHash = hash
	}
	c.logger.Info("floc: identity reprovisioned",
		"prev_network_id", prevNetworkID, "prev_device_id", prevDeviceID,
		"network_id", networkID, "device_id", deviceID)
}

// ReceiveFrame is the driver's callback for a frame heard over the modem.
// It only enqueues; decoding happens on the next Tick under the core lock,
// keeping the driver's own goroutine off the critical path.
func (c *Core) ReceiveFrame(frame []byte) {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	c.mu.Lock()
	c.inbox = append(c.inbox, buf)
	c.mu.Unlock()
}

// RecordStatusRequester remembers who most recently asked for a status
// query, so a later SendStatus (once the driver's async QueryStatus
// callback resolves) knows where to send the reply.
func (c *Core) RecordStatusRequester(addr uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatusRequester = addr
}

// Tick passes at most one queued frame (the oldest) through the ingress
// pipeline, then performs exactly one scheduler dispatch step. Frames still
// queued wait for later Ticks. A device action produced during ingress is
// returned in the slice; the dispatch step's outcome (if any) is logged and
// reflected in metrics, not returned, since it has no application-facing
// output of its own.
func (c *Core) Tick(ctx context.Context) ([]DeviceAction, error) {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordTick(time.Since(start).Seconds())
			c.metrics.SetQueueDepth("retransmit", c.retransmitQ.len())
			c.metrics.SetQueueDepth("response", c.responseQ.len())
			c.metrics.SetQueueDepth("command", c.commandQ.len())
		}
	}()

	var actions []DeviceAction
	if len(c.inbox) > 0 {
		frame := c.inbox[0]
		c.inbox = c.inbox[1:]
		action, ok := c.ingressLocked(frame)
		if ok {
			actions = append(actions, action)
			c.recordAction(action)
		}
	}

	if err := c.dispatchLocked(ctx); err != nil {
		return actions, err
	}
	return actions, nil
}

// Inject accepts an already-framed FLOC packet from a trusted local source
// (NeST's 'B' frames, which arrive already holding valid ttl/type/addresses)
// and hands it straight to the buffer manager as a locally originated
// packet, bypassing the duplicate/network/self-echo filters ingressLocked
// applies to over-the-air frames: this packet has never been broadcast yet,
// so there is nothing to deduplicate and its src is expected to be this
// node's own device id. It still goes through handlePacketLocked rather
// than a direct driver.Broadcast, so it competes for the outbound queues
// like anything else and the one-broadcast-per-tick invariant holds.
func (c *Core) Inject(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := Decode(frame)
	if err != nil {
		c.drop(err, "nest injection decode failed")
		return err
	}
	c.handlePacketLocked(p)
	return nil
}

// RemoveByPID cancels an outstanding command by pid. Ingress calls the
// unexported equivalent directly when an ACK packet arrives; this exported
// form exists for application glue or tests that need to cancel a command
// without going through a received ACK frame.
func (c *Core) RemoveByPID(pid uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeByPIDLocked(pid)
}

func (c *Core) removeByPIDLocked(pid uint8) {
	if c.commandQ.removeByPID(pid) {
		delete(c.txCount, pid)
	}
	c.acked[pid] = struct{}{}
}
