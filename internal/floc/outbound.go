package floc

// buildHeaderLocked fills every common-header field for a locally
// originated packet: ttl, type, nid, a freshly allocated pid, res, dest,
// src, and last_hop. last_hop is set to this node's device id at
// construction time rather than deferred to a later retransmit step.
func (c *Core) buildHeaderLocked(ttl uint8, typ PacketType, dest uint16, isError bool) Packet {
	var res uint8
	if isError {
		res = 1
	}
	return Packet{
		TTL:     ttl,
		Type:    typ,
		NID:     c.identity.NetworkID(),
		Res:     res,
		PID:     c.identity.allocatePID(),
		Dest:    dest,
		Src:     c.identity.DeviceID(),
		LastHop: c.identity.DeviceID(),
	}
}

// sendAckLocked builds an ACK packet acknowledging ackPID and submits it
// via the buffer manager.
func (c *Core) sendAckLocked(ttl, ackPID uint8, dest uint16) {
	p := c.buildHeaderLocked(ttl, PacketAck, dest, false)
	p.AckPID = ackPID
	c.handlePacketLocked(p)
}

// SendStatus builds a RESPONSE carrying nodeAddr and voltage, addressed to
// whoever most recently triggered a status query, and submits it via the
// buffer manager. Called once the driver's asynchronous QueryStatus
// resolves.
func (c *Core) SendStatus(nodeAddr, voltage uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.buildHeaderLocked(TTLStart, PacketResponse, c.lastStatusRequester, false)
	var payload [4]byte
	payload[0] = byte(nodeAddr >> 8)
	payload[1] = byte(nodeAddr)
	payload[2] = byte(voltage >> 8)
	payload[3] = byte(voltage)
	p.SetData(payload[:])
	c.handlePacketLocked(p)
}

// sendErrorLocked builds an error RESPONSE (res=1, size=0) referencing
// errPID and submits it via the buffer manager.
func (c *Core) sendErrorLocked(ttl, errPID uint8, errDst uint16) {
	p := c.buildHeaderLocked(ttl, PacketResponse, errDst, true)
	p.RequestPID = errPID
	c.handlePacketLocked(p)
}

// handlePacketLocked classifies a packet — already decoded, whether
// inbound-forwarded or locally originated — into the correct outbound
// queue, or discards it per §4.6. A packet whose src is this node is locally
// originated and goes to the command or response queue by type, whatever
// its dest; any other packet not addressed to this node is flooded onward
// via the retransmit queue. Every enqueue copies the packet by value.
func (c *Core) handlePacketLocked(p Packet) {
	deviceID := c.identity.DeviceID()

	switch {
	case p.Src == deviceID:
		switch p.Type {
		case PacketCommand:
			if !c.commandQ.push(p) {
				c.drop(ErrQueueFull, "command queue full", "pid", p.PID)
			}
		case PacketResponse, PacketData, PacketAck:
			if !c.responseQ.push(p) {
				c.drop(ErrQueueFull, "response queue full", "pid", p.PID)
			}
		default:
			c.drop(ErrMalformed, "unroutable locally originated packet", "type", p.Type)
		}

	case p.Dest != deviceID:
		if !c.retransmitQ.push(p) {
			c.drop(ErrQueueFull, "retransmit queue full", "pid", p.PID)
		} else if c.metrics != nil {
			c.metrics.RecordPacketForwarded()
		}

	default:
		// Final destination; the application layer already has the device
		// action emitted during ingress. Nothing further to queue.
	}
}
