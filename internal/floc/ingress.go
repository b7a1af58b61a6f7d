package floc

// ingressLocked runs the seven-step ingress pipeline from a raw frame. The
// caller must hold c.mu. It returns the device action produced, if any, and
// whether one was produced at all.
//
// Failure at any step is logged and the frame dropped; per §4.4 a failure
// after the duplicate check must never un-record the fingerprint — a
// malformed flood is suppressed on retry intentionally.
func (c *Core) ingressLocked(buf []byte) (DeviceAction, bool) {
	// 1. Length floor.
	if len(buf) < HeaderSize {
		c.drop(ErrMalformed, "frame shorter than header", "len", len(buf))
		return DeviceAction{}, false
	}

	// 2. Decode common header (and, for DATA/COMMAND/RESPONSE, the
	// type-specific sub-header/payload in the same pass).
	p, err := Decode(buf)
	if err != nil {
		c.drop(err, "decode failed")
		return DeviceAction{}, false
	}
	if c.metrics != nil {
		c.metrics.RecordPacketReceived(p.Type.String())
	}

	// 3. Duplicate check.
	fp := fingerprint{pid: p.PID, dest: p.Dest, src: p.Src}
	if c.bloom.contains(fp) {
		c.drop(ErrDuplicate, "duplicate fingerprint", "pid", p.PID)
		return DeviceAction{}, false
	}
	c.bloom.maybeReset()
	c.bloom.insert(fp)

	// 4. Network filter.
	if p.NID != c.identity.NetworkID() {
		c.drop(ErrWrongNetwork, "nid mismatch", "nid", p.NID)
		return DeviceAction{}, false
	}

	// 5. Self-echo filter.
	if p.Src == c.identity.DeviceID() {
		c.drop(ErrSelfEcho, "src is self", "src", p.Src)
		return DeviceAction{}, false
	}

	// 6. Type dispatch.
	action, hasAction := c.classifyLocked(&p)

	// 7. Forward-vs-consume: hand the whole packet, as received (before any
	// ttl decrement), to the buffer manager.
	c.handlePacketLocked(p)

	return action, hasAction
}

func (c *Core) classifyLocked(p *Packet) (DeviceAction, bool) {
	switch p.Type {
	case PacketData:
		return deviceActionFor(p), true

	case PacketCommand:
		if !c.recognized(p.CommandType) {
			c.logger.Warn("floc: unrecognized command type", "command_type", p.CommandType, "error", ErrUnknownCommand)
			return DeviceAction{}, false
		}
		c.sendAckLocked(TTLStart, p.PID, p.Src)
		return deviceActionFor(p), true

	case PacketAck:
		c.removeByPIDLocked(p.AckPID)
		if c.metrics != nil {
			c.metrics.RecordPacketDropped("ack_consumed")
		}
		return DeviceAction{}, false

	case PacketResponse:
		return deviceActionFor(p), true

	default:
		c.drop(ErrMalformed, "unrecognized packet type in classify", "type", p.Type)
		return DeviceAction{}, false
	}
}

// drop logs and counts a dropped frame or exhausted resource. The log level
// reflects how routine the cause is: duplicates and self-echoes are the
// expected cost of flooding and logged at Debug; malformed, off-network, and
// backpressure drops are Warn since they may indicate a misbehaving peer or
// an undersized queue; exhausted retries is Error since it means a command
// never reached its destination.
func (c *Core) drop(err error, msg string, args ...any) {
	if c.metrics != nil {
		c.metrics.RecordPacketDropped(errReason(err))
	}
	args = append(args, "error", err)
	switch err {
	case ErrDuplicate, ErrSelfEcho:
		c.logger.Debug("floc: "+msg, args...)
	case ErrMaxRetriesExceeded:
		c.logger.Error("floc: "+msg, args...)
	default:
		c.logger.Warn("floc: "+msg, args...)
	}
}

func errReason(err error) string {
	switch err {
	case ErrMalformed:
		return "malformed"
	case ErrWrongNetwork:
		return "wrong_network"
	case ErrSelfEcho:
		return "self_echo"
	case ErrDuplicate:
		return "duplicate"
	default:
		return "other"
	}
}
