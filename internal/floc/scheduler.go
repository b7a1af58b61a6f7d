package floc

import "context"

// dispatchLocked performs exactly one scheduler action per call, in strict
// priority order: ranging ping, retransmit, response, command. The caller
// must hold c.mu.
func (c *Core) dispatchLocked(ctx context.Context) error {
	if c.roster.active() {
		return c.advancePingLocked(ctx)
	}

	if p, ok := c.retransmitQ.peek(); ok {
		return c.dispatchRetransmitLocked(ctx, p)
	}

	if p, ok := c.responseQ.pop(); ok {
		return c.dispatchBroadcastLocked(ctx, &p, "response")
	}

	if p, ok := c.commandQ.peek(); ok {
		return c.dispatchCommandLocked(ctx, p)
	}

	c.recordBranch("idle")
	return nil
}

func (c *Core) dispatchRetransmitLocked(ctx context.Context, p Packet) error {
	c.retransmitQ.pop()
	if p.TTL <= 1 {
		c.drop(ErrTTLExhausted, "ttl exhausted on retransmit", "pid", p.PID)
		c.recordBranch("retransmit")
		return nil
	}
	p.TTL--
	p.LastHop = c.identity.DeviceID()
	return c.dispatchBroadcastLocked(ctx, &p, "retransmit")
}

func (c *Core) dispatchCommandLocked(ctx context.Context, p Packet) error {
	count, tracked := c.txCount[p.PID]
	if !tracked {
		c.txCount[p.PID] = 0
		count = 0
	}

	if count >= MaxTransmissions {
		c.commandQ.pop()
		delete(c.txCount, p.PID)
		c.drop(ErrMaxRetriesExceeded, "command retries exhausted", "pid", p.PID)
		if c.metrics != nil {
			c.metrics.RecordTransmissionExhausted()
		}
		c.sendErrorLocked(1, p.PID, p.Src)
		if c.audit != nil {
			c.audit.RecordDeviceAction(DeviceAction{
				SrcAddr:     p.Src,
				LastHop:     p.LastHop,
				FlocType:    PacketCommand,
				CommandType: p.CommandType,
				Error:       true,
			})
		}
		c.recordBranch("command_exhausted")
		return nil
	}

	c.txCount[p.PID] = count + 1
	if c.metrics != nil {
		c.metrics.RecordRetransmission()
	}
	return c.dispatchBroadcastLocked(ctx, &p, "command")
}

func (c *Core) dispatchBroadcastLocked(ctx context.Context, p *Packet, branch string) error {
	var frame [MaxFrameSize]byte
	n, err := Encode(p, frame[:])
	if err != nil {
		c.drop(err, "encode failed during dispatch", "branch", branch)
		return nil
	}
	c.recordBranch(branch)
	if c.driver == nil {
		return nil
	}
	return c.driver.Broadcast(ctx, frame[:n])
}

func (c *Core) recordBranch(branch string) {
	if c.metrics != nil {
		c.metrics.RecordDispatchBranch(branch)
	}
}

// advancePingLocked advances the ranging ping micro-scheduler by one step.
// For the slot under the cursor: if its ping count is below
// MaxTransmissions, ping it and increment the count; otherwise advance the
// cursor. Once the cursor passes the last slot the roster is zeroed and the
// ping phase ends.
func (c *Core) advancePingLocked(ctx context.Context) error {
	for c.roster.cursor < PingRosterSize {
		slot := &c.roster.slots[c.roster.cursor]
		if slot.DeviceID == 0 {
			c.roster.cursor++
			continue
		}
		if slot.PingCount < MaxTransmissions {
			modemID := c.driver.ModemIDFrom(slot.DeviceID, c.identity.NetworkID())
			slot.PingCount++
			c.recordBranch("ranging_ping")
			if c.metrics != nil {
				c.metrics.RecordRangingPingSent()
			}
			if c.driver == nil {
				return nil
			}
			return c.driver.Ping(ctx, modemID)
		}
		c.roster.cursor++
	}
	c.roster.reset()
	c.recordBranch("ranging_done")
	return nil
}

// SetPingRoster loads up to PingRosterSize device ids into the ranging
// roster and resets the cursor, starting a new ping round on the next Tick.
func (c *Core) SetPingRoster(deviceIDs ...uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roster.reset()
	for i, id := range deviceIDs {
		if i >= PingRosterSize {
			break
		}
		c.roster.slots[i].DeviceID = id
	}
}
