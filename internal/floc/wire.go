// Package floc implements the FLOC flooding link layer: packet framing,
// duplicate suppression, a three-priority outbound scheduler with bounded
// retries, and a ranging ping micro-scheduler, all owned by a single Core
// mutated under one mutex. The package has no knowledge of the physical
// modem; it talks to one through the Driver interface.
package floc

import "time"

// PacketType is the 4-bit type field of the common header.
type PacketType uint8

const (
	// PacketData carries an application payload with no reply expected.
	PacketData PacketType = 0
	// PacketCommand carries a command that the recipient should ack.
	PacketCommand PacketType = 1
	// PacketAck acknowledges a previously received command.
	PacketAck PacketType = 2
	// PacketResponse carries a reply to a command, or an error.
	PacketResponse PacketType = 3
)

func (t PacketType) String() string {
	switch t {
	case PacketData:
		return "DATA"
	case PacketCommand:
		return "COMMAND"
	case PacketAck:
		return "ACK"
	case PacketResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

const (
	// HeaderSize is the fixed 10-byte common header length.
	HeaderSize = 10
	// MaxFrameSize is the maximum full frame, header plus sub-header plus payload.
	MaxFrameSize = 64
	// TTLStart is the hop budget assigned to a newly originated packet.
	TTLStart = 3
	// MaxTransmissions bounds both command retries and ranging pings per slot.
	MaxTransmissions = 5
	// MaxSendBuffer is the capacity of each of the three outbound FIFOs.
	MaxSendBuffer = 5
	// BloomReset is the interval at which the duplicate filter is cleared.
	BloomReset = 300 * time.Second
	// PingRosterSize is the number of ranging ping slots tracked per round.
	PingRosterSize = 3
	// BroadcastAddress is the reserved device id meaning "every node".
	BroadcastAddress = 0xFFFF
)
