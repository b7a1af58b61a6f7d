package floc

// maxPayload is the largest inline payload any type-specific sub-header
// allows while keeping the whole frame within MaxFrameSize: header (10) plus
// the widest sub-header (2 bytes, COMMAND/RESPONSE) leaves 52 bytes.
const maxPayload = MaxFrameSize - HeaderSize - 2

// Packet is a fully decoded FLOC frame, held by value everywhere it is
// queued. There is no aliasing with the driver's receive buffer: Decode
// copies payload bytes into the fixed array below.
type Packet struct {
	TTL     uint8
	Type    PacketType
	NID     uint16
	Res     uint8
	PID     uint8
	Dest    uint16
	Src     uint16
	LastHop uint16

	// CommandType is populated for Type == PacketCommand.
	CommandType uint8
	// AckPID is populated for Type == PacketAck.
	AckPID uint8
	// RequestPID is populated for Type == PacketResponse.
	RequestPID uint8

	PayloadLen uint8
	Payload    [maxPayload]byte
}

// Data returns the payload as a slice view into the packet's own array.
func (p *Packet) Data() []byte {
	return p.Payload[:p.PayloadLen]
}

// SetData copies src into the packet's payload array, truncating silently
// if src is longer than the frame budget allows for this packet's type.
func (p *Packet) SetData(src []byte) {
	limit := maxPayload
	if len(src) < limit {
		limit = len(src)
	}
	p.PayloadLen = uint8(limit)
	copy(p.Payload[:limit], src)
}

// ActualSize returns the true wire length of the packet: header, the
// type-specific sub-header, and only the payload bytes actually present —
// never the maximum frame size.
func (p *Packet) ActualSize() int {
	switch p.Type {
	case PacketData:
		return HeaderSize + 1 + int(p.PayloadLen)
	case PacketCommand:
		return HeaderSize + 2 + int(p.PayloadLen)
	case PacketAck:
		return HeaderSize + 1
	case PacketResponse:
		return HeaderSize + 2 + int(p.PayloadLen)
	default:
		return HeaderSize
	}
}

// Equal reports whether two packets carry identical header fields,
// type-specific fields, and payload bytes.
func (p Packet) Equal(o Packet) bool {
	if p.TTL != o.TTL || p.Type != o.Type || p.NID != o.NID || p.Res != o.Res ||
		p.PID != o.PID || p.Dest != o.Dest || p.Src != o.Src || p.LastHop != o.LastHop {
		return false
	}
	switch p.Type {
	case PacketCommand:
		if p.CommandType != o.CommandType {
			return false
		}
	case PacketAck:
		if p.AckPID != o.AckPID {
			return false
		}
	case PacketResponse:
		if p.RequestPID != o.RequestPID {
			return false
		}
	}
	if p.PayloadLen != o.PayloadLen {
		return false
	}
	for i := 0; i < int(p.PayloadLen); i++ {
		if p.Payload[i] != o.Payload[i] {
			return false
		}
	}
	return true
}

// fingerprint is the (pid, dest, src) triple the duplicate filter hashes.
// It deliberately excludes ttl and last_hop_addr so retransmissions of the
// same original packet dedup correctly regardless of hop.
type fingerprint struct {
	pid  uint8
	dest uint16
	src  uint16
}
