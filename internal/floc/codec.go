package floc

import "fmt"

// Encode serializes p into dst, which must be at least MaxFrameSize long,
// and returns the actual number of bytes written — header plus sub-header
// plus the payload actually present, never the maximum.
func Encode(p *Packet, dst []byte) (int, error) {
	n := p.ActualSize()
	if len(dst) < n {
		return 0, fmt.Errorf("%w: destination buffer too small for %d bytes", ErrMalformed, n)
	}

	dst[0] = (p.TTL << 4) | (uint8(p.Type) & 0x0F)
	dst[1] = byte(p.NID >> 8)
	dst[2] = byte(p.NID)
	dst[3] = (p.Res << 6) | (p.PID & 0x3F)
	dst[4] = byte(p.Dest >> 8)
	dst[5] = byte(p.Dest)
	dst[6] = byte(p.Src >> 8)
	dst[7] = byte(p.Src)
	dst[8] = byte(p.LastHop >> 8)
	dst[9] = byte(p.LastHop)

	switch p.Type {
	case PacketData:
		dst[10] = p.PayloadLen
		copy(dst[11:], p.Payload[:p.PayloadLen])
	case PacketCommand:
		dst[10] = p.CommandType
		dst[11] = p.PayloadLen
		copy(dst[12:], p.Payload[:p.PayloadLen])
	case PacketAck:
		dst[10] = p.AckPID
	case PacketResponse:
		dst[10] = p.RequestPID
		dst[11] = p.PayloadLen
		copy(dst[12:], p.Payload[:p.PayloadLen])
	default:
		return 0, fmt.Errorf("%w: unknown packet type %d", ErrMalformed, p.Type)
	}

	return n, nil
}

// Decode parses buf into a Packet. It never allocates beyond the returned
// value itself: payload bytes are copied into the packet's fixed array, not
// referenced. Decode fails with ErrMalformed if buf is shorter than the
// header plus sub-header for the declared type, or shorter than that plus
// the declared size.
func Decode(buf []byte) (Packet, error) {
	var p Packet
	if len(buf) < HeaderSize {
		return p, fmt.Errorf("%w: frame shorter than header", ErrMalformed)
	}

	p.TTL = buf[0] >> 4
	p.Type = PacketType(buf[0] & 0x0F)
	p.NID = uint16(buf[1])<<8 | uint16(buf[2])
	p.Res = buf[3] >> 6
	p.PID = buf[3] & 0x3F
	p.Dest = uint16(buf[4])<<8 | uint16(buf[5])
	p.Src = uint16(buf[6])<<8 | uint16(buf[7])
	p.LastHop = uint16(buf[8])<<8 | uint16(buf[9])

	switch p.Type {
	case PacketData:
		if len(buf) < HeaderSize+1 {
			return Packet{}, fmt.Errorf("%w: DATA frame missing sub-header", ErrMalformed)
		}
		size := buf[10]
		if len(buf) < HeaderSize+1+int(size) {
			return Packet{}, fmt.Errorf("%w: DATA frame shorter than declared size", ErrMalformed)
		}
		p.SetData(buf[11 : 11+int(size)])
	case PacketCommand:
		if len(buf) < HeaderSize+2 {
			return Packet{}, fmt.Errorf("%w: COMMAND frame missing sub-header", ErrMalformed)
		}
		p.CommandType = buf[10]
		size := buf[11]
		if len(buf) < HeaderSize+2+int(size) {
			return Packet{}, fmt.Errorf("%w: COMMAND frame shorter than declared size", ErrMalformed)
		}
		p.SetData(buf[12 : 12+int(size)])
	case PacketAck:
		if len(buf) < HeaderSize+1 {
			return Packet{}, fmt.Errorf("%w: ACK frame missing sub-header", ErrMalformed)
		}
		p.AckPID = buf[10]
	case PacketResponse:
		if len(buf) < HeaderSize+2 {
			return Packet{}, fmt.Errorf("%w: RESPONSE frame missing sub-header", ErrMalformed)
		}
		p.RequestPID = buf[10]
		size := buf[11]
		if len(buf) < HeaderSize+2+int(size) {
			return Packet{}, fmt.Errorf("%w: RESPONSE frame shorter than declared size", ErrMalformed)
		}
		p.SetData(buf[12 : 12+int(size)])
	default:
		return Packet{}, fmt.Errorf("%w: unrecognized type %d", ErrMalformed, p.Type)
	}

	return p, nil
}
