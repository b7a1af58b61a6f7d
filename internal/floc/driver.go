package floc

import "context"

// Driver is the opaque physical modem transport FLOC drives. broadcast and
// ping may block for the modem's frame time; Tick tolerates this because
// the tick rate is already bounded by modem throughput.
type Driver interface {
	// Broadcast enqueues a frame for over-the-air transmission.
	Broadcast(ctx context.Context, frame []byte) error
	// Ping issues a ranging ping to the given modem address.
	Ping(ctx context.Context, modemID uint32) error
	// QueryStatus asynchronously triggers the driver to report status later;
	// depending on the driver, the result reaches the core either through a
	// direct Core.SendStatus call or through ReceiveFrame as a received frame.
	QueryStatus(ctx context.Context) error
	// ModemIDFrom performs the driver's static address translation from a
	// FLOC device/network id pair to the modem's own addressing scheme.
	ModemIDFrom(deviceID, networkID uint16) uint32
}
