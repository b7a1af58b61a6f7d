package floc

// identity holds the node's network and device addresses plus the
// monotonic packet-id counter. These are the only mutators of node
// identity; re-provisioning (changing network or device id after boot) is
// the caller's responsibility via SetNetworkID/SetDeviceID.
type identity struct {
	networkID uint16
	deviceID  uint16
	nextPID   uint8 // 6-bit counter, wraps mod 64
}

func newIdentity(networkID, deviceID uint16) *identity {
	return &identity{networkID: networkID, deviceID: deviceID}
}

// allocatePID returns the current counter value and post-increments it mod 64.
func (id *identity) allocatePID() uint8 {
	pid := id.nextPID
	id.nextPID = (id.nextPID + 1) & 0x3F
	return pid
}

func (id *identity) NetworkID() uint16 { return id.networkID }
func (id *identity) DeviceID() uint16  { return id.deviceID }

func (id *identity) SetNetworkID(n uint16) { id.networkID = n }
func (id *identity) SetDeviceID(d uint16)  { id.deviceID = d }
