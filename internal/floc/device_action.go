package floc

// DeviceAction is the core's single output per accepted inbound packet,
// describing what the application should do next. It is valid only until
// the next ingress call completes; callers that need to retain it must
// copy Data themselves (it aliases the packet's own payload array for the
// duration of the call).
type DeviceAction struct {
	SrcAddr     uint16
	LastHop     uint16
	FlocType    PacketType
	CommandType uint8
	DataSize    uint8
	Data        []byte
	// Error is set for RESPONSE device actions carrying res=1.
	Error bool
}

// deviceActionFor builds a DeviceAction from an already-classified inbound
// packet. Call sites decide per §4.4 which packet types produce one.
func deviceActionFor(p *Packet) DeviceAction {
	return DeviceAction{
		SrcAddr:     p.Src,
		LastHop:     p.LastHop,
		FlocType:    p.Type,
		CommandType: p.CommandType,
		DataSize:    p.PayloadLen,
		Data:        p.Data(),
		Error:       p.Res == 1,
	}
}
