package floc

import (
	"context"
	"log/slog"
	"testing"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver records every frame handed to Broadcast and Ping for
// assertion, and never blocks.
type fakeDriver struct {
	broadcasts [][]byte
	pings      []uint32
}

func (d *fakeDriver) Broadcast(_ context.Context, frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	d.broadcasts = append(d.broadcasts, cp)
	return nil
}

func (d *fakeDriver) Ping(_ context.Context, modemID uint32) error {
	d.pings = append(d.pings, modemID)
	return nil
}

func (d *fakeDriver) QueryStatus(context.Context) error { return nil }

func (d *fakeDriver) ModemIDFrom(deviceID, networkID uint16) uint32 {
	return uint32(networkID)<<16 | uint32(deviceID)
}

func newTestCore(t *testing.T, driver Driver, recognized recognizedCommands) *Core {
	t.Helper()
	cfg := &config.Config{}
	cfg.Identity.NetworkID = 1
	cfg.Identity.DeviceID = 2
	return NewCore(cfg, driver, nil, slog.Default(), recognized, nil)
}

func recognizeAll(uint8) bool { return true }

// Scenario 1: broadcast COMMAND, ack returned.
func TestScenarioBroadcastCommandAckReturned(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	frame := []byte{0x30, 0x00, 0x01, 0x05, 0x00, 0x02, 0x00, 0x03, 0x00, 0x03, 0x01, 0x00}
	core.ReceiveFrame(frame)

	actions, err := core.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, PacketCommand, actions[0].FlocType)
	assert.Equal(t, uint8(1), actions[0].CommandType)

	require.Len(t, driver.broadcasts, 1)
	ack, err := Decode(driver.broadcasts[0])
	require.NoError(t, err)
	assert.Equal(t, PacketAck, ack.Type)
	assert.Equal(t, uint16(1), ack.NID)
	assert.Equal(t, uint16(3), ack.Dest)
	assert.Equal(t, uint16(2), ack.Src)
	assert.Equal(t, uint8(5), ack.AckPID)
}

// Scenario 2: duplicate suppression.
func TestScenarioDuplicateSuppression(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	frame := []byte{0x30, 0x00, 0x01, 0x05, 0x00, 0x02, 0x00, 0x03, 0x00, 0x03, 0x01, 0x00}
	core.ReceiveFrame(frame)
	actions, err := core.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)

	core.ReceiveFrame(frame)
	actions, err = core.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions)
}

// Scenario 3: wrong network.
func TestScenarioWrongNetworkDropped(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	p := Packet{TTL: 3, Type: PacketData, NID: 0x0002, PID: 1, Dest: 2, Src: 3, LastHop: 3}
	var buf [MaxFrameSize]byte
	n, err := Encode(&p, buf[:])
	require.NoError(t, err)

	core.ReceiveFrame(buf[:n])
	actions, err := core.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.Empty(t, driver.broadcasts)
}

// Scenario 4: retransmit.
func TestScenarioRetransmit(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	p := Packet{TTL: 3, Type: PacketData, NID: 1, PID: 1, Dest: 0x0009, Src: 3, LastHop: 3}
	p.SetData([]byte("x"))
	var buf [MaxFrameSize]byte
	n, err := Encode(&p, buf[:])
	require.NoError(t, err)

	core.ReceiveFrame(buf[:n])
	_, err = core.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, driver.broadcasts, 1)

	forwarded, err := Decode(driver.broadcasts[0])
	require.NoError(t, err)
	assert.Equal(t, uint8(2), forwarded.TTL)
	assert.Equal(t, uint16(2), forwarded.LastHop)

	_, err = core.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, driver.broadcasts, 1)
}

// Scenario 5: command retry exhaustion.
func TestScenarioCommandRetryExhaustion(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	core.mu.Lock()
	p := core.buildHeaderLocked(TTLStart, PacketCommand, 3, false)
	p.PID = 7
	p.CommandType = 1
	core.handlePacketLocked(p)
	core.mu.Unlock()

	for i := 0; i < MaxTransmissions; i++ {
		_, err := core.Tick(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, driver.broadcasts, MaxTransmissions)
	for _, frame := range driver.broadcasts {
		got, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, uint8(7), got.PID)
	}

	_, err := core.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, driver.broadcasts, MaxTransmissions)

	core.mu.Lock()
	_, tracked := core.txCount[7]
	core.mu.Unlock()
	assert.False(t, tracked)
}

// Scenario 6: ping phase exhausts each slot before advancing (Open Question
// #1 resolved: ping a slot to exhaustion, then move on).
func TestScenarioPingPhaseExhaustsSlotsInOrder(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)
	core.SetPingRoster(11, 12)

	for i := 0; i < MaxTransmissions; i++ {
		_, err := core.Tick(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, driver.pings, MaxTransmissions)
	for _, id := range driver.pings {
		assert.Equal(t, core.driver.ModemIDFrom(11, 1), id)
	}

	for i := 0; i < MaxTransmissions; i++ {
		_, err := core.Tick(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, driver.pings, 2*MaxTransmissions)
	for _, id := range driver.pings[MaxTransmissions:] {
		assert.Equal(t, core.driver.ModemIDFrom(12, 1), id)
	}

	// The next dispatch moves the cursor past the empty third slot, which
	// zeroes the roster.
	_, err := core.Tick(context.Background())
	require.NoError(t, err)

	core.mu.Lock()
	active := core.roster.active()
	core.mu.Unlock()
	assert.False(t, active)
}

func TestAckCancelsOutstandingCommand(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	core.mu.Lock()
	p := core.buildHeaderLocked(TTLStart, PacketCommand, 3, false)
	p.PID = 9
	p.CommandType = 1
	core.handlePacketLocked(p)
	core.mu.Unlock()

	_, err := core.Tick(context.Background())
	require.NoError(t, err)

	ack := Packet{TTL: 1, Type: PacketAck, NID: 1, PID: 0, Dest: 2, Src: 3, LastHop: 3, AckPID: 9}
	var buf [MaxFrameSize]byte
	n, encErr := Encode(&ack, buf[:])
	require.NoError(t, encErr)
	core.ReceiveFrame(buf[:n])

	_, err = core.Tick(context.Background())
	require.NoError(t, err)

	core.mu.Lock()
	_, tracked := core.txCount[9]
	_, found := core.commandQ.peek()
	core.mu.Unlock()
	assert.False(t, tracked)
	if found {
		t.Fatal("command_q should be empty after ack cancellation")
	}
}

func TestUnrecognizedCommandTypeProducesNoAckOrAction(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, func(uint8) bool { return false })

	frame := []byte{0x30, 0x00, 0x01, 0x05, 0x00, 0x02, 0x00, 0x03, 0x00, 0x03, 0x01, 0x00}
	core.ReceiveFrame(frame)

	actions, err := core.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.Empty(t, driver.broadcasts)
}

func TestSelfEchoDropped(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	p := Packet{TTL: 3, Type: PacketData, NID: 1, PID: 1, Dest: 3, Src: 2, LastHop: 3}
	var buf [MaxFrameSize]byte
	n, err := Encode(&p, buf[:])
	require.NoError(t, err)

	core.ReceiveFrame(buf[:n])
	actions, err := core.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestQueueCapDropsOverflowSilently(t *testing.T) {
	driver := &fakeDriver{}
	core := newTestCore(t, driver, recognizeAll)

	core.mu.Lock()
	for i := 0; i < MaxSendBuffer+2; i++ {
		p := Packet{TTL: 3, Type: PacketData, NID: 1, PID: uint8(i), Dest: 9, Src: 3, LastHop: 3}
		core.handlePacketLocked(p)
	}
	depth := core.retransmitQ.len()
	core.mu.Unlock()

	assert.Equal(t, MaxSendBuffer, depth)
}
