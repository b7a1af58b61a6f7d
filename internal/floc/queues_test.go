package floc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFORespectsCapacity(t *testing.T) {
	q := newFIFO(MaxSendBuffer)
	for i := 0; i < MaxSendBuffer; i++ {
		require.True(t, q.push(Packet{PID: uint8(i)}))
	}
	assert.False(t, q.push(Packet{PID: 99}))
	assert.Equal(t, MaxSendBuffer, q.len())
}

func TestFIFOPopOrdersFIFO(t *testing.T) {
	q := newFIFO(MaxSendBuffer)
	q.push(Packet{PID: 1})
	q.push(Packet{PID: 2})

	first, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, uint8(1), first.PID)

	second, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, uint8(2), second.PID)

	_, ok = q.pop()
	assert.False(t, ok)
}

func TestFIFORemoveByPID(t *testing.T) {
	q := newFIFO(MaxSendBuffer)
	q.push(Packet{PID: 1})
	q.push(Packet{PID: 2})
	q.push(Packet{PID: 3})

	assert.True(t, q.removeByPID(2))
	assert.False(t, q.removeByPID(2))
	assert.Equal(t, 2, q.len())

	first, _ := q.pop()
	second, _ := q.pop()
	assert.Equal(t, uint8(1), first.PID)
	assert.Equal(t, uint8(3), second.PID)
}

func TestPingRosterActiveRequiresFirstSlot(t *testing.T) {
	var r pingRoster
	assert.False(t, r.active())
	r.slots[0].DeviceID = 5
	assert.True(t, r.active())
}

func TestPingRosterReset(t *testing.T) {
	var r pingRoster
	r.slots[0] = pingSlot{DeviceID: 5, PingCount: 3}
	r.cursor = 2
	r.reset()
	assert.False(t, r.active())
	assert.Equal(t, 0, r.cursor)
}
