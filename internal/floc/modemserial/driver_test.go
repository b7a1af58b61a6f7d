package modemserial

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/floc"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Identity.NetworkID = 1
	cfg.Identity.DeviceID = 2
	return cfg
}

// newTestDriver adapts a net.Pipe half into the io.ReadWriteCloser the driver
// expects, since tarm/serial.Port cannot be constructed without a real
// device node.
func newTestDriver(conn io.ReadWriteCloser) *Driver {
	return &Driver{port: conn, logger: slog.Default()}
}

func TestDriverBroadcastWritesLengthPrefixedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := newTestDriver(client)

	frame := []byte{0x30, 0x00, 0x01, 0x05, 0x00, 0x02, 0x00, 0x03, 0x00, 0x03, 0x01, 0x00}
	go func() {
		require.NoError(t, d.Broadcast(context.Background(), frame))
	}()

	buf := make([]byte, 1+len(frame))
	_, err := io.ReadFull(server, buf)
	require.NoError(t, err)
	require.Equal(t, byte(len(frame)), buf[0])
	require.Equal(t, frame, buf[1:])
}

func TestDriverRunDeliversFramesToCore(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := newTestDriver(client)
	core := floc.NewCore(testConfig(), d, nil, slog.Default(), func(uint8) bool { return true }, nil)
	d.BindCore(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	frame := []byte{0x30, 0x00, 0x01, 0x05, 0x00, 0x02, 0x00, 0x03, 0x00, 0x03, 0x01, 0x00}
	go func() {
		_, _ = server.Write([]byte{byte(len(frame))})
		_, _ = server.Write(frame)
	}()

	require.Eventually(t, func() bool {
		actions, err := core.Tick(ctx)
		require.NoError(t, err)
		return len(actions) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestModemIDFromPacksNetworkAndDevice(t *testing.T) {
	d := &Driver{}
	require.Equal(t, uint32(0x00010002), d.ModemIDFrom(0x0002, 0x0001))
}
