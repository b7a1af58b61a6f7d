package nest_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/floc"
	"github.com/abyssnet/flochub/internal/floc/nest"
	"github.com/abyssnet/flochub/internal/pubsub"
)

var sharedMetrics = nest.SharedMetrics

func makeTestPubSub(t *testing.T) pubsub.PubSub {
	t.Helper()
	cfg, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	ps, err := pubsub.MakePubSub(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func TestSimDriverInjectsBroadcastEnvelope(t *testing.T) {
	ps := makeTestPubSub(t)
	cfg, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)
	cfg.Identity.NetworkID = 1
	cfg.Identity.DeviceID = 2

	driver := nest.NewSim(ps, "test-nest-in", slog.Default())
	core := floc.NewCore(&cfg, nil, sharedMetrics, slog.Default(), func(uint8) bool { return true }, nil)
	driver.BindCore(core)
	before := testutil.ToFloat64(sharedMetrics.DispatchBranchTotal.WithLabelValues("response"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	// Src=2 is this node's own device id, so the injected DATA packet is
	// locally originated: it routes to the response queue and dispatches on
	// the next Tick.
	p := floc.Packet{TTL: 3, Type: floc.PacketData, NID: 1, PID: 1, Dest: 9, Src: 2, LastHop: 2}
	var buf [floc.MaxFrameSize]byte
	n, err := floc.Encode(&p, buf[:])
	require.NoError(t, err)

	frame := nest.Encode(nest.PrefixHostToDevice, nest.TypeBroadcast, buf[:n])
	require.NoError(t, ps.Publish("test-nest-in", frame))

	require.Eventually(t, func() bool {
		_, err := core.Tick(ctx)
		require.NoError(t, err)
		return testutil.ToFloat64(sharedMetrics.DispatchBranchTotal.WithLabelValues("response")) >= before+1
	}, time.Second, 10*time.Millisecond)
}

func TestSimDriverIgnoresUnicastEnvelope(t *testing.T) {
	ps := makeTestPubSub(t)
	cfg, err := configulator.New[config.Config]().Default()
	require.NoError(t, err)

	driver := nest.NewSim(ps, "test-nest-in", slog.Default())
	core := floc.NewCore(&cfg, nil, nil, slog.Default(), func(uint8) bool { return true }, nil)
	driver.BindCore(core)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go driver.Run(ctx)

	frame := nest.Encode(nest.PrefixHostToDevice, nest.TypeUnicast, []byte{0x00, 0x05, 0x01})
	require.NoError(t, ps.Publish("test-nest-in", frame))

	// Reserved frame type: this must not panic or block the driver loop.
	time.Sleep(50 * time.Millisecond)
}
