package metrics_test

import (
	"testing"

	"github.com/abyssnet/flochub/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// NewMetrics registers its collectors with the default Prometheus registry,
// so every test in this package shares one instance rather than each
// constructing its own (which would panic on duplicate registration).
var sharedMetrics = metrics.NewMetrics()

func TestRecordPacketReceived(t *testing.T) {
	sharedMetrics.RecordPacketReceived("data")
	require.GreaterOrEqual(t, testutil.ToFloat64(sharedMetrics.PacketsReceivedTotal.WithLabelValues("data")), float64(1))
}

func TestRecordPacketDropped(t *testing.T) {
	sharedMetrics.RecordPacketDropped("bloom_duplicate")
	require.GreaterOrEqual(t, testutil.ToFloat64(sharedMetrics.PacketsDroppedTotal.WithLabelValues("bloom_duplicate")), float64(1))
}

func TestRecordDispatchBranch(t *testing.T) {
	sharedMetrics.RecordDispatchBranch("retransmit")
	require.GreaterOrEqual(t, testutil.ToFloat64(sharedMetrics.DispatchBranchTotal.WithLabelValues("retransmit")), float64(1))
}

func TestSetQueueDepth(t *testing.T) {
	sharedMetrics.SetQueueDepth("command", 3)
	require.Equal(t, float64(3), testutil.ToFloat64(sharedMetrics.QueueDepth.WithLabelValues("command")))
}

func TestRecordTickDoesNotPanic(t *testing.T) {
	sharedMetrics.RecordTick(0.01)
}
