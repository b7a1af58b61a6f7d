// Package metrics exposes Prometheus instrumentation for a flochub node:
// packet ingress/egress counters, queue depths, retry exhaustion, ranging
// ping activity, and dispatch branch selection. The floc core is given a
// *Metrics at construction and calls into it directly from the tick loop;
// there is no global registry lookup on the hot path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector a flochub node registers.
type Metrics struct {
	PacketsReceivedTotal   *prometheus.CounterVec
	PacketsDroppedTotal    *prometheus.CounterVec
	PacketsForwardedTotal  prometheus.Counter
	DuplicatePacketsTotal  prometheus.Counter
	DispatchBranchTotal    *prometheus.CounterVec
	QueueDepth             *prometheus.GaugeVec
	RetransmissionsTotal   prometheus.Counter
	TransmissionsExhausted prometheus.Counter
	RangingPingsSent       prometheus.Counter
	RangingRepliesReceived prometheus.Counter
	TickDuration           prometheus.Histogram
	AuditWriteFailures     prometheus.Counter
}

// NewMetrics builds and registers a fresh collector set. Call once per
// process; a node never constructs more than one floc core.
func NewMetrics() *Metrics {
	m := &Metrics{
		PacketsReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "floc_packets_received_total",
			Help: "Packets received from the modem driver, by packet type.",
		}, []string{"type"}),
		PacketsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "floc_packets_dropped_total",
			Help: "Packets dropped during ingress, by reason.",
		}, []string{"reason"}),
		PacketsForwardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_packets_forwarded_total",
			Help: "Packets re-queued for forwarding toward another hop.",
		}),
		DuplicatePacketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_duplicate_packets_total",
			Help: "Packets suppressed by the bloom filter as already-seen.",
		}),
		DispatchBranchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "floc_dispatch_branch_total",
			Help: "Dispatch cycles, by the priority branch that fired.",
		}, []string{"branch"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floc_queue_depth",
			Help: "Current depth of each outbound priority queue.",
		}, []string{"queue"}),
		RetransmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_retransmissions_total",
			Help: "Command retransmissions sent while awaiting an ack.",
		}),
		TransmissionsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_transmissions_exhausted_total",
			Help: "Commands that exhausted their retry budget unacked.",
		}),
		RangingPingsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_ranging_pings_sent_total",
			Help: "Ranging pings sent by the micro-scheduler.",
		}),
		RangingRepliesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_ranging_replies_received_total",
			Help: "Ranging ping replies received.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "floc_tick_duration_seconds",
			Help:    "Wall time spent in a single core Tick call.",
			Buckets: prometheus.DefBuckets,
		}),
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "floc_audit_write_failures_total",
			Help: "Best-effort audit log writes that failed.",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.PacketsReceivedTotal,
		m.PacketsDroppedTotal,
		m.PacketsForwardedTotal,
		m.DuplicatePacketsTotal,
		m.DispatchBranchTotal,
		m.QueueDepth,
		m.RetransmissionsTotal,
		m.TransmissionsExhausted,
		m.RangingPingsSent,
		m.RangingRepliesReceived,
		m.TickDuration,
		m.AuditWriteFailures,
	)
}

// RecordPacketReceived increments the received counter for a packet type.
func (m *Metrics) RecordPacketReceived(packetType string) {
	m.PacketsReceivedTotal.WithLabelValues(packetType).Inc()
}

// RecordPacketDropped increments the dropped counter for a drop reason.
func (m *Metrics) RecordPacketDropped(reason string) {
	m.PacketsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordDispatchBranch increments the counter for the dispatch branch that fired this tick.
func (m *Metrics) RecordDispatchBranch(branch string) {
	m.DispatchBranchTotal.WithLabelValues(branch).Inc()
}

// SetQueueDepth sets the current depth gauge for a named outbound queue.
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordTick observes the duration of a single Tick call.
func (m *Metrics) RecordTick(seconds float64) {
	m.TickDuration.Observe(seconds)
}

// RecordPacketForwarded increments the forwarded counter.
func (m *Metrics) RecordPacketForwarded() {
	m.PacketsForwardedTotal.Inc()
}

// RecordDuplicate increments the bloom-suppressed duplicate counter.
func (m *Metrics) RecordDuplicate() {
	m.DuplicatePacketsTotal.Inc()
}

// RecordRetransmission increments the command retransmission counter.
func (m *Metrics) RecordRetransmission() {
	m.RetransmissionsTotal.Inc()
}

// RecordTransmissionExhausted increments the retry-budget-exhausted counter.
func (m *Metrics) RecordTransmissionExhausted() {
	m.TransmissionsExhausted.Inc()
}

// RecordRangingPingSent increments the ranging ping counter.
func (m *Metrics) RecordRangingPingSent() {
	m.RangingPingsSent.Inc()
}

// RecordRangingReplyReceived increments the ranging reply counter.
func (m *Metrics) RecordRangingReplyReceived() {
	m.RangingRepliesReceived.Inc()
}

// RecordAuditWriteFailure increments the best-effort audit write failure counter.
func (m *Metrics) RecordAuditWriteFailure() {
	m.AuditWriteFailures.Inc()
}
