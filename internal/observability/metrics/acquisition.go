// Package metrics provides custom Prometheus metrics for the components of eegstream.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Session states exported by the session_state gauge
var sessionStates = []string{"idle", "running", "stopping"}

// AcquisitionMetrics contains Prometheus metrics for the producer, consumer
// and sample buffer. It implements acqcore.Metrics.
type AcquisitionMetrics struct {
	BlocksProduced  *prometheus.CounterVec   // by device
	BlocksConsumed  *prometheus.CounterVec   // by processor
	BlocksDropped   *prometheus.CounterVec   // by reason
	DeviceErrors    *prometheus.CounterVec   // by device
	ProcessorErrors *prometheus.CounterVec   // by processor
	ProcessLatency  *prometheus.HistogramVec // processor time per block
	PushWait        prometheus.Histogram
	PopWait         prometheus.Histogram
	BufferSize      prometheus.Gauge
	SessionState    *prometheus.GaugeVec // 1 for the current state
}

// NewAcquisitionMetrics creates and registers the acquisition metrics
func NewAcquisitionMetrics(registry *prometheus.Registry) (*AcquisitionMetrics, error) {
	m := &AcquisitionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register acquisition metrics: %w", err)
	}
	m.SetSessionState("idle")
	return m, nil
}

func (m *AcquisitionMetrics) initMetrics() {
	m.BlocksProduced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eegstream_blocks_produced_total",
		Help: "Total number of sample blocks pushed into the buffer",
	}, []string{"device"})

	m.BlocksConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eegstream_blocks_consumed_total",
		Help: "Total number of sample blocks processed successfully",
	}, []string{"processor"})

	m.BlocksDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eegstream_blocks_dropped_total",
		Help: "Total number of sample blocks dropped before processing",
	}, []string{"reason"})

	m.DeviceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eegstream_device_errors_total",
		Help: "Total number of device open and read failures",
	}, []string{"device"})

	m.ProcessorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eegstream_processor_errors_total",
		Help: "Total number of blocks a processor failed on",
	}, []string{"processor"})

	m.ProcessLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eegstream_process_duration_seconds",
		Help:    "Time spent processing one block",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"processor"})

	m.PushWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eegstream_buffer_push_wait_seconds",
		Help:    "Time a push waited for a free slot",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	m.PopWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eegstream_buffer_pop_wait_seconds",
		Help:    "Time a pop waited for a block",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	m.BufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eegstream_buffer_size",
		Help: "Number of blocks currently queued",
	})

	m.SessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eegstream_session_state",
		Help: "Current acquisition session state (1 for the active state)",
	}, []string{"state"})
}

// ObservePush records a push wait and the resulting occupancy
func (m *AcquisitionMetrics) ObservePush(wait time.Duration, size int) {
	m.PushWait.Observe(wait.Seconds())
	m.BufferSize.Set(float64(size))
}

// ObservePop records a pop wait and the resulting occupancy
func (m *AcquisitionMetrics) ObservePop(wait time.Duration, size int) {
	m.PopWait.Observe(wait.Seconds())
	m.BufferSize.Set(float64(size))
}

// RecordBlockProduced increments the produced counter for a device
func (m *AcquisitionMetrics) RecordBlockProduced(deviceID string) {
	m.BlocksProduced.WithLabelValues(deviceID).Inc()
}

// RecordBlockConsumed increments the consumed counter and records processing time
func (m *AcquisitionMetrics) RecordBlockConsumed(processorID string, duration time.Duration) {
	m.BlocksConsumed.WithLabelValues(processorID).Inc()
	m.ProcessLatency.WithLabelValues(processorID).Observe(duration.Seconds())
}

// RecordBlockDropped increments the dropped counter
func (m *AcquisitionMetrics) RecordBlockDropped(reason string) {
	m.BlocksDropped.WithLabelValues(reason).Inc()
}

// RecordDeviceError increments the device error counter
func (m *AcquisitionMetrics) RecordDeviceError(deviceID string) {
	m.DeviceErrors.WithLabelValues(deviceID).Inc()
}

// RecordProcessorError increments the processor error counter
func (m *AcquisitionMetrics) RecordProcessorError(processorID string) {
	m.ProcessorErrors.WithLabelValues(processorID).Inc()
}

// SetSessionState marks state as the active session state
func (m *AcquisitionMetrics) SetSessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
	if state == "idle" {
		m.BufferSize.Set(0)
	}
}

// Describe implements the prometheus.Collector interface.
func (m *AcquisitionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.BlocksProduced.Describe(ch)
	m.BlocksConsumed.Describe(ch)
	m.BlocksDropped.Describe(ch)
	m.DeviceErrors.Describe(ch)
	m.ProcessorErrors.Describe(ch)
	m.ProcessLatency.Describe(ch)
	m.PushWait.Describe(ch)
	m.PopWait.Describe(ch)
	m.BufferSize.Describe(ch)
	m.SessionState.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AcquisitionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.BlocksProduced.Collect(ch)
	m.BlocksConsumed.Collect(ch)
	m.BlocksDropped.Collect(ch)
	m.DeviceErrors.Collect(ch)
	m.ProcessorErrors.Collect(ch)
	m.ProcessLatency.Collect(ch)
	m.PushWait.Collect(ch)
	m.PopWait.Collect(ch)
	m.BufferSize.Collect(ch)
	m.SessionState.Collect(ch)
}
