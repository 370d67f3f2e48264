// Package metrics exposes Prometheus instrumentation for the serial
// multiplexer: per-connection byte counters, subscriber gauges, and lag
// accounting. Collectors are registered on the default registry so any
// package can record without plumbing a registry handle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webmux_serial_bytes_received_total",
		Help: "Total bytes read from the serial device, per connection.",
	}, []string{"connection"})

	bytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webmux_serial_bytes_sent_total",
		Help: "Total bytes written to the serial device, per connection.",
	}, []string{"connection"})

	subscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webmux_serial_subscribers",
		Help: "Number of broadcast subscribers currently attached, per connection.",
	}, []string{"connection"})

	droppedBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webmux_serial_dropped_blocks_total",
		Help: "Byte blocks dropped because a subscriber lagged, per connection.",
	}, []string{"connection"})

	connected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webmux_serial_connected",
		Help: "1 while the connection's device is open and readable, 0 after it disconnects.",
	}, []string{"connection"})
)

// AddBytesReceived records n bytes read from a connection's device.
func AddBytesReceived(connection string, n int) {
	bytesReceived.WithLabelValues(connection).Add(float64(n))
}

// AddBytesSent records n bytes written to a connection's device.
func AddBytesSent(connection string, n int) {
	bytesSent.WithLabelValues(connection).Add(float64(n))
}

// SubscriberAttached increments the subscriber gauge for a connection.
func SubscriberAttached(connection string) {
	subscribers.WithLabelValues(connection).Inc()
}

// SubscriberDetached decrements the subscriber gauge for a connection.
func SubscriberDetached(connection string) {
	subscribers.WithLabelValues(connection).Dec()
}

// AddDroppedBlocks records blocks lost to a lagging subscriber.
func AddDroppedBlocks(connection string, n uint64) {
	droppedBlocks.WithLabelValues(connection).Add(float64(n))
}

// SetConnected records the device-connected state for a connection.
func SetConnected(connection string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	connected.WithLabelValues(connection).Set(v)
}

// Reset removes a connection's series after its session is destroyed.
func Reset(connection string) {
	labels := prometheus.Labels{"connection": connection}
	bytesReceived.DeletePartialMatch(labels)
	bytesSent.DeletePartialMatch(labels)
	subscribers.DeletePartialMatch(labels)
	droppedBlocks.DeletePartialMatch(labels)
	connected.DeletePartialMatch(labels)
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
