// Package metrics defines Prometheus metrics for the scene stream subsystem.
//
// All metrics are registered with the default registry and served by the
// API server's metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveSubscribers is the number of live scene stream connections.
	ActiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zstory_stream_subscribers",
			Help: "Number of live scene stream connections.",
		},
	)

	// FramesSentTotal counts frames written to stream connections by frame type.
	FramesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zstory_stream_frames_sent_total",
			Help: "Total frames written to stream connections by frame type.",
		},
		[]string{"type"},
	)

	// SubscribersRemovedTotal counts subscriber removals by reason.
	SubscribersRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zstory_stream_subscribers_removed_total",
			Help: "Total stream subscribers removed, by removal reason.",
		},
		[]string{"reason"},
	)

	// ScenesBroadcastTotal counts scene publish operations.
	ScenesBroadcastTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zstory_scenes_broadcast_total",
			Help: "Total scene broadcast operations performed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveSubscribers,
		FramesSentTotal,
		SubscribersRemovedTotal,
		ScenesBroadcastTotal,
	)
}

// RecordSubscriberAdded records one new stream subscriber.
func RecordSubscriberAdded() {
	ActiveSubscribers.Inc()
}

// RecordSubscribersRemoved records removed stream subscribers.
func RecordSubscribersRemoved(count int, reason string) {
	if count <= 0 {
		return
	}
	ActiveSubscribers.Sub(float64(count))
	SubscribersRemovedTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordFrameSent records one frame written to a subscriber.
func RecordFrameSent(frameType string) {
	FramesSentTotal.WithLabelValues(frameType).Inc()
}

// RecordSceneBroadcast records one scene publish operation.
func RecordSceneBroadcast() {
	ScenesBroadcastTotal.Inc()
}
