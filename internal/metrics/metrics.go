// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label of CaptureFramesDropped.
const (
	DropDecode    = "decode"
	DropFilter    = "filter"
	DropUndefined = "undefined"
	DropChannel   = "channel"
)

var (
	// CaptureFramesReceived counts frames read from the capture source
	CaptureFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xsocket_capture_frames_received_total",
			Help: "Total number of frames read from the capture source",
		},
		[]string{"interface"},
	)

	// CaptureFramesPublished counts frames handed to the consumer channel
	CaptureFramesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xsocket_capture_frames_published_total",
			Help: "Total number of frames published to consumers",
		},
		[]string{"interface"},
	)

	// CaptureFramesDropped counts frames discarded by the listener
	CaptureFramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xsocket_capture_frames_dropped_total",
			Help: "Total number of frames discarded by the listener",
		},
		[]string{"interface", "reason"},
	)

	// CaptureFramesStored tracks frames held in the in-memory store
	CaptureFramesStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xsocket_capture_frames_stored",
			Help: "Number of frames retained in the listener store",
		},
		[]string{"interface"},
	)

	// CaptureKernelDrops tracks drops reported by the kernel ring
	CaptureKernelDrops = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xsocket_capture_kernel_drops",
			Help: "Packets dropped by the kernel before reaching the listener",
		},
		[]string{"interface"},
	)

	// SocketBytesSent counts bytes written to datalink sockets
	SocketBytesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xsocket_socket_bytes_sent_total",
			Help: "Total number of bytes written to datalink sockets",
		},
		[]string{"interface"},
	)

	// SocketFramesSent counts frames written to datalink sockets
	SocketFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xsocket_socket_frames_sent_total",
			Help: "Total number of frames written to datalink sockets",
		},
		[]string{"interface"},
	)
)
