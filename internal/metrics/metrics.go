// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "grabticket"

// ─── Grab queue ─────────────────────────────────────────────────────────────

// GrabQueueDepth tracks requests accepted but not yet processed.
var GrabQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "grab",
	Name:      "queue_depth",
	Help:      "Current number of grab requests waiting for the worker.",
})

// GrabsRejected counts submissions refused before enqueue.
var GrabsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "grab",
	Name:      "rejected_total",
	Help:      "Grab submissions refused by the queue, by reason.",
}, []string{"reason"})

// GrabsProcessed counts settled grabs by outcome reason ("success" on success).
var GrabsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "grab",
	Name:      "processed_total",
	Help:      "Grab requests processed by the worker, by outcome.",
}, []string{"outcome"})

// GrabDuration observes time from dequeue to delivered outcome.
var GrabDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "grab",
	Name:      "duration_seconds",
	Help:      "Time spent processing one grab, including broadcast.",
	Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
})

// GrabWait observes time a request spent queued.
var GrabWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "grab",
	Name:      "wait_seconds",
	Help:      "Time between submission and the start of processing.",
	Buckets:   prometheus.ExponentialBuckets(.0005, 2, 14),
})

// ─── Realtime ───────────────────────────────────────────────────────────────

// Subscribers tracks live seat-count subscriptions across all events.
var Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "subscribers",
	Help:      "Current number of live seat-count subscriptions.",
})

// SubscribersPruned counts subscriptions removed after a failed send.
var SubscribersPruned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "pruned_total",
	Help:      "Subscriptions pruned because a send failed.",
})

// SnapshotsPublished counts seat-count fan-outs.
var SnapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "snapshots_published_total",
	Help:      "Seat-count snapshots published to event subscribers.",
})

// ConnectionsRejected counts sockets closed during the handshake.
var ConnectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "connections_rejected_total",
	Help:      "Connections refused at handshake, by reason.",
}, []string{"reason"})

// ─── Outbox ─────────────────────────────────────────────────────────────────

// OutboxPublished counts order events forwarded to the broker by result.
var OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "outbox",
	Name:      "published_total",
	Help:      "Outbox messages handed to the broker, by result.",
}, []string{"result"})
