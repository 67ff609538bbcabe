// Package prometheuscollector exposes a handler.Metrics snapshot in the
// Prometheus exposition format.
//
//	h, err := handler.NewHandler(…)
//	collector := prometheuscollector.New(h.Metrics())
//	prometheus.MustRegister(collector)
package prometheuscollector

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaypost/tusgo/pkg/handler"
)

var (
	requestsTotalDesc = prometheus.NewDesc(
		"tusgo_requests_total",
		"Total number of requests served, per method.",
		[]string{"method"}, nil)
	errorsTotalDesc = prometheus.NewDesc(
		"tusgo_errors_total",
		"Total number of errors returned, per error code.",
		[]string{"code"}, nil)
	bytesReceivedDesc = prometheus.NewDesc(
		"tusgo_bytes_received",
		"Number of payload bytes written by PATCH and creation-with-upload POST requests.",
		nil, nil)
	uploadsCreatedDesc = prometheus.NewDesc(
		"tusgo_uploads_created",
		"Number of uploads created via POST.",
		nil, nil)
	uploadsFinishedDesc = prometheus.NewDesc(
		"tusgo_uploads_finished",
		"Number of uploads whose offset reached their size.",
		nil, nil)
	uploadsTerminatedDesc = prometheus.NewDesc(
		"tusgo_uploads_terminated",
		"Number of uploads removed via DELETE.",
		nil, nil)
	uploadsExpiredDesc = prometheus.NewDesc(
		"tusgo_uploads_expired",
		"Number of uploads removed by the expiration sweeper.",
		nil, nil)
)

// Collector adapts a handler.Metrics snapshot to prometheus.Collector.
type Collector struct {
	metrics handler.Metrics
}

// New returns a Collector that reads from metrics on every scrape.
func New(metrics handler.Metrics) Collector {
	return Collector{metrics: metrics}
}

func (Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- requestsTotalDesc
	descs <- errorsTotalDesc
	descs <- bytesReceivedDesc
	descs <- uploadsCreatedDesc
	descs <- uploadsFinishedDesc
	descs <- uploadsTerminatedDesc
	descs <- uploadsExpiredDesc
}

func (c Collector) Collect(metrics chan<- prometheus.Metric) {
	for method, valuePtr := range c.metrics.RequestsTotal {
		metrics <- prometheus.MustNewConstMetric(
			requestsTotalDesc,
			prometheus.CounterValue,
			float64(atomic.LoadUint64(valuePtr)),
			method,
		)
	}

	c.metrics.ErrorsTotal.Each(func(code string, count uint64) {
		metrics <- prometheus.MustNewConstMetric(
			errorsTotalDesc,
			prometheus.CounterValue,
			float64(count),
			code,
		)
	})

	metrics <- prometheus.MustNewConstMetric(
		bytesReceivedDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(c.metrics.BytesReceived)),
	)
	metrics <- prometheus.MustNewConstMetric(
		uploadsCreatedDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(c.metrics.UploadsCreated)),
	)
	metrics <- prometheus.MustNewConstMetric(
		uploadsFinishedDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(c.metrics.UploadsFinished)),
	)
	metrics <- prometheus.MustNewConstMetric(
		uploadsTerminatedDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(c.metrics.UploadsTerminated)),
	)
	metrics <- prometheus.MustNewConstMetric(
		uploadsExpiredDesc,
		prometheus.CounterValue,
		float64(atomic.LoadUint64(c.metrics.UploadsExpired)),
	)
}
