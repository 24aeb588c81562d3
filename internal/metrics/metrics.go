package metrics

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companylens_resolutions_total",
			Help: "Total resolution passes by outcome (map, auto, fallback, not_found, unchanged)",
		},
		[]string{"outcome"},
	)

	mappingWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companylens_mapping_writes_total",
			Help: "Total mapping writes by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	pageFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companylens_page_fetches_total",
			Help: "Total page fetches by outcome",
		},
		[]string{"outcome"},
	)

	openPagesDesc = prometheus.NewDesc(
		"companylens_open_pages",
		"Number of open page contexts",
		nil,
		nil,
	)
)

// PageCounter reports how many page contexts are open.
type PageCounter interface {
	Count() int
}

// PageCollector is a custom Prometheus collector that reads the open page
// count from the registry on each scrape.
type PageCollector struct {
	pages PageCounter
}

// Describe sends the metric descriptor to the channel.
func (c *PageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- openPagesDesc
}

// Collect emits the current page count as a gauge.
func (c *PageCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(openPagesDesc, prometheus.GaugeValue, float64(c.pages.Count()))
}

var initOnce sync.Once

// Init registers the counters and the page collector.
// Must be called once at startup.
func Init(pages PageCounter) {
	initOnce.Do(func() {
		prometheus.MustRegister(resolutionsTotal, mappingWritesTotal, pageFetchesTotal)
		prometheus.MustRegister(&PageCollector{pages: pages})
	})
}

// RecordResolution counts one resolution pass.
func RecordResolution(outcome string) {
	resolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordMappingWrite counts one mapping write. Failures are also logged.
func RecordMappingWrite(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		slog.Debug("mapping write failed", "op", op, "error", err)
	}
	mappingWritesTotal.WithLabelValues(op, outcome).Inc()
}

// RecordPageFetch counts one page fetch.
func RecordPageFetch(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pageFetchesTotal.WithLabelValues(outcome).Inc()
}

// Recorder adapts the package counters to the resolver and mapping store hooks.
type Recorder struct{}

func (Recorder) RecordResolution(outcome string) {
	RecordResolution(outcome)
}

func (Recorder) RecordMappingWrite(op string, err error) {
	RecordMappingWrite(op, err)
}
