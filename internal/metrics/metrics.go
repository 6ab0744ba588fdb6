// Package metrics holds the Prometheus instruments of the ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "sweepwatch"

// Ingest counts channel and decoder outcomes. The zero value is not usable;
// create it with NewIngest.
type Ingest struct {
	FramesReceived  prometheus.Counter
	DecodeErrors    prometheus.Counter
	RecordsIngested prometheus.Counter
	BinsIngested    prometheus.Counter
	PollErrors      prometheus.Counter
}

// Registry bundles a private registry with the pipeline instruments
type Registry struct {
	reg    *prometheus.Registry
	Ingest *Ingest
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus the pipeline counters.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg, Ingest: NewIngest(reg)}
}

// NewIngest creates the ingest counters and registers them with reg
func NewIngest(reg prometheus.Registerer) *Ingest {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      name,
			Help:      help,
		})
	}

	m := &Ingest{
		FramesReceived:  counter("frames_received_total", "Frames read from the sweep channel."),
		DecodeErrors:    counter("decode_errors_total", "Frames dropped because they could not be decoded."),
		RecordsIngested: counter("records_ingested_total", "Sweep records folded into the aggregate."),
		BinsIngested:    counter("bins_ingested_total", "Power readings folded into the aggregate."),
		PollErrors:      counter("poll_errors_total", "Channel errors other than timeouts."),
	}
	if reg != nil {
		reg.MustRegister(m.FramesReceived, m.DecodeErrors, m.RecordsIngested, m.BinsIngested, m.PollErrors)
	}
	return m
}

// Totals returns the received frame and decode failure counts
func (m *Ingest) Totals() (frames, decodeErrors uint64) {
	return uint64(counterValue(m.FramesReceived)), uint64(counterValue(m.DecodeErrors))
}

// RegisterBinGauge exposes the aggregate size, read on every scrape
func (r *Registry) RegisterBinGauge(count func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "spectrum",
		Name:      "bins",
		Help:      "Distinct frequency bins held by the aggregate.",
	}, func() float64 { return float64(count()) }))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
