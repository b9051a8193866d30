package tor

import "github.com/prometheus/client_golang/prometheus"

// metricsCollector holds the prometheus collectors a Controller updates as
// it operates. Grounded on the pack-wide lnd convention of a metrics.go per
// subsystem registering prometheus/client_golang collectors; no single
// teacher file names this component, so it is built from that repo-wide
// convention rather than one grounding file.
type metricsCollector struct {
	commandsSent    prometheus.Counter
	repliesReceived prometheus.Counter
	eventsReceived  prometheus.Counter
	eventsDropped   prometheus.Counter
	reconnects      prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *metricsCollector {
	m := &metricsCollector{
		commandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctrl",
			Name:      "commands_sent_total",
			Help:      "Total number of commands written to the control port.",
		}),
		repliesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctrl",
			Name:      "replies_received_total",
			Help:      "Total number of synchronous replies received.",
		}),
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctrl",
			Name:      "events_received_total",
			Help:      "Total number of asynchronous events received.",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctrl",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped due to dispatch queue overflow.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "torctrl",
			Name:      "reconnects_total",
			Help:      "Total number of successful reconnections to the control port.",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.commandsSent, m.repliesReceived, m.eventsReceived,
			m.eventsDropped, m.reconnects,
		)
	}

	return m
}
