package cassandra

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cassandra",
		Subsystem: "connector",
		Name:      "connect_attempts_total",
		Help:      "Number of attempts to build the cassandra connector.",
	}, []string{"result"})

	connectorOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cassandra",
		Subsystem: "connector",
		Name:      "open",
		Help:      "1 while a cassandra connector is open.",
	})

	statementCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cassandra",
		Subsystem: "statement_cache",
		Name:      "size",
		Help:      "Number of statements held by the statement cache.",
	})

	statementLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cassandra",
		Subsystem: "statement_cache",
		Name:      "lookups_total",
		Help:      "Statement cache lookups by result.",
	}, []string{"result"})
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{connectAttempts, connectorOpen, statementCacheSize, statementLookups}
}

// RegisterMetrics registers the package collectors with reg. Collectors
// already registered are skipped.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
