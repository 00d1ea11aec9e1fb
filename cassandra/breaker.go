package cassandra

import (
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func shouldBeSwitchedToOpen(counts gobreaker.Counts) bool {
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return counts.Requests >= 3 && failureRatio >= 0.6
}

// newBreaker gates session creation. While open, Instance fails with
// ErrUnavailable instead of dialing the cluster again.
func newBreaker(log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cassandra-connect",
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: shouldBeSwitchedToOpen,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}
