package bouncer

import (
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// NewDialBreaker returns the circuit breaker guarding upstream dials.
// It opens after maxFailures consecutive failed dials and lets one probe
// through after timeout.
func NewDialBreaker(name string, maxFailures uint32, timeout time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker[net.Conn] {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("dial circuit breaker state changed",
				zap.String("network", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	}
	return gobreaker.NewCircuitBreaker[net.Conn](settings)
}
