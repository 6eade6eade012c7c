package reasoning

import (
	"context"

	"github.com/sony/gobreaker"

	"verdict/internal/config"
	"verdict/pkg/circuitbreaker"
)

// breakerCompleter guards the reasoning endpoint with a circuit breaker. An
// open circuit fails fast, which the audit flow downgrades to manual review
// instead of queueing requests against a dead provider.
type breakerCompleter struct {
	inner   Completer
	breaker *circuitbreaker.Wrapper
}

// WithBreaker wraps a Completer in a circuit breaker when enabled, otherwise
// returns the Completer unchanged.
func WithBreaker(inner Completer, cfg config.CircuitBreakerConfig) Completer {
	if !cfg.Enabled {
		return inner
	}

	bcfg := circuitbreaker.DefaultConfig("reasoning")
	if cfg.MaxRequests > 0 {
		bcfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		bcfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		bcfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 {
		minRequests := cfg.MinRequests
		if minRequests == 0 {
			minRequests = 3
		}
		bcfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= uint32(minRequests) && ratio >= cfg.FailureRatio
		}
	}

	return &breakerCompleter{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(bcfg),
	}
}

func (b *breakerCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	result, err := b.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return b.inner.Complete(ctx, system, user)
	})
	b.breaker.RecordRequest(err == nil)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
