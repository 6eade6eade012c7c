package reasoning

import (
	"context"
	"errors"
)

// Completer is a single round trip to an external reasoning model. The caller
// controls the deadline through ctx; implementations must return promptly on
// cancellation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrProviderNotConfigured is returned by the fallback completer used when no
// reasoning provider is set up. Audits still run; they degrade to manual
// review because every reasoning call fails.
var ErrProviderNotConfigured = errors.New("reasoning provider not configured")

type unavailableCompleter struct{}

func (unavailableCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return "", ErrProviderNotConfigured
}

// Unavailable returns a Completer that fails every call.
func Unavailable() Completer {
	return unavailableCompleter{}
}
