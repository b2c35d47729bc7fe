// Package retry decides whether a failed item attempt is retried, how long
// to back off, and when to give up.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/genapi"
)

type Decision struct {
	Retryable bool
	Kind      genapi.ErrorKind
}

// Policy is stateless; one value is shared by all items of an execution.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 5 * time.Second}
}

// Classify partitions an attempt error into transient (retryable) and
// permanent (fails the item immediately). Unclassified errors are treated
// as transient upstream faults so a flaky dependency is not promoted to a
// permanent failure.
func (p Policy) Classify(err error) Decision {
	var apiErr *genapi.APIError
	if errors.As(err, &apiErr) {
		return Decision{Retryable: apiErr.Transient(), Kind: apiErr.Kind}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Retryable: true, Kind: genapi.KindTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Retryable: true, Kind: genapi.KindTimeout}
	}
	return Decision{Retryable: true, Kind: genapi.KindUpstream}
}

// NextDelay is exponential: base, 2*base, 4*base, ... for attempt 1, 2, 3.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := 1 << (attempt - 1)
	return time.Duration(factor) * p.BaseDelay
}
