package transaction

import (
	"time"
)

// DefaultMaxRetries bounds how often a failed installment is represented
// before it fails terminally.
const DefaultMaxRetries = 3

// RetryPolicy decides what happens to a failed installment.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
}

// NewRetryPolicy creates a policy; zero values fall back to 3 retries with
// a 24h backoff base.
func NewRetryPolicy(maxRetries int, backoffBase time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if backoffBase <= 0 {
		backoffBase = 24 * time.Hour
	}
	return RetryPolicy{MaxRetries: maxRetries, BackoffBase: backoffBase}
}

// RetryDecision is the outcome for one payment failure.
type RetryDecision struct {
	// Retry is true while the transaction is under its retry cap: the
	// installment goes back to scheduled at NextDueDate.
	Retry       bool
	NextDueDate time.Time

	// Terminal is true at the cap: the installment fails for good and the
	// owning transaction is signalled toward failed.
	Terminal bool
}

// OnFailure decides the fate of a failed installment given the
// transaction's retry count after this failure was counted. Backoff doubles
// with each consumed retry.
func (p RetryPolicy) OnFailure(retryCount int, now time.Time) RetryDecision {
	if retryCount >= p.MaxRetries {
		return RetryDecision{Terminal: true}
	}

	backoff := p.BackoffBase << (retryCount - 1)
	return RetryDecision{
		Retry:       true,
		NextDueDate: now.Add(backoff),
	}
}
