package consumer

import "errors"

// Handler errors fall into three classes. Anything not wrapped in one of
// the sentinels below is treated as transient and retried with backoff.
var (
	// ErrPoisonMessage marks a payload that fails structural validation.
	// After a bounded number of attempts the message goes to the
	// dead-letter topic with its full payload.
	ErrPoisonMessage = errors.New("poison message")

	// ErrParkMessage marks a delivery that retrying cannot fix: a
	// business invariant would be violated, or the aggregate it refers
	// to has not arrived yet. The message is parked for manual repair.
	ErrParkMessage = errors.New("message parked")
)
