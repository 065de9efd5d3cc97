package models

import (
	"math"
	"time"
)

// maxBackoffShift keeps base<<n well inside time.Duration's range.
const maxBackoffShift = 20

// MaxRetryDelay is the longest delay RetryDelay returns.
const MaxRetryDelay = time.Duration(math.MaxInt64)

// RetryDelay is how long a job waits after its retryCount-th failure:
// base * 2^retryCount. With a one minute base that is 2m, 4m, 8m...
// Results that do not fit in a time.Duration saturate at MaxRetryDelay.
func RetryDelay(base time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffShift {
		retryCount = maxBackoffShift
	}
	if base > MaxRetryDelay>>retryCount {
		return MaxRetryDelay
	}
	return base << retryCount
}
