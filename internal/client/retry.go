package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultRetryAttempts = 3
	baseRetryDelay       = 500 * time.Millisecond
	maxRetryDelay        = 8 * time.Second
)

// RetryPolicy applies to uploads. Attempts counts the first try; Delay is the
// wait after the given failed attempt (1-based) and defaults to RetryDelay.
type RetryPolicy struct {
	Attempts int
	Delay    func(attempt int) time.Duration
}

func DefaultRetry() RetryPolicy {
	return RetryPolicy{Attempts: DefaultRetryAttempts, Delay: RetryDelay}
}

// RetryDelay is min(8s, 500ms * 2^(attempt-1)).
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		return maxRetryDelay
	}
	return min(maxRetryDelay, baseRetryDelay<<(attempt-1))
}

// RetryableStatus reports whether an HTTP status is transient.
func RetryableStatus(code int) bool {
	switch {
	case code == 0:
		return true
	case code == 408 || code == 425 || code == 429:
		return true
	default:
		return code >= 500
	}
}

// IsRetryable reports whether err is transient: no response at all, a
// retryable status, a timeout, or a network-ish message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return RetryableStatus(apiErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "network") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporar")
}

// shouldRetry is the resty retry condition. A transport failure has no raw
// response and is always retried unless the caller cancelled.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		if resp == nil || resp.RawResponse == nil {
			return true
		}
		return IsRetryable(err)
	}
	return resp != nil && RetryableStatus(resp.StatusCode())
}

func withRetry(hc *resty.Client, p RetryPolicy) *resty.Client {
	if p.Attempts <= 1 {
		return hc
	}
	delay := p.Delay
	if delay == nil {
		delay = RetryDelay
	}
	return hc.
		SetRetryCount(p.Attempts - 1).
		SetRetryWaitTime(time.Nanosecond).
		SetRetryMaxWaitTime(maxRetryDelay).
		AddRetryCondition(shouldRetry).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			attempt := 1
			if resp != nil && resp.Request != nil {
				attempt = resp.Request.Attempt
			}
			return delay(attempt), nil
		})
}
