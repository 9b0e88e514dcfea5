package httpx

import (
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by provider errors that carry an HTTP status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// TransientError is implemented by provider errors known to be retryable
// even though no HTTP status is available, such as faults reported inside an
// already-open response stream.
type TransientError interface {
	Transient() bool
}

// IsRetryableError reports whether err is worth retrying on the same model:
// network timeouts, retryable HTTP statuses (rate limits, server faults), and
// errors flagged transient by the provider. Anything else (malformed
// requests, auth rejections) is a hard failure.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var te TransientError
	if errors.As(err, &te) && te.Transient() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryAfterProvider is implemented by provider errors carrying a
// server-supplied backoff hint.
type RetryAfterProvider interface {
	RetryAfterHint() time.Duration
}

// RetryAfterOf extracts the backoff hint from err, or zero when absent.
func RetryAfterOf(err error) time.Duration {
	var rp RetryAfterProvider
	if errors.As(err, &rp) {
		return rp.RetryAfterHint()
	}
	return 0
}

// RetryAfterDuration honors a Retry-After header when present, capped at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

// Jitter spreads retries by +/-20% so parallel callers don't thundering-herd.
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
