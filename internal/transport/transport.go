package transport

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Policy defines how request retries are paced.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
}

// DefaultPolicy returns a sensible default retry policy for provider APIs.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// Retrying is an http.RoundTripper that retries idempotent requests on
// connection errors, 429 and 5xx responses, honoring Retry-After hints.
// Non-idempotent requests and requests with a body pass through untouched.
type Retrying struct {
	base   http.RoundTripper
	policy Policy
}

// NewRetrying wraps base with retry behavior. A nil base uses
// http.DefaultTransport.
func NewRetrying(policy Policy, base http.RoundTripper) *Retrying {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Retrying{base: base, policy: policy}
}

// NewClient returns an HTTP client with a retrying transport and an overall
// per-request timeout.
func NewClient(policy Policy, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewRetrying(policy, nil),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper. The final retryable response is
// returned as-is rather than converted to an error; callers keep deciding
// what a non-2xx status means.
func (t *Retrying) RoundTrip(req *http.Request) (*http.Response, error) {
	if !retryableMethod(req.Method) || req.Body != nil {
		return t.base.RoundTrip(req)
	}

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= t.policy.MaxRetries; attempt++ {
		resp, err = t.base.RoundTrip(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Don't sleep after the last attempt
		if attempt == t.policy.MaxRetries {
			break
		}

		backoff := calculateBackoff(t.policy, attempt)
		if resp != nil {
			if after, ok := retryAfter(resp); ok {
				backoff = after
			}
			// Drain so the connection can be reused
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			if err != nil {
				return nil, err
			}
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
	}

	return resp, err
}

func retryableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses the Retry-After header, either delay seconds or an
// HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// calculateBackoff computes the backoff duration for a given attempt.
func calculateBackoff(policy Policy, attempt int) time.Duration {
	// Exponential backoff: initialBackoff * (factor ^ attempt)
	backoff := float64(policy.InitialBackoff) * math.Pow(policy.BackoffFactor, float64(attempt))

	// Cap at max backoff
	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	duration := time.Duration(backoff)

	// Add jitter to prevent thundering herd
	if policy.Jitter {
		jitter := time.Duration(float64(duration) * 0.1 * (2*fakeRand() - 1))
		duration += jitter
	}

	return duration
}

// fakeRand returns a pseudo-random value between 0 and 1.
// Uses time-based seed for simplicity (not cryptographically secure).
func fakeRand() float64 {
	nanos := time.Now().UnixNano()
	return float64(nanos%1000) / 1000.0
}
