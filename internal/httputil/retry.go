// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry policy and HTTP helpers shared by the
// source adapters.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/civictrace/pkg/types"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = time.Second
	defaultFactor       = 2.0
)

// ErrPermanent marks failures that retrying cannot fix, such as a malformed
// response body.
var ErrPermanent = errors.New("permanent failure")

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrPermanent)
}

// StatusError reports a non-2xx HTTP response. URL omits the query string
// so credentials passed as parameters never reach logs.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.StatusCode)
}

// Retryable classifies err. HTTP 429 and 5xx responses and transport errors
// are transient. Other 4xx responses, permanent-marked errors, and context
// cancellation are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// Policy parameterizes Retry. MaxRetries of zero disables retries and a
// negative value takes the default of 3. Zero delays and factor take 1s and
// 2; a zero MaxDelay leaves the delay uncapped.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
}

// PolicyFrom converts adapter configuration into a Policy.
func PolicyFrom(cfg types.RetryConfig) Policy {
	return Policy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		Factor:       cfg.Factor,
		MaxDelay:     cfg.MaxDelay,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.Factor <= 0 {
		p.Factor = defaultFactor
	}
	return p
}

// Delay returns the wait before retry number attempt+1:
// InitialDelay * Factor^attempt, capped at MaxDelay when set.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry invokes op and retries transient failures with exponential backoff.
// Each call owns its attempt counter: the index is threaded through the
// recursion, so concurrent calls sharing a Policy never interfere. After
// MaxRetries retries the last error is returned unchanged. If ctx is
// cancelled during a backoff wait Retry returns ctx.Err().
func Retry[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	return retry(ctx, p.withDefaults(), op, 0)
}

func retry[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), attempt int) (T, error) {
	v, err := op(ctx)
	if err == nil {
		return v, nil
	}
	if attempt >= p.MaxRetries || !Retryable(err) {
		return v, err
	}

	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timer.C:
	}
	return retry(ctx, p, op, attempt+1)
}

// DoWithRetry executes req under the policy. A 2xx response is returned
// open; any other status is drained, closed, and reported as a
// *StatusError so Retry can classify it. Request bodies are replayed via
// req.GetBody on every attempt.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, p Policy) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return Retry(ctx, p, func(ctx context.Context) (*http.Response, error) {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, Permanent(errors.Wrap(err, "rewinding request body"))
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: endpoint(req)}
		}
		return resp, nil
	})
}

func endpoint(req *http.Request) string {
	return req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
}
