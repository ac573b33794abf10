// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Backoff bounds. Tests lower them to avoid real sleeps.
var (
	RetryBaseDelay = 2 * time.Second
	RetryMaxDelay  = time.Minute
)

// DoWithRetry sends req and resends it on HTTP 429 (Too Many Requests) up
// to maxRetries times. Zero retries means exactly one attempt.
//
// Each wait honours the response's Retry-After header (seconds or an HTTP
// date) and otherwise doubles from RetryBaseDelay; waits never exceed
// RetryMaxDelay. A cancelled context ends the wait with ctx.Err(). After
// the last retry the final 429 response is returned for the caller to
// inspect.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := retryDelay(resp.Header.Get("Retry-After"), attempt, time.Now())
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryDelay returns the wait before retry attempt+1.
func retryDelay(retryAfter string, attempt int, now time.Time) time.Duration {
	d := RetryBaseDelay << attempt
	if v := strings.TrimSpace(retryAfter); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			d = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(v); err == nil {
			d = t.Sub(now)
		}
	}
	if d < 0 {
		d = 0
	}
	if d > RetryMaxDelay {
		d = RetryMaxDelay
	}
	return d
}
