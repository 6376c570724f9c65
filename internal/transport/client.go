// Package transport constructs the outbound HTTP clients used by the
// platform adapters. Retry, backoff, timeout, and the randomized
// pre-request throttling delay all live here; adapters never retry on
// their own.
package transport

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Options configures one platform client. Every adapter owns its own client;
// there is no process-wide shared HTTP session.
type Options struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	// Headers are platform-specific defaults applied to every request.
	Headers map[string]string

	// Timeout bounds each individual outbound request.
	Timeout time.Duration
	// RetryTotal is the number of transport-level retries after the first
	// attempt. Retries fire on connection errors, 429, and 5xx responses.
	RetryTotal int
	// RetryBackoff is the base wait between retries (resty doubles it per
	// attempt up to ten times the base).
	RetryBackoff time.Duration

	// DelayMin/DelayMax bound the randomized pre-request sleep that throttles
	// load on the remote service. The delay is skipped entirely when DelayMax
	// is zero.
	DelayMin time.Duration
	DelayMax time.Duration
}

// New builds a resty client with the shared request policy applied.
func New(opts Options) *resty.Client {
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Connection", "keep-alive")
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.AcceptLanguage != "" {
		client.SetHeader("Accept-Language", opts.AcceptLanguage)
	}
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}

	if opts.RetryTotal > 0 {
		backoff := opts.RetryBackoff
		if backoff <= 0 {
			backoff = 500 * time.Millisecond
		}
		client.SetRetryCount(opts.RetryTotal)
		client.SetRetryWaitTime(backoff)
		client.SetRetryMaxWaitTime(10 * backoff)
		client.AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := res.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})
	}

	if opts.DelayMax > 0 {
		min, max := opts.DelayMin, opts.DelayMax
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return throttle(req.Context(), min, max)
		})
	}

	client.OnError(func(req *resty.Request, err error) {
		log.Error().
			Str("method", req.Method).
			Str("url", req.URL).
			Err(err).
			Msg("http request failed")
	})

	return client
}

// throttle sleeps a uniform random duration in [min, max], returning early
// with the context error when the caller is cancelled mid-sleep.
func throttle(ctx context.Context, min, max time.Duration) error {
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span) + 1))
	}
	if d <= 0 {
		return nil
	}
	log.Debug().Dur("delay", d).Msg("throttling before request")
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
