package xsearch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// getJSONWithRetry runs one SearchTimeline GET through the retry state
// machine: rate-limit waits honor x-rate-limit-reset, server errors back off
// exponentially, and a 404 forces a transaction-context rebuild before the
// next attempt.
func (c *Client) getJSONWithRetry(ctx context.Context, path, query, rawQuery string, paginated bool) ([]byte, error) {
	csrf := c.csrfToken()
	url := baseURL + path + "?" + query
	referer := searchReferer(rawQuery)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.waitForQuota()
		if err := c.jitter(ctx); err != nil {
			return nil, err
		}

		headers := requestHeaders(baseHeaders(c.cfg.BearerToken, c.jar), csrf,
			referer, c.nextTransactionID("GET", path))

		body, respHeaders, status, err := c.doRequest("GET", url, headers, nil)
		if err != nil {
			lastErr = err
			slog.Warn("request failed, backing off",
				slog.Int("attempt", attempt), slog.Any("error", err))
			c.sleepBackoff(attempt)
			continue
		}
		c.rate.update(respHeaders)

		switch {
		case status == 200:
			return body, nil

		case status == 401 || status == 403:
			return nil, &AuthenticationError{Status: status}

		case status == 429:
			wait := c.rateLimitWait(respHeaders, attempt)
			c.notifyRateLimited(wait)
			slog.Warn("rate limited, sleeping",
				slog.Int("attempt", attempt),
				slog.Bool("paginated", paginated),
				slog.Int("wait_seconds", wait))
			lastErr = &ProtocolRequestError{Path: path, Status: status, Body: truncate(body, 300)}
			c.sleep(time.Duration(wait) * time.Second)
			continue

		case status == 404:
			// A 404 on a stamped request means the transaction context
			// went stale; rebuild it before the next attempt either way.
			slog.Warn("got 404, rebuilding transaction context", slog.Int("attempt", attempt))
			if !c.ensureTransactionContext(true) {
				slog.Warn("transaction context rebuild failed, retrying unstamped")
			}
			lastErr = &ProtocolRequestError{Path: path, Status: status, Body: truncate(body, 300)}
			c.sleepBackoff(attempt)
			continue

		case status >= 500:
			lastErr = &ProtocolRequestError{Path: path, Status: status, Body: truncate(body, 300)}
			slog.Warn("server error, backing off",
				slog.Int("attempt", attempt), slog.Int("status", status))
			c.sleepBackoff(attempt)
			continue

		case status >= 400:
			return nil, &ProtocolRequestError{Path: path, Status: status, Body: truncate(body, 300)}

		default:
			lastErr = &ProtocolRequestError{Path: path, Status: status, Body: truncate(body, 300)}
			c.sleepBackoff(attempt)
			continue
		}
	}

	return nil, &ProtocolRequestError{
		Path: path,
		Err:  fmt.Errorf("retries exhausted after %d attempts: %w", c.cfg.MaxRetries, wrapRetryErr(lastErr)),
	}
}

func wrapRetryErr(err error) error {
	if err == nil {
		return fmt.Errorf("no response")
	}
	return err
}

// sleepBackoff applies the generic exponential backoff for network and
// server errors: 1, 2, 4, 8, 8, ... seconds.
func (c *Client) sleepBackoff(attempt int) {
	wait := 1 << (attempt - 1)
	if wait > 8 {
		wait = 8
	}
	c.sleep(time.Duration(wait) * time.Second)
}

// rateLimitWait derives the 429 sleep. With a usable x-rate-limit-reset
// header the wait runs to the window boundary plus a small buffer, clamped
// to [1, max]. Without one it grows linearly per attempt up to the fallback.
func (c *Client) rateLimitWait(headers map[string]string, attempt int) int {
	if reset := parseIntHeader(headers, "x-rate-limit-reset"); reset >= 0 {
		wait := int(int64(reset) - c.now().Unix())
		wait += c.cfg.ResetBufferSeconds
		return clampInt(wait, 1, c.cfg.MaxRateLimitWaitSeconds)
	}
	wait := attempt * 30
	if wait > c.cfg.FallbackWaitSeconds {
		wait = c.cfg.FallbackWaitSeconds
	}
	return wait
}

// waitForQuota consults the last seen rate-limit window before sending.
// An exhausted window sleeps through to its reset; a mostly spent one
// stretches requests out so the window is never hit at full speed.
func (c *Client) waitForQuota() {
	if c.rate.Remaining < 0 || c.rate.Reset < 0 {
		return
	}
	secsToReset := c.rate.Reset - c.now().Unix()
	if secsToReset <= 0 {
		return
	}

	if c.rate.Remaining <= c.cfg.ProactiveThreshold {
		wait := clampInt(int(secsToReset)+c.cfg.ResetBufferSeconds, 1, c.cfg.MaxRateLimitWaitSeconds)
		c.notifyRateLimited(wait)
		slog.Warn("quota exhausted, waiting for window reset",
			slog.Int("remaining", c.rate.Remaining),
			slog.Int("wait_seconds", wait))
		c.sleep(time.Duration(wait) * time.Second)
		return
	}

	ratio, ok := c.rate.usageRatio()
	if !ok || ratio < c.cfg.PacingUsageRatio {
		return
	}
	remaining := c.rate.Remaining
	if remaining < 1 {
		remaining = 1
	}
	interval := float64(secsToReset) / float64(remaining) * c.cfg.PacingFactor
	if interval < c.cfg.PacingMinIntervalSeconds {
		interval = c.cfg.PacingMinIntervalSeconds
	}
	if interval > c.cfg.PacingMaxIntervalSeconds {
		interval = c.cfg.PacingMaxIntervalSeconds
	}
	slog.Info("pacing request",
		slog.Float64("usage_ratio", ratio),
		slog.Float64("interval_seconds", interval))
	c.sleep(time.Duration(interval * float64(time.Second)))
}

// notifyRateLimited reports the cooldown end to the installed hook.
func (c *Client) notifyRateLimited(waitSeconds int) {
	if c.rateLimitHook != nil {
		c.rateLimitHook(c.now().Add(time.Duration(waitSeconds) * time.Second))
	}
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
