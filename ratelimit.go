package xsearch

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// RateLimitState tracks the platform's x-rate-limit-* headers for one
// session. Any field may be unknown (-1). Single-threaded by design: one
// session issues one request at a time.
type RateLimitState struct {
	Limit     int
	Remaining int
	Reset     int64 // absolute unix seconds
}

func newRateLimitState() RateLimitState {
	return RateLimitState{Limit: -1, Remaining: -1, Reset: -1}
}

// update replaces the state from response headers. Headers that are absent
// or not all digits leave the corresponding field unknown.
func (s *RateLimitState) update(headers map[string]string) {
	s.Limit = parseIntHeader(headers, "x-rate-limit-limit")
	s.Remaining = parseIntHeader(headers, "x-rate-limit-remaining")
	reset := parseIntHeader(headers, "x-rate-limit-reset")
	s.Reset = int64(reset)

	if s.Limit < 0 && s.Remaining < 0 && s.Reset < 0 {
		return
	}
	attrs := []any{
		slog.Int("limit", s.Limit),
		slog.Int("remaining", s.Remaining),
		slog.Int64("reset", s.Reset),
	}
	if ratio, ok := s.usageRatio(); ok {
		attrs = append(attrs, slog.Float64("usage_ratio", ratio))
	}
	if s.Reset >= 0 {
		attrs = append(attrs, slog.Time("reset_at", time.Unix(s.Reset, 0)))
	}
	slog.Debug("rate limit window", attrs...)
}

// usageRatio returns how much of the current window is spent, in [0, 1].
func (s *RateLimitState) usageRatio() (float64, bool) {
	if s.Limit <= 0 || s.Remaining < 0 {
		return 0, false
	}
	usage := 1.0 - float64(s.Remaining)/float64(s.Limit)
	if usage < 0 {
		usage = 0
	}
	if usage > 1 {
		usage = 1
	}
	return usage, true
}

// parseIntHeader reads a non-negative integer header, case-insensitively.
// Returns -1 when missing or malformed.
func parseIntHeader(headers map[string]string, name string) int {
	for key, value := range headers {
		if !strings.EqualFold(key, name) {
			continue
		}
		text := strings.TrimSpace(value)
		if text == "" {
			return -1
		}
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			return -1
		}
		return n
	}
	return -1
}
