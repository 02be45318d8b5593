package xsearch

import "testing"

func TestRateLimitUpdate(t *testing.T) {
	s := newRateLimitState()
	s.update(map[string]string{
		"X-Rate-Limit-Limit":     "50",
		"x-rate-limit-remaining": "12",
		"x-rate-limit-reset":     "1700000100",
	})
	if s.Limit != 50 || s.Remaining != 12 || s.Reset != 1700000100 {
		t.Fatalf("state = %+v", s)
	}

	s.update(map[string]string{"x-rate-limit-limit": "garbage"})
	if s.Limit != -1 || s.Remaining != -1 || s.Reset != -1 {
		t.Fatalf("state after malformed headers = %+v, want all unknown", s)
	}
}

func TestUsageRatio(t *testing.T) {
	s := RateLimitState{Limit: 50, Remaining: 10}
	ratio, ok := s.usageRatio()
	if !ok || ratio != 0.8 {
		t.Fatalf("usageRatio = %v ok=%v, want 0.8", ratio, ok)
	}
	s = RateLimitState{Limit: -1, Remaining: 10}
	if _, ok := s.usageRatio(); ok {
		t.Fatal("unknown limit must report not-ok")
	}
	s = RateLimitState{Limit: 10, Remaining: 20}
	if ratio, _ := s.usageRatio(); ratio != 0 {
		t.Fatalf("ratio = %v, want clamp to 0", ratio)
	}
}

func TestParseIntHeader(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"42", 42},
		{" 42 ", 42},
		{"", -1},
		{"-5", -1},
		{"12.5", -1},
		{"abc", -1},
	}
	for _, tc := range cases {
		headers := map[string]string{"x-rate-limit-limit": tc.value}
		if got := parseIntHeader(headers, "x-rate-limit-limit"); got != tc.want {
			t.Errorf("parseIntHeader(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
	if got := parseIntHeader(map[string]string{}, "x-rate-limit-limit"); got != -1 {
		t.Errorf("missing header = %d, want -1", got)
	}
}
