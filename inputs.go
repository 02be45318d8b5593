package xsearch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// AccountSpec is one crawl target resolved from an account URL.
type AccountSpec struct {
	URL    string
	Handle string
}

var (
	handleRegex       = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
	keywordSplitRegex = regexp.MustCompile(`[\s,，+]+`)
)

var accountHosts = map[string]bool{
	"x.com":           true,
	"www.x.com":       true,
	"twitter.com":     true,
	"www.twitter.com": true,
}

// cleanLines yields trimmed, non-empty, non-comment lines.
func cleanLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		v := strings.TrimSpace(line)
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		out = append(out, v)
	}
	return out
}

// extractHandle pulls the screen name out of an account URL.
func extractHandle(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid account URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid account URL scheme: %s", raw)
	}
	if !accountHosts[strings.ToLower(u.Host)] {
		return "", fmt.Errorf("account URL must point to x.com/twitter.com: %s", raw)
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("missing account handle in URL: %s", raw)
	}
	handle := strings.SplitN(path, "/", 2)[0]
	if !handleRegex.MatchString(handle) {
		return "", fmt.Errorf("invalid account handle %q from URL: %s", handle, raw)
	}
	return handle, nil
}

// LoadAccounts parses account URLs into specs, dropping case-insensitive
// duplicate handles (first occurrence wins).
func LoadAccounts(lines []string) ([]AccountSpec, error) {
	var result []AccountSpec
	seen := make(map[string]bool)
	for _, raw := range cleanLines(lines) {
		handle, err := extractHandle(raw)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(handle)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, AccountSpec{URL: raw, Handle: handle})
	}
	return result, nil
}

// LoadKeywords normalizes keyword rules: tokens split on whitespace, commas
// (ASCII and fullwidth) and '+', rejoined with single spaces; empty rules
// dropped; case-insensitive dedupe with first occurrence winning.
func LoadKeywords(lines []string) []string {
	var result []string
	seen := make(map[string]bool)
	for _, raw := range cleanLines(lines) {
		normalized := normalizeKeywordRule(raw)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, normalized)
	}
	return result
}

func normalizeKeywordRule(raw string) string {
	parts := keywordSplitRegex.Split(strings.TrimSpace(raw), -1)
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
