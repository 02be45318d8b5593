package xsearch

import "strings"

// Cookie is one browser cookie as captured by the login flow. Extra fields
// from the capture (expires, secure, ...) are dropped on load; only the
// request-relevant attributes survive.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// CookieValue returns the value of the named cookie, "" when absent.
func CookieValue(jar []Cookie, name string) string {
	for _, c := range jar {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// cookieHeader renders the jar as a request cookie header value.
func cookieHeader(jar []Cookie) string {
	parts := make([]string, 0, len(jar))
	for _, c := range jar {
		if c.Name == "" || c.Value == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// HasCoreAuthCookies reports whether the jar carries non-empty auth_token
// and ct0 values, the weak signal that a session is worth trying.
func HasCoreAuthCookies(jar []Cookie) bool {
	return CookieValue(jar, "auth_token") != "" && CookieValue(jar, "ct0") != ""
}
