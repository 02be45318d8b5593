package xsearch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/xsearchkit/go-xsearch/xtid"
)

// transport issues one HTTP exchange and reports body, lowercased response
// headers, and status. Satisfied by the go-stealth browser client; tests
// substitute scripted fakes.
type transport interface {
	Do(method, url string, headers map[string]string, body io.Reader) ([]byte, map[string]string, int, error)
}

// stealthTransport adapts go-stealth's ordered-header request API.
type stealthTransport struct {
	bc *stealth.BrowserClient
}

func (t stealthTransport) Do(method, url string, headers map[string]string, body io.Reader) ([]byte, map[string]string, int, error) {
	return t.bc.DoWithHeaderOrder(method, url, headers, body, headerOrder)
}

// RateLimitHook observes the session hitting its request quota, with the
// time the window frees up. The pool driver installs one to take the
// session out of rotation while it cools down.
type RateLimitHook func(until time.Time)

// Client is a single-session protocol client for X's internal SearchTimeline
// API. It owns the cookie jar, default headers, rate-limit state, and the
// lazily built transaction-id context. Single-threaded: one request in
// flight at a time.
type Client struct {
	tr       transport
	jar      []Cookie
	cfg      Config
	features map[string]any

	txn           *xtid.Context
	rate          RateLimitState
	rateLimitHook RateLimitHook

	// Injectable clocks keep the backoff and pacing formulas testable.
	sleep  func(time.Duration)
	now    func() time.Time
	jitter func(context.Context) error
}

// NewClient builds a client over the given cookie jar.
func NewClient(jar []Cookie, cfg Config) (*Client, error) {
	cfg.defaults()
	bc, err := stealth.NewClient(stealth.WithHeaderOrder(headerOrder))
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}
	return &Client{
		tr:       stealthTransport{bc: bc},
		jar:      jar,
		cfg:      cfg,
		features: searchFeatures(),
		rate:     newRateLimitState(),
		sleep:    time.Sleep,
		now:      time.Now,
		jitter:   stealth.DefaultJitter.Sleep,
	}, nil
}

// SetRateLimitHook installs the quota observer. Pass nil to remove it.
func (c *Client) SetRateLimitHook(hook RateLimitHook) {
	c.rateLimitHook = hook
}

// doRequest runs one exchange, bounded by the configured per-request
// timeout. The stealth transport carries no cancellation of its own, so
// the exchange is watched from outside; a late response is discarded.
func (c *Client) doRequest(method, url string, headers map[string]string, body io.Reader) ([]byte, map[string]string, int, error) {
	if c.cfg.Timeout <= 0 {
		return c.tr.Do(method, url, headers, body)
	}
	type exchange struct {
		body    []byte
		headers map[string]string
		status  int
		err     error
	}
	done := make(chan exchange, 1)
	go func() {
		b, h, s, err := c.tr.Do(method, url, headers, body)
		done <- exchange{body: b, headers: h, status: s, err: err}
	}()
	select {
	case r := <-done:
		return r.body, r.headers, r.status, r.err
	case <-time.After(c.cfg.Timeout):
		return nil, nil, 0, fmt.Errorf("request timed out after %s", c.cfg.Timeout)
	}
}

// Close releases per-session state. The underlying transport keeps no
// resources beyond kept-alive sockets, which it manages itself.
func (c *Client) Close() error {
	c.txn = nil
	if closer, ok := c.tr.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// csrfToken mirrors the ct0 cookie; an empty value marks the request as
// unauthenticated.
func (c *Client) csrfToken() string {
	return CookieValue(c.jar, "ct0")
}

// SearchAccountKeyword fetches one SearchTimeline page for an account,
// keyword, and inclusive date window. Returns the raw JSON payload.
func (c *Client) SearchAccountKeyword(ctx context.Context, handle, keyword string, start, end Date, cursor string) ([]byte, error) {
	rawQuery := buildRawQuery(handle, keyword, start, end)
	variables := searchVariables(rawQuery, c.cfg.PageSize, cursor)
	path := searchPath(c.cfg.QueryID)
	query := searchQueryString(variables, c.features)

	return c.getJSONWithRetry(ctx, path, query, rawQuery, cursor != "")
}

// VerifyCredentials probes whether the session is still authenticated.
// Stage one hits verify_credentials; because that endpoint false-negatives
// on X, anything but a clean yes/no falls through to a one-count
// SearchTimeline probe where only 401/403 counts as a hard failure.
func (c *Client) VerifyCredentials(ctx context.Context) bool {
	csrf := c.csrfToken()
	if csrf == "" {
		slog.Info("probe: missing ct0, session unauthenticated")
		return false
	}

	headers := requestHeaders(baseHeaders(c.cfg.BearerToken, c.jar), csrf, "", "")
	url := baseURL + "/i/api/1.1/account/verify_credentials.json?include_entities=false&skip_status=true"
	_, _, status, err := c.doRequest("GET", url, headers, nil)
	if err == nil {
		switch {
		case status == 200:
			slog.Info("probe: verify_credentials ok")
			return true
		case status == 401 || status == 403:
			slog.Info("probe: verify_credentials rejected", slog.Int("status", status))
			return false
		default:
			slog.Info("probe: verify_credentials inconclusive, falling back to search probe", slog.Int("status", status))
		}
	} else {
		slog.Warn("probe: verify_credentials network error, falling back to search probe", slog.Any("error", err))
	}

	rawQuery := "(from:OpenAI) codex since:2025-09-01 until:2025-09-02"
	variables := map[string]any{
		"rawQuery":              rawQuery,
		"count":                 1,
		"querySource":           "typed_query",
		"product":               "Latest",
		"withGrokTranslatedBio": false,
	}
	path := searchPath(c.cfg.QueryID)
	query := searchQueryString(variables, c.features)
	headers = requestHeaders(baseHeaders(c.cfg.BearerToken, c.jar), csrf,
		searchReferer(rawQuery), c.nextTransactionID("GET", path))

	_, _, status, err = c.doRequest("GET", baseURL+path+"?"+query, headers, nil)
	if err != nil {
		// The probe endpoint is flaky on valid sessions; assume reusable.
		slog.Warn("probe: search probe network error, assuming session reusable", slog.Any("error", err))
		return true
	}
	if status == 401 || status == 403 {
		slog.Info("probe: search probe rejected", slog.Int("status", status))
		return false
	}
	slog.Info("probe: search probe accepted", slog.Int("status", status))
	return true
}

// nextTransactionID returns a transaction id for method+path, or "" when no
// context could be built; the request then goes out unstamped and the
// resulting 404 forces a rebuild on the next attempt.
func (c *Client) nextTransactionID(method, path string) string {
	if !c.ensureTransactionContext(false) {
		slog.Warn("txn: context unavailable, request goes unstamped")
		return ""
	}
	return c.txn.Generate(method, path)
}

// ensureTransactionContext builds (or force-rebuilds) the xtid context from
// the live home page and ondemand script.
func (c *Client) ensureTransactionContext(forceRefresh bool) bool {
	if c.txn != nil && !forceRefresh {
		return true
	}
	slog.Info("txn: building transaction context", slog.Bool("force_refresh", forceRefresh))

	bootstrapHeaders := map[string]string{
		"user-agent":      defaultUserAgent,
		"accept-language": "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7",
		"accept":          "text/html,*/*",
		"cookie":          cookieHeader(c.jar),
	}
	homeHTML, _, status, err := c.doRequest("GET", baseURL, bootstrapHeaders, nil)
	if err != nil || status >= 400 {
		c.txn = nil
		slog.Warn("txn: home page fetch failed", slog.Int("status", status), slog.Any("error", err))
		return false
	}

	ondemandURL := xtid.OnDemandFileURL(string(homeHTML))
	if ondemandURL == "" {
		c.txn = nil
		slog.Warn("txn: ondemand.s script url not found in home page")
		return false
	}
	scriptHeaders := map[string]string{
		"user-agent": defaultUserAgent,
		"accept":     "*/*",
		"referer":    "https://x.com/",
	}
	scriptJS, _, status, err := c.doRequest("GET", ondemandURL, scriptHeaders, nil)
	if err != nil || status >= 400 {
		c.txn = nil
		slog.Warn("txn: ondemand.s fetch failed", slog.Int("status", status), slog.Any("error", err))
		return false
	}

	txn, err := xtid.NewContext(string(homeHTML), string(scriptJS))
	if err != nil {
		c.txn = nil
		slog.Warn("txn: context build failed", slog.Any("error", err))
		return false
	}
	c.txn = txn
	slog.Info("txn: transaction context ready")
	return true
}
