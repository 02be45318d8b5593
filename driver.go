package xsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go-stealth/pool"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// searchEndpoint keys the per-slot limiter; the crawl only hits one API.
const searchEndpoint = "SearchTimeline"

// slotWaitTimeout bounds how long a crawl task waits for a free slot.
const slotWaitTimeout = 5 * time.Minute

// sessionClient is what a slot needs from its protocol client. *Client
// satisfies it; driver tests script it.
type sessionClient interface {
	SearchClient
	VerifyCredentials(ctx context.Context) bool
	SetRateLimitHook(RateLimitHook)
	Close() error
}

// SessionSlot is one authenticated session in the pool: a cookie file, its
// manager, and a live client.
type SessionSlot struct {
	SlotID      int
	CookiesPath string
	Manager     *SessionManager
	Client      sessionClient

	mu           sync.Mutex
	active       bool
	reactivateAt time.Time
	limiter      *ratelimit.Limiter

	pool.HealthTracker
}

// ID implements pool.Identity.
func (s *SessionSlot) ID() string { return fmt.Sprintf("slot-%d", s.SlotID) }

// IsActive implements pool.Identity.
func (s *SessionSlot) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive implements pool.Identity.
func (s *SessionSlot) SetActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = v
}

// ReactivateAt implements pool.Identity.
func (s *SessionSlot) ReactivateAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reactivateAt
}

// SetReactivateAt implements pool.Identity.
func (s *SessionSlot) SetReactivateAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactivateAt = t
}

// AllowRequest checks the slot's local request budget for the endpoint.
func (s *SessionSlot) AllowRequest(endpoint string) bool {
	s.mu.Lock()
	rl := s.limiter
	s.mu.Unlock()
	if rl == nil {
		return true
	}
	return rl.Allow(endpoint)
}

// MarkEndpointRateLimited blocks the endpoint on this slot until the given
// time; Run's pool filter skips the slot for the duration.
func (s *SessionSlot) MarkEndpointRateLimited(endpoint string, until time.Time) {
	s.mu.Lock()
	rl := s.limiter
	s.mu.Unlock()
	if rl == nil {
		return
	}
	rl.MarkRateLimited(endpoint, until)
}

// bindRateLimitHook points the client's quota observer at this slot.
func (s *SessionSlot) bindRateLimitHook(client sessionClient) {
	client.SetRateLimitHook(func(until time.Time) {
		s.MarkEndpointRateLimited(searchEndpoint, until)
	})
}

// Driver runs the account-by-keyword task matrix over a pool of session
// slots, refreshing a slot's login once when its session expires mid-task.
type Driver struct {
	cfg    Config
	window DateWindow
	writer *RunWriter
	login  LoginProvider
	slots  *pool.Pool[*SessionSlot]
	all    []*SessionSlot

	// newClient is swappable so driver tests run without live sessions.
	newClient func(jar []Cookie, cfg Config) (sessionClient, error)
}

// NewDriver wires a driver; BuildSlots must run before Run.
func NewDriver(cfg Config, window DateWindow, writer *RunWriter, login LoginProvider) *Driver {
	return &Driver{
		cfg:    cfg,
		window: window,
		writer: writer,
		login:  login,
		newClient: func(jar []Cookie, cfg Config) (sessionClient, error) {
			return NewClient(jar, cfg)
		},
	}
}

// probe checks a jar by building a throwaway client and running the
// credential probe.
func (d *Driver) probe(ctx context.Context, jar []Cookie) bool {
	client, err := d.newClient(jar, d.cfg)
	if err != nil {
		slog.Warn("probe client build failed", slog.Any("error", err))
		return false
	}
	defer client.Close()
	return client.VerifyCredentials(ctx)
}

// ResolveCookiePoolPaths merges the primary cookie file with the pool file
// lines, deduplicating case-insensitively by absolute path. The primary
// always comes first.
func ResolveCookiePoolPaths(primary string, poolLines []string) []string {
	var paths []string
	seen := make(map[string]struct{})
	appendPath := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		key := strings.ToLower(abs)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		paths = append(paths, p)
	}

	appendPath(primary)
	for _, line := range poolLines {
		value := strings.TrimSpace(line)
		if value == "" || strings.HasPrefix(value, "#") {
			continue
		}
		appendPath(value)
	}
	return paths
}

// BuildSlots ensures a session for every cookie path and pools the ones
// that came up. A path whose session cannot be established is skipped, not
// fatal; having zero usable slots is.
func (d *Driver) BuildSlots(ctx context.Context, cookiePaths []string) error {
	var slots []*SessionSlot
	for index, path := range cookiePaths {
		slotID := index + 1
		manager := &SessionManager{CookiesPath: path, Login: d.login}
		jar, err := manager.EnsureCookies(ctx, d.probe)
		if err != nil {
			slog.Warn("session slot init failed",
				slog.Int("slot", slotID), slog.String("cookies", path), slog.Any("error", err))
			continue
		}
		client, err := d.newClient(jar, d.cfg)
		if err != nil {
			slog.Warn("session slot client failed",
				slog.Int("slot", slotID), slog.String("cookies", path), slog.Any("error", err))
			continue
		}
		slot := &SessionSlot{
			SlotID:        slotID,
			CookiesPath:   path,
			Manager:       manager,
			Client:        client,
			active:        true,
			limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig),
			HealthTracker: pool.DefaultHealthTracker(),
		}
		slot.bindRateLimitHook(client)
		slots = append(slots, slot)
		slog.Info("session slot ready", slog.Int("slot", slotID), slog.String("cookies", path))
	}
	if len(slots) == 0 {
		return fmt.Errorf("no usable sessions in cookie pool")
	}

	d.all = slots
	d.slots = pool.New(slots, pool.Config{
		AlertHook: func(topic string, payload any) {
			slog.Warn("pool alert", slog.String("topic", topic), slog.Any("payload", payload))
		},
	})
	return nil
}

// Close shuts down every pooled client.
func (d *Driver) Close() {
	for _, slot := range d.all {
		if err := slot.Client.Close(); err != nil {
			slog.Warn("slot client close failed", slog.String("slot", slot.ID()), slog.Any("error", err))
		}
	}
}

// Run crawls the full account-by-keyword matrix and returns the number of
// records written.
func (d *Driver) Run(ctx context.Context, accounts []AccountSpec, keywords []string) (int, error) {
	total := 0
	filter := func(s *SessionSlot) bool {
		return s.AllowRequest(searchEndpoint)
	}
	for _, account := range accounts {
		for _, keyword := range keywords {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			slot, err := d.slots.Next(filter)
			if err != nil {
				slot, err = d.slots.NextWithWait(ctx, filter, slotWaitTimeout)
			}
			if err != nil {
				return total, fmt.Errorf("acquire session slot: %w", err)
			}

			slog.Info("crawling pair",
				slog.String("slot", slot.ID()),
				slog.String("account", account.Handle),
				slog.String("keyword", keyword))
			rows, err := d.crawlPair(ctx, slot, account, keyword)
			total += rows
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// crawlPair runs one account/keyword crawl on a slot. An authentication
// failure triggers exactly one login refresh and retry; a second failure
// records the pair as failed and cools the slot down.
func (d *Driver) crawlPair(ctx context.Context, slot *SessionSlot, account AccountSpec, keyword string) (int, error) {
	rows, err := d.crawlOnce(ctx, slot, account, keyword)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		return rows, err
	}

	slog.Warn("session expired, refreshing login once", slog.String("slot", slot.ID()))
	jar, refreshErr := slot.Manager.RefreshCookies(ctx, d.probe)
	if refreshErr != nil {
		slot.RecordFailure()
		d.slots.SoftDeactivate(slot, time.Hour)
		record := ErrorRecord(account.Handle, keyword,
			fmt.Sprintf("authentication_failed_after_refresh: %v", refreshErr))
		return rows, d.writer.Write(record)
	}

	client, err := d.newClient(jar, d.cfg)
	if err != nil {
		return rows, fmt.Errorf("rebuild slot client: %w", err)
	}
	slot.bindRateLimitHook(client)
	slot.Client.Close()
	slot.Client = client

	retryRows, err := d.crawlOnce(ctx, slot, account, keyword)
	rows += retryRows
	if errors.As(err, &authErr) {
		slog.Warn("still unauthenticated after refresh",
			slog.String("slot", slot.ID()),
			slog.String("account", account.Handle),
			slog.String("keyword", keyword))
		slot.RecordFailure()
		d.slots.SoftDeactivate(slot, time.Hour)
		record := ErrorRecord(account.Handle, keyword,
			fmt.Sprintf("authentication_failed_after_refresh: %v", err))
		return rows, d.writer.Write(record)
	}
	return rows, err
}

func (d *Driver) crawlOnce(ctx context.Context, slot *SessionSlot, account AccountSpec, keyword string) (int, error) {
	crawler := NewCrawler(slot.Client, d.window, d.cfg.MaxEmptyPages)
	rows := 0
	errorRows := 0
	err := crawler.Crawl(ctx, account, keyword, func(rec Record) error {
		if err := d.writer.Write(rec); err != nil {
			return err
		}
		rows++
		if rec.Error != "" {
			errorRows++
			slog.Warn("error record written",
				slog.String("account", rec.Account),
				slog.String("keyword", rec.Keyword),
				slog.String("error", rec.Error))
		} else {
			slog.Info("record written",
				slog.String("account", rec.Account),
				slog.String("keyword", rec.Keyword),
				slog.String("post_url", rec.PostURL))
		}
		return nil
	})
	if err == nil {
		slot.RecordSuccess()
		slog.Info("pair done",
			slog.String("account", account.Handle),
			slog.String("keyword", keyword),
			slog.Int("rows", rows),
			slog.Int("error_rows", errorRows))
	}
	return rows, err
}
