package xsearch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// LoginProvider produces a fresh authenticated cookie jar. Implementations
// live in the login package; tests inline fakes.
type LoginProvider interface {
	Login(ctx context.Context) ([]Cookie, error)
}

// ProbeFn checks whether a jar still authenticates against the platform.
type ProbeFn func(ctx context.Context, jar []Cookie) bool

// SessionManager owns the cookie file lifecycle: load, probe, refresh via
// the login provider, persist.
type SessionManager struct {
	CookiesPath string
	Login       LoginProvider
}

// LoadCookies reads the jar from disk. A missing file returns nil without
// error; a file holding anything but a cookie array is an error.
func (m *SessionManager) LoadCookies() ([]Cookie, error) {
	data, err := os.ReadFile(m.CookiesPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	var jar []Cookie
	if err := json.Unmarshal(data, &jar); err != nil {
		return nil, fmt.Errorf("decode cookies file %s: %w", m.CookiesPath, err)
	}
	return jar, nil
}

// SaveCookies persists the jar, creating parent directories as needed.
func (m *SessionManager) SaveCookies(jar []Cookie) error {
	if dir := filepath.Dir(m.CookiesPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cookies dir: %w", err)
		}
	}
	data, err := json.MarshalIndentWithOption(jar, "", "  ", json.DisableHTMLEscape())
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.WriteFile(m.CookiesPath, data, 0o600); err != nil {
		return fmt.Errorf("write cookies file: %w", err)
	}
	return nil
}

// EnsureCookies returns a usable jar, preferring the stored one. A stored
// jar that fails the probe but still carries auth_token+ct0 is reused
// anyway: the probe endpoint false-negatives on valid sessions, and a real
// auth failure later triggers a refresh at the call site.
func (m *SessionManager) EnsureCookies(ctx context.Context, probe ProbeFn) ([]Cookie, error) {
	existing, err := m.LoadCookies()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		if probe(ctx, existing) {
			return existing, nil
		}
		if HasCoreAuthCookies(existing) {
			slog.Warn("stored cookies failed probe but carry auth_token+ct0, reusing session")
			return existing, nil
		}
	}
	return m.RefreshCookies(ctx, probe)
}

// RefreshCookies runs the login provider and persists the result. A probe
// failure after login is fatal only when the core auth cookies are missing
// too.
func (m *SessionManager) RefreshCookies(ctx context.Context, probe ProbeFn) ([]Cookie, error) {
	if m.Login == nil {
		return nil, fmt.Errorf("no login provider configured")
	}
	jar, err := m.Login.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !probe(ctx, jar) {
		if !HasCoreAuthCookies(jar) {
			return nil, fmt.Errorf("login completed but credential probe failed")
		}
		slog.Warn("post-login probe failed but auth_token+ct0 captured, continuing")
	}
	if err := m.SaveCookies(jar); err != nil {
		return nil, err
	}
	return jar, nil
}
