package login

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	json "github.com/goccy/go-json"

	xsearch "github.com/xsearchkit/go-xsearch"
)

// ExecProvider delegates login to an external helper, usually one that
// drives a real browser for the interactive flow. The helper must write
// the captured cookie array as JSON to CookiesPath and exit zero.
//
// The preferred browser channels are forwarded through the
// X_LOGIN_BROWSER_CHANNELS environment variable; helpers try each channel
// in order before falling back to a bundled browser.
type ExecProvider struct {
	Command     []string
	CookiesPath string
	Channels    string
	Timeout     time.Duration
}

// Login runs the helper and reads back the jar it produced.
func (p *ExecProvider) Login(ctx context.Context) ([]xsearch.Cookie, error) {
	if len(p.Command) == 0 {
		return nil, fmt.Errorf("exec login needs a command")
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	slog.Info("running login helper", slog.String("command", p.Command[0]))
	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"X_LOGIN_COOKIES_PATH="+p.CookiesPath,
	)
	if p.Channels != "" {
		cmd.Env = append(cmd.Env, "X_LOGIN_BROWSER_CHANNELS="+p.Channels)
	}
	// The helper is interactive: the user completes the login in the
	// browser it opens.
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("login helper: %w", err)
	}

	data, err := os.ReadFile(p.CookiesPath)
	if err != nil {
		return nil, fmt.Errorf("read helper cookies: %w", err)
	}
	var jar []xsearch.Cookie
	if err := json.Unmarshal(data, &jar); err != nil {
		return nil, fmt.Errorf("decode helper cookies %s: %w", p.CookiesPath, err)
	}
	if len(jar) == 0 {
		return nil, fmt.Errorf("login helper wrote an empty cookie jar")
	}
	return jar, nil
}
