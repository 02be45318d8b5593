// Command xsearch crawls X search results for a set of accounts and
// keywords over an inclusive local-date window and writes one JSONL record
// per matching post into a timestamped run directory.
//
// Usage:
//
//	xsearch [flags] START_DATE END_DATE
//
// Dates use the YYYY_M_D form, e.g. 2026_3_7.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	xsearch "github.com/xsearchkit/go-xsearch"
	"github.com/xsearchkit/go-xsearch/login"
)

type loginEnv struct {
	Username   string `envconfig:"LOGIN_USERNAME"`
	Password   string `envconfig:"LOGIN_PASSWORD"`
	TOTPSecret string `envconfig:"LOGIN_TOTP_SECRET"`
}

func main() {
	os.Exit(run())
}

func run() int {
	accountsFile := flag.String("accounts-file", "docs/Accounts.txt", "account URL file, one per line")
	keysFile := flag.String("keys-file", "docs/Keys.txt", "keyword file, one rule per line")
	cookiesFile := flag.String("cookies-file", "state/cookies.json", "cookie storage path")
	cookiesPoolFile := flag.String("cookies-pool-file", "", "optional cookie pool file, one cookies.json path per line")
	outputDir := flag.String("output-dir", "output", "root directory for run output")
	loginHelper := flag.String("login-helper", "", "external login helper command; it must write the cookie jar as JSON")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] START_DATE END_DATE\n\nDates use the YYYY_M_D form, e.g. 2026_3_7. Both bounds are inclusive.\n\n",
			os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		return 2
	}
	startDate, err := xsearch.ParseCLIDate(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	endDate, err := xsearch.ParseCLIDate(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if startDate.After(endDate) {
		fmt.Fprintln(os.Stderr, "error: start date is after end date")
		return 2
	}

	cfg, err := xsearch.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	accounts, err := loadAccountsFile(*accountsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	keywords, err := loadKeywordsFile(*keysFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if len(accounts) == 0 {
		fmt.Fprintln(os.Stderr, "error: accounts file is empty after filtering")
		return 2
	}
	if len(keywords) == 0 {
		fmt.Fprintln(os.Stderr, "error: keys file is empty after filtering")
		return 2
	}

	var poolLines []string
	if *cookiesPoolFile != "" {
		poolLines, err = readLines(*cookiesPoolFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
	}
	cookiePaths := xsearch.ResolveCookiePoolPaths(*cookiesFile, poolLines)

	writer, err := xsearch.NewRunWriter(*outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	defer writer.Close()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(writer.Logger(level))
	slog.Info("run started",
		slog.String("run_id", writer.RunID),
		slog.String("log_file", writer.LogPath),
		slog.String("start", startDate.ISO()),
		slog.String("end", endDate.ISO()))

	zone, err := xsearch.LoadZone(cfg.Timezone)
	if err != nil {
		slog.Error("timezone load failed", slog.Any("error", err))
		return 2
	}
	window := xsearch.DateWindow{Start: startDate, End: endDate, Zone: zone}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := xsearch.NewDriver(cfg, window, writer, buildLoginProvider(*loginHelper, cfg))
	slog.Info("preparing session pool", slog.Int("candidates", len(cookiePaths)))
	if err := driver.BuildSlots(ctx, cookiePaths); err != nil {
		slog.Error("session pool init failed", slog.Any("error", err))
		return 2
	}
	defer driver.Close()

	total, runErr := driver.Run(ctx, accounts, keywords)
	slog.Info("run finished",
		slog.Int("total_rows", total),
		slog.String("data_file", writer.DataPath),
		slog.String("log_file", writer.LogPath))
	if runErr != nil {
		slog.Error("run aborted", slog.Any("error", runErr))
		return 1
	}
	return 0
}

// buildLoginProvider picks the refresh strategy: an external browser helper
// when configured, otherwise the native onboarding flow driven by X_LOGIN_*
// credentials. Without either, expired sessions stay expired.
func buildLoginProvider(helper string, cfg xsearch.Config) xsearch.LoginProvider {
	if helper != "" {
		return &login.ExecProvider{
			Command:     strings.Fields(helper),
			CookiesPath: filepath.Join(os.TempDir(), "xsearch-login-cookies.json"),
			Channels:    cfg.LoginChannels,
		}
	}
	var le loginEnv
	if err := envconfig.Process("x", &le); err == nil && le.Username != "" && le.Password != "" {
		return &login.FlowProvider{
			Username:   le.Username,
			Password:   le.Password,
			TOTPSecret: le.TOTPSecret,
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

func loadAccountsFile(path string) ([]xsearch.AccountSpec, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return xsearch.LoadAccounts(lines)
}

func loadKeywordsFile(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return xsearch.LoadKeywords(lines), nil
}
