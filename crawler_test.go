package xsearch

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClient feeds the crawler a fixed sequence of pages or errors and
// records the cursors it was asked for.
type scriptedClient struct {
	pages   []SearchPage
	errs    []error
	calls   int
	cursors []string
}

func (s *scriptedClient) SearchAccountKeyword(ctx context.Context, handle, keyword string, start, end Date, cursor string) ([]byte, error) {
	i := s.calls
	s.calls++
	s.cursors = append(s.cursors, cursor)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return []byte{byte(i)}, nil
}

func (s *scriptedClient) parse(payload []byte) (SearchPage, error) {
	return s.pages[payload[0]], nil
}

func testWindow() DateWindow {
	return DateWindow{
		Start: Date{2025, time.September, 1},
		End:   Date{2025, time.September, 2},
		Zone:  time.FixedZone("Asia/Shanghai", 8*3600),
	}
}

func mkPost(id, handle string, at time.Time, text, quoted, replyTo string) ParsedPost {
	return ParsedPost{
		TweetID:           id,
		AccountHandle:     handle,
		CreatedAtUTC:      at,
		PostTime:          at.Format(time.RFC3339),
		Text:              text,
		PostURL:           "https://x.com/" + handle + "/status/" + id,
		QuotedText:        quoted,
		InReplyToStatusID: replyTo,
	}
}

func runCrawl(t *testing.T, client *scriptedClient, keyword string) ([]Record, error) {
	t.Helper()
	crawler := &Crawler{
		Client:        client,
		Window:        testWindow(),
		MaxEmptyPages: 3,
		Parse:         client.parse,
	}
	var records []Record
	err := crawler.Crawl(context.Background(), AccountSpec{Handle: "OpenAI"}, keyword,
		func(rec Record) error {
			records = append(records, rec)
			return nil
		})
	return records, err
}

func TestCrawlFiltersAndEmits(t *testing.T) {
	inWindow := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	client := &scriptedClient{pages: []SearchPage{{
		Posts: []ParsedPost{
			mkPost("1", "OpenAI", inWindow, "codex update shipped", "", ""),
			mkPost("2", "someoneelse", inWindow, "codex spam", "", ""),
			mkPost("3", "openai", inWindow, "codex casefold match", "", ""),
			mkPost("1", "OpenAI", inWindow, "codex duplicate", "", ""),
			mkPost("4", "OpenAI", inWindow, "codex reply", "", "999"),
			mkPost("5", "OpenAI", inWindow, "unrelated text", "", ""),
			mkPost("6", "OpenAI", inWindow, "commentary", "quoted codex mention", ""),
		},
	}}}

	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	var ids []string
	for _, rec := range records {
		if rec.Error != "" {
			t.Fatalf("unexpected error record: %+v", rec)
		}
		if rec.Account != "OpenAI" || rec.Keyword != "codex" {
			t.Fatalf("record identity wrong: %+v", rec)
		}
		ids = append(ids, rec.PostURL)
	}
	want := []string{
		"https://x.com/OpenAI/status/1",
		"https://x.com/openai/status/3",
		"https://x.com/OpenAI/status/6",
	}
	if len(ids) != len(want) {
		t.Fatalf("emitted %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("emitted %v, want %v", ids, want)
		}
	}
}

func TestCrawlMultiTermKeyword(t *testing.T) {
	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	client := &scriptedClient{pages: []SearchPage{{
		Posts: []ParsedPost{
			mkPost("1", "OpenAI", at, "Alpha release notes", "includes BETA details", ""),
			mkPost("2", "OpenAI", at, "alpha only", "", ""),
		},
	}}}
	records, err := runCrawl(t, client, "alpha beta")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 1 || records[0].PostURL != "https://x.com/OpenAI/status/1" {
		t.Fatalf("records = %+v", records)
	}
}

func TestCrawlStopsOnOlderPost(t *testing.T) {
	older := time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC)
	client := &scriptedClient{pages: []SearchPage{{
		Posts:      []ParsedPost{mkPost("1", "OpenAI", older, "codex from the past", "", "")},
		NextCursor: "more",
	}}}
	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %+v, want none", records)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want 1 (stop on older post)", client.calls)
	}
}

func TestCrawlLocalDateBoundary(t *testing.T) {
	// 2025-08-31 23:00 UTC is 2025-09-01 07:00 in Asia/Shanghai: inside.
	// 2025-08-31 15:00 UTC is 2025-08-31 23:00 local: older, triggers stop.
	inside := time.Date(2025, 8, 31, 23, 0, 0, 0, time.UTC)
	before := time.Date(2025, 8, 31, 15, 0, 0, 0, time.UTC)
	client := &scriptedClient{pages: []SearchPage{{
		Posts: []ParsedPost{
			mkPost("1", "OpenAI", inside, "codex boundary", "", ""),
			mkPost("2", "OpenAI", before, "codex too early", "", ""),
		},
		NextCursor: "more",
	}}}
	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 1 || records[0].PostURL != "https://x.com/OpenAI/status/1" {
		t.Fatalf("records = %+v", records)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want 1", client.calls)
	}
}

func TestCrawlStopsOnRepeatedCursor(t *testing.T) {
	at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	client := &scriptedClient{pages: []SearchPage{
		{Posts: []ParsedPost{mkPost("1", "OpenAI", at, "codex one", "", "")}, NextCursor: "c1"},
		{Posts: []ParsedPost{mkPost("2", "OpenAI", at, "codex two", "", "")}, NextCursor: "c1"},
	}}
	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if client.calls != 2 {
		t.Fatalf("calls = %d, want 2", client.calls)
	}
	if client.cursors[1] != "c1" {
		t.Fatalf("second call cursor = %q, want c1", client.cursors[1])
	}
}

func TestCrawlStopsOnEmptyPageStreak(t *testing.T) {
	client := &scriptedClient{pages: []SearchPage{
		{NextCursor: "c1"},
		{NextCursor: "c2"},
		{NextCursor: "c3"},
		{NextCursor: "c4"},
	}}
	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %+v, want none", records)
	}
	if client.calls != 3 {
		t.Fatalf("calls = %d, want 3 (empty page streak)", client.calls)
	}
}

func TestCrawlStopsWithoutPostsOrCursor(t *testing.T) {
	client := &scriptedClient{pages: []SearchPage{{}}}
	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 0 || client.calls != 1 {
		t.Fatalf("records=%d calls=%d, want 0/1", len(records), client.calls)
	}
}

func TestCrawlEmitsErrorRecordOnFetchFailure(t *testing.T) {
	client := &scriptedClient{
		pages: []SearchPage{{}},
		errs:  []error{&ProtocolRequestError{Path: "/x", Status: 500, Body: "boom"}},
	}
	records, err := runCrawl(t, client, "codex")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Error == "" || rec.Account != "OpenAI" || rec.Keyword != "codex" {
		t.Fatalf("error record = %+v", rec)
	}
	if rec.PostTime != "" || rec.Text != "" || rec.PostURL != "" {
		t.Fatalf("error record must leave post fields empty: %+v", rec)
	}
}

func TestCrawlPropagatesAuthenticationError(t *testing.T) {
	client := &scriptedClient{
		pages: []SearchPage{{}},
		errs:  []error{&AuthenticationError{Status: 401}},
	}
	records, err := runCrawl(t, client, "codex")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthenticationError", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %+v, want none", records)
	}
}

func TestKeywordHit(t *testing.T) {
	cases := []struct {
		keyword, text, quoted string
		want                  bool
	}{
		{"codex", "Codex shipped", "", true},
		{"codex", "nothing here", "codex in quote", true},
		{"alpha beta", "alpha", "beta", true},
		{"alpha beta", "alpha", "", false},
		{"", "anything", "", false},
		{"中文", "含有中文的帖子", "", true},
	}
	for _, tc := range cases {
		if got := keywordHit(tc.keyword, tc.text, tc.quoted); got != tc.want {
			t.Errorf("keywordHit(%q, %q, %q) = %v, want %v", tc.keyword, tc.text, tc.quoted, got, tc.want)
		}
	}
}
