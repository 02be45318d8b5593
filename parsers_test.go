package xsearch

import (
	"fmt"
	"testing"
)

func graphqlTweetEntry(id, handle, createdAt, text string, extra string) string {
	return fmt.Sprintf(`{
		"entryId": "tweet-%s",
		"content": {
			"entryType": "TimelineTimelineItem",
			"itemContent": {
				"tweet_results": {
					"result": {
						"__typename": "Tweet",
						"rest_id": %q,
						"core": {"user_results": {"result": {"core": {"screen_name": %q}}}},
						"views": {"count": "1200", "state": "EnabledWithCount"},
						"legacy": {
							"created_at": %q,
							"full_text": %q,
							"favorite_count": 5,
							"retweet_count": 2,
							"reply_count": 1
							%s
						}
					}
				}
			}
		}
	}`, id, id, handle, createdAt, text, extra)
}

func graphqlPage(entries []string, cursorEntries string) string {
	payload := `{"data": {"search_by_raw_query": {"search_timeline": {"timeline": {"instructions": [{"type": "TimelineAddEntries", "entries": [`
	for i, e := range entries {
		if i > 0 {
			payload += ","
		}
		payload += e
	}
	if cursorEntries != "" {
		if len(entries) > 0 {
			payload += ","
		}
		payload += cursorEntries
	}
	payload += `]}]}}}}}`
	return payload
}

const bottomCursorEntry = `{
	"entryId": "cursor-bottom-0",
	"content": {"entryType": "TimelineTimelineCursor", "cursorType": "Bottom", "value": "next-page-cursor"}
}`

func TestParseGraphQLSearchPage(t *testing.T) {
	entry := graphqlTweetEntry("100", "OpenAI", "Mon Sep 01 10:30:00 +0000 2025", "codex launches today", "")
	page, err := ParseSearchPage([]byte(graphqlPage([]string{entry}, bottomCursorEntry)))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if len(page.Posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(page.Posts))
	}
	post := page.Posts[0]
	if post.TweetID != "100" {
		t.Errorf("TweetID = %q", post.TweetID)
	}
	if post.AccountHandle != "OpenAI" {
		t.Errorf("AccountHandle = %q", post.AccountHandle)
	}
	if post.PostTime != "2025-09-01T10:30:00Z" {
		t.Errorf("PostTime = %q", post.PostTime)
	}
	if post.PostURL != "https://x.com/OpenAI/status/100" {
		t.Errorf("PostURL = %q", post.PostURL)
	}
	if post.Views != "1200" {
		t.Errorf("Views = %q", post.Views)
	}
	if post.Likes != "5" || post.Reposts != "2" || post.Replies != "1" {
		t.Errorf("counts = %q/%q/%q", post.Likes, post.Reposts, post.Replies)
	}
	if post.IsReply() {
		t.Error("post must not be a reply")
	}
	if page.NextCursor != "next-page-cursor" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
}

func TestParseGraphQLVisibilityWrapper(t *testing.T) {
	payload := graphqlPage([]string{`{
		"entryId": "tweet-200",
		"content": {"itemContent": {"tweet_results": {"result": {
			"__typename": "TweetWithVisibilityResults",
			"tweet": {
				"__typename": "Tweet",
				"rest_id": "200",
				"core": {"user_results": {"result": {"legacy": {"screen_name": "someone"}}}},
				"legacy": {"created_at": "Tue Sep 02 00:00:00 +0000 2025", "full_text": "wrapped"}
			}
		}}}}
	}`}, "")
	page, err := ParseSearchPage([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if len(page.Posts) != 1 || page.Posts[0].TweetID != "200" || page.Posts[0].Text != "wrapped" {
		t.Fatalf("unexpected posts: %+v", page.Posts)
	}
	if page.Posts[0].AccountHandle != "someone" {
		t.Errorf("handle fallback to legacy screen_name failed: %q", page.Posts[0].AccountHandle)
	}
}

func TestParseGraphQLQuotedText(t *testing.T) {
	entry := `{
		"entryId": "tweet-300",
		"content": {"itemContent": {"tweet_results": {"result": {
			"__typename": "Tweet",
			"rest_id": "300",
			"core": {"user_results": {"result": {"core": {"screen_name": "OpenAI"}}}},
			"quoted_status_result": {"result": {
				"__typename": "Tweet",
				"legacy": {"full_text": "the quoted original"}
			}},
			"legacy": {"created_at": "Mon Sep 01 10:30:00 +0000 2025", "full_text": "commentary"}
		}}}}
	}`
	page, err := ParseSearchPage([]byte(graphqlPage([]string{entry}, "")))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if page.Posts[0].QuotedText != "the quoted original" {
		t.Errorf("QuotedText = %q", page.Posts[0].QuotedText)
	}
}

func TestParseGraphQLRetweetTextFallback(t *testing.T) {
	entry := `{
		"entryId": "tweet-301",
		"content": {"itemContent": {"tweet_results": {"result": {
			"__typename": "Tweet",
			"rest_id": "301",
			"core": {"user_results": {"result": {"core": {"screen_name": "OpenAI"}}}},
			"legacy": {
				"created_at": "Mon Sep 01 10:30:00 +0000 2025",
				"full_text": "RT @x: truncated...",
				"retweeted_status": {"full_text": "the full retweeted text"}
			}
		}}}}
	}`
	page, err := ParseSearchPage([]byte(graphqlPage([]string{entry}, "")))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if page.Posts[0].QuotedText != "the full retweeted text" {
		t.Errorf("QuotedText = %q", page.Posts[0].QuotedText)
	}
}

func TestParseGraphQLViewsEnabledWithoutCount(t *testing.T) {
	payload := graphqlPage([]string{`{
		"entryId": "tweet-400",
		"content": {"itemContent": {"tweet_results": {"result": {
			"__typename": "Tweet",
			"rest_id": "400",
			"core": {"user_results": {"result": {"core": {"screen_name": "OpenAI"}}}},
			"views": {"state": "Enabled"},
			"legacy": {"created_at": "Mon Sep 01 10:30:00 +0000 2025", "full_text": "no view count"}
		}}}}
	}`}, "")
	page, err := ParseSearchPage([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if page.Posts[0].Views != "" {
		t.Errorf("Views = %q, want empty", page.Posts[0].Views)
	}
}

func TestParseGraphQLReplyFlag(t *testing.T) {
	entry := graphqlTweetEntry("500", "OpenAI", "Mon Sep 01 10:30:00 +0000 2025", "replying",
		`, "in_reply_to_status_id_str": "499"`)
	page, err := ParseSearchPage([]byte(graphqlPage([]string{entry}, "")))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if !page.Posts[0].IsReply() {
		t.Error("expected reply flag")
	}
}

func TestParseGraphQLLastBottomCursorWins(t *testing.T) {
	first := `{"entryId": "cursor-bottom-0", "content": {"cursorType": "Bottom", "value": "early"}}`
	second := `{"entryId": "cursor-bottom-1", "content": {"cursorType": "Bottom", "value": "late"}}`
	page, err := ParseSearchPage([]byte(graphqlPage([]string{first, second}, "")))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if page.NextCursor != "late" {
		t.Errorf("NextCursor = %q, want %q", page.NextCursor, "late")
	}
}

func TestParseGraphQLReplaceEntryCursor(t *testing.T) {
	payload := `{"data": {"search_by_raw_query": {"search_timeline": {"timeline": {"instructions": [
		{"type": "TimelineReplaceEntry", "entry": {
			"entryId": "cursor-bottom-0",
			"content": {"operation": {"cursor": {"cursorType": "Bottom", "value": "replace-cursor"}}}
		}}
	]}}}}}`
	page, err := ParseSearchPage([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if page.NextCursor != "replace-cursor" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
}

func TestParseGraphQLEmptyPayload(t *testing.T) {
	page, err := ParseSearchPage([]byte(`{"data": {}}`))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if len(page.Posts) != 0 || page.NextCursor != "" {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestParseSearchPageInvalidJSON(t *testing.T) {
	if _, err := ParseSearchPage([]byte(`{"data": `)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseLegacySearchPage(t *testing.T) {
	payload := `{
		"globalObjects": {
			"tweets": {
				"900": {
					"id_str": "900",
					"created_at": "Mon Sep 01 08:00:00 +0000 2025",
					"full_text": "older post",
					"user_id_str": "42",
					"favorite_count": 1,
					"retweet_count": 0,
					"reply_count": 0,
					"ext_views": {"count": 333}
				},
				"1000": {
					"id_str": "1000",
					"created_at": "Mon Sep 01 09:00:00 +0000 2025",
					"full_text": "newer post quoting",
					"user_id_str": "42",
					"quoted_status_id_str": "900",
					"favorite_count": 7,
					"retweet_count": 3,
					"reply_count": 2
				}
			},
			"users": {"42": {"screen_name": "OpenAI"}}
		},
		"timeline": {"instructions": [
			{"addEntries": {"entries": [
				{"entryId": "sq-cursor-bottom", "content": {"operation": {"cursor": {"cursorType": "Bottom", "value": "legacy-cursor"}}}}
			]}}
		]}
	}`
	page, err := ParseSearchPage([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if len(page.Posts) != 2 {
		t.Fatalf("posts = %d, want 2", len(page.Posts))
	}
	// Newest first by numeric id.
	if page.Posts[0].TweetID != "1000" || page.Posts[1].TweetID != "900" {
		t.Fatalf("order = %q, %q", page.Posts[0].TweetID, page.Posts[1].TweetID)
	}
	if page.Posts[0].QuotedText != "older post" {
		t.Errorf("QuotedText = %q", page.Posts[0].QuotedText)
	}
	if page.Posts[0].AccountHandle != "OpenAI" {
		t.Errorf("AccountHandle = %q", page.Posts[0].AccountHandle)
	}
	if page.Posts[1].Views != "333" {
		t.Errorf("Views = %q", page.Posts[1].Views)
	}
	if page.NextCursor != "legacy-cursor" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
}

func TestGraphQLAndLegacyShapesAgree(t *testing.T) {
	entry := `{
		"entryId": "tweet-7000",
		"content": {"itemContent": {"tweet_results": {"result": {
			"__typename": "Tweet",
			"rest_id": "7000",
			"core": {"user_results": {"result": {"core": {"screen_name": "OpenAI"}}}},
			"views": {"count": "1200", "state": "EnabledWithCount"},
			"quoted_status_result": {"result": {
				"__typename": "Tweet",
				"legacy": {"full_text": "the quoted original"}
			}},
			"legacy": {
				"created_at": "Mon Sep 01 10:30:00 +0000 2025",
				"full_text": "codex launches today",
				"favorite_count": 5,
				"retweet_count": 2,
				"reply_count": 1,
				"in_reply_to_status_id_str": "6500"
			}
		}}}}
	}`
	graphql, err := ParseSearchPage([]byte(graphqlPage([]string{entry}, "")))
	if err != nil {
		t.Fatalf("ParseSearchPage(graphql): %v", err)
	}
	if len(graphql.Posts) != 1 {
		t.Fatalf("graphql posts = %d, want 1", len(graphql.Posts))
	}

	legacyPayload := `{
		"globalObjects": {
			"tweets": {
				"6999": {
					"id_str": "6999",
					"created_at": "Mon Sep 01 09:00:00 +0000 2025",
					"full_text": "the quoted original",
					"user_id_str": "7"
				},
				"7000": {
					"id_str": "7000",
					"created_at": "Mon Sep 01 10:30:00 +0000 2025",
					"full_text": "codex launches today",
					"user_id_str": "42",
					"quoted_status_id_str": "6999",
					"favorite_count": 5,
					"retweet_count": 2,
					"reply_count": 1,
					"in_reply_to_status_id_str": "6500",
					"ext_views": {"count": 1200}
				}
			},
			"users": {"42": {"screen_name": "OpenAI"}, "7": {"screen_name": "someone"}}
		}
	}`
	legacy, err := ParseSearchPage([]byte(legacyPayload))
	if err != nil {
		t.Fatalf("ParseSearchPage(legacy): %v", err)
	}
	if len(legacy.Posts) != 2 {
		t.Fatalf("legacy posts = %d, want 2", len(legacy.Posts))
	}

	// Both shapes describe the same post; every parsed field must agree.
	if legacy.Posts[0] != graphql.Posts[0] {
		t.Fatalf("shapes disagree:\ngraphql = %+v\nlegacy  = %+v", graphql.Posts[0], legacy.Posts[0])
	}
}

func TestParseLegacyUnknownUser(t *testing.T) {
	payload := `{"globalObjects": {"tweets": {"1": {
		"id_str": "1", "created_at": "Mon Sep 01 08:00:00 +0000 2025",
		"full_text": "orphan", "user_id_str": "404"
	}}, "users": {}}}`
	page, err := ParseSearchPage([]byte(payload))
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if page.Posts[0].AccountHandle != "unknown" {
		t.Errorf("AccountHandle = %q, want unknown", page.Posts[0].AccountHandle)
	}
}

func TestNumericIDLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"9", "10", true},
		{"10", "9", false},
		{"100", "200", true},
		{"200", "100", false},
		{"1000", "1000", false},
	}
	for _, tc := range cases {
		if got := numericIDLess(tc.a, tc.b); got != tc.want {
			t.Errorf("numericIDLess(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestScalarString(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"123"`, "123"},
		{`123`, "123"},
		{`0`, "0"},
		{`null`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		if got := scalarString([]byte(tc.raw)); got != tc.want {
			t.Errorf("scalarString(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
