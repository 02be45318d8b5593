package xsearch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// SearchClient is the page fetcher the crawler drives. *Client satisfies
// it; tests script it.
type SearchClient interface {
	SearchAccountKeyword(ctx context.Context, handle, keyword string, start, end Date, cursor string) ([]byte, error)
}

// Crawler walks the paginated search results for one account/keyword pair
// and emits normalized records. It owns the dedupe and termination rules;
// fetching and parsing are injected.
type Crawler struct {
	Client        SearchClient
	Window        DateWindow
	MaxEmptyPages int
	Parse         func([]byte) (SearchPage, error)
}

// NewCrawler wires a crawler over a client with the default payload parser.
func NewCrawler(client SearchClient, window DateWindow, maxEmptyPages int) *Crawler {
	return &Crawler{
		Client:        client,
		Window:        window,
		MaxEmptyPages: maxEmptyPages,
		Parse:         ParseSearchPage,
	}
}

// Crawl pages through the pair's results and calls emit for every matching
// post. Authentication failures and emit errors propagate; any other fetch
// failure emits one error record and ends the pair cleanly.
//
// Pagination stops on: an empty page with no cursor, a post older than the
// window, MaxEmptyPages consecutive empty pages, a missing cursor, or a
// cursor already seen.
func (c *Crawler) Crawl(ctx context.Context, account AccountSpec, keyword string, emit func(Record) error) error {
	seenTweetIDs := make(map[string]struct{})
	seenCursors := make(map[string]struct{})
	cursor := ""
	emptyPageStreak := 0
	pageIndex := 0

	log := slog.With(slog.String("account", account.Handle), slog.String("keyword", keyword))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pageIndex++

		payload, err := c.Client.SearchAccountKeyword(ctx, account.Handle, keyword,
			c.Window.Start, c.Window.End, cursor)
		if err != nil {
			var authErr *AuthenticationError
			if errors.As(err, &authErr) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("page fetch failed", slog.Int("page", pageIndex), slog.Any("error", err))
			return emit(ErrorRecord(account.Handle, keyword, err.Error()))
		}

		page, err := c.Parse(payload)
		if err != nil {
			return err
		}

		if len(page.Posts) > 0 {
			emptyPageStreak = 0
		} else {
			emptyPageStreak++
		}
		log.Info("page fetched",
			slog.Int("page", pageIndex),
			slog.Int("posts", len(page.Posts)),
			slog.Bool("has_cursor", page.NextCursor != ""),
			slog.Int("empty_page_streak", emptyPageStreak))

		if len(page.Posts) == 0 && page.NextCursor == "" {
			log.Info("stopping: no posts and no cursor")
			return nil
		}

		reachedOlderPosts := false
		for _, post := range page.Posts {
			if !strings.EqualFold(post.AccountHandle, account.Handle) {
				continue
			}
			if _, seen := seenTweetIDs[post.TweetID]; seen {
				continue
			}
			seenTweetIDs[post.TweetID] = struct{}{}

			if post.IsReply() {
				continue
			}
			if !c.Window.Contains(post.CreatedAtUTC) {
				if c.Window.LocalDate(post.CreatedAtUTC).Before(c.Window.Start) {
					reachedOlderPosts = true
				}
				continue
			}
			if !keywordHit(keyword, post.Text, post.QuotedText) {
				continue
			}

			log.Info("post matched",
				slog.String("tweet_id", post.TweetID),
				slog.String("post_time", post.PostTime))
			if err := emit(PostRecord(account.Handle, keyword, post)); err != nil {
				return err
			}
		}

		if reachedOlderPosts {
			log.Info("stopping: reached posts older than the window")
			return nil
		}
		if emptyPageStreak >= c.MaxEmptyPages {
			log.Info("stopping: empty page streak limit",
				slog.Int("max_empty_pages", c.MaxEmptyPages))
			return nil
		}
		if page.NextCursor == "" {
			log.Info("stopping: no next cursor")
			return nil
		}
		if page.NextCursor == cursor {
			log.Info("stopping: cursor repeated")
			return nil
		}
		if _, seen := seenCursors[page.NextCursor]; seen {
			log.Info("stopping: cursor already visited")
			return nil
		}
		seenCursors[page.NextCursor] = struct{}{}
		log.Debug("advancing cursor", slog.Int("cursor_length", len(page.NextCursor)))
		cursor = page.NextCursor
	}
}

// keywordHit reports whether every whitespace-separated term of the keyword
// occurs, case-insensitively, in the post text or its quoted text.
func keywordHit(keyword, text, quotedText string) bool {
	terms := strings.Fields(strings.ToLower(keyword))
	if len(terms) == 0 {
		return false
	}
	haystack := strings.ToLower(text + "\n" + quotedText)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
