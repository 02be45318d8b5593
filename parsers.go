package xsearch

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// ParsedPost is one normalized post row extracted from a search payload.
// Engagement counts stay strings: the platform mixes numbers and strings
// across payload generations and absent values render as "".
type ParsedPost struct {
	TweetID           string
	AccountHandle     string
	CreatedAtUTC      time.Time
	PostTime          string
	Text              string
	PostURL           string
	Views             string
	Likes             string
	Reposts           string
	Replies           string
	QuotedText        string
	InReplyToStatusID string
}

// IsReply reports whether the post replies to another status.
func (p ParsedPost) IsReply() bool {
	return p.InReplyToStatusID != ""
}

// SearchPage is one page of parsed posts plus the pagination cursor, ""
// when the payload carried no bottom cursor.
type SearchPage struct {
	Posts      []ParsedPost
	NextCursor string
}

// tweetResult is the GraphQL tweet_results.result node, possibly wrapped
// in a visibility shell with the real tweet nested under "tweet".
type tweetResult struct {
	Typename string       `json:"__typename"`
	Tweet    *tweetResult `json:"tweet"`
	RestID   string       `json:"rest_id"`
	Core     struct {
		UserResults struct {
			Result struct {
				Core struct {
					ScreenName string `json:"screen_name"`
				} `json:"core"`
				Legacy struct {
					ScreenName string `json:"screen_name"`
				} `json:"legacy"`
			} `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy *legacyTweet `json:"legacy"`
	Views  *struct {
		Count json.RawMessage `json:"count"`
		State string          `json:"state"`
	} `json:"views"`
	QuotedStatusResult struct {
		Result *tweetResult `json:"result"`
	} `json:"quoted_status_result"`
	RetweetedStatusResult struct {
		Result *tweetResult `json:"result"`
	} `json:"retweeted_status_result"`
}

// legacyTweet covers both the GraphQL "legacy" block and the adaptive
// globalObjects tweet object; the field sets overlap almost completely.
type legacyTweet struct {
	CreatedAt            string          `json:"created_at"`
	IDStr                string          `json:"id_str"`
	FullText             string          `json:"full_text"`
	FavoriteCount        json.RawMessage `json:"favorite_count"`
	RetweetCount         json.RawMessage `json:"retweet_count"`
	ReplyCount           json.RawMessage `json:"reply_count"`
	InReplyToStatusIDStr string          `json:"in_reply_to_status_id_str"`
	QuotedStatusIDStr    string          `json:"quoted_status_id_str"`
	RetweetedStatusIDStr string          `json:"retweeted_status_id_str"`
	RetweetedStatus      *legacyTweet    `json:"retweeted_status"`
	RetweetedStatusResult struct {
		Result *tweetResult `json:"result"`
	} `json:"retweeted_status_result"`
	UserIDStr string          `json:"user_id_str"`
	UserID    json.RawMessage `json:"user_id"`
	ExtViews  *struct {
		Count json.RawMessage `json:"count"`
		State string          `json:"state"`
	} `json:"ext_views"`
}

type timelineEntry struct {
	EntryID string `json:"entryId"`
	Content struct {
		EntryType   string `json:"entryType"`
		CursorType  string `json:"cursorType"`
		Value       string `json:"value"`
		ItemContent struct {
			TweetResults struct {
				Result *tweetResult `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
		Operation struct {
			Cursor struct {
				Value      string `json:"value"`
				CursorType string `json:"cursorType"`
			} `json:"cursor"`
		} `json:"operation"`
	} `json:"content"`
}

type searchPayload struct {
	Data json.RawMessage `json:"data"`

	GlobalObjects struct {
		Tweets map[string]legacyTweet `json:"tweets"`
		Users  map[string]struct {
			ScreenName string `json:"screen_name"`
		} `json:"users"`
	} `json:"globalObjects"`
	Timeline struct {
		Instructions []struct {
			AddEntries struct {
				Entries []timelineEntry `json:"entries"`
			} `json:"addEntries"`
		} `json:"instructions"`
	} `json:"timeline"`
}

// ParseSearchPage parses a SearchTimeline payload, dispatching between the
// modern GraphQL shape and the legacy adaptive shape on the "data" key.
func ParseSearchPage(payload []byte) (SearchPage, error) {
	var top searchPayload
	if err := json.Unmarshal(payload, &top); err != nil {
		return SearchPage{}, fmt.Errorf("decode search payload: %w", err)
	}
	if len(top.Data) > 0 {
		return parseGraphQLSearchPage(payload)
	}
	return parseLegacySearchPage(top), nil
}

type graphqlPayload struct {
	Data struct {
		SearchByRawQuery struct {
			SearchTimeline struct {
				Timeline struct {
					Instructions []struct {
						Type    string          `json:"type"`
						Entries []timelineEntry `json:"entries"`
						Entry   *timelineEntry  `json:"entry"`
					} `json:"instructions"`
				} `json:"timeline"`
			} `json:"search_timeline"`
		} `json:"search_by_raw_query"`
	} `json:"data"`
}

func parseGraphQLSearchPage(payload []byte) (SearchPage, error) {
	var top graphqlPayload
	if err := json.Unmarshal(payload, &top); err != nil {
		return SearchPage{}, fmt.Errorf("decode graphql payload: %w", err)
	}

	var page SearchPage
	for _, instruction := range top.Data.SearchByRawQuery.SearchTimeline.Timeline.Instructions {
		for i := range instruction.Entries {
			entry := &instruction.Entries[i]
			if post, ok := parseGraphQLEntry(entry); ok {
				page.Posts = append(page.Posts, post)
			}
			if cursor := cursorFromEntry(entry); cursor != "" {
				page.NextCursor = cursor
			}
		}
		if instruction.Entry != nil {
			if cursor := cursorFromEntry(instruction.Entry); cursor != "" {
				page.NextCursor = cursor
			}
		}
	}
	return page, nil
}

func parseGraphQLEntry(entry *timelineEntry) (ParsedPost, bool) {
	if len(entry.EntryID) < len("tweet-") || entry.EntryID[:len("tweet-")] != "tweet-" {
		return ParsedPost{}, false
	}
	tweet := unwrapTweet(entry.Content.ItemContent.TweetResults.Result)
	if tweet == nil {
		return ParsedPost{}, false
	}
	return tweetToParsedPost(tweet)
}

// unwrapTweet resolves visibility wrappers (TweetWithVisibilityResults and
// friends) down to the concrete Tweet node.
func unwrapTweet(result *tweetResult) *tweetResult {
	if result == nil {
		return nil
	}
	if result.Typename == "Tweet" {
		return result
	}
	if result.Tweet != nil {
		return unwrapTweet(result.Tweet)
	}
	return nil
}

func tweetToParsedPost(tweet *tweetResult) (ParsedPost, bool) {
	legacy := tweet.Legacy
	if legacy == nil || legacy.CreatedAt == "" {
		return ParsedPost{}, false
	}
	createdAt, err := ParseCreatedAt(legacy.CreatedAt)
	if err != nil {
		return ParsedPost{}, false
	}

	tweetID := tweet.RestID
	if tweetID == "" {
		tweetID = legacy.IDStr
	}
	if tweetID == "" {
		return ParsedPost{}, false
	}

	user := tweet.Core.UserResults.Result
	handle := user.Core.ScreenName
	if handle == "" {
		handle = user.Legacy.ScreenName
	}
	if handle == "" {
		handle = "unknown"
	}

	views := ""
	if tweet.Views != nil && len(tweet.Views.Count) > 0 {
		views = scalarString(tweet.Views.Count)
	}

	return ParsedPost{
		TweetID:           tweetID,
		AccountHandle:     handle,
		CreatedAtUTC:      createdAt,
		PostTime:          createdAt.Format(time.RFC3339),
		Text:              legacy.FullText,
		PostURL:           "https://x.com/" + handle + "/status/" + tweetID,
		Views:             views,
		Likes:             scalarString(legacy.FavoriteCount),
		Reposts:           scalarString(legacy.RetweetCount),
		Replies:           scalarString(legacy.ReplyCount),
		QuotedText:        referencedText(tweet),
		InReplyToStatusID: legacy.InReplyToStatusIDStr,
	}, true
}

// referencedText returns the quoted post's text, falling back through the
// retweet shapes observed across payload generations.
func referencedText(tweet *tweetResult) string {
	if quoted := unwrapTweet(tweet.QuotedStatusResult.Result); quoted != nil && quoted.Legacy != nil {
		if quoted.Legacy.FullText != "" {
			return quoted.Legacy.FullText
		}
	}
	if retweet := unwrapTweet(tweet.RetweetedStatusResult.Result); retweet != nil && retweet.Legacy != nil {
		if retweet.Legacy.FullText != "" {
			return retweet.Legacy.FullText
		}
	}
	legacy := tweet.Legacy
	if legacy == nil {
		return ""
	}
	if retweet := unwrapTweet(legacy.RetweetedStatusResult.Result); retweet != nil && retweet.Legacy != nil {
		if retweet.Legacy.FullText != "" {
			return retweet.Legacy.FullText
		}
	}
	if legacy.RetweetedStatus != nil && legacy.RetweetedStatus.FullText != "" {
		return legacy.RetweetedStatus.FullText
	}
	return ""
}

// cursorFromEntry pulls the pagination cursor out of either cursor entry
// shape: a plain Bottom cursor or the operation wrapper.
func cursorFromEntry(entry *timelineEntry) string {
	if entry.Content.CursorType == "Bottom" && entry.Content.Value != "" {
		return entry.Content.Value
	}
	return entry.Content.Operation.Cursor.Value
}

func parseLegacySearchPage(top searchPayload) SearchPage {
	tweets := top.GlobalObjects.Tweets

	// Newest first. Status ids are snowflakes, so numeric order is
	// chronological order.
	ids := make([]string, 0, len(tweets))
	for id := range tweets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return numericIDLess(ids[j], ids[i]) })

	var page SearchPage
	for _, id := range ids {
		tweet := tweets[id]
		if tweet.CreatedAt == "" {
			continue
		}
		createdAt, err := ParseCreatedAt(tweet.CreatedAt)
		if err != nil {
			continue
		}

		userID := tweet.UserIDStr
		if userID == "" {
			userID = scalarString(tweet.UserID)
		}
		handle := "unknown"
		if user, ok := top.GlobalObjects.Users[userID]; ok && user.ScreenName != "" {
			handle = user.ScreenName
		}

		quotedText := ""
		if tweet.QuotedStatusIDStr != "" {
			if quoted, ok := tweets[tweet.QuotedStatusIDStr]; ok {
				quotedText = quoted.FullText
			}
		}
		if quotedText == "" && tweet.RetweetedStatusIDStr != "" {
			if retweet, ok := tweets[tweet.RetweetedStatusIDStr]; ok {
				quotedText = retweet.FullText
			}
		}
		if quotedText == "" && tweet.RetweetedStatus != nil {
			quotedText = tweet.RetweetedStatus.FullText
		}
		if quotedText == "" {
			if result := tweet.RetweetedStatusResult.Result; result != nil && result.Legacy != nil {
				quotedText = result.Legacy.FullText
			}
		}

		views := ""
		if tweet.ExtViews != nil && len(tweet.ExtViews.Count) > 0 {
			views = scalarString(tweet.ExtViews.Count)
		}

		tweetID := tweet.IDStr
		if tweetID == "" {
			tweetID = id
		}

		page.Posts = append(page.Posts, ParsedPost{
			TweetID:           tweetID,
			AccountHandle:     handle,
			CreatedAtUTC:      createdAt,
			PostTime:          createdAt.Format(time.RFC3339),
			Text:              tweet.FullText,
			PostURL:           "https://x.com/" + handle + "/status/" + tweetID,
			Views:             views,
			Likes:             scalarString(tweet.FavoriteCount),
			Reposts:           scalarString(tweet.RetweetCount),
			Replies:           scalarString(tweet.ReplyCount),
			QuotedText:        quotedText,
			InReplyToStatusID: tweet.InReplyToStatusIDStr,
		})
	}

	for _, instruction := range top.Timeline.Instructions {
		for i := range instruction.AddEntries.Entries {
			if cursor := cursorFromEntry(&instruction.AddEntries.Entries[i]); cursor != "" {
				page.NextCursor = cursor
			}
		}
	}
	return page
}

// numericIDLess compares decimal id strings by numeric value without
// overflowing on long snowflakes.
func numericIDLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// scalarString renders a raw JSON scalar the way the export expects:
// strings pass through, numbers print without an exponent, anything else
// (or nothing) becomes "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
