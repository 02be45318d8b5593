package xsearch

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

const baseURL = "https://x.com"

// searchPath returns the SearchTimeline GraphQL path for a query id.
func searchPath(queryID string) string {
	return fmt.Sprintf("/i/api/graphql/%s/SearchTimeline", queryID)
}

// buildRawQuery assembles the search expression the web UI would type.
// X treats "until" as exclusive; shifting by one day makes the user-visible
// range inclusive.
func buildRawQuery(handle, keyword string, start, end Date) string {
	return fmt.Sprintf("(from:%s) %s since:%s until:%s",
		handle, keyword, start.ISO(), end.AddDays(1).ISO())
}

// searchVariables builds the SearchTimeline variables object.
func searchVariables(rawQuery string, pageSize int, cursor string) map[string]any {
	variables := map[string]any{
		"rawQuery":              rawQuery,
		"count":                 pageSize,
		"querySource":           "typed_query",
		"product":               "Latest",
		"withGrokTranslatedBio": false,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}
	return variables
}

// searchQueryString renders variables and features as compact JSON query
// parameters, percent-encoded the way the web app does (non-ASCII kept).
func searchQueryString(variables, features map[string]any) string {
	v, _ := json.MarshalWithOption(variables, json.DisableHTMLEscape())
	f, _ := json.MarshalWithOption(features, json.DisableHTMLEscape())
	return "variables=" + jsonEscape(v) + "&features=" + jsonEscape(f)
}

// jsonEscape percent-encodes the JSON metacharacters the platform expects
// escaped while leaving everything else (including non-ASCII) alone.
func jsonEscape(b []byte) string {
	var result strings.Builder
	for _, ch := range string(b) {
		switch ch {
		case ' ':
			result.WriteString("%20")
		case '"':
			result.WriteString("%22")
		case '{':
			result.WriteString("%7B")
		case '}':
			result.WriteString("%7D")
		case '[':
			result.WriteString("%5B")
		case ']':
			result.WriteString("%5D")
		case ':':
			result.WriteString("%3A")
		case ',':
			result.WriteString("%2C")
		case '\'':
			result.WriteString("%27")
		case '|':
			result.WriteString("%7C")
		default:
			result.WriteRune(ch)
		}
	}
	return result.String()
}

// refererQuery percent-encodes the raw query for the search referer header,
// keeping "(): " and rendering spaces as %20.
func refererQuery(rawQuery string) string {
	var result strings.Builder
	for _, ch := range rawQuery {
		switch {
		case ch == ' ':
			result.WriteString("%20")
		case ch == '(' || ch == ')' || ch == ':':
			result.WriteRune(ch)
		case ch < 0x80 && isUnreservedByte(byte(ch)):
			result.WriteRune(ch)
		default:
			for _, b := range []byte(string(ch)) {
				fmt.Fprintf(&result, "%%%02X", b)
			}
		}
	}
	return result.String()
}

func isUnreservedByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	}
	return false
}

// searchFeatures returns the feature-flag map captured verbatim from a real
// SearchTimeline request. Names and values must not drift; the endpoint
// rejects unknown combinations.
func searchFeatures() map[string]any {
	return map[string]any{
		"rweb_video_screen_enabled":                                               false,
		"profile_label_improvements_pcf_label_in_post_enabled":                    true,
		"responsive_web_profile_redirect_enabled":                                 false,
		"rweb_tipjar_consumption_enabled":                                         false,
		"verified_phone_label_enabled":                                            false,
		"creator_subscriptions_tweet_preview_api_enabled":                         true,
		"responsive_web_graphql_timeline_navigation_enabled":                      true,
		"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
		"premium_content_api_read_enabled":                                        false,
		"communities_web_enable_tweet_community_results_fetch":                    true,
		"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
		"responsive_web_grok_analyze_button_fetch_trends_enabled":                 false,
		"responsive_web_grok_analyze_post_followups_enabled":                      true,
		"responsive_web_jetfuel_frame":                                            true,
		"responsive_web_grok_share_attachment_enabled":                            true,
		"responsive_web_grok_annotations_enabled":                                 true,
		"articles_preview_enabled":                                                true,
		"responsive_web_edit_tweet_api_enabled":                                   true,
		"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
		"view_counts_everywhere_api_enabled":                                      true,
		"longform_notetweets_consumption_enabled":                                 true,
		"responsive_web_twitter_article_tweet_consumption_enabled":                true,
		"tweet_awards_web_tipping_enabled":                                        false,
		"responsive_web_grok_show_grok_translated_post":                           false,
		"responsive_web_grok_analysis_button_from_backend":                        true,
		"post_ctas_fetch_enabled":                                                 true,
		"freedom_of_speech_not_reach_fetch_enabled":                               true,
		"standardized_nudges_misinfo":                                             true,
		"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
		"longform_notetweets_rich_text_read_enabled":                              true,
		"longform_notetweets_inline_media_enabled":                                true,
		"responsive_web_grok_image_annotation_enabled":                            true,
		"responsive_web_grok_imagine_annotation_enabled":                          true,
		"responsive_web_grok_community_note_auto_translation_is_enabled":          false,
		"responsive_web_enhance_cards_enabled":                                    false,
	}
}
