package xsearch

// Record is one output row of the crawl. Every field is a string so the
// JSONL export stays schema-stable; absent values render as "". Exactly one
// of the post fields or Error is populated.
type Record struct {
	Account    string `json:"account"`
	Keyword    string `json:"keyword"`
	PostTime   string `json:"post_time"`
	Text       string `json:"text"`
	PostURL    string `json:"post_url"`
	Views      string `json:"views"`
	Likes      string `json:"likes"`
	Reposts    string `json:"reposts"`
	Replies    string `json:"replies"`
	QuotedText string `json:"quoted_text"`
	Error      string `json:"error"`
}

// PostRecord binds a parsed post to the account/keyword pair that found it.
func PostRecord(account, keyword string, post ParsedPost) Record {
	return Record{
		Account:    account,
		Keyword:    keyword,
		PostTime:   post.PostTime,
		Text:       post.Text,
		PostURL:    post.PostURL,
		Views:      post.Views,
		Likes:      post.Likes,
		Reposts:    post.Reposts,
		Replies:    post.Replies,
		QuotedText: post.QuotedText,
	}
}

// ErrorRecord marks a failed account/keyword pair without breaking the
// output schema.
func ErrorRecord(account, keyword, message string) Record {
	return Record{
		Account: account,
		Keyword: keyword,
		Error:   message,
	}
}
