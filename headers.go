package xsearch

// defaultUserAgent matches the desktop Chrome build the captured requests
// came from.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36"

// baseHeaders returns the default header set every API request carries.
func baseHeaders(bearerToken string, jar []Cookie) map[string]string {
	return map[string]string{
		"user-agent":                defaultUserAgent,
		"accept-language":           "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7",
		"content-type":              "application/json",
		"authorization":             "Bearer " + bearerToken,
		"x-twitter-client-language": "en",
		"x-twitter-active-user":     "yes",
		"x-twitter-auth-type":       "OAuth2Session",
		"accept":                    "*/*",
		"cookie":                    cookieHeader(jar),
	}
}

// requestHeaders layers the per-request headers over the defaults: the csrf
// token mirror of ct0, the search referer, and the transaction id when one
// could be generated.
func requestHeaders(base map[string]string, csrf, referer, transactionID string) map[string]string {
	h := make(map[string]string, len(base)+3)
	for k, v := range base {
		h[k] = v
	}
	h["x-csrf-token"] = csrf
	if referer != "" {
		h["referer"] = referer
	}
	if transactionID != "" {
		h["x-client-transaction-id"] = transactionID
	}
	return h
}

// searchReferer builds the referer the web search UI would carry.
func searchReferer(rawQuery string) string {
	return "https://x.com/search?q=" + refererQuery(rawQuery) + "&src=typed_query&f=live"
}

// headerOrder is the browser header order go-stealth emits for TLS
// fingerprint consistency.
var headerOrder = []string{
	"authorization",
	"content-type",
	"x-csrf-token",
	"x-twitter-active-user",
	"x-twitter-auth-type",
	"x-twitter-client-language",
	"x-client-transaction-id",
	"referer",
	"cookie",
	"user-agent",
	"accept",
	"accept-language",
}
