package agent

// State keys owned by the pipeline nodes. Each node writes exactly the key
// matching its own name, so a branch failure leaves its marker under the
// same key its results would have used.
const (
	// Source result keys.
	KeyWeb    = "web"
	KeyBing   = "bing"
	KeyYandex = "yandex"
	KeyReddit = "reddit"

	// Reddit deep-dive keys.
	KeySelectedRedditURLs = "selected_reddit_urls"
	KeyRedditPostData     = "reddit_post_data"

	// Per-source analysis keys.
	KeyWebAnalysis    = "web_analysis"
	KeyBingAnalysis   = "bing_analysis"
	KeyYandexAnalysis = "yandex_analysis"
	KeyRedditAnalysis = "reddit_analysis"

	// KeySynthesis holds the final answer, written only by the terminal node.
	KeySynthesis = "synthesis"
)

// nodeStart is the entry node; it owns no state key.
const nodeStart = "start"

// analysisKey returns the analysis key for a source key.
func analysisKey(sourceKey string) string {
	return sourceKey + "_analysis"
}
