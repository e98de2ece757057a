// Package search provides clients for the web search collaborators: a SERP
// API client covering several search engines and a Reddit dataset client for
// post discovery and comment retrieval.
package search

import "context"

// Engine identifies a supported web search engine.
type Engine string

const (
	EngineGoogle Engine = "google"
	EngineBing   Engine = "bing"
	EngineYandex Engine = "yandex"
)

// String returns the engine name.
func (e Engine) String() string {
	return string(e)
}

// baseURL returns the engine's search URL prefix, ready for an escaped
// query string to be appended.
func (e Engine) baseURL() string {
	switch e {
	case EngineBing:
		return "https://www.bing.com/search?q="
	case EngineYandex:
		return "https://yandex.com/search?text="
	default:
		return "https://www.google.com/search?q="
	}
}

// valid reports whether the engine is one of the supported engines.
func (e Engine) valid() bool {
	switch e {
	case EngineGoogle, EngineBing, EngineYandex:
		return true
	}
	return false
}

// Result is a single organic search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Response holds the extracted portion of a SERP API answer: the knowledge
// panel (when the engine produced one) and the organic results.
type Response struct {
	Engine    Engine         `json:"engine"`
	Knowledge map[string]any `json:"knowledge,omitempty"`
	Organic   []Result       `json:"organic"`
}

// Searcher performs a web search for a query. Implementations wrap a single
// engine so callers can fan out over several engines concurrently.
type Searcher interface {
	// Engine identifies which engine this searcher queries.
	Engine() Engine

	// Search runs the query and returns the extracted results.
	Search(ctx context.Context, query string) (*Response, error)
}
