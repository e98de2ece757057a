package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/smallnest/multisearch/log"
)

// DefaultZone is the proxy zone used when none is configured.
const DefaultZone = "google_bing_serp_api_ai_agent"

// SERPClient queries a Bright Data style SERP API. One request proxies a
// search engine URL through the API and returns the engine's answer, either
// pre-parsed JSON or the raw result page.
type SERPClient struct {
	apiURL     string
	apiKey     string
	zone       string
	httpClient *http.Client
	logger     log.Logger
}

// SERPOption configures a SERPClient.
type SERPOption func(*SERPClient)

// WithZone overrides the proxy zone sent with each request.
func WithZone(zone string) SERPOption {
	return func(c *SERPClient) {
		c.zone = zone
	}
}

// WithHTTPClient replaces the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) SERPOption {
	return func(c *SERPClient) {
		c.httpClient = hc
	}
}

// WithSERPLogger sets the logger.
func WithSERPLogger(l log.Logger) SERPOption {
	return func(c *SERPClient) {
		c.logger = l
	}
}

// NewSERPClient creates a SERP API client. apiURL and apiKey are required.
func NewSERPClient(apiURL, apiKey string, opts ...SERPOption) (*SERPClient, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("serp: api url not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("serp: api key not set")
	}

	c := &SERPClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		zone:       DefaultZone,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// serpRequest is the request body for a proxied search.
type serpRequest struct {
	Zone   string `json:"zone"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

// serpPayload is the parsed portion of a SERP answer we care about.
type serpPayload struct {
	Knowledge map[string]any `json:"knowledge"`
	Organic   []organicItem  `json:"organic"`
}

// organicItem tolerates the field-name variants different engines produce.
type organicItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Snippet     string `json:"snippet"`
}

func (it organicItem) toResult() Result {
	r := Result{Title: it.Title, URL: it.Link, Snippet: it.Description}
	if r.URL == "" {
		r.URL = it.URL
	}
	if r.Snippet == "" {
		r.Snippet = it.Snippet
	}
	return r
}

// Search proxies the query through the SERP API for the given engine. The
// engine is asked to return structured JSON; when the API hands back a raw
// result page instead, the organic results are scraped out of the HTML.
func (c *SERPClient) Search(ctx context.Context, engine Engine, query string) (*Response, error) {
	if !engine.valid() {
		return nil, fmt.Errorf("serp: unsupported engine %q", engine)
	}

	body := serpRequest{
		Zone:   c.zone,
		URL:    engine.baseURL() + url.QueryEscape(query) + "&brd_json=1",
		Format: "raw",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("serp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("serp: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serp: %s request failed: %w", engine, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serp: %s returned status %d", engine, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("serp: read response: %w", err)
	}

	var parsed serpPayload
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Raw HTML result page; scrape the organic results instead.
		c.logger.Debug("serp: %s answered with a raw page, scraping organic results", engine)
		organic, perr := parseOrganicHTML(bytes.NewReader(raw))
		if perr != nil {
			return nil, fmt.Errorf("serp: parse %s page: %w", engine, perr)
		}
		return &Response{Engine: engine, Organic: organic}, nil
	}

	out := &Response{Engine: engine, Knowledge: parsed.Knowledge}
	for _, it := range parsed.Organic {
		out.Organic = append(out.Organic, it.toResult())
	}
	c.logger.Debug("serp: %s returned %d organic results", engine, len(out.Organic))
	return out, nil
}

// engineSearcher binds a SERPClient to one engine.
type engineSearcher struct {
	client *SERPClient
	engine Engine
}

// Engine returns a Searcher querying the given engine through this client.
func (c *SERPClient) Engine(engine Engine) Searcher {
	return &engineSearcher{client: c, engine: engine}
}

func (s *engineSearcher) Engine() Engine {
	return s.engine
}

func (s *engineSearcher) Search(ctx context.Context, query string) (*Response, error) {
	return s.client.Search(ctx, s.engine, query)
}
