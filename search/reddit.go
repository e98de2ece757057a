package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/smallnest/multisearch/log"
)

// Bright Data dataset IDs for Reddit post discovery and comment retrieval.
const (
	redditPostsDataset    = "gd_lvz8ah06191smkebj4"
	redditCommentsDataset = "gd_lvzdpsdlw09j6t702"
)

const defaultRedditBaseURL = "https://api.brightdata.com/datasets/v3"

var (
	// ErrNoSnapshot indicates the trigger response carried no snapshot ID.
	ErrNoSnapshot = errors.New("reddit: no snapshot id in trigger response")

	// ErrCollectionFailed indicates the dataset job ended in the failed state.
	ErrCollectionFailed = errors.New("reddit: data collection failed")

	// ErrPollExhausted indicates the job did not finish within the polling
	// budget.
	ErrPollExhausted = errors.New("reddit: snapshot not ready after max attempts")
)

// Post is a discovered Reddit post.
type Post struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Comment is a single comment retrieved from a Reddit post. Content is
// normalized to markdown.
type Comment struct {
	CommentID       string `json:"comment_id"`
	Content         string `json:"content"`
	Date            string `json:"date"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	PostTitle       string `json:"post_title"`
	URL             string `json:"url"`
}

// RedditClient drives the asynchronous Reddit dataset API: trigger a
// collection job, poll its progress, then fetch the finished snapshot.
type RedditClient struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       log.Logger
	pollInterval time.Duration
	maxAttempts  int
	postLimit    int
	commentLimit int
}

// RedditOption configures a RedditClient.
type RedditOption func(*RedditClient)

// WithRedditBaseURL overrides the dataset API base URL.
func WithRedditBaseURL(base string) RedditOption {
	return func(c *RedditClient) {
		c.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithRedditHTTPClient replaces the HTTP client used for API requests.
func WithRedditHTTPClient(hc *http.Client) RedditOption {
	return func(c *RedditClient) {
		c.httpClient = hc
	}
}

// WithRedditLogger sets the logger.
func WithRedditLogger(l log.Logger) RedditOption {
	return func(c *RedditClient) {
		c.logger = l
	}
}

// WithPollInterval sets the delay between snapshot progress checks.
func WithPollInterval(d time.Duration) RedditOption {
	return func(c *RedditClient) {
		c.pollInterval = d
	}
}

// WithMaxAttempts caps the number of progress checks per job.
func WithMaxAttempts(n int) RedditOption {
	return func(c *RedditClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithPostLimit caps the number of posts requested from a discovery job.
func WithPostLimit(n int) RedditOption {
	return func(c *RedditClient) {
		if n > 0 {
			c.postLimit = n
		}
	}
}

// WithCommentLimit caps the number of comments requested per post.
func WithCommentLimit(n int) RedditOption {
	return func(c *RedditClient) {
		if n > 0 {
			c.commentLimit = n
		}
	}
}

// NewRedditClient creates a Reddit dataset API client.
func NewRedditClient(apiKey string, opts ...RedditOption) (*RedditClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("reddit: api key not set")
	}

	c := &RedditClient{
		apiKey:       apiKey,
		baseURL:      defaultRedditBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log.GetDefaultLogger(),
		pollInterval: 10 * time.Second,
		maxAttempts:  50,
		postLimit:    100,
		commentLimit: 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DiscoverPosts finds Reddit posts matching the query.
func (c *RedditClient) DiscoverPosts(ctx context.Context, query string) ([]Post, error) {
	params := url.Values{}
	params.Set("dataset_id", redditPostsDataset)
	params.Set("include_errors", "true")
	params.Set("type", "discover_new")
	params.Set("discover_by", "keyword")

	body := []map[string]any{{
		"keyword":      query,
		"date":         "All time",
		"sort_by":      "Hot",
		"num_of_posts": c.postLimit,
	}}

	raw, err := c.collect(ctx, params, body)
	if err != nil {
		return nil, err
	}

	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("reddit: decode posts snapshot: %w", err)
	}
	c.logger.Debug("reddit: discovered %d posts for query %q", len(posts), query)
	return posts, nil
}

// PostComments retrieves comments from the given Reddit post URLs. Comment
// bodies arriving as HTML are converted to markdown.
func (c *RedditClient) PostComments(ctx context.Context, postURLs []string) ([]Comment, error) {
	if len(postURLs) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("dataset_id", redditCommentsDataset)
	params.Set("include_errors", "true")

	body := make([]map[string]any, 0, len(postURLs))
	for _, u := range postURLs {
		body = append(body, map[string]any{
			"url":              u,
			"days_back":        365,
			"load_all_replies": false,
			"comment_limit":    c.commentLimit,
		})
	}

	raw, err := c.collect(ctx, params, body)
	if err != nil {
		return nil, err
	}

	var comments []Comment
	if err := json.Unmarshal(raw, &comments); err != nil {
		return nil, fmt.Errorf("reddit: decode comments snapshot: %w", err)
	}
	for i, cm := range comments {
		if strings.Contains(cm.Content, "<") {
			if md, err := htmltomarkdown.ConvertString(cm.Content); err == nil {
				comments[i].Content = strings.TrimSpace(md)
			}
		}
	}
	c.logger.Debug("reddit: retrieved %d comments from %d posts", len(comments), len(postURLs))
	return comments, nil
}

// collect runs the full trigger/poll/fetch cycle and returns the raw
// snapshot body.
func (c *RedditClient) collect(ctx context.Context, params url.Values, body any) ([]byte, error) {
	snapshotID, err := c.trigger(ctx, params, body)
	if err != nil {
		return nil, err
	}
	if err := c.waitReady(ctx, snapshotID); err != nil {
		return nil, err
	}
	return c.fetchSnapshot(ctx, snapshotID)
}

func (c *RedditClient) trigger(ctx context.Context, params url.Values, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("reddit: encode trigger request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/trigger?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("reddit: create trigger request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit: trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit: trigger returned status %d", resp.StatusCode)
	}

	var out struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("reddit: decode trigger response: %w", err)
	}
	if out.SnapshotID == "" {
		return "", ErrNoSnapshot
	}
	c.logger.Debug("reddit: collection triggered, snapshot %s", out.SnapshotID)
	return out.SnapshotID, nil
}

// waitReady polls the job until it is ready, fails, or the polling budget
// runs out.
func (c *RedditClient) waitReady(ctx context.Context, snapshotID string) error {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		status, err := c.progress(ctx, snapshotID)
		if err != nil {
			return err
		}
		switch status {
		case "ready":
			return nil
		case "failed":
			return ErrCollectionFailed
		}

		c.logger.Debug("reddit: snapshot %s is %s, attempt %d/%d", snapshotID, status, attempt+1, c.maxAttempts)
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrPollExhausted
}

func (c *RedditClient) progress(ctx context.Context, snapshotID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	raw, err := c.get(ctx, fmt.Sprintf("%s/progress/%s", c.baseURL, snapshotID))
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("reddit: decode progress response: %w", err)
	}
	return out.Status, nil
}

func (c *RedditClient) fetchSnapshot(ctx context.Context, snapshotID string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/snapshot/%s?format=json", c.baseURL, snapshotID))
}

func (c *RedditClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit: api returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
