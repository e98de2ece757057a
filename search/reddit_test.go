package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redditFixture fakes the dataset API: trigger, progress, snapshot.
type redditFixture struct {
	t             *testing.T
	snapshotID    string
	pollsUntilOK  int32
	snapshotBody  any
	failJob       bool
	gotTriggerURL string
	gotTriggerReq []map[string]any

	polls atomic.Int32
}

func (f *redditFixture) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPost, r.Method)
		assert.Equal(f.t, "Bearer reddit-key", r.Header.Get("Authorization"))
		f.gotTriggerURL = r.URL.String()
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.gotTriggerReq))
		json.NewEncoder(w).Encode(map[string]string{"snapshot_id": f.snapshotID})
	})
	mux.HandleFunc("/progress/", func(w http.ResponseWriter, r *http.Request) {
		assert.True(f.t, strings.HasSuffix(r.URL.Path, f.snapshotID))
		status := "running"
		if f.failJob {
			status = "failed"
		} else if f.polls.Add(1) > f.pollsUntilOK {
			status = "ready"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/snapshot/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "json", r.URL.Query().Get("format"))
		json.NewEncoder(w).Encode(f.snapshotBody)
	})
	return mux
}

func newRedditTestClient(t *testing.T, f *redditFixture, opts ...RedditOption) *RedditClient {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	opts = append([]RedditOption{
		WithRedditBaseURL(srv.URL),
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(5),
	}, opts...)
	client, err := NewRedditClient("reddit-key", opts...)
	require.NoError(t, err)
	return client
}

func TestRedditClient_DiscoverPosts(t *testing.T) {
	f := &redditFixture{
		t:            t,
		snapshotID:   "snap-1",
		pollsUntilOK: 2,
		snapshotBody: []Post{
			{Title: "Why is Go fast?", URL: "https://reddit.com/r/golang/p1"},
			{Title: "Goroutines explained", URL: "https://reddit.com/r/golang/p2"},
		},
	}
	client := newRedditTestClient(t, f, WithPostLimit(25))

	posts, err := client.DiscoverPosts(context.Background(), "golang performance")
	require.NoError(t, err)

	assert.Contains(t, f.gotTriggerURL, "dataset_id="+redditPostsDataset)
	assert.Contains(t, f.gotTriggerURL, "type=discover_new")
	assert.Contains(t, f.gotTriggerURL, "discover_by=keyword")
	require.Len(t, f.gotTriggerReq, 1)
	assert.Equal(t, "golang performance", f.gotTriggerReq[0]["keyword"])
	assert.Equal(t, float64(25), f.gotTriggerReq[0]["num_of_posts"])

	require.Len(t, posts, 2)
	assert.Equal(t, "Why is Go fast?", posts[0].Title)
	assert.GreaterOrEqual(t, f.polls.Load(), int32(3), "should have polled until ready")
}

func TestRedditClient_PostComments(t *testing.T) {
	f := &redditFixture{
		t:          t,
		snapshotID: "snap-2",
		snapshotBody: []Comment{
			{CommentID: "c1", Content: "<p>Use <b>pprof</b> first.</p>", PostTitle: "Why is Go fast?", URL: "https://reddit.com/r/golang/p1"},
			{CommentID: "c2", Content: "plain text stays as is", PostTitle: "Why is Go fast?", URL: "https://reddit.com/r/golang/p1"},
		},
	}
	client := newRedditTestClient(t, f, WithCommentLimit(10))

	urls := []string{"https://reddit.com/r/golang/p1", "https://reddit.com/r/golang/p2"}
	comments, err := client.PostComments(context.Background(), urls)
	require.NoError(t, err)

	assert.Contains(t, f.gotTriggerURL, "dataset_id="+redditCommentsDataset)
	require.Len(t, f.gotTriggerReq, 2)
	assert.Equal(t, urls[0], f.gotTriggerReq[0]["url"])
	assert.Equal(t, float64(10), f.gotTriggerReq[0]["comment_limit"])

	require.Len(t, comments, 2)
	assert.Equal(t, "Use **pprof** first.", comments[0].Content, "html body converted to markdown")
	assert.Equal(t, "plain text stays as is", comments[1].Content)
}

func TestRedditClient_PostCommentsEmptyInput(t *testing.T) {
	client, err := NewRedditClient("reddit-key")
	require.NoError(t, err)

	comments, err := client.PostComments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, comments)
}

func TestRedditClient_CollectionFailed(t *testing.T) {
	f := &redditFixture{t: t, snapshotID: "snap-3", failJob: true}
	client := newRedditTestClient(t, f)

	_, err := client.DiscoverPosts(context.Background(), "q")
	require.ErrorIs(t, err, ErrCollectionFailed)
}

func TestRedditClient_PollExhausted(t *testing.T) {
	f := &redditFixture{t: t, snapshotID: "snap-4", pollsUntilOK: 100}
	client := newRedditTestClient(t, f, WithMaxAttempts(3))

	_, err := client.DiscoverPosts(context.Background(), "q")
	require.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, int32(3), f.polls.Load())
}

func TestRedditClient_NoSnapshotID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewRedditClient("reddit-key", WithRedditBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.DiscoverPosts(context.Background(), "q")
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRedditClient_ContextCancelledWhilePolling(t *testing.T) {
	f := &redditFixture{t: t, snapshotID: "snap-5", pollsUntilOK: 100}
	client := newRedditTestClient(t, f,
		WithPollInterval(time.Hour),
		WithMaxAttempts(50),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.DiscoverPosts(ctx, "q")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedditClient_TriggerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewRedditClient("bad-key", WithRedditBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.DiscoverPosts(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusUnauthorized))
}
