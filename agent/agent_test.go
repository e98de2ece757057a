package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/llm"
	"github.com/smallnest/multisearch/log"
	"github.com/smallnest/multisearch/search"
)

// fakeSearcher serves canned results for one engine.
type fakeSearcher struct {
	engine search.Engine
	resp   *search.Response
	err    error
}

func (f *fakeSearcher) Engine() search.Engine {
	return f.engine
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (*search.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newFakeSearcher(engine search.Engine, n int) *fakeSearcher {
	resp := &search.Response{Engine: engine}
	for i := 0; i < n; i++ {
		resp.Organic = append(resp.Organic, search.Result{
			Title:   engine.String() + " result",
			URL:     "https://example.com/" + engine.String(),
			Snippet: "snippet",
		})
	}
	return &fakeSearcher{engine: engine, resp: resp}
}

// fakeReddit serves canned posts and comments and records what was asked.
type fakeReddit struct {
	mu          sync.Mutex
	posts       []search.Post
	comments    []search.Comment
	postsErr    error
	commentsErr error
	gotURLs     []string
}

func (f *fakeReddit) DiscoverPosts(ctx context.Context, query string) ([]search.Post, error) {
	if f.postsErr != nil {
		return nil, f.postsErr
	}
	return f.posts, nil
}

func (f *fakeReddit) PostComments(ctx context.Context, postURLs []string) ([]search.Comment, error) {
	f.mu.Lock()
	f.gotURLs = postURLs
	f.mu.Unlock()
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments, nil
}

func (f *fakeReddit) askedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotURLs
}

// scriptedCompleter routes prompts by shape: URL selection, analysis,
// synthesis.
func scriptedCompleter(selection string) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "selected_urls"):
			return selection, nil
		case strings.Contains(prompt, "writing the final answer"):
			return "the synthesized answer", nil
		default:
			return "analysis of: " + firstLine(prompt), nil
		}
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func testConfig(completer llm.Completer, reddit RedditSource, searchers ...search.Searcher) Config {
	return Config{
		Searchers: searchers,
		Reddit:    reddit,
		Completer: completer,
		Logger:    log.NopLogger{},
	}
}

func TestAgent_FullPipeline(t *testing.T) {
	reddit := &fakeReddit{
		posts: []search.Post{
			{Title: "relevant thread", URL: "https://reddit.com/r/x/p1"},
			{Title: "another thread", URL: "https://reddit.com/r/x/p2"},
		},
		comments: []search.Comment{
			{CommentID: "c1", Content: "first-hand experience", PostTitle: "relevant thread"},
		},
	}
	selection := `{"selected_urls": ["https://reddit.com/r/x/p1"]}`

	a, err := New(testConfig(scriptedCompleter(selection), reddit,
		newFakeSearcher(search.EngineGoogle, 3),
		newFakeSearcher(search.EngineBing, 3),
		newFakeSearcher(search.EngineYandex, 2),
	))
	require.NoError(t, err)

	outcome, err := a.Run(context.Background(), "how do goroutines work")
	require.NoError(t, err)

	assert.False(t, outcome.OverallFailed)
	assert.Equal(t, "the synthesized answer", Answer(outcome))

	for _, key := range []string{KeyWeb, KeyBing, KeyYandex, KeyReddit} {
		_, ok := outcome.FinalState.Value(key)
		assert.True(t, ok, key)
		assert.Equal(t, graph.StatusSucceeded, outcome.NodeStatus[key], key)
	}
	for _, key := range []string{KeyWebAnalysis, KeyBingAnalysis, KeyYandexAnalysis, KeyRedditAnalysis} {
		assert.NotEmpty(t, outcome.FinalState.StringValue(key), key)
	}

	selected, ok := outcome.FinalState.Value(KeySelectedRedditURLs)
	require.True(t, ok)
	assert.Equal(t, []string{"https://reddit.com/r/x/p1"}, selected)
	assert.Equal(t, []string{"https://reddit.com/r/x/p1"}, reddit.askedURLs())
}

func TestAgent_OneSourceFails(t *testing.T) {
	broken := &fakeSearcher{engine: search.EngineBing, err: errors.New("api down")}

	a, err := New(testConfig(scriptedCompleter("{}"), nil,
		newFakeSearcher(search.EngineGoogle, 2),
		broken,
	))
	require.NoError(t, err)

	outcome, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.False(t, outcome.OverallFailed)
	assert.NotEmpty(t, Answer(outcome))

	marker, failed := outcome.FinalState.Failure(KeyBing)
	require.True(t, failed)
	assert.Contains(t, marker.Cause.Error(), "api down")
	assert.Empty(t, outcome.FinalState.StringValue(KeyBingAnalysis))
	assert.Contains(t, outcome.Diagnostic, KeyBing)
}

func TestAgent_AllSourcesFail(t *testing.T) {
	a, err := New(testConfig(scriptedCompleter("{}"), nil,
		&fakeSearcher{engine: search.EngineGoogle, err: errors.New("down")},
		&fakeSearcher{engine: search.EngineBing, err: errors.New("down")},
	))
	require.NoError(t, err)

	outcome, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, outcome.OverallFailed)
	assert.Empty(t, Answer(outcome))
	assert.Contains(t, outcome.Diagnostic, KeyWeb)
	assert.Contains(t, outcome.Diagnostic, KeyBing)
}

func TestAgent_SynthesisModelFailure(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "writing the final answer") {
			return "", errors.New("model overloaded")
		}
		return "fine analysis", nil
	})

	a, err := New(testConfig(completer, nil, newFakeSearcher(search.EngineGoogle, 1)))
	require.NoError(t, err)

	outcome, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.True(t, outcome.OverallFailed)
	assert.Contains(t, outcome.Diagnostic, "model overloaded")
}

func TestAgent_SelectionFailureDegradesGracefully(t *testing.T) {
	reddit := &fakeReddit{
		posts: []search.Post{{Title: "t", URL: "https://reddit.com/r/x/p1"}},
	}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "selected_urls"):
			return "", errors.New("selection model down")
		case strings.Contains(prompt, "writing the final answer"):
			return "answer", nil
		default:
			return "analysis", nil
		}
	})

	a, err := New(testConfig(completer, reddit, newFakeSearcher(search.EngineGoogle, 1)))
	require.NoError(t, err)

	outcome, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.False(t, outcome.OverallFailed)
	assert.Nil(t, reddit.askedURLs(), "no deep dive without a selection")
	assert.NotEmpty(t, outcome.FinalState.StringValue(KeyRedditAnalysis), "posts alone still get analyzed")
}

func TestAgent_RedditDiscoveryFailureIsIsolated(t *testing.T) {
	reddit := &fakeReddit{postsErr: errors.New("dataset error")}

	a, err := New(testConfig(scriptedCompleter("{}"), reddit,
		newFakeSearcher(search.EngineGoogle, 2),
	))
	require.NoError(t, err)

	outcome, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.False(t, outcome.OverallFailed)
	_, failed := outcome.FinalState.Failure(KeyReddit)
	assert.True(t, failed)
	assert.Empty(t, outcome.FinalState.StringValue(KeyRedditAnalysis))
	assert.NotEmpty(t, Answer(outcome))
}

func TestAgent_SelectionClampedToMax(t *testing.T) {
	posts := []search.Post{
		{Title: "1", URL: "https://r/1"},
		{Title: "2", URL: "https://r/2"},
		{Title: "3", URL: "https://r/3"},
	}
	reddit := &fakeReddit{posts: posts, comments: []search.Comment{{CommentID: "c"}}}
	selection := `{"selected_urls": ["https://r/1", "https://r/2", "https://r/3"]}`

	cfg := testConfig(scriptedCompleter(selection), reddit, newFakeSearcher(search.EngineGoogle, 1))
	cfg.MaxRedditURLs = 2
	a, err := New(cfg)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://r/1", "https://r/2"}, reddit.askedURLs())
}

func TestAgent_Validation(t *testing.T) {
	_, err := New(Config{Searchers: []search.Searcher{newFakeSearcher(search.EngineGoogle, 1)}})
	assert.Error(t, err, "completer required")

	_, err = New(Config{Completer: scriptedCompleter("{}")})
	assert.Error(t, err, "at least one source required")
}

func TestAgent_GraphTopology(t *testing.T) {
	a, err := New(testConfig(scriptedCompleter("{}"), &fakeReddit{},
		newFakeSearcher(search.EngineGoogle, 1),
		newFakeSearcher(search.EngineBing, 1),
	))
	require.NoError(t, err)

	g := a.Graph()
	assert.Equal(t, nodeStart, g.Entry())
	assert.Equal(t, KeySynthesis, g.Terminal())

	mermaid := graph.NewExporter(g).DrawMermaid()
	for _, node := range []string{nodeStart, KeyWeb, KeyBing, KeyReddit, KeySelectedRedditURLs, KeyRedditPostData, KeySynthesis} {
		assert.Contains(t, mermaid, node)
	}
}

func TestParseSelectedURLs(t *testing.T) {
	urls, err := parseSelectedURLs(`{"selected_urls": ["https://a", "https://b"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "https://b"}, urls)

	urls, err = parseSelectedURLs("```json\n{\"selected_urls\": [\"https://a\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a"}, urls)

	// Single quotes and a trailing comma get repaired.
	urls, err = parseSelectedURLs(`{'selected_urls': ['https://a',]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a"}, urls)

	urls, err = parseSelectedURLs(`{"selected_urls": []}`)
	require.NoError(t, err)
	assert.Empty(t, urls)
}
