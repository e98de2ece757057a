// Package agent assembles the research pipeline: fan a query out to several
// search sources, deep-dive the Reddit discussion, analyze each source with
// a language model, and synthesize one final answer.
package agent

import (
	"context"
	"fmt"

	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/llm"
	"github.com/smallnest/multisearch/log"
	"github.com/smallnest/multisearch/search"
)

// DefaultMaxRedditURLs caps how many posts the deep dive fetches comments
// from.
const DefaultMaxRedditURLs = 3

// RedditSource is the Reddit collaborator boundary, satisfied by
// search.RedditClient.
type RedditSource interface {
	DiscoverPosts(ctx context.Context, query string) ([]search.Post, error)
	PostComments(ctx context.Context, postURLs []string) ([]search.Comment, error)
}

// Config configures an Agent. The source set is pluggable: any combination
// of engine searchers, with or without the Reddit deep dive.
type Config struct {
	// Searchers are the web engines to fan out to.
	Searchers []search.Searcher

	// Reddit enables post discovery and the comment deep dive when set.
	Reddit RedditSource

	// Completer runs the analysis and synthesis prompts. Required.
	Completer llm.Completer

	// MaxRedditURLs caps the deep-dive selection. Defaults to
	// DefaultMaxRedditURLs.
	MaxRedditURLs int

	// Logger defaults to the package default logger.
	Logger log.Logger

	// ExecutorOptions are passed through to the graph executor, for
	// timeouts, concurrency and retry configuration.
	ExecutorOptions []graph.Option
}

// source is one wired fan-out branch.
type source struct {
	key  string
	name string
}

// Agent runs the multi-source research pipeline for a query.
type Agent struct {
	graph         *graph.Graph
	exec          *graph.Executor
	completer     llm.Completer
	reddit        RedditSource
	logger        log.Logger
	sources       []source
	maxRedditURLs int
}

// keyForEngine maps an engine to its state key. The general web source is
// backed by Google.
func keyForEngine(e search.Engine) string {
	if e == search.EngineGoogle {
		return KeyWeb
	}
	return e.String()
}

// New builds the pipeline graph for the configured sources and validates
// it. At least one source and a completer are required.
func New(cfg Config) (*Agent, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("agent: completer not set")
	}
	if len(cfg.Searchers) == 0 && cfg.Reddit == nil {
		return nil, fmt.Errorf("agent: no sources configured")
	}

	a := &Agent{
		completer:     cfg.Completer,
		reddit:        cfg.Reddit,
		logger:        cfg.Logger,
		maxRedditURLs: cfg.MaxRedditURLs,
	}
	if a.logger == nil {
		a.logger = log.GetDefaultLogger()
	}
	if a.maxRedditURLs <= 0 {
		a.maxRedditURLs = DefaultMaxRedditURLs
	}

	b := graph.NewBuilder()
	b.AddNode(nodeStart, nil, startNode)

	var analysisDeps []string
	for _, s := range cfg.Searchers {
		key := keyForEngine(s.Engine())
		name := s.Engine().String()
		a.sources = append(a.sources, source{key: key, name: name})

		b.AddNode(key, []string{nodeStart}, a.searchNode(s, key))
		b.AddNode(analysisKey(key), []string{key}, a.analysisNode(key, name))
		analysisDeps = append(analysisDeps, analysisKey(key))
	}

	if cfg.Reddit != nil {
		a.sources = append(a.sources, source{key: KeyReddit, name: "reddit"})

		b.AddNode(KeyReddit, []string{nodeStart}, graph.NodeFunc(a.redditSearchNode))
		b.AddNode(KeySelectedRedditURLs, []string{KeyReddit}, graph.NodeFunc(a.selectRedditURLsNode))
		b.AddNode(KeyRedditPostData, []string{KeySelectedRedditURLs}, graph.NodeFunc(a.retrieveRedditPostsNode))
		b.AddNode(KeyRedditAnalysis, []string{KeyReddit, KeyRedditPostData}, graph.NodeFunc(a.redditAnalysisNode))
		analysisDeps = append(analysisDeps, KeyRedditAnalysis)
	}

	b.AddNode(KeySynthesis, analysisDeps, graph.NodeFunc(a.synthesizeNode))

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	a.graph = g

	opts := append([]graph.Option{graph.WithLogger(a.logger)}, cfg.ExecutorOptions...)
	a.exec = graph.NewExecutor(g, opts...)
	return a, nil
}

// Graph exposes the validated pipeline graph, e.g. for visualization.
func (a *Agent) Graph() *graph.Graph {
	return a.graph
}

// Run executes the pipeline for one query.
func (a *Agent) Run(ctx context.Context, query string) (*graph.RunOutcome, error) {
	return a.exec.Run(ctx, query)
}

// Answer extracts the synthesized answer from a finished run. It is empty
// when the run failed overall.
func Answer(outcome *graph.RunOutcome) string {
	return outcome.FinalState.StringValue(KeySynthesis)
}
