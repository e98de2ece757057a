package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/search"
)

// startNode fans the query out; it writes no state of its own.
func startNode(ctx context.Context, st *graph.State) (graph.Update, error) {
	return graph.Update{}, nil
}

// searchNode queries one engine and stores its response under key. A
// collaborator error surfaces as a node error so the executor records it as
// a failure marker for this branch only.
func (a *Agent) searchNode(s search.Searcher, key string) graph.NodeFunc {
	return func(ctx context.Context, st *graph.State) (graph.Update, error) {
		resp, err := s.Search(ctx, st.Query())
		if err != nil {
			return nil, fmt.Errorf("%s search: %w", s.Engine(), err)
		}
		a.logger.Info("%s: %d organic results", key, len(resp.Organic))
		return graph.Update{key: resp}, nil
	}
}

// redditSearchNode discovers Reddit posts matching the query.
func (a *Agent) redditSearchNode(ctx context.Context, st *graph.State) (graph.Update, error) {
	posts, err := a.reddit.DiscoverPosts(ctx, st.Query())
	if err != nil {
		return nil, fmt.Errorf("reddit discovery: %w", err)
	}
	a.logger.Info("reddit: %d posts discovered", len(posts))
	return graph.Update{KeyReddit: posts}, nil
}

// selectRedditURLsNode asks the model which discovered posts are worth a
// deep dive. Selection is best effort: a model failure or an unusable reply
// degrades to an empty selection instead of failing the branch.
func (a *Agent) selectRedditURLsNode(ctx context.Context, st *graph.State) (graph.Update, error) {
	posts := redditPosts(st)
	if len(posts) == 0 {
		return graph.Update{KeySelectedRedditURLs: []string{}}, nil
	}

	prompt := fmt.Sprintf(redditURLSelectionPrompt, st.Query(), a.maxRedditURLs, formatPosts(posts))
	reply, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("reddit url selection failed, continuing without deep dive: %v", err)
		return graph.Update{KeySelectedRedditURLs: []string{}}, nil
	}

	urls, err := parseSelectedURLs(reply)
	if err != nil {
		a.logger.Warn("could not parse url selection reply, continuing without deep dive: %v", err)
		urls = nil
	}
	if len(urls) > a.maxRedditURLs {
		urls = urls[:a.maxRedditURLs]
	}
	return graph.Update{KeySelectedRedditURLs: urls}, nil
}

// parseSelectedURLs extracts the selected_urls list from a model reply,
// repairing malformed JSON when needed.
func parseSelectedURLs(reply string) ([]string, error) {
	content := strings.TrimSpace(reply)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out struct {
		SelectedURLs []string `json:"selected_urls"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(content)
		if rerr != nil {
			return nil, fmt.Errorf("unmarshal selection: %w (repair: %v)", err, rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &out); err != nil {
			return nil, fmt.Errorf("unmarshal repaired selection: %w", err)
		}
	}
	return out.SelectedURLs, nil
}

// retrieveRedditPostsNode fetches comments from the selected posts.
func (a *Agent) retrieveRedditPostsNode(ctx context.Context, st *graph.State) (graph.Update, error) {
	urls, _ := st.Value(KeySelectedRedditURLs)
	selected, _ := urls.([]string)
	if len(selected) == 0 {
		return graph.Update{KeyRedditPostData: []search.Comment(nil)}, nil
	}

	comments, err := a.reddit.PostComments(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("reddit comments: %w", err)
	}
	a.logger.Info("reddit: %d comments retrieved from %d posts", len(comments), len(selected))
	return graph.Update{KeyRedditPostData: comments}, nil
}

// analysisNode turns one engine's results into an analysis. A failed or
// empty source yields an empty analysis rather than a failed branch; only a
// model error fails the analysis itself.
func (a *Agent) analysisNode(sourceKey, sourceName string) graph.NodeFunc {
	akey := analysisKey(sourceKey)
	return func(ctx context.Context, st *graph.State) (graph.Update, error) {
		if _, failed := st.Failure(sourceKey); failed {
			return graph.Update{akey: ""}, nil
		}
		v, ok := st.Value(sourceKey)
		if !ok {
			return graph.Update{akey: ""}, nil
		}
		resp, ok := v.(*search.Response)
		if !ok || (len(resp.Organic) == 0 && len(resp.Knowledge) == 0) {
			return graph.Update{akey: ""}, nil
		}

		reply, err := a.completer.Complete(ctx, formatAnalysisPrompt(st.Query(), sourceName, resp))
		if err != nil {
			return nil, fmt.Errorf("%s analysis: %w", sourceName, err)
		}
		return graph.Update{akey: reply}, nil
	}
}

// redditAnalysisNode analyzes the discovered posts together with the
// retrieved comments.
func (a *Agent) redditAnalysisNode(ctx context.Context, st *graph.State) (graph.Update, error) {
	posts := redditPosts(st)
	comments := redditComments(st)
	if len(posts) == 0 && len(comments) == 0 {
		return graph.Update{KeyRedditAnalysis: ""}, nil
	}

	prompt := fmt.Sprintf(redditAnalysisPrompt, st.Query(), formatPosts(posts), formatComments(comments))
	reply, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("reddit analysis: %w", err)
	}
	return graph.Update{KeyRedditAnalysis: reply}, nil
}

// synthesizeNode combines all analyses into the final answer. Zero usable
// analyses, or a model failure here, is the one condition that fails the
// whole run.
func (a *Agent) synthesizeNode(ctx context.Context, st *graph.State) (graph.Update, error) {
	analyses := make(map[string]string, len(a.sources))
	var order, failed []string
	for _, src := range a.sources {
		order = append(order, src.name)
		if _, sourceFailed := st.Failure(src.key); sourceFailed {
			failed = append(failed, src.key)
			continue
		}
		if _, analysisFailed := st.Failure(analysisKey(src.key)); analysisFailed {
			failed = append(failed, src.key)
			continue
		}
		analyses[src.name] = st.StringValue(analysisKey(src.key))
	}

	usable := 0
	for _, text := range analyses {
		if text != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil, &graph.SynthesisError{
			Cause:         errors.New("no source produced usable results"),
			FailedSources: failed,
		}
	}

	reply, err := a.completer.Complete(ctx, formatSynthesisPrompt(st.Query(), analyses, order))
	if err != nil {
		return nil, &graph.SynthesisError{Cause: err, FailedSources: failed}
	}
	return graph.Update{KeySynthesis: reply}, nil
}

// redditPosts reads the discovered posts, tolerating a failed branch.
func redditPosts(st *graph.State) []search.Post {
	v, ok := st.Value(KeyReddit)
	if !ok {
		return nil
	}
	posts, _ := v.([]search.Post)
	return posts
}

// redditComments reads the retrieved comments, tolerating a failed branch.
func redditComments(st *graph.State) []search.Comment {
	v, ok := st.Value(KeyRedditPostData)
	if !ok {
		return nil
	}
	comments, _ := v.([]search.Comment)
	return comments
}
