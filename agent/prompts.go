package agent

import (
	"fmt"
	"strings"

	"github.com/smallnest/multisearch/search"
)

const analysisPromptTemplate = `You are an expert research analyst. A user asked:

%s

Below are raw %s search results for that question. Extract the facts that
help answer the question, note points of agreement and disagreement between
the results, and ignore advertisements or off-topic items. Reply with a
concise analysis in plain prose.

Search results:
%s`

const redditURLSelectionPrompt = `You are helping research this question:

%s

Below is a list of Reddit posts found for the question. Select up to %d
posts whose discussions are most likely to contain first-hand answers.

Respond with ONLY a JSON object of the form:
{"selected_urls": ["https://...", "https://..."]}

Posts:
%s`

const redditAnalysisPrompt = `You are an expert research analyst. A user asked:

%s

Below are Reddit posts found for the question, followed by comments
retrieved from the most relevant posts. Summarize what the community
actually says: practical experience, consensus, notable dissent. Reply
with a concise analysis in plain prose.

Posts:
%s

Comments:
%s`

const synthesisPromptTemplate = `You are an expert researcher writing the final answer to this question:

%s

Below are analyses of results from several independent sources. Combine
them into one coherent, well-structured answer in markdown. Prefer facts
that several sources agree on, attribute community opinions to Reddit,
and do not mention the sources' names as section headings.

%s`

// formatAnalysisPrompt builds the per-engine analysis prompt.
func formatAnalysisPrompt(query, sourceName string, resp *search.Response) string {
	return fmt.Sprintf(analysisPromptTemplate, query, sourceName, formatSearchResponse(resp))
}

// formatSearchResponse renders a SERP answer as prompt text.
func formatSearchResponse(resp *search.Response) string {
	var sb strings.Builder
	if len(resp.Knowledge) > 0 {
		sb.WriteString("Knowledge panel:\n")
		for k, v := range resp.Knowledge {
			fmt.Fprintf(&sb, "- %s: %v\n", k, v)
		}
		sb.WriteString("\n")
	}
	for i, r := range resp.Organic {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	if sb.Len() == 0 {
		return "(no results)"
	}
	return sb.String()
}

// formatPosts renders discovered Reddit posts as prompt text.
func formatPosts(posts []search.Post) string {
	if len(posts) == 0 {
		return "(no posts)"
	}
	var sb strings.Builder
	for i, p := range posts {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, p.Title, p.URL)
	}
	return sb.String()
}

// formatComments renders retrieved comments as prompt text.
func formatComments(comments []search.Comment) string {
	if len(comments) == 0 {
		return "(no comments)"
	}
	var sb strings.Builder
	for _, c := range comments {
		fmt.Fprintf(&sb, "On %q:\n%s\n\n", c.PostTitle, c.Content)
	}
	return sb.String()
}

// formatSynthesisPrompt builds the terminal prompt from the non-empty
// analyses, keyed by source name.
func formatSynthesisPrompt(query string, analyses map[string]string, order []string) string {
	var sb strings.Builder
	for _, name := range order {
		text := analyses[name]
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "Analysis of %s results:\n%s\n\n", name, text)
	}
	return fmt.Sprintf(synthesisPromptTemplate, query, strings.TrimSpace(sb.String()))
}
