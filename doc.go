// Multisearch - Multi-Source Research Agent in Go
//
// Multisearch answers a question by fanning it out to several independent
// search sources (Google, Bing and Yandex through a SERP API, plus Reddit
// post discovery and comment retrieval), analyzing each source's results
// with a language model, and synthesizing one final answer. The heart of
// the module is a small DAG execution engine that runs independent branches
// concurrently, merges their outputs into a shared state, and keeps a
// failing branch from taking the whole run down.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/multisearch
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/multisearch/agent"
//		"github.com/smallnest/multisearch/llm"
//		"github.com/smallnest/multisearch/search"
//	)
//
//	func main() {
//		serp, _ := search.NewSERPClient(apiURL, apiKey)
//		reddit, _ := search.NewRedditClient(apiKey)
//		completer, _ := llm.NewOpenAICompleter(openaiKey, "")
//
//		a, _ := agent.New(agent.Config{
//			Searchers: []search.Searcher{
//				serp.Engine(search.EngineGoogle),
//				serp.Engine(search.EngineBing),
//			},
//			Reddit:    reddit,
//			Completer: completer,
//		})
//
//		outcome, _ := a.Run(context.Background(), "how do goroutines work?")
//		fmt.Println(agent.Answer(outcome))
//	}
//
// # Packages
//
//   - graph: the execution engine. Build a validated DAG with graph.NewBuilder,
//     run it with graph.NewExecutor. Independent nodes run concurrently under a
//     configurable concurrency cap; node and run timeouts turn hung branches
//     into failure markers instead of stalls.
//   - agent: the research pipeline wired on top of graph: search fan-out,
//     Reddit deep dive, per-source analysis, final synthesis.
//   - search: SERP API and Reddit dataset API clients.
//   - llm: text completion behind a small interface, with langchaingo and
//     OpenAI implementations.
//   - store: run history persistence with memory, SQLite, Postgres and Redis
//     backends.
//   - render: markdown answer to sanitized HTML.
//   - config: environment configuration with .env support.
//
// # Failure Model
//
// A failing source branch resolves to a failure marker in the run state and
// the remaining branches continue; the terminal synthesis node works with
// whatever accumulated. Only two things fail a run as a whole: every source
// failing, or the synthesis model call itself failing. Structural problems,
// like two nodes writing the same state key, abort the run with an error.
package multisearch
