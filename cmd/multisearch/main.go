// Command multisearch answers a question by fanning it out to several
// search engines and Reddit, then synthesizing one answer with a language
// model. Run with -q for a single question or without flags for a REPL.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kataras/golog"

	"github.com/smallnest/multisearch/agent"
	"github.com/smallnest/multisearch/config"
	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/llm"
	"github.com/smallnest/multisearch/log"
	"github.com/smallnest/multisearch/render"
	"github.com/smallnest/multisearch/search"
	"github.com/smallnest/multisearch/store"
	"github.com/smallnest/multisearch/store/sqlite"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160"))
	noteStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

func main() {
	question := flag.String("q", "", "one-shot question; omit for a REPL")
	asHTML := flag.Bool("html", false, "print the answer as sanitized HTML")
	showGraph := flag.Bool("graph", false, "print the pipeline graph as Mermaid and exit")
	historyN := flag.Int("history", 0, "print the last N saved runs and exit")
	flag.Parse()

	if err := run(*question, *asHTML, *showGraph, *historyN); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func run(question string, asHTML, showGraph bool, historyN int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	log.SetDefaultLogger(logger)

	var history store.RunStore
	if cfg.HistoryDBPath != "" {
		s, err := sqlite.NewStore(sqlite.Options{Path: cfg.HistoryDBPath})
		if err != nil {
			return err
		}
		defer s.Close()
		history = s
	}

	if historyN > 0 {
		return printHistory(history, historyN)
	}

	a, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}

	if showGraph {
		fmt.Println(graph.NewExporter(a.Graph()).DrawMermaid())
		return nil
	}

	if question != "" {
		return answer(a, history, question, asHTML)
	}
	return repl(a, history, asHTML)
}

func newLogger(level string) log.Logger {
	l := log.NewGologLogger(golog.New())
	switch strings.ToLower(level) {
	case "debug":
		l.SetLevel(log.LevelDebug)
	case "warn":
		l.SetLevel(log.LevelWarn)
	case "error":
		l.SetLevel(log.LevelError)
	default:
		l.SetLevel(log.LevelInfo)
	}
	return l
}

func buildAgent(cfg *config.Config, logger log.Logger) (*agent.Agent, error) {
	serpOpts := []search.SERPOption{search.WithSERPLogger(logger)}
	if cfg.Zone != "" {
		serpOpts = append(serpOpts, search.WithZone(cfg.Zone))
	}
	serp, err := search.NewSERPClient(cfg.BrightDataAPIURL, cfg.BrightDataAPIKey, serpOpts...)
	if err != nil {
		return nil, err
	}

	reddit, err := search.NewRedditClient(cfg.BrightDataAPIKey, search.WithRedditLogger(logger))
	if err != nil {
		return nil, err
	}

	var llmOpts []llm.OpenAIOption
	if cfg.Model != "" {
		llmOpts = append(llmOpts, llm.WithModel(cfg.Model))
	}
	completer, err := llm.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, llmOpts...)
	if err != nil {
		return nil, err
	}

	return agent.New(agent.Config{
		Searchers: []search.Searcher{
			serp.Engine(search.EngineGoogle),
			serp.Engine(search.EngineBing),
			serp.Engine(search.EngineYandex),
		},
		Reddit:    reddit,
		Completer: completer,
		Logger:    logger,
		ExecutorOptions: []graph.Option{
			graph.WithMaxConcurrency(cfg.MaxConcurrency),
			graph.WithNodeTimeout(cfg.NodeTimeout),
			graph.WithRunTimeout(cfg.RunTimeout),
		},
	})
}

func repl(a *agent.Agent, history store.RunStore, asHTML bool) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("question> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "exit" || q == "quit" {
			return nil
		}
		if err := answer(a, history, q, asHTML); err != nil {
			fmt.Println(errorStyle.Render("error: ") + err.Error())
		}
	}
}

func answer(a *agent.Agent, history store.RunStore, question string, asHTML bool) error {
	ctx := context.Background()
	outcome, err := a.Run(ctx, question)
	if err != nil {
		return err
	}

	text := agent.Answer(outcome)
	if history != nil {
		if err := history.Save(ctx, store.NewRecord(question, text, outcome)); err != nil {
			fmt.Println(noteStyle.Render("could not save run: " + err.Error()))
		}
	}

	if outcome.OverallFailed {
		fmt.Println(errorStyle.Render("run failed: ") + outcome.Diagnostic)
		return nil
	}

	fmt.Println(titleStyle.Render("Answer") + noteStyle.Render(fmt.Sprintf("  (run %s, %s)", outcome.RunID, outcome.Elapsed.Round(10*time.Millisecond))))
	if asHTML {
		fmt.Println(string(render.ToHTML(text)))
	} else {
		fmt.Println(text)
	}
	if outcome.Diagnostic != "" {
		fmt.Println(noteStyle.Render("some sources failed: " + outcome.Diagnostic))
	}
	return nil
}

func printHistory(history store.RunStore, n int) error {
	if history == nil {
		return fmt.Errorf("run history is disabled, set MULTISEARCH_HISTORY_DB")
	}

	records, err := history.List(context.Background(), n)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(noteStyle.Render("no saved runs"))
		return nil
	}

	for _, rec := range records {
		status := "ok"
		if rec.Failed {
			status = "failed"
		}
		fmt.Println(titleStyle.Render(rec.Query) +
			noteStyle.Render(fmt.Sprintf("  [%s, %s, %s]", rec.ID, status, rec.CreatedAt.Format("2006-01-02 15:04"))))
		if rec.Answer != "" {
			fmt.Println(rec.Answer)
		}
		if rec.Diagnostic != "" {
			fmt.Println(noteStyle.Render(rec.Diagnostic))
		}
		fmt.Println()
	}
	return nil
}
