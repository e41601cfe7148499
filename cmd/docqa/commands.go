package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/access"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/extract"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/search"
	"github.com/urfave/cli/v2"
)

const historyLimit = 20

func askCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	user := access.NormalizeUserID(c.String("user"))
	if user == "" {
		return errors.New("user is required")
	}
	if c.Int("max-retries") <= 0 {
		return errors.New("max-retries must be greater than 0")
	}

	policy, err := policyFromFlags(c)
	if err != nil {
		return err
	}

	engine, err := docqa.NewEngine(
		docqa.WithAIConfig(aiConfigFromFlags(c)),
		docqa.WithPolicy(policy),
		docqa.WithIngestionOptions(
			ingestion.WithExtensions(c.StringSlice("ext")...),
			ingestion.WithRetry(c.Int("max-retries"), time.Second),
			ingestion.WithProgress(c.App.ErrWriter),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	var watchers sync.WaitGroup
	defer func() {
		cancel()
		watchers.Wait()
		engine.Close()
	}()

	out := c.App.Writer
	docsDir := c.String("docs")
	if info, statErr := os.Stat(docsDir); statErr != nil || !info.IsDir() {
		fmt.Fprintf(c.App.ErrWriter, "Warning: documents directory %q not found\n", docsDir)
	} else {
		report, err := engine.IngestDirectory(ctx, docsDir)
		if err != nil {
			return fmt.Errorf("failed to load documents: %w", err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Loaded %d text chunks from %d documents.\n", report.Chunks, len(report.Ingested))
		for _, skipped := range report.Skipped {
			fmt.Fprintf(c.App.ErrWriter, "Skipped %s: %v\n", skipped.Path, skipped.Err)
		}

		if c.Bool("watch") {
			watchers.Add(1)
			go func() {
				defer watchers.Done()
				if err := engine.Watch(ctx, docsDir, 0); err != nil {
					fmt.Fprintf(c.App.ErrWriter, "watch stopped: %v\n", err)
				}
			}()
		}
	}

	var monitor search.Monitor
	if c.Bool("trace") {
		monitor = &traceMonitor{w: c.App.ErrWriter}
	}
	useContext := !c.Bool("no-context")

	if c.Args().Present() {
		question := strings.Join(c.Args().Slice(), " ")
		return ask(ctx, out, engine, user, question, useContext, monitor)
	}

	allowed := engine.AllowedDocuments(user)
	if len(allowed) == 0 {
		fmt.Fprintf(out, "Logged in as %s, who has no accessible documents.\n", user)
	} else {
		fmt.Fprintf(out, "Logged in as %s. Accessible documents: %s\n", user, strings.Join(allowed, ", "))
	}
	fmt.Fprintln(out, "Type :clear to reset the conversation, :history to show it, :quit to exit.")

	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":exit":
			return nil
		case ":clear":
			if err := engine.ClearConversation(ctx, user); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case ":history":
			turns, err := engine.History(ctx, user, historyLimit)
			if err != nil {
				return err
			}
			printHistory(out, turns)
			continue
		}

		if err := ask(ctx, out, engine, user, line, useContext, monitor); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
		}
	}
}

func ask(ctx context.Context, out io.Writer, engine *docqa.Engine, user, question string, useContext bool, monitor search.Monitor) error {
	answer, err := engine.AnswerWithMonitor(ctx, user, question, useContext, monitor)
	if err != nil {
		return err
	}
	printAnswer(out, answer)
	return nil
}

func printAnswer(out io.Writer, answer *core.Answer) {
	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, source := range answer.Sources {
			fmt.Fprintf(out, "  - %s (page %d, similarity %s)\n", source.Document, source.Page, source.Similarity)
		}
	}
	if answer.ContextUsed {
		fmt.Fprintln(out, "(used previous conversation)")
	}
	fmt.Fprintln(out)
}

func printHistory(out io.Writer, turns []core.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "No conversation yet.")
		return
	}
	for _, turn := range turns {
		fmt.Fprintf(out, "[%s] Q: %s\n", turn.Timestamp.Local().Format(time.Kitchen), turn.Query)
		fmt.Fprintf(out, "  A: %s\n", firstLine(turn.Answer))
		if turn.ReferencedDocuments != "" {
			fmt.Fprintf(out, "  Documents: %s\n", turn.ReferencedDocuments)
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func usersCommand(c *cli.Context) error {
	policy, err := policyFromFlags(c)
	if err != nil {
		return err
	}

	table := policy.Table()
	for _, user := range table.Users() {
		fmt.Fprintf(c.App.Writer, "%s: %s\n", user, strings.Join(table.AllowedDocuments(user).Sorted(), ", "))
	}

	if path := c.String("export"); path != "" {
		if err := access.SavePolicy(path, policy); err != nil {
			return err
		}
		fmt.Fprintf(c.App.ErrWriter, "Wrote policy to %s\n", path)
	}
	return nil
}

func extractCommand(c *cli.Context) error {
	if !c.Args().Present() {
		return errors.New("at least one file is required")
	}

	extractor, err := extract.NewAuto(extract.WithMinLength(c.Int("min-length")))
	if err != nil {
		return err
	}

	for _, path := range c.Args().Slice() {
		chunks, err := extractor.Extract(c.Context, path)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", path, err)
		}
		fmt.Fprintf(c.App.Writer, "%s: %d chunks\n", extract.Label(path), len(chunks))
		for i, chunk := range chunks {
			fmt.Fprintf(c.App.Writer, "  [%d] p.%d %s\n", i, chunk.Page, chunk.Text)
		}
	}
	return nil
}

// traceMonitor prints retrieval steps.
type traceMonitor struct {
	w io.Writer
}

var _ search.Monitor = (*traceMonitor)(nil)

func (m *traceMonitor) Start(query string, filter index.Filter, topK int) {
	fmt.Fprintf(m.w, "search: top %d, restricted=%t, query=%q\n", topK, filter.Restricted(), firstLine(query))
}

func (m *traceMonitor) Skipped(reason string) {
	fmt.Fprintf(m.w, "search skipped: %s\n", reason)
}

func (m *traceMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(m.w, "query embedded: %d dimensions\n", dimension)
}

func (m *traceMonitor) Finish(results []core.SearchResult) {
	fmt.Fprintf(m.w, "search finished: %d results\n", len(results))
	for _, result := range results {
		fmt.Fprintf(m.w, "  #%d %s p.%d similarity %.4f\n",
			result.Rank, result.Chunk.Document, result.Chunk.Page, result.Similarity)
	}
}
