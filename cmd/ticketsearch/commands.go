package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dshills/ticketsearch/internal/app"
	"github.com/dshills/ticketsearch/internal/embedder"
	"github.com/dshills/ticketsearch/internal/loader"
	"github.com/dshills/ticketsearch/internal/vectorindex"
)

func runIngest(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		common    commonFlags
		batchSize int
	)
	fs := newFlagSet("ingest", stderr)
	common.register(fs)
	fs.IntVar(&batchSize, "batch-size", 0, "tickets per embedding call (default from config, 50)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ticketsearch ingest [flags] <tickets.json>")
	}

	tickets, err := loader.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, logger, closer, err := common.load(stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	if batchSize > 0 {
		cfg.Ingest.BatchSize = batchSize
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Engine.Ingest(ctx, tickets)
	if stats != nil {
		if encErr := writeJSON(stdout, stats); encErr != nil {
			return encErr
		}
	}
	return err
}

func runSearch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		common     commonFlags
		k          int
		asJSON     bool
		demo       bool
		ingestFile string
	)
	fs := newFlagSet("search", stderr)
	common.register(fs)
	fs.IntVarP(&k, "k", "k", 0, "number of results (default from config, 3)")
	fs.BoolVar(&asJSON, "json", false, "print results as JSON")
	fs.BoolVar(&demo, "demo", false, "ingest the built-in demo tickets before searching")
	fs.StringVar(&ingestFile, "ingest", "", "ingest this JSON file before searching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("usage: ticketsearch search [flags] <query>")
	}

	cfg, logger, closer, err := common.load(stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	if k <= 0 {
		k = cfg.Server.DefaultK
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if demo {
		if _, err := a.Engine.Ingest(ctx, loader.DemoTickets()); err != nil {
			return err
		}
	}
	if ingestFile != "" {
		tickets, err := loader.LoadFile(ingestFile)
		if err != nil {
			return err
		}
		if _, err := a.Engine.Ingest(ctx, tickets); err != nil {
			return err
		}
	}

	results := a.Engine.Search(ctx, query, k)
	if asJSON {
		return writeJSON(stdout, results)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tSTATUS\tTITLE")
	for _, t := range results {
		score := 0.0
		if t.SimilarityScore != nil {
			score = *t.SimilarityScore
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%s\t%s\n", t.ID, score, t.Status, t.Title)
	}
	return tw.Flush()
}

func runGenerate(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		count  int
		seed   uint64
		output string
	)
	fs := newFlagSet("generate", stderr)
	fs.IntVarP(&count, "count", "n", 5000, "number of tickets")
	fs.Uint64Var(&seed, "seed", 1, "random seed")
	fs.StringVarP(&output, "output", "o", "data/tickets_5k.json", "output file, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if count < 0 {
		return errors.New("count must not be negative")
	}

	tickets := loader.Generate(count, seed)
	if output == "-" {
		return writeJSON(stdout, tickets)
	}
	if err := loader.WriteFile(output, tickets); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d tickets to %s\n", len(tickets), output)
	return nil
}

func runVersion(_ context.Context, _ []string, stdout, _ io.Writer) error {
	fmt.Fprintf(stdout, "ticketsearch\n")
	fmt.Fprintf(stdout, "Version: %s\n", version)
	fmt.Fprintf(stdout, "Build Time: %s\n", buildTime)
	fmt.Fprintf(stdout, "Build Mode: %s\n", vectorindex.BuildMode)
	fmt.Fprintf(stdout, "SQLite Driver: %s\n", vectorindex.DriverName)
	fmt.Fprintf(stdout, "Vector Extension: %v\n", vectorindex.VectorExtensionAvailable)
	fmt.Fprintf(stdout, "Schema Version: %s\n", vectorindex.CurrentSchemaVersion)
	fmt.Fprintf(stdout, "Embedding Batch Limit: %d\n", embedder.MaxBatchSize)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
