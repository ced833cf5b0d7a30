package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/reframedb/reframe/indexer/internal/search"
	"github.com/reframedb/reframe/indexer/internal/service/sync"
	"github.com/reframedb/reframe/pkg/config"
	"github.com/reframedb/reframe/pkg/logger"
	"github.com/reframedb/reframe/pkg/wikidata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "indexsync:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	cfg := config.LoadIndexerConfig()
	return &cli.App{
		Name:   "indexsync",
		Usage:  "copy knowledge base entities for indexed identifiers into the destination index",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "es-url", Usage: "Elasticsearch address", Value: cfg.ElasticsearchURL},
			&cli.StringFlag{Name: "source", Usage: "index holding the identifiers", Value: cfg.SourceIndex},
			&cli.StringFlag{Name: "dest", Usage: "index receiving the entities", Value: cfg.DestIndex},
			&cli.StringFlag{Name: "query", Usage: "query_string selecting identifiers", Value: cfg.Query},
			&cli.StringFlag{Name: "field", Usage: "document field carrying the identifier", Value: cfg.Field},
			&cli.IntFlag{Name: "size", Usage: "maximum identifiers per run", Value: cfg.Size},
			&cli.IntFlag{Name: "total-fields-limit", Usage: "mapping field limit set on the destination (0 skips)", Value: cfg.TotalFieldsLimit},
			&cli.StringFlag{Name: "entity-url", Usage: "knowledge base entity endpoint", Value: cfg.Wikidata.EntityURL},
			&cli.Float64Flag{Name: "rps", Usage: "knowledge base requests per second", Value: cfg.Wikidata.RPS},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: cfg.LogLevel},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	log := logger.NewWithWriter(c.App.ErrWriter, "indexsync", logger.ParseLevel(c.String("log-level")))

	index, err := search.New(c.String("es-url"))
	if err != nil {
		return err
	}
	kb, err := wikidata.New(c.String("entity-url"), wikidata.WithRateLimit(c.Float64("rps")))
	if err != nil {
		return err
	}
	svc := sync.New(index, kb, log, sync.Options{
		SourceIndex:      c.String("source"),
		DestIndex:        c.String("dest"),
		Query:            c.String("query"),
		Field:            c.String("field"),
		Size:             c.Int("size"),
		TotalFieldsLimit: c.Int("total-fields-limit"),
	})

	report, runErr := svc.Run(c.Context)
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return runErr
}
