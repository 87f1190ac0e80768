// Command buildindex builds an on-disk index from a JSON-lines file of
// documents ({"id", "name", "text", "sets"} per line). With -names-to-postgres
// the names part is loaded into the configured Postgres table instead of a
// segment file, for the searcher to serve with postgres.enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/pgstore"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (for the index dir and postgres)")
	input := flag.String("input", "", "JSON-lines document file (required)")
	out := flag.String("out", "", "index directory (defaults to index.dir from the config)")
	name := flag.String("name", "index", "index name recorded in the manifest")
	compression := flag.String("compression", "lz4", "segment value compression: none, lz4 or zstd")
	stem := flag.Bool("stem", false, "stem terms (set retrieval.stemming to match)")
	namesToPostgres := flag.Bool("names-to-postgres", false, "load the names part into postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		flag.Usage()
		os.Exit(2)
	}
	dir := *out
	if dir == "" {
		dir = cfg.Index.Dir
	}
	c, err := segment.ParseCompression(*compression)
	if err != nil {
		slog.Error("invalid compression", "error", err)
		os.Exit(2)
	}

	if err := run(cfg, *input, dir, *name, c, *stem, *namesToPostgres); err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, input, dir, name string, c segment.Compression, stem, namesToPostgres bool) error {
	start := time.Now()
	var opts []tokenizer.Option
	if stem {
		opts = append(opts, tokenizer.WithStemming())
	}
	bl := indexer.New(tokenizer.New(opts...))

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()
	n, err := bl.ReadJSONL(f)
	if err != nil {
		return err
	}
	slog.Info("documents read", "input", input, "documents", n)

	if namesToPostgres {
		if err := loadNames(cfg.Postgres, bl); err != nil {
			return err
		}
	}
	if _, err := bl.Write(dir, indexer.WriteOptions{
		Name:          name,
		Compression:   c,
		ExternalNames: namesToPostgres,
	}); err != nil {
		return err
	}
	slog.Info("index built", "dir", dir, "documents", n, "elapsed", time.Since(start).String())
	return nil
}

func loadNames(cfg config.PostgresConfig, bl *indexer.Builder) error {
	if cfg.NamesPart != indexer.NamesPart {
		return fmt.Errorf("postgres.namesPart must be %q to match the manifest, got %q", indexer.NamesPart, cfg.NamesPart)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := pgstore.EnsureSchema(ctx, client.DB, cfg.Table); err != nil {
		return err
	}
	entries := bl.NameEntries()
	if err := pgstore.Load(ctx, client, cfg.Table, cfg.NamesPart, entries); err != nil {
		return err
	}
	slog.Info("names loaded into postgres", "table", cfg.Table, "part", cfg.NamesPart, "rows", len(entries))
	return nil
}
