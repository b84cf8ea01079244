package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/dshills/curriculum-search/internal/config"
	"github.com/dshills/curriculum-search/internal/embedder"
	"github.com/dshills/curriculum-search/internal/ingest"
	"github.com/dshills/curriculum-search/internal/mcp"
	"github.com/dshills/curriculum-search/internal/reranker"
	"github.com/dshills/curriculum-search/internal/searcher"
	"github.com/dshills/curriculum-search/internal/storage"
)

const configKey = "config"

// setup loads the configuration and installs the default logger
func setup(c *cli.Context) error {
	var opts []config.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}

	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = strings.ToLower(lvl)
	}
	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// deps holds the components one command needs
type deps struct {
	store    *storage.SQLiteStorage
	embedder embedder.Embedder
	searcher *searcher.Searcher
}

func (d *deps) Close() {
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// open wires storage, embedder and searcher from cfg
func open(cfg *config.Config) (*deps, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	d := &deps{store: store}

	d.embedder, err = embedder.New(cfg.EmbedderConfig())
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	opts := []searcher.Option{
		searcher.WithDefaultWeight(cfg.Search.Weight),
		searcher.WithLexicalWeight(cfg.Search.LexicalWeight),
		searcher.WithCombineFloor(cfg.Search.CombineFloor),
		searcher.WithCache(cfg.Search.CacheSize, cfg.Search.CacheTTL),
		searcher.WithLogger(slog.Default()),
	}
	if cfg.Rerank.Enabled {
		rr, err := newReranker(cfg)
		if err != nil {
			slog.Warn("reranking unavailable", "err", err)
		} else {
			opts = append(opts, searcher.WithReranker(rr))
		}
	}

	d.searcher, err = searcher.NewSearcher(store, d.embedder, opts...)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize searcher: %w", err)
	}
	return d, nil
}

func newReranker(cfg *config.Config) (*reranker.Reranker, error) {
	completer, err := reranker.NewCompleter(cfg.CompleterConfig())
	if err != nil {
		return nil, err
	}
	return reranker.New(completer,
		reranker.WithBatchSize(cfg.Rerank.BatchSize),
		reranker.WithConcurrency(cfg.Rerank.Concurrency),
		reranker.WithTimeout(cfg.Rerank.Timeout),
		reranker.WithMergeOrder(cfg.Rerank.MergeOrder),
		reranker.WithLogger(slog.Default()),
	)
}

func newIngester(cfg *config.Config, d *deps) (*ingest.Ingester, error) {
	opts := []ingest.Option{
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithLogger(slog.Default()),
	}
	if cfg.Ingest.PoolSize > 0 {
		opts = append(opts, ingest.WithPoolSize(cfg.Ingest.PoolSize))
	}
	return ingest.New(d.store, d.embedder, opts...)
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	d, err := open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	in, err := newIngester(cfg, d)
	if err != nil {
		return err
	}
	defer in.Release()

	server, err := mcp.NewServer(d.searcher,
		mcp.WithIngester(in, cfg.DataDir),
		mcp.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	slog.Info("starting MCP server",
		"version", version,
		"db", cfg.Database.Path,
		"embedding_provider", d.embedder.Provider(),
		"embedding_model", d.embedder.Model())
	return server.Serve(c.Context)
}

func ingestCommand(c *cli.Context) error {
	cfg := configFrom(c)
	dir := c.String("data-dir")
	if dir == "" {
		dir = cfg.DataDir
	}

	d, err := open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	in, err := newIngester(cfg, d)
	if err != nil {
		return err
	}
	defer in.Release()

	stats, err := in.IngestDir(c.Context, dir)
	if stats == nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Ingested %s in %v\n", dir, stats.Duration)
	fmt.Fprintf(w, "  Goals:        %d (%d embedded)\n", stats.Goals, stats.GoalEmbeddings)
	fmt.Fprintf(w, "  Elaborations: %d (%d embedded)\n", stats.Elaborations, stats.ElaborationEmbeddings)
	fmt.Fprintf(w, "  Skipped:      %d\n", stats.Skipped)

	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			slog.Warn("record not ingested", "err", e)
		}
		return cli.Exit(fmt.Sprintf("%d problems during ingestion", merr.Len()), 1)
	}
	return err
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return cli.Exit("a query is required", 2)
	}

	cfg := configFrom(c)
	limit, threshold := cfg.Search.Limit, cfg.Search.Threshold
	if c.IsSet("limit") {
		limit = c.Int("limit")
	}
	if c.IsSet("threshold") {
		threshold = c.Float64("threshold")
	}

	d, err := open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var resp *searcher.SearchResponse
	switch c.String("kind") {
	case "hybrid":
		req := searcher.SearchRequest{
			Query:     query,
			Limit:     limit,
			Threshold: threshold,
			Rerank:    c.Bool("rerank"),
		}
		if c.IsSet("weight") {
			w := c.Float64("weight")
			req.Weight = &w
		}
		if c.IsSet("lexical-weight") {
			lw := c.Float64("lexical-weight")
			req.LexicalWeight = &lw
		}
		resp, err = d.searcher.Search(c.Context, req)
	case "goals":
		resp, err = d.searcher.SearchGoals(c.Context, query, limit, threshold)
	case "elaborations":
		resp, err = d.searcher.SearchElaborations(c.Context, query, limit, threshold)
	default:
		return cli.Exit(fmt.Sprintf("unknown kind %q", c.String("kind")), 2)
	}
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return writeJSON(c, resp)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%d results for %q (%v)\n", resp.Count, resp.Query, resp.Duration)
	for _, r := range resp.Results {
		fmt.Fprintf(w, "%3d. [%.3f] %s  %s\n", r.Rank, r.Similarity, r.ExternalID, r.Title)
	}
	return nil
}

func goalCommand(c *cli.Context) error {
	ext := c.String("external-id")
	var id int64
	if ext == "" {
		var err error
		id, err = strconv.ParseInt(c.Args().First(), 10, 64)
		if err != nil {
			return cli.Exit("a numeric goal id or --external-id is required", 2)
		}
	}

	d, err := open(configFrom(c))
	if err != nil {
		return err
	}
	defer d.Close()

	var detail interface{}
	if ext != "" {
		g, err := d.searcher.GetGoalByExternalID(c.Context, ext)
		if err != nil {
			return err
		}
		if g == nil {
			return cli.Exit(fmt.Sprintf("goal %s not found", ext), 1)
		}
		detail = g
	} else {
		g, err := d.searcher.GetGoal(c.Context, id)
		if err != nil {
			return err
		}
		if g == nil {
			return cli.Exit(fmt.Sprintf("goal %d not found", id), 1)
		}
		detail = g
	}
	return writeJSON(c, detail)
}

func statsCommand(c *cli.Context) error {
	d, err := open(configFrom(c))
	if err != nil {
		return err
	}
	defer d.Close()

	stats, err := d.searcher.Stats(c.Context)
	if err != nil {
		return err
	}
	return writeJSON(c, stats)
}

func writeJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
