package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"github.com/spf13/cobra"

	"storyrag/internal/config"
	"storyrag/internal/corpus"
	"storyrag/internal/http"
	"storyrag/internal/indexer"
	"storyrag/internal/llm"
	"storyrag/internal/query"
	"storyrag/internal/storage"
	"storyrag/internal/vectorstore"
)

type cliFlags struct {
	index      bool
	force      bool
	listDocs   bool
	serve      bool
	queryText  string
	character  string
	plotThread string
	topK       int
	workers    int
}

func main() {
	var flags cliFlags

	rootCmd := &cobra.Command{
		Use:   "storyrag",
		Short: "Index and query story content for retrieval",
		Long: `storyrag indexes a tree of markdown story content (settings, chapters,
subplot plans) into a vector store and answers retrieval queries over it,
either one-shot from the command line or as an HTTP tool server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	rootCmd.Flags().BoolVar(&flags.index, "index", false, "index new and changed documents before anything else")
	rootCmd.Flags().BoolVar(&flags.force, "force", false, "with --index, re-index everything regardless of recorded hashes")
	rootCmd.Flags().BoolVar(&flags.listDocs, "list-docs", false, "list discovered documents with their categories and exit")
	rootCmd.Flags().BoolVar(&flags.serve, "serve", false, "start the HTTP tool server")
	rootCmd.Flags().StringVar(&flags.queryText, "query", "", "run a general retrieval query")
	rootCmd.Flags().StringVar(&flags.character, "character", "", "retrieve persona material for a character name")
	rootCmd.Flags().StringVar(&flags.plotThread, "plot-thread", "", "retrieve plot material for a thread keyword")
	rootCmd.Flags().IntVar(&flags.topK, "top-k", 5, "maximum number of results per query")
	rootCmd.Flags().IntVar(&flags.workers, "parallel-workers", 0, "indexing parallelism (0 uses INDEX_WORKERS)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, flags cliFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg)

	loader := corpus.NewLoader(cfg.ContentRoot, corpus.DefaultLayout())

	if !flags.listDocs && !flags.index && !flags.serve &&
		flags.queryText == "" && flags.character == "" && flags.plotThread == "" {
		return fmt.Errorf("nothing to do: pass --index, --serve, --list-docs, --query, --character or --plot-thread")
	}

	db, err := storage.New(cfg.HashDBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database initialized", "path", cfg.HashDBPath)

	hashes := storage.NewHashRepo(db)

	if flags.listDocs {
		return listDocs(ctx, loader, hashes)
	}

	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		return fmt.Errorf("failed to ensure Qdrant collection: %w", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)

	aliases, err := query.LoadAliasTable(cfg.AliasPath)
	if err != nil {
		return fmt.Errorf("failed to load alias table: %w", err)
	}

	workers := flags.workers
	if workers <= 0 {
		workers = cfg.IndexWorkers
	}
	pipeline := indexer.NewPipeline(loader, hashes, embedder, vectorStore, cfg.QdrantCollection, workers)
	engine := query.NewEngine(embedder, vectorStore, cfg.QdrantCollection, aliases)

	if flags.index {
		summary, err := pipeline.IndexAll(ctx, flags.force)
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		fmt.Printf("indexed %d, skipped %d, failed %d\n", summary.Indexed, summary.Skipped, summary.Failed)
	}

	switch {
	case flags.queryText != "":
		results, err := engine.Search(ctx, flags.queryText, flags.topK, corpus.CategoryUnknown)
		if err != nil {
			return err
		}
		return printResults(results)
	case flags.character != "":
		results, err := engine.SearchCharacter(ctx, flags.character, flags.topK)
		if err != nil {
			return err
		}
		return printResults(results)
	case flags.plotThread != "":
		results, err := engine.SearchPlotThread(ctx, flags.plotThread, flags.topK)
		if err != nil {
			return err
		}
		return printResults(results)
	}

	if flags.serve {
		return serve(cfg, engine, vectorStore, pipeline, flags.index)
	}

	return nil
}

// setupLogging configures the default slog logger from config.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// listDocs prints every discovered document with its category and whether
// it has an index record.
func listDocs(ctx context.Context, loader *corpus.Loader, hashes storage.HashStore) error {
	docs, err := loader.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan documents: %w", err)
	}

	recorded, err := hashes.ListPaths(ctx)
	if err != nil {
		return fmt.Errorf("failed to list index records: %w", err)
	}
	indexed := make(map[string]struct{}, len(recorded))
	for _, p := range recorded {
		indexed[p] = struct{}{}
	}

	for _, doc := range docs {
		status := "pending"
		if _, ok := indexed[doc.Path]; ok {
			status = "indexed"
		}
		fmt.Printf("%-12s %-8s %s\n", doc.Category.String(), status, doc.Path)
	}
	fmt.Printf("%d documents\n", len(docs))
	return nil
}

func printResults(results []query.Result) error {
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// serve starts the HTTP tool server. Unless an indexing pass already ran
// in this invocation, one is kicked off in the background so a fresh
// deployment becomes queryable without a separate step.
func serve(cfg *config.Config, engine query.Engine, vectorStore vectorstore.VectorStore, pipeline *indexer.Pipeline, alreadyIndexed bool) error {
	router := http.NewRouter(&http.Deps{
		Engine:         engine,
		VectorStore:    vectorStore,
		CollectionName: cfg.QdrantCollection,
	})

	if !alreadyIndexed {
		go func() {
			slog.Info("Starting background indexing")
			if _, err := pipeline.IndexAll(context.Background(), false); err != nil {
				slog.Error("Indexing completed with errors", "error", err)
			}
		}()
	}

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
	return nil
}
