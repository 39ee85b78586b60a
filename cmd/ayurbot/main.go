// Package main is the AyurBot CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mrinoybanerjee/AyurBot/internal/config"
	"github.com/mrinoybanerjee/AyurBot/internal/embedding"
	"github.com/mrinoybanerjee/AyurBot/internal/evaluate"
	"github.com/mrinoybanerjee/AyurBot/internal/generate"
	"github.com/mrinoybanerjee/AyurBot/internal/ingest"
	"github.com/mrinoybanerjee/AyurBot/internal/keyword"
	"github.com/mrinoybanerjee/AyurBot/internal/retrieval"
	"github.com/mrinoybanerjee/AyurBot/internal/server"
	"github.com/mrinoybanerjee/AyurBot/internal/storage"
	"github.com/mrinoybanerjee/AyurBot/internal/watcher"
	"github.com/mrinoybanerjee/AyurBot/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ayurbot/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; the token can come from the environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "ingest":
		runIngest()
	case "backfill":
		runBackfill()
	case "ask":
		runAsk()
	case "chat":
		runChat()
	case "eval":
		runEval()
	case "serve":
		runServe()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ayurbot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: ayurbot <command> [flags]

Commands:
  ingest <file-or-directory>  Ingest source documents into the passage store
  backfill                    Embed passages that lack an embedding
  ask <question>              Answer a single question
  chat                        Interactive question answering
  eval                        Compare grounded vs ungrounded answers
  serve                       Run the HTTP API server
  status                      Show corpus statistics
  version                     Print version`)
}

// Components holds the initialized pipeline pieces shared by subcommands.
type Components struct {
	Storage      storage.Store
	Embedder     embedding.Embedder
	KeywordIndex keyword.Index
	Retriever    *retrieval.Retriever
	Generator    *generate.Generator
	Evaluator    *evaluate.Evaluator
}

// Close releases all component resources.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	kwIdx, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	retriever := retrieval.NewRetriever(store, logger)
	completer := generate.NewStreamClient(
		cfg.Generation.BaseURL,
		cfg.Generation.Model,
		os.Getenv(cfg.Generation.TokenEnv),
		time.Duration(cfg.Generation.TimeoutSecs)*time.Second,
	)
	generator := generate.NewGenerator(retriever, embedder, completer,
		generate.WithMaxContextLength(cfg.Generation.MaxContextLength),
		generate.WithLogger(logger),
	)
	evaluator := evaluate.NewEvaluator(embedder, logger)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		KeywordIndex: kwIdx,
		Retriever:    retriever,
		Generator:    generator,
		Evaluator:    evaluator,
	}, nil
}

// setup loads config, builds a logger, and initializes components. Shared by
// every subcommand that touches the store.
func setup(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-ingest files even when unchanged")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ayurbot ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, logger, components := setup(*configPath)
	defer components.Close()
	defer logger.Sync()

	pipeline := ingest.NewPipeline(components.Storage,
		ingest.WithKeywordIndex(components.KeywordIndex),
		ingest.WithLogger(logger),
	)

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files = files[:0]
		exts := cfg.Watch.Extensions
		err := filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil || fi.IsDir() {
				return err
			}
			for _, ext := range exts {
				if strings.EqualFold(filepath.Ext(p), ext) {
					files = append(files, p)
					break
				}
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to walk directory: %v\n", err)
			os.Exit(1)
		}
	}

	total := 0
	for _, f := range files {
		if !*force {
			skip, err := pipeline.ShouldSkip(ctx, f)
			if err == nil && skip {
				logger.Debug("skipping unchanged file", zap.String("path", f))
				continue
			}
		}
		n, err := pipeline.IngestFile(ctx, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingestion failed for %s: %v\n", f, err)
			os.Exit(1)
		}
		total += n
	}
	fmt.Printf("Ingested %d passage(s) from %d file(s)\n", total, len(files))
}

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath)
	defer components.Close()
	defer logger.Sync()

	job := ingest.NewBackfill(components.Storage, components.Embedder, logger)
	embedded, skipped, err := job.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed after embedding %d passage(s): %v\n", embedded, err)
		os.Exit(1)
	}
	fmt.Printf("Embedded %d passage(s), %d already embedded\n", embedded, skipped)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	showContext := fs.Bool("show-context", false, "print the retrieved passage id and score")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ayurbot ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: ayurbot ask [flags] <question>")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath)
	defer components.Close()
	defer logger.Sync()

	result, err := components.Generator.Answer(context.Background(), question, func(fragment string) {
		fmt.Print(fragment)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nAnswer failed: %v\n", err)
		os.Exit(1)
	}
	// Fallback answers are never streamed, so print the final text when
	// nothing went to stdout yet.
	if result.Answer == generate.FallbackAnswer {
		fmt.Print(result.Answer)
	}
	fmt.Println()
	if *showContext && result.PassageID != nil {
		fmt.Printf("\n[passage %d, score %.4f]\n", *result.PassageID, *result.Score)
	}
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath)
	defer components.Close()
	defer logger.Sync()

	fmt.Println("AyurBot chat. Type a question, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}
		result, err := components.Generator.Answer(context.Background(), question, func(fragment string) {
			fmt.Print(fragment)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nAnswer failed: %v\n", err)
			continue
		}
		if result.Answer == generate.FallbackAnswer {
			fmt.Print(result.Answer)
		}
		fmt.Println()
	}
}

// readEvalInputs resolves the question and reference answer for eval: values
// given as flags are used as-is, anything missing is prompted for on in.
func readEvalInputs(in io.Reader, out io.Writer, question, trueAnswer string) (string, string, error) {
	question = strings.TrimSpace(question)
	trueAnswer = strings.TrimSpace(trueAnswer)
	scanner := bufio.NewScanner(in)
	prompt := func(label string) (string, error) {
		fmt.Fprintf(out, "%s: ", label)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("no input for %s", label)
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	var err error
	if question == "" {
		if question, err = prompt("Question"); err != nil {
			return "", "", err
		}
	}
	if trueAnswer == "" {
		if trueAnswer, err = prompt("Reference answer"); err != nil {
			return "", "", err
		}
	}
	if question == "" || trueAnswer == "" {
		return "", "", errors.New("question and reference answer are required")
	}
	return question, trueAnswer, nil
}

func runEval() {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	question := fs.String("question", "", "question to evaluate (prompted when omitted)")
	trueAnswer := fs.String("true-answer", "", "reference answer to score against (prompted when omitted)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	q, ta, err := readEvalInputs(os.Stdin, os.Stdout, *question, *trueAnswer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Println("Usage: ayurbot eval [-question <q> -true-answer <a>]")
		os.Exit(1)
	}

	_, logger, components := setup(*configPath)
	defer components.Close()
	defer logger.Sync()

	ctx := context.Background()
	ragResult, err := components.Generator.Answer(ctx, q, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Grounded answer failed: %v\n", err)
		os.Exit(1)
	}
	nonRAG, err := components.Generator.AnswerWithoutContext(ctx, q, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ungrounded answer failed: %v\n", err)
		os.Exit(1)
	}
	cmp, err := components.Evaluator.Score(ctx, ta, ragResult.Answer, nonRAG)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scoring failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{
			"question":       q,
			"rag_answer":     ragResult.Answer,
			"non_rag_answer": nonRAG,
			"rag_score":      cmp.RAGScore,
			"non_rag_score":  cmp.NonRAGScore,
		})
	default:
		fmt.Printf("question:        %s\n", q)
		fmt.Printf("rag_answer:      %s\n", utils.Truncate(ragResult.Answer, 200))
		fmt.Printf("non_rag_answer:  %s\n", utils.Truncate(nonRAG, 200))
		fmt.Printf("rag_score:       %.4f\n", cmp.RAGScore)
		fmt.Printf("non_rag_score:   %.4f\n", cmp.NonRAGScore)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipeline := ingest.NewPipeline(components.Storage,
		ingest.WithKeywordIndex(components.KeywordIndex),
		ingest.WithLogger(logger),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				ctx := context.Background()
				if skip, err := pipeline.ShouldSkip(ctx, path); err == nil && skip {
					return
				}
				if _, err := pipeline.IngestFile(ctx, path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Generator,
		components.Evaluator,
		components.Embedder,
		components.Retriever,
		components.Storage,
		components.KeywordIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath)
	defer components.Close()
	defer logger.Sync()

	ctx := context.Background()
	passages, err := components.Storage.CountPassages(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count passages failed: %v\n", err)
		os.Exit(1)
	}
	embedded, err := components.Storage.CountEmbedded(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count embedded failed: %v\n", err)
		os.Exit(1)
	}
	dims, err := components.Storage.EmbeddingDimensions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding dimensions failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		out := map[string]interface{}{
			"passages":             passages,
			"embedded":             embedded,
			"pending":              passages - embedded,
			"embedding_dimensions": dims,
			"database_path":        cfg.Storage.DatabasePath,
		}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath); err == nil {
			out["disk_usage_bytes"] = diskBytes
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Printf("passages:        %d   # count of stored passages\n", passages)
		fmt.Printf("embedded:        %d   # passages with an embedding\n", embedded)
		fmt.Printf("pending:         %d   # passages awaiting backfill\n", passages-embedded)
		if dims > 0 {
			fmt.Printf("embedding_dims:  %d\n", dims)
		}
		fmt.Printf("database_path:   %s\n", cfg.Storage.DatabasePath)
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.KeywordIndexPath); err == nil {
			fmt.Printf("disk_usage:      %d bytes\n", diskBytes)
		}
	}
}
