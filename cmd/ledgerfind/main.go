// Package main is the ledgerfind CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/answer"
	"github.com/opexhub/ledgerfind/internal/config"
	"github.com/opexhub/ledgerfind/internal/embedding"
	"github.com/opexhub/ledgerfind/internal/indexer"
	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/notify"
	"github.com/opexhub/ledgerfind/internal/query"
	"github.com/opexhub/ledgerfind/internal/search"
	"github.com/opexhub/ledgerfind/internal/server"
	"github.com/opexhub/ledgerfind/internal/storage"
	"github.com/opexhub/ledgerfind/internal/vector"
	"github.com/opexhub/ledgerfind/internal/watcher"
	"github.com/opexhub/ledgerfind/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ledgerfind/config.yaml"

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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ledgerfind version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Build the index before serving; search returns 503 until this is done.
	rebuildCtx, rebuildCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := components.Indexer.Rebuild(rebuildCtx); err != nil {
		rebuildCancel()
		logger.Fatal("Failed to build index", zap.Error(err))
	}
	rebuildCancel()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var importWatcher *watcher.Watcher
	if cfg.Import.Directory != "" {
		importer := watcher.NewImporter(components.Storage, components.Indexer, logger)
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		importWatcher = watcher.New(cfg.Import.Directory, func(path string) {
			if err := importer.ImportFile(context.Background(), path); err != nil {
				logger.Warn("import failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := importWatcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start import watcher", zap.Error(err))
		}
		importWatcher.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		components.VectorIndex,
		components.Formatter,
		components.Events,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if importWatcher != nil {
		importWatcher.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	userID := fs.Int64("user", 0, "restrict results to this user id (0 = all)")
	withAnswer := fs.Bool("answer", false, "include a natural language answer")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ledgerfind search [flags] <query>")
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: ledgerfind search [flags] <query>")
		os.Exit(1)
	}

	req := &models.SearchRequest{
		Query:  queryStr,
		Limit:  *limit,
		UserID: *userID,
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids a SQLite
		// lock conflict).
		response, answerText, err := searchViaHTTP(*serverURL, req, *withAnswer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		writeSearchResults(response, answerText, *outputFormat)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Indexer.Rebuild(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build index: %v\n", err)
		os.Exit(1)
	}
	response, err := components.Engine.Search(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	answerText := ""
	if *withAnswer {
		answerText, err = components.Formatter.Format(ctx, response)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Answer failed: %v\n", err)
		}
	}
	writeSearchResults(response, answerText, *outputFormat)
}

func writeSearchResults(resp *models.SearchResponse, answerText, format string) {
	switch format {
	case "json":
		out := struct {
			*models.SearchResponse
			Answer string `json:"answer,omitempty"`
		}{resp, answerText}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if answerText != "" {
			fmt.Println(answerText)
			fmt.Println()
		}
		fmt.Printf("%d result(s) for %q in %.1fms\n", resp.Total, resp.Query, resp.ElapsedMS)
		for i, r := range resp.Results {
			label := r.Label
			if r.Item != "" && r.Item != r.Label {
				label = label + " / " + r.Item
			}
			fmt.Printf("%2d. [%s] %s  %.2f  (score %.3f, %s)\n",
				i+1, r.Kind, utils.Truncate(label, 48), r.Amount, r.Score, r.MatchPath)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", format)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest, withAnswer bool) (*models.SearchResponse, string, error) {
	payload := struct {
		*models.SearchRequest
		Answer bool `json:"answer,omitempty"`
	}{req, withAnswer}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response struct {
		models.SearchResponse
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	return &response.SearchResponse, response.Answer, nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: ledgerfind import [flags] <batch.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Indexer.Rebuild(ctx); err != nil {
		fmt.Printf("Failed to build index: %v\n", err)
		os.Exit(1)
	}
	importer := watcher.NewImporter(components.Storage, components.Indexer, logger)
	if err := importer.ImportFile(ctx, path); err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported: %s\n", path)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Records         int64 `json:"records"`
	Embeddings      int64 `json:"embeddings"`
	VectorIndexSize int   `json:"vector_index_size"`
	IndexReady      bool  `json:"index_ready"`
	Config          *struct {
		EmbeddingDimensions int `json:"embedding_dimensions,omitempty"`
	} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		records, err := components.Storage.CountRecords(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count records failed: %v\n", err)
			os.Exit(1)
		}
		embeddings, err := components.Storage.CountEmbeddings(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count embeddings failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Records:         records,
			Embeddings:      embeddings,
			VectorIndexSize: components.VectorIndex.Size(),
			IndexReady:      components.VectorIndex.Ready(),
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("records:            %d   # expenses + tax claims\n", status.Records)
		fmt.Printf("embeddings:         %d   # stored embedding rows\n", status.Embeddings)
		fmt.Printf("vector_index_size:  %d   # vectors in the in-memory index\n", status.VectorIndexSize)
		fmt.Printf("index_ready:        %t\n", status.IndexReady)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Store
	Embedder    embedding.Embedder
	Dictionary  *query.BleveDictionary
	VectorIndex *vector.SlotIndex
	Engine      *search.Engine
	Indexer     *indexer.Indexer
	Events      *notify.Broadcaster
	Formatter   answer.Formatter
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Dictionary != nil {
		_ = c.Dictionary.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		remote, err := embedding.NewOpenAIEmbedder(&embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		healthCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err = remote.HealthCheck(healthCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("embedding provider unreachable: %w", err)
		}
		embedder = remote
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	vectorIndex, err := vector.NewSlotIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	dict, err := query.NewBleveDictionary()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize term dictionary: %w", err)
	}

	normOpts := []query.Option{
		query.WithTermDictionary(dict),
		query.WithVocabSource(store),
	}
	if debug && logger != nil {
		normOpts = append(normOpts, query.WithLogger(logger))
	}
	normalizer := query.NewNormalizer(normOpts...)

	engineOpts := []search.Option{
		search.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit),
	}
	if debug && logger != nil {
		engineOpts = append(engineOpts, search.WithLogger(logger))
	}
	engine := search.NewEngine(store, embedder, vectorIndex, normalizer, engineOpts...)

	events := notify.NewBroadcaster(logger)
	idx := indexer.New(store, embedder, vectorIndex,
		indexer.WithLogger(logger),
		indexer.WithNotifier(events),
		indexer.WithDictionary(dict),
	)

	var formatter answer.Formatter
	if cfg.Answer.Enabled && cfg.Answer.Model != "" {
		formatter = answer.NewChatFormatter(answer.ChatConfig{
			APIKey:  cfg.Answer.APIKey,
			BaseURL: cfg.Answer.BaseURL,
			Model:   cfg.Answer.Model,
		})
	} else {
		formatter = answer.NewPlainFormatter()
	}

	return &Components{
		Storage:     store,
		Embedder:    embedder,
		Dictionary:  dict,
		VectorIndex: vectorIndex,
		Engine:      engine,
		Indexer:     idx,
		Events:      events,
		Formatter:   formatter,
	}, nil
}

func printUsage() {
	fmt.Println(`ledgerfind - Hybrid search over expenses and tax claims

Usage:
  ledgerfind server [flags]           Start the HTTP server
  ledgerfind search [flags] <query>   Search records
  ledgerfind import [flags] <file>    Import a JSON record batch
  ledgerfind status [flags]           Show storage/index status
  ledgerfind version                  Show version
  ledgerfind help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ledgerfind/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int        Number of results (default: 10)
  --user int         Restrict results to a user id
  --answer           Include a natural language answer
  --output string    Output format: text or json (default: text)

Import Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  ledgerfind server
  ledgerfind search "petrol expenses in december"
  ledgerfind search --answer "how much did I spend on food"
  ledgerfind import batch.json
  ledgerfind status --output json`)
}
