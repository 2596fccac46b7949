// Package main is the Shikiri CLI entry point.
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

	"github.com/hyperjump/shikiri/internal/auth"
	"github.com/hyperjump/shikiri/internal/cli"
	"github.com/hyperjump/shikiri/internal/config"
	"github.com/hyperjump/shikiri/internal/corpus"
	"github.com/hyperjump/shikiri/internal/credstore"
	"github.com/hyperjump/shikiri/internal/match"
	"github.com/hyperjump/shikiri/internal/models"
	"github.com/hyperjump/shikiri/internal/server"
	"github.com/hyperjump/shikiri/internal/service"
	"github.com/hyperjump/shikiri/internal/watcher"
	"github.com/hyperjump/shikiri/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shikiri/config.yaml"

// apiKeyEnv lets operators pass the credential without putting it in the
// process argument list.
const apiKeyEnv = "SHIKIRI_API_KEY"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "shikiri server" from the project dir uses the
// project's config (including debug).
// Returns the config and the path that was actually loaded.
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
	case "status":
		runStatus()
	case "reload":
		runReload()
	case "version", "--version", "-v":
		fmt.Printf("shikiri version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (corpus loads, cache invalidation, etc.)")
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

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		loader := components.Loader
		resolver := components.Resolver
		credPath := ""
		if cfg.Auth.Backend == "yaml" {
			credPath = cfg.Auth.CredentialsPath
		}
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			cfg.Storage.DocumentsRoot,
			credPath,
			func(path string) {
				if tenant, ok := loader.TenantForPath(path); ok {
					logger.Debug("corpus changed, invalidating cache",
						zap.String("tenant", tenant.String()), zap.String("path", path))
					loader.Invalidate(tenant)
				}
			},
			func() {
				if err := resolver.Reload(context.Background()); err != nil {
					logger.Warn("credential reload failed", zap.Error(err))
				} else {
					logger.Info("credentials reloaded", zap.Int("count", resolver.Size()))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Service,
		components.Resolver,
		components.Loader,
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
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shikiri search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The API key selects which client partition is searched; there is no way to
name a partition directly. Pass it with --api-key or the %s
environment variable.

Examples:
  shikiri search --api-key clientA_key "délai de déclaration sinistre"
  %s=clientA_key shikiri search RC Pro exclusion
  shikiri search --api-key clientA_key --output json "suivi des sinistres"
`, apiKeyEnv, apiKeyEnv)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	apiKey := fs.String("api-key", os.Getenv(apiKeyEnv), "client API key (or "+apiKeyEnv+" env var)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "Missing API key: pass --api-key or set %s\n", apiKeyEnv)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	response, err := searchViaHTTP(*serverURL, *apiKey, queryStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResult(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, apiKey, query string) (*models.SearchResponse, error) {
	body, err := json.Marshal(models.SearchQuery{Query: query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Tenants        int   `json:"tenants"`
	Documents      int   `json:"documents"`
	DiskUsageBytes int64 `json:"disk_usage_bytes"`
	Credentials    int   `json:"credentials"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
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
		fmt.Printf("tenants:           %d   # client partitions under the corpus root\n", status.Tenants)
		fmt.Printf("documents:         %d   # files across all partitions\n", status.Documents)
		fmt.Printf("disk_usage_bytes:  %d\n", status.DiskUsageBytes)
		fmt.Printf("credentials:       %d   # loaded credential entries\n", status.Credentials)
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

func runReload() {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/credentials/reload", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Reload failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Credentials int `json:"credentials"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Credentials reloaded: %d entries\n", out.Credentials)
}

// Components holds initialized services.
type Components struct {
	Store    credstore.Store
	Resolver *auth.Resolver
	Loader   *corpus.Loader
	Service  *service.Service
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := credstore.New(cfg.Auth.Backend, cfg.Auth.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	resolver, err := auth.NewResolver(context.Background(), store, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	logger.Info("credentials loaded", zap.Int("count", resolver.Size()))

	loaderOpts := []corpus.LoaderOption{
		corpus.WithMaxFileBytes(cfg.Storage.MaxFileBytes),
	}
	if cfg.Storage.CacheEnabledOrDefault() {
		loaderOpts = append(loaderOpts, corpus.WithCache())
	}
	if debug {
		loaderOpts = append(loaderOpts, corpus.WithLogger(logger))
	}
	loader, err := corpus.NewLoader(cfg.Storage.DocumentsRoot, cfg.Storage.Extensions, loaderOpts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize corpus loader: %w", err)
	}

	engine := match.NewEngine(cfg.Search.MinSentenceLength)
	svc := service.NewService(resolver, loader, engine, cfg.Search.NoMatchMessage, logger)

	return &Components{
		Store:    store,
		Resolver: resolver,
		Loader:   loader,
		Service:  svc,
	}, nil
}

func printUsage() {
	fmt.Println(`shikiri - Partitioned document search for client support

Usage:
  shikiri server [flags]           Start the HTTP server
  shikiri search [flags] <query>   Search your partition (requires API key)
  shikiri status [flags]           Show corpus and credential status
  shikiri reload [flags]           Reload the credential table on the server
  shikiri version                  Show version
  shikiri help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shikiri/config.yaml)
  --debug            Enable debug logging (corpus loads, cache invalidation, etc.)

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --api-key string   Client API key (or ` + apiKeyEnv + ` env var)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Reload Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  shikiri server
  shikiri search --api-key clientA_key "délai de déclaration d'un sinistre"
  shikiri search --api-key clientA_key --output json "RC Pro exclusion"
  shikiri status --output json
  shikiri reload`)
}
