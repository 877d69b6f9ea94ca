// Package main is the progressvis CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Larry-Leee/progressVisualisation/internal/cli"
	"github.com/Larry-Leee/progressVisualisation/internal/config"
	"github.com/Larry-Leee/progressVisualisation/internal/export"
	"github.com/Larry-Leee/progressVisualisation/internal/extract"
	"github.com/Larry-Leee/progressVisualisation/internal/ingest"
	"github.com/Larry-Leee/progressVisualisation/internal/models"
	"github.com/Larry-Leee/progressVisualisation/internal/projectindex"
	"github.com/Larry-Leee/progressVisualisation/internal/query"
	"github.com/Larry-Leee/progressVisualisation/internal/server"
	"github.com/Larry-Leee/progressVisualisation/internal/storage"
	"github.com/Larry-Leee/progressVisualisation/internal/watcher"
	"github.com/Larry-Leee/progressVisualisation/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/progressvis/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present (for development), and a missing
// default file means built-in defaults. Returns the config and the path that
// was loaded ("" for built-in defaults).
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
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
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
	case "ingest":
		runIngest()
	case "period":
		runPeriod()
	case "cumulative":
		runCumulative()
	case "snapshot":
		runSnapshot()
	case "export":
		runExport()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("progressvis version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Projects projectindex.Index // nil unless requested
	Reader   *extract.Reader
	Pipeline *ingest.Pipeline
	Ingester *ingest.Ingester
	Queries  *query.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Projects != nil {
		_ = c.Projects.Close()
	}
}

// initializeComponents opens the store and builds the pipeline. The project
// index is opened only when withProjects is set: bleve holds an exclusive
// lock, so commands that run beside the server leave it alone.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withProjects bool) (*Components, error) {
	pred, err := cfg.Locator.Predicate()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store, Reader: extract.NewReader()}
	if withProjects {
		projects, err := projectindex.NewBleveIndex(cfg.Storage.ProjectIndexPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize project index: %w", err)
		}
		c.Projects = projects
	}
	c.Pipeline = ingest.NewPipeline(pred, cfg.Columns.KeywordTable())

	opts := []ingest.Option{
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithSkipUnchanged(cfg.Ingest.SkipUnchangedOrDefault()),
		ingest.WithExtensions(cfg.Watch.Extensions),
	}
	if logger != nil {
		opts = append(opts, ingest.WithLogger(logger))
	}
	if c.Projects != nil {
		opts = append(opts, ingest.WithProjectIndex(c.Projects))
	}
	c.Ingester = ingest.NewIngester(store, c.Reader, c.Pipeline, opts...)
	c.Queries = query.NewEngine(store, c.Pipeline, c.Reader)
	return c, nil
}

// setup loads config, creates the logger and initializes components, exiting on failure.
func setup(configPath string, debug, withProjects bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, withProjects)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger, components
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (request log, watcher events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug, true)
	defer logger.Sync()
	defer components.Close()
	debugMode := cfg.Debug || *debug
	cfg.Debug = debugMode

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := components.Ingester.BackfillProjects(ctx); err != nil {
		logger.Warn("project index backfill failed", zap.Error(err))
	}

	in := components.Ingester
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	var watchSvc *watcher.Watcher
	watchSvc = watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			if _, err := in.IngestFileAs(ctx, path, watchSvc.SourceName(path), ""); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExisting()

	srv := server.NewServer(
		components.Queries,
		components.Ingester,
		components.Storage,
		components.Projects,
		cfg,
		logger,
		watchSvc,
		resolvedConfigPath,
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
	cancel()
	watchSvc.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	period := fs.String("period", "", "reporting period YYYY-MM (default: inferred from each file name)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	projects := fs.Bool("projects", true, "update the project index (disable while the server is running)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: progressvis ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	path := fs.Arg(0)

	_, _, logger, components := setup(*configPath, false, *projects)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fail("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		batch, err := components.Ingester.IngestDirectory(ctx, path, models.Period(*period))
		if err != nil {
			fail("Ingesting directory failed: %v", err)
		}
		if err := cli.WriteBatchResult(os.Stdout, batch, format); err != nil {
			fail("Output failed: %v", err)
		}
		if len(batch.Failed) > 0 {
			os.Exit(2)
		}
		return
	}
	res, err := components.Ingester.IngestFile(ctx, path, models.Period(*period))
	if err != nil {
		fail("Ingest failed: %v", err)
	}
	if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runPeriod() {
	fs := flag.NewFlagSet("period", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	_, _, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	if fs.NArg() < 1 {
		periods, err := components.Queries.Periods(ctx)
		if err != nil {
			fail("List periods failed: %v", err)
		}
		if format == cli.OutputJSON {
			_ = json.NewEncoder(os.Stdout).Encode(map[string]interface{}{"periods": periods})
			return
		}
		for _, p := range periods {
			fmt.Println(p)
		}
		return
	}
	period := models.Period(fs.Arg(0))
	rows, err := components.Queries.PeriodView(ctx, period)
	if err != nil {
		fail("Period view failed: %v", err)
	}
	if err := cli.WritePeriodView(os.Stdout, period, rows, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runCumulative() {
	fs := flag.NewFlagSet("cumulative", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	_, _, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	rows, err := components.Queries.CumulativeView(context.Background())
	if err != nil {
		fail("Cumulative view failed: %v", err)
	}
	if err := cli.WriteCumulativeView(os.Stdout, rows, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runSnapshot() {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	period := fs.String("period", "", "period label for the plan vs actual rows (default: inferred from file name)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: progressvis snapshot [flags] <file>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	pred, err := cfg.Locator.Predicate()
	if err != nil {
		fail("Invalid locator config: %v", err)
	}
	// A snapshot never touches the store, so none is opened.
	reader := extract.NewReader()
	engine := query.NewEngine(nil, ingest.NewPipeline(pred, cfg.Columns.KeywordTable()), reader)

	content, err := os.ReadFile(path)
	if err != nil {
		fail("Failed to read file: %v", err)
	}
	snap, err := engine.SnapshotBytes(filepath.Base(path), content, models.Period(*period))
	if err != nil {
		fail("Snapshot failed: %v", err)
	}
	if err := cli.WriteSnapshot(os.Stdout, snap, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("o", "", "output file (.xlsx or .csv); default: <export.directory>/progress-<date>.xlsx")
	periodsFlag := fs.String("periods", "", "comma-separated periods to include (default: all stored periods)")
	_ = fs.Parse(os.Args[2:])

	periods, err := parsePeriods(*periodsFlag)
	if err != nil {
		fail("%v", err)
	}
	cfg, _, logger, components := setup(*configPath, false, false)
	defer logger.Sync()
	defer components.Close()

	path := *out
	if path == "" {
		path = filepath.Join(cfg.Export.Directory, "progress-"+time.Now().Format("20060102")+".xlsx")
	}
	rep, err := components.Queries.Report(context.Background(), periods)
	if err != nil {
		fail("Building report failed: %v", err)
	}
	if err := export.WriteFile(path, rep); err != nil {
		fail("Export failed: %v", err)
	}
	fmt.Printf("Exported %d period(s) to %s\n", len(rep.Periods), path)
}

// parsePeriods splits a comma-separated period list and validates each entry.
func parsePeriods(s string) ([]models.Period, error) {
	var periods []models.Period
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := models.ParsePeriod(part)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front, since flag.Parse stops at the first
// non-flag argument.
func argsReorder(args []string) []string {
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
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the project index directly)")
	limit := fs.Int("limit", 10, "number of projects")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	q := buildSearchQuery(fs.Args())
	if q == "" {
		fmt.Println("Usage: progressvis search [flags] <project name>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var hits []*projectindex.Hit
	if *serverURL != "" {
		// The server holds the bleve lock; go through its API.
		var out struct {
			Hits []*projectindex.Hit `json:"hits"`
		}
		target := *serverURL + "/api/v1/projects/search?q=" + url.QueryEscape(q) + "&limit=" + strconv.Itoa(*limit)
		if err := getJSON(target, &out); err != nil {
			fail("Search failed: %v", err)
		}
		hits = out.Hits
	} else {
		_, _, logger, components := setup(*configPath, false, true)
		defer logger.Sync()
		defer components.Close()
		if _, err := components.Ingester.BackfillProjects(context.Background()); err != nil {
			fail("Project index backfill failed: %v", err)
		}
		var err error
		hits, err = components.Projects.Search(context.Background(), q, *limit)
		if err != nil {
			fail("Search failed: %v", err)
		}
	}
	if err := cli.WriteProjectHits(os.Stdout, hits, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var st *models.Status
	if *serverURL != "" {
		st = &models.Status{}
		if err := getJSON(*serverURL+"/api/v1/status", st); err != nil {
			fail("Status failed: %v", err)
		}
	} else {
		cfg, _, logger, components := setup(*configPath, false, true)
		defer logger.Sync()
		defer components.Close()
		var err error
		st, err = query.CollectStatus(context.Background(), components.Storage, components.Projects,
			cfg.Storage.DatabasePath, cfg.Storage.ProjectIndexPath)
		if err != nil {
			fail("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: progressvis watch <add|remove|list> [path]")
		fmt.Println("  progressvis watch add <path>     Add an inbox directory")
		fmt.Println("  progressvis watch remove <path>  Stop watching a directory")
		fmt.Println("  progressvis watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not ingest reports already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fail("Usage: progressvis watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": !*noSync})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fail("Request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fail("Add failed (%d): %s", resp.StatusCode, string(b))
		}
		fmt.Printf("Watching: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fail("Usage: progressvis watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fail("Request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fail("Remove failed (%d): %s", resp.StatusCode, string(b))
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(*serverURL+"/api/v1/watch/directories", &out); err != nil {
			fail("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fail("Unknown watch subcommand: %s", sub)
	}
}

// getJSON fetches target and decodes a 200 response into v.
func getJSON(target string, v interface{}) error {
	resp, err := http.Get(target)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`progressvis - Progress report table engine

Usage:
  progressvis server [flags]                  Start the HTTP API and inbox watcher
  progressvis ingest [flags] <file-or-dir>    Ingest progress reports into the store
  progressvis period [flags] [YYYY-MM]        Plan vs actual for one period (no argument: list periods)
  progressvis cumulative [flags]              Plan vs actual summed across all periods
  progressvis snapshot [flags] <file>         Views of one report without storing it
  progressvis export [flags]                  Write an XLSX or CSV report
  progressvis search [flags] <project name>   Find projects by name
  progressvis status [flags]                  Show store and index status
  progressvis watch <add|remove|list>         Manage watched inbox directories
  progressvis version                         Show version
  progressvis help                            Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/progressvis/config.yaml)
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --period string    Period YYYY-MM for every file (default: inferred from file names)
  --projects         Update the project index (default: true; use --projects=false while the server runs)

Export Flags:
  --o string         Output path; the extension picks the format (.xlsx or .csv)
  --periods string   Comma-separated periods (default: all)

Search/Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct access.

Examples:
  progressvis server
  progressvis ingest ./reports
  progressvis ingest --period 2024-03 进度报表.docx
  progressvis period 2024-03
  progressvis cumulative --output json
  progressvis snapshot 2024年3月进度.docx
  progressvis export -o report.xlsx -periods 2024-01,2024-02
  progressvis search 路基
  progressvis watch add ./inbox`)
}
