// Package main implements history-inspect, which builds an item's history
// from a JSON fixture, caches it and prints a query report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bullbot/history/internal/app"
	"github.com/bullbot/history/internal/config"
	"github.com/google/uuid"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		inputFile   string
		storageType string
		commands    string
		noCache     bool
		listCached  bool
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&inputFile, "input", "", "Path to a JSON item fixture")
	flag.StringVar(&storageType, "storage", "", "Storage type: local, s3, sqlite")
	flag.StringVar(&commands, "commands", "shipit,needs_info,needs_revision,bot_broken", "Comma-separated command phrases to report")
	flag.BoolVar(&noCache, "no-cache", false, "Ignore and do not write the history cache")
	flag.BoolVar(&listCached, "list", false, "List cached snapshots and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "history-inspect - build, cache and query a tracked item's event history\n\n")
		fmt.Fprintf(os.Stderr, "Usage: history-inspect [options] --input item.json\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  HISTORY_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  HISTORY_STORAGE_TYPE    Storage type (local, s3, sqlite)\n")
		fmt.Fprintf(os.Stderr, "  HISTORY_CACHE_ENABLED   Use the history cache (true, false)\n")
		fmt.Fprintf(os.Stderr, "  HISTORY_BOT_NAMES       Comma-separated bot identities\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("history-inspect version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, storageType, noCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stderr).With("run_id", uuid.NewString())

	if err := run(context.Background(), cfg, logger, inputFile, splitCommands(commands), listCached, os.Stdout); err != nil {
		logger.Error("history-inspect failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, inputFile string, commands []string, listCached bool, out io.Writer) error {
	if !listCached && inputFile == "" {
		return fmt.Errorf("--input is required")
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if listCached {
		paths, err := application.ListCached(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(paths)
	}

	in, err := app.ReadInput(inputFile)
	if err != nil {
		return err
	}

	h, err := application.OpenHistory(ctx, in)
	if err != nil {
		return err
	}
	// The cache keeps only the supplied events; commits and reviews are
	// merged again on every run.
	h.Freeze()
	logger.Info("history ready", "item", h.ItemID(), "source", h.Source(), "events", h.Len())

	return enc.Encode(application.Summarize(h, commands))
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, storageType string, noCache bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take priority
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func splitCommands(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
