// Package cli implements the tripdraw command-line interface.
//
// Commands cover the weekly workflow end to end: previewing the ranked
// order, running the weekly and single-trip lotteries, managing
// separation requests, rendering the separation graph, serving the
// HTTP API, and managing the local artifact cache. The CLI is built
// using cobra and supports verbose logging via the charmbracelet/log
// library.
//
// # Commands
//
// The main commands are:
//   - run: execute the weekly lottery
//   - trip: run a single trip's lottery
//   - rank: preview the ranked order without placing anyone
//   - separations: manage and inspect separation requests
//   - serve: run the HTTP API
//   - cache: manage the rendered artifact cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context to allow structured progress
// tracking.
//
// # Example
//
//	import "github.com/tripdraw/tripdraw/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tripdraw/tripdraw/pkg/buildinfo"
	"github.com/tripdraw/tripdraw/pkg/cache"
	"github.com/tripdraw/tripdraw/pkg/config"
	tripio "github.com/tripdraw/tripdraw/pkg/io"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "tripdraw"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "tripdraw",
		Short:        "Tripdraw runs seeded trip lotteries",
		Long:         `Tripdraw assigns participants to trips by weekly lottery: seeded ranks, driver quotas, pairing requests, and separation constraints decide who gets which spot.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/tripdraw/config.toml)")

	// Register all subcommands
	root.AddCommand(c.runCommand())
	root.AddCommand(c.tripCommand())
	root.AddCommand(c.rankCommand())
	root.AddCommand(c.separationsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig resolves the configuration once per invocation. An
// explicit --config path must exist; the default path may be absent.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		var path string
		path, err = config.DefaultPath()
		if err == nil {
			cfg, err = config.LoadOrDefault(path)
		}
	}
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Store and Cache Factories
// =============================================================================

// newStore opens the configured Mongo store, or an in-memory store
// loaded from a roster file when rosterPath is set. Memory stores never
// persist anything, which is what makes --roster runs dry.
func (c *CLI) newStore(ctx context.Context, rosterPath string) (store.Store, error) {
	if rosterPath != "" {
		roster, err := tripio.ImportRoster(rosterPath)
		if err != nil {
			return nil, err
		}
		st := store.NewMemoryStore()
		if err := roster.Load(ctx, st); err != nil {
			return nil, fmt.Errorf("load roster %s: %w", rosterPath, err)
		}
		return st, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
}

// newCache opens the local artifact cache.
func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := c.artifactCacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// artifactCacheDir returns the effective cache directory: the config
// override when set, otherwise the XDG default.
func (c *CLI) artifactCacheDir() (string, error) {
	if cfg, err := c.loadConfig(); err == nil && cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/tripdraw/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
