// engineroom is the management console for a library of versioned
// analytical engine definitions, paradigm ontologies, and pipeline
// compositions, with a stage-context prompt composition engine at its
// core.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"engineroom/internal/compose"
	"engineroom/internal/config"
	"engineroom/internal/engine"
	"engineroom/internal/framework"
	"engineroom/internal/logging"
	"engineroom/internal/propagation"
	"engineroom/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "engineroom",
	Short: "engineroom - analytical engine management console",
	Long: `engineroom manages a library of versioned analytical engine
definitions (prompt templates plus schema), paradigm ontologies, and
pipeline compositions consumed by an external analysis service.

Engines authored with a stage_context compose their stage prompts from
templates, parameterized by audience and framework primers; older
engines fall back to their stored static prompts. Consumers register
their dependencies and are notified when constructs change.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
		logging.CloseAudit()
	},
}

// console bundles the opened store and composition stack for one command
// invocation.
type console struct {
	cfg        *config.Config
	store      *store.ConsoleStore
	frameworks framework.Store
	primers    *framework.DirStore
	templates  *compose.TemplateStore
	adapter    *compose.Adapter
	recorder   *propagation.Recorder

	stopWatch func()
}

// openConsole loads configuration and opens the full console stack.
// Broken stage templates surface here, before any command logic runs.
func openConsole() (*console, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Initialize(cfg.Data.Dir); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Boot("engineroom starting (config=%s, db=%s)", path, cfg.Data.DatabasePath)

	db, err := store.New(cfg.Data.DatabasePath)
	if err != nil {
		return nil, err
	}

	var frameworks framework.Store
	var primers *framework.DirStore
	embedded, err := framework.LoadEmbedded()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load embedded framework primers: %w", err)
	}
	frameworks = embedded

	templateOverrides := ""
	if cfg.Assets.Dir != "" {
		primers = framework.NewDirStore(filepath.Join(cfg.Assets.Dir, "primers"), embedded)
		frameworks = primers
		templateOverrides = filepath.Join(cfg.Assets.Dir, "templates")
	}

	templates, err := compose.NewTemplateStore(templateOverrides)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load stage templates: %w", err)
	}

	composer := compose.NewComposer(frameworks, templates,
		compose.WithDefaultAudience(engine.Audience(cfg.Compose.DefaultAudience)))
	adapter := compose.NewAdapter(composer,
		compose.WithLegacyFallback(cfg.Compose.LegacyFallback),
		compose.WithCache(cfg.Compose.CacheSize))

	c := &console{
		cfg:        cfg,
		store:      db,
		frameworks: frameworks,
		primers:    primers,
		templates:  templates,
		adapter:    adapter,
		recorder:   propagation.NewRecorder(db),
	}

	if cfg.Assets.Watch {
		if err := c.startWatching(); err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

// startWatching reloads primer and template overrides as they change on
// disk, and purges the composed-prompt cache each time one does. Long-lived
// commands like browse keep serving current assets without a restart.
func (c *console) startWatching() error {
	ctx, cancel := context.WithCancel(context.Background())
	debounce := c.cfg.GetWatchDebounce()

	c.templates.OnReload(c.adapter.InvalidateCache)
	if err := c.templates.StartWatching(ctx, debounce); err != nil {
		cancel()
		return err
	}
	if c.primers != nil {
		c.primers.OnReload(c.adapter.InvalidateCache)
		if err := c.primers.StartWatching(ctx, debounce); err != nil {
			c.templates.StopWatching()
			cancel()
			return err
		}
	}

	logging.Watch("Watching %s for asset changes (debounce %s)", c.cfg.Assets.Dir, debounce)
	c.stopWatch = func() {
		c.templates.StopWatching()
		if c.primers != nil {
			c.primers.StopWatching()
		}
		cancel()
	}
	return nil
}

// propagator builds a change propagator from the console's configuration.
func (c *console) propagator() *propagation.Propagator {
	return propagation.NewPropagator(c.store,
		propagation.WithMaxConcurrent(c.cfg.Propagation.MaxConcurrent),
		propagation.WithWebhookTimeout(c.cfg.GetWebhookTimeout()))
}

func (c *console) Close() {
	if c.stopWatch != nil {
		c.stopWatch()
	}
	if c.store != nil {
		c.store.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default .engineroom/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of styled output")

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(paradigmsCmd)
	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(consumersCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
