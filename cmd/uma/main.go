package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"umaai/internal/analysis"
	"umaai/internal/config"
	"umaai/internal/loader"
	"umaai/internal/logging"
	"umaai/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration
	dataDir    string
	dataURL    string
	noCache    bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "uma",
	Short: "UmaAi - race analysis from precomputed indices",
	Long: `uma loads a race and its odds, assembles an analysis document and asks an
LLM provider for a betting plan within your budget and return targets.

Race data is read from {base}/racedata/{race}.json and {base}/odds/{race}.json,
either over HTTP (data.base_url) or from a local mirror (data.dir).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			loaded.Data.Dir = dataDir
		}
		if dataURL != "" {
			loaded.Data.BaseURL = dataURL
			loaded.Data.Dir = ""
		}
		if noCache {
			loaded.Cache.Backend = "none"
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		cfg = loaded

		return logging.Initialize(logging.Options{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			File:       cfg.Logging.File,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall operation timeout")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Read race data from a local directory")
	rootCmd.PersistentFlags().StringVar(&dataURL, "data-url", "", "Read race data from this base URL")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Do not read or write the result cache")

	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(oddsCmd)
	rootCmd.AddCommand(racesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.FatalStartup(err)
	}
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// newLoader builds the loader for the configured data source.
func newLoader() *loader.Loader {
	var src loader.Source
	if cfg.Data.Dir != "" {
		logging.Boot("reading race data from %s", cfg.Data.Dir)
		src = loader.NewDirSource(cfg.Data.Dir)
	} else {
		logging.Boot("reading race data from %s", cfg.Data.BaseURL)
		src = loader.NewHTTPSource(cfg.Data.BaseURL, cfg.GetDataTimeout())
	}
	return loader.New(src, cfg.Data.Concurrency)
}

// openStore opens the configured result cache.
func openStore() (store.ResultStore, error) {
	return store.Open(cfg.Cache, cfg.GetCacheTTL())
}

// newService wires the analysis service to the configured providers.
func newService(results store.ResultStore) *analysis.Service {
	return analysis.NewServiceFromConfig(cfg, results)
}
