package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/crit/internal/aireview"
	"github.com/joescharf/crit/internal/approval"
	"github.com/joescharf/crit/internal/events"
	"github.com/joescharf/crit/internal/llm"
	"github.com/joescharf/crit/internal/orchestrator"
	"github.com/joescharf/crit/internal/output"
	"github.com/joescharf/crit/internal/staticcheck"
	"github.com/joescharf/crit/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	bus       *events.Bus

	verbose bool
	dryRun  bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "crit",
	Short: "Code review pipeline - static checks, AI review, approval decisions",
	Long: `crit evaluates source files through three judgment stages:
automated static checks, an AI quality review, and a policy-driven
approval decision. Each file ends in one of four terminal decisions:
approved, rejected, needs_changes, or requires_manual_review.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/crit/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "crit")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CRIT")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "crit")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "crit.db"))
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("static.enabled", true)
	viper.SetDefault("static.max_file_size", 1<<20)
	viper.SetDefault("static.tool_command", "")
	viper.SetDefault("static.tool_timeout_seconds", 30)
	viper.SetDefault("review.enabled", true)
	viper.SetDefault("review.min_confidence", 0.3)
	viper.SetDefault("review.max_findings_per_category", 10)
	viper.SetDefault("review.cache_size", 256)
	viper.SetDefault("review.batch_delay_ms", 1000)
	viper.SetDefault("approval.enabled", true)
	viper.SetDefault("approval.auto_approve_threshold", 90)
	viper.SetDefault("approval.require_approval_threshold", 60)
	viper.SetDefault("approval.auto_reject_critical", true)
	viper.SetDefault("approval.max_ignorable_issues", 5)
	viper.SetDefault("approval.timeout_minutes", 60)
	viper.SetDefault("orchestrator.chunk_delay_ms", 500)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	bus = events.NewBus()
	bus.Subscribe(func(e events.Event) {
		switch ev := e.(type) {
		case events.AnalysisErrored:
			ui.VerboseLog("static analysis fell back for %s: %v", ev.FileID, ev.Err)
		case events.ReviewErrored:
			ui.VerboseLog("AI review failed for %s: %v", ev.FileID, ev.Err)
		case events.ApprovalRequired:
			ui.VerboseLog("approval required for %s", ev.FileID)
		case events.DecisionRecorded:
			ui.VerboseLog("decision for %s: %s", ev.FileID, ev.Decision)
		}
	})

	// The store is opened lazily by getStore so config and version
	// commands can run without a database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getAnalyzer builds a static analyzer from config.
func getAnalyzer() *staticcheck.Analyzer {
	return staticcheck.New(staticcheck.DefaultConfig(), bus)
}

// getReviewer builds an AI reviewer against the configured Anthropic model.
func getReviewer() *aireview.Reviewer {
	client := llm.NewClient(viper.GetString("anthropic.api_key"), viper.GetString("anthropic.model"))
	return aireview.New(aireview.DefaultConfig(), client, bus)
}

// getEngine builds an approval engine from config.
func getEngine() *approval.Engine {
	return approval.New(approval.DefaultConfig(), bus)
}

// getOrchestrator wires the full pipeline.
func getOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.DefaultConfig(), getAnalyzer(), getReviewer(), getEngine(), bus)
}
