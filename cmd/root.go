package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/config"
	"github.com/fleecekm/fleeceqa/internal/logging"
	"github.com/fleecekm/fleeceqa/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "fleeceqa",
	Short: "Generate and filter questions over Wikipedia paragraphs",
	Long: "fleeceqa asks an LLM to write questions about Wikipedia paragraphs, " +
		"keeps the ones that are answerable from the paragraph but not without it, " +
		"and stores the results.",
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a paragraph in flight is rolled back.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: ./fleeceqa.yaml or the user config dir)")
	rootCmd.PersistentFlags().String("db", "", "SQLite path or postgres:// DSN (overrides FLEECE_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// env bundles what every command needs: the resolved config, a logger
// and an open store. Close releases the store and flushes the logger.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

func (e *env) Close() {
	e.store.Close()
	_ = e.logger.Sync()
}

// setup loads the configuration, applies flag overrides and opens the
// database.
func setup(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	dsn, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	cfg.Database.DSN = dsn

	if err := cfg.ValidateLocal(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(dsn)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("dialect", s.Dialect()))

	return &env{cfg: cfg, logger: logger, store: s}, nil
}

// resolveDBPath returns the database location using --db (highest
// priority), then the configured DSN (file or FLEECE_DB), then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if p := cfg.Database.DSN; p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
