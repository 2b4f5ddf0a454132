package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docbatch/internal/common"
	repo "github.com/joseph-ayodele/docbatch/internal/repository"
)

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

const (
	exitFailedJobs = 1
	exitInvalid    = 2
)

type globalOptions struct {
	configPath string
	logLevel   string
	dsn        string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	// Define root command
	rootCmd := &cobra.Command{
		Use:           "docbatch",
		Short:         "Run PDF and image transformations over many files at once",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.dsn, "db", "", "override history store DSN")

	// Add subcommands
	rootCmd.AddCommand(
		newRunCommand(g),
		newWatchCommand(g),
		newHistoryCommand(g),
		newExportCommand(g),
		newStatusCommand(g),
		newCancelCommand(g),
		newDBHealthCommand(g),
	)

	return rootCmd
}

// load reads config and builds the stderr logger every command uses.
func (g *globalOptions) load() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig(g.configPath)
	if err != nil {
		return nil, nil, &ExitError{Code: exitInvalid, Err: err}
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.dsn != "" {
		cfg.Store.DSN = g.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, &ExitError{Code: exitInvalid, Err: err}
	}
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repo.DB, repo.OutcomeRepository, error) {
	db, err := repo.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, repo.NewOutcomeRepository(db, logger), nil
}
