// Package cli implements woodyctl, the operator command line for the
// payment backend.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/TFFe0123/woody-nest/internal/config"
	"github.com/TFFe0123/woody-nest/pkg/logger"
	"github.com/spf13/cobra"
)

type options struct {
	logLevel string
}

// NewRootCommand builds a fresh command tree so callers and tests never share
// flag state.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "woodyctl",
		Short: "woodyctl - operator tooling for the woody-nest payment backend",
		Long: `woodyctl runs maintenance tasks against the orders database and the
furniture catalog. Settings come from the same environment variables the
api and reconciler services read.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(migrateCmd(opts))
	root.AddCommand(reconcileCmd(opts))
	root.AddCommand(catalogCmd(opts))
	return root
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (o *options) load(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return cfg, logger.New(level, stderr), nil
}
