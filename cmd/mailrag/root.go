package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mailrag/internal/config"
	logpkg "github.com/kailas-cloud/mailrag/internal/logger"
)

// cli carries what the pre-run hook loaded into every subcommand.
type cli struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "mailrag",
		Short:         "Question answering over your email",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "config environment (local, docker, prod)")

	root.AddCommand(
		newServeCmd(c),
		newIngestCmd(c),
		newQueryCmd(c),
		newSeenCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) load() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(c.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(c.env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}
