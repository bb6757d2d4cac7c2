package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"umkmrag/app/logger"
	"umkmrag/config"
	"umkmrag/types"
)

type rootOptions struct {
	envFile  string
	logLevel string
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "umkmrag",
		Short: "Question answering over UMKM PDF catalogs",
		Long: `Upload PDF catalogs of small businesses (UMKM) and ask questions about
them. Answers come from a Gemini model grounded in the indexed text.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file to load")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")

	cmd.AddCommand(
		newServeCmd(opts),
		newUICmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}
	l := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		JSON:   o.logJSON,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, l, nil
}

// userError turns a domain error into the same text the HTTP API and the
// UI show for it.
func userError(err error) error {
	p := types.Describe(err)
	if p.Kind == types.KindInternal {
		return err
	}
	msg := p.Message
	if len(p.Details) > 0 {
		msg += "\n  " + strings.Join(p.Details, "\n  ")
	}
	return errors.New(msg)
}
