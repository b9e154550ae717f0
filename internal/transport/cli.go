// Package transport exposes the application over a cobra command line.
package transport

import (
	"io"

	"github.com/spf13/cobra"

	"compactpdf/internal/application"
	"compactpdf/internal/common"
	"compactpdf/internal/config"
)

// cli carries the global flags and the application opened for the running command.
type cli struct {
	configPath string
	logLevel   string
	jsonOutput bool

	app *application.App
}

// NewRootCommand builds the compactpdf command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "compactpdf",
		Short: "Adaptive PDF compression",
		Long: `compactpdf analyzes PDF documents, picks compression techniques per document,
and verifies every result before writing it.

Examples:
  # Compress one file next to the original
  compactpdf compress report.pdf

  # Compress a folder with four workers into out/
  compactpdf batch --output-dir out/ scans/

  # Inspect what would be done
  compactpdf analyze report.pdf --json`,
		Version:           common.EngineVersion,
		SilenceUsage:      true,
		PersistentPreRunE: c.open,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.config/compactpdf/config.yaml)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		c.compressCmd(),
		c.batchCmd(),
		c.analyzeCmd(),
		c.prefsCmd(),
		c.statsCmd(),
		c.backupsCmd(),
		c.restoreCmd(),
		c.cacheCmd(),
		c.statusCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}

func (c *cli) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	cfg.Logger = config.NewLogger(cfg.Log, cmd.ErrOrStderr())

	app, err := application.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	c.app = app
	return nil
}

// with closes the application once fn returns, whether or not it failed.
func (c *cli) with(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := c.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) render(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if c.jsonOutput {
		return writeJSON(w, v)
	}
	text(w)
	return nil
}
