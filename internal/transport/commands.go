package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"compactpdf/internal/application"
	"compactpdf/internal/common"
)

type compressFlags struct {
	level      string
	output     string
	outputDir  string
	techniques []string
	workers    int
}

func (f *compressFlags) bind(cmd *cobra.Command, single bool) {
	cmd.Flags().StringVarP(&f.level, "level", "l", "", "compression level: minimal, balanced, aggressive")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "d", "", "directory for compressed files")
	cmd.Flags().StringSliceVarP(&f.techniques, "techniques", "t", nil, "explicit technique list, replacing the recommended plan")
	if single {
		cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file (use the input path to compress in place)")
	} else {
		cmd.Flags().IntVarP(&f.workers, "workers", "j", 0, "concurrent documents (default from config, at most 8)")
	}
}

func (f *compressFlags) request(files []string) application.CompressionRequest {
	return application.CompressionRequest{
		Files:            files,
		CompressionLevel: f.level,
		OutputPath:       f.output,
		OutputDir:        f.outputDir,
		Techniques:       f.techniques,
		Workers:          min(f.workers, common.MaxConcurrencyLimit),
	}
}

func (c *cli) compressCmd() *cobra.Command {
	var flags compressFlags
	cmd := &cobra.Command{
		Use:   "compress <file.pdf>",
		Short: "Compress one PDF",
		Long: `Compress one PDF. The result is written to <name>_compressed.pdf unless --output is given.

Examples:
  compactpdf compress report.pdf --level aggressive
  compactpdf compress report.pdf --output report.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			outcome, err := c.app.CompressPDF(flags.request(args))
			if err != nil {
				return err
			}
			if err := c.render(cmd, outcome, func(w io.Writer) { printOutcome(w, outcome) }); err != nil {
				return err
			}
			if !outcome.Success {
				return fmt.Errorf("compression failed: %s", outcome.Error)
			}
			return nil
		}),
	}
	flags.bind(cmd, true)
	return cmd
}

func (c *cli) batchCmd() *cobra.Command {
	var flags compressFlags
	cmd := &cobra.Command{
		Use:   "batch <file-or-dir>...",
		Short: "Compress many PDFs concurrently",
		Long: `Compress every given file and every PDF directly inside the given directories.
One failing document does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			result, err := c.app.CompressBatch(flags.request(args))
			if err != nil {
				return err
			}
			if err := c.render(cmd, result, func(w io.Writer) { printBatch(w, result) }); err != nil {
				return err
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", result.Failed, result.TotalFiles)
			}
			return nil
		}),
	}
	flags.bind(cmd, false)
	return cmd
}

func (c *cli) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Profile a PDF and show the recommended plans",
		Args:  cobra.ExactArgs(1),
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			report, err := c.app.Analyze(args[0])
			if err != nil {
				return err
			}
			return c.render(cmd, report, func(w io.Writer) { printAnalysis(w, report) })
		}),
	}
}

func (c *cli) prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change stored preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show preferences",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			prefs, err := c.app.GetPreferences()
			if err != nil {
				return err
			}
			return c.render(cmd, prefs, func(w io.Writer) {
				fmt.Fprintf(w, "default_compression_level: %s\n", prefs.DefaultCompressionLevel)
				fmt.Fprintf(w, "default_output_folder:     %s\n", prefs.DefaultOutputFolder)
				fmt.Fprintf(w, "create_backups:            %t\n", prefs.CreateBackups)
				fmt.Fprintf(w, "use_cache:                 %t\n", prefs.UseCache)
				fmt.Fprintf(w, "technique_override:        %s\n", strings.Join(prefs.TechniqueOverride, ","))
			})
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one preference",
		Long: `Change one preference. Values are parsed as JSON when possible, so
true/false set booleans and ["a","b"] sets lists; anything else is a string.

Examples:
  compactpdf prefs set default_compression_level aggressive
  compactpdf prefs set use_cache false
  compactpdf prefs set technique_override stream_compression,metadata_removal`,
		Args: cobra.ExactArgs(2),
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			return c.app.UpdatePreferences(map[string]any{args[0]: parseValue(args[1])})
		}),
	})
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals across every recorded run",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			summary, err := c.app.GetStats()
			if err != nil {
				return err
			}
			return c.render(cmd, summary, func(w io.Writer) { printSummary(w, summary) })
		}),
	}
}

func (c *cli) backupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backups taken before in-place compression",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			records, err := c.app.ListBackups()
			if err != nil {
				return err
			}
			return c.render(cmd, records, func(w io.Writer) {
				for _, r := range records {
					fmt.Fprintf(w, "%s  %s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), formatBytes(r.Size), r.OriginalPath)
				}
			})
		}),
	}
}

func (c *cli) restoreCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Restore a backup over its original file",
		Args:  cobra.ExactArgs(1),
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			if err := c.app.RestoreBackup(args[0], target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&target, "to", "", "restore to this path instead of the original location")
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			return c.app.ClearCache()
		}),
	})
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where state is kept and whether Ghostscript is available",
		Args:  cobra.NoArgs,
		RunE: c.with(func(cmd *cobra.Command, args []string) error {
			status := c.app.GetAppStatus()
			return c.render(cmd, status, func(w io.Writer) {
				fmt.Fprintf(w, "version:     %s\n", status.Version)
				fmt.Fprintf(w, "working dir: %s\n", status.WorkingDirectory)
				fmt.Fprintf(w, "database:    %s\n", status.DatabasePath)
				fmt.Fprintf(w, "workers:     %d\n", status.Workers)
				fmt.Fprintf(w, "ghostscript: %t %s\n", status.GhostscriptAvailable, status.GhostscriptPath)
			})
		}),
	}
}

// parseValue decodes JSON scalars and arrays, falling back to the raw string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
