package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"inliner/internal/config"
	"inliner/internal/inline"
	ilog "inliner/internal/inliner/log"
	"inliner/internal/listing"
	"inliner/internal/logging"
	"inliner/internal/ui/colorize"
)

var runCmd = &cobra.Command{
	Use:   "run [listing]",
	Short: "Inline decrypter calls in a listing",
	Long: `Run loads a YAML listing, inlines every configured decrypter call and prints
the resulting listing. A summary is written to stderr.`,
	Example: `
# Print the inlined listing as YAML
inliner run -f yaml methods.yaml

# Re-run methods until nested decrypter calls resolve
inliner run --max-passes 4 methods.yaml
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, configDir(args[0]))
		if err != nil {
			return err
		}
		ilog.Setup("", cfg.Debug)

		opts := runOptions{listing: args[0]}
		opts.format, _ = cmd.Flags().GetString("format")
		opts.quiet, _ = cmd.Flags().GetBool("quiet")
		if cmd.Flags().Changed("workers") {
			cfg.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if cmd.Flags().Changed("max-passes") {
			cfg.MaxPasses, _ = cmd.Flags().GetInt("max-passes")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Disable coloring when output is being piped
		if !term.IsTerminal(os.Stdout.Fd()) {
			os.Setenv("INLINER_NO_COLOR", "1")
		}

		lc := logging.NewLogger()
		defer lc.Close()
		if cfg.Debug {
			lc.SetLevel(log.DebugLevel)
		}

		return runInline(cmd.Context(), cfg, opts, lc.Logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	runCmd.Flags().StringP("format", "f", listing.FormatText, "Output format: text, json or yaml")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the summary")
	runCmd.Flags().IntP("workers", "w", 0, "Methods processed in parallel (default: config or GOMAXPROCS)")
	runCmd.Flags().Int("max-passes", 0, "Re-runs per method while it keeps changing (default: config or 1)")
}

type runOptions struct {
	listing string
	format  string
	quiet   bool
}

func runInline(ctx context.Context, cfg *config.Config, opts runOptions, logger *log.Logger, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch opts.format {
	case "", listing.FormatText, listing.FormatJSON, listing.FormatYAML:
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	set := inline.NewSet(inline.WithLogger(logger))
	if err := cfg.Register(set); err != nil {
		return err
	}

	methods, err := listing.Load(opts.listing)
	if err != nil {
		return err
	}
	slog.Debug("Loaded listing", "file", opts.listing, "methods", len(methods))

	pass := &inline.Pass{
		Inliners:  set.All(),
		Workers:   cfg.Workers,
		MaxPasses: cfg.MaxPasses,
		Logger:    logger,
	}
	report, err := pass.Run(ctx, methods)
	if err != nil {
		return err
	}

	if opts.format == listing.FormatText || opts.format == "" {
		out, err := colorize.Listing(listing.Text(methods))
		if err != nil {
			slog.Warn("Failed to colorize listing", "error", err)
		}
		if _, err := io.WriteString(stdout, out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if err := listing.Write(stdout, methods, opts.format); err != nil {
		return err
	}

	summary := colorize.Summary{Methods: len(methods), Changed: report.Changed()}
	summary.Used, summary.Registered = set.Used()
	for _, m := range report.Methods {
		if m.Err != nil {
			summary.Failed = append(summary.Failed, m.Method)
		}
	}
	if !opts.quiet {
		fmt.Fprintln(stderr, summary.Render())
	}

	if err := report.Err(); err != nil {
		return fmt.Errorf("%d method(s) partially inlined: %w", len(summary.Failed), err)
	}
	return nil
}
