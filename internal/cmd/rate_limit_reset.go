package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khmelevskiy/daily-dish-hub/internal/output"
)

var (
	rateLimitResetAll      bool
	rateLimitResetCategory string
	rateLimitResetIdentity string
	rateLimitResetYes      bool
	rateLimitResetDryRun   bool
	rateLimitResetOutput   string
	rateLimitResetOut      string
	rateLimitResetOutDir   string
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset live rate limit counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		category := strings.TrimSpace(rateLimitResetCategory)
		identity := strings.TrimSpace(rateLimitResetIdentity)

		if !rateLimitResetAll && category == "" && identity == "" {
			return errors.New("specify --category, --identity, or --all")
		}
		if rateLimitResetAll && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		client, _, err := openRedis(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close() // nolint:errcheck // best-effort cleanup

		keys, err := scanRateLimitKeys(cmd.Context(), client, category, identity)
		if err != nil {
			return err
		}
		matched := len(keys)

		outPath := strings.TrimSpace(rateLimitResetOut)
		outDir := strings.TrimSpace(rateLimitResetOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}
		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("rate-limit.reset.%s", ext))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if rateLimitResetDryRun {
			return writeRateLimitResetResult(format, sink.writer, matched, 0, true)
		}

		var deleted int64
		if len(keys) > 0 {
			deleted, err = client.Del(cmd.Context(), keys...).Result()
			if err != nil {
				return err
			}
		}

		return writeRateLimitResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeRateLimitResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d counter(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d counter(s)\n", deleted, matched)
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every counter")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetCategory, "category", "", "Reset counters in one category (public|admin|auth|images)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetIdentity, "identity", "", "Reset counters whose identity contains this value")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOut, "out", "", "Write output to a file (default stdout)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutDir, "out-dir", "", "Write output to a directory")
}
