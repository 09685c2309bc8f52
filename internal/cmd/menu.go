package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/config"
	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
	"github.com/khmelevskiy/daily-dish-hub/internal/output"
)

var (
	menuFileFlag   string
	menuShowOutput string
	menuShowOut    string
	menuShowOutDir string
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Inspect the published menu snapshot",
}

var menuValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the menu snapshot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveMenuFile(cmd)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read menu file: %w", err)
		}

		snap, err := menu.Parse(data)
		if err != nil {
			return fmt.Errorf("menu file %s is invalid: %w", path, err)
		}

		observability.CLILogger.Info("Menu snapshot validated",
			zap.String("file", path),
			zap.Int("menu_id", snap.ID),
			zap.Int("items", len(snap.Items)),
			zap.Int("images", len(snap.Images)),
		)

		fmt.Printf("Menu %d is valid: %d item(s), %d image(s)\n", snap.ID, len(snap.Items), len(snap.Images))
		if snap.StartDate != "" || snap.EndDate != "" {
			fmt.Printf("Valid from %s to %s\n", orUnknown(snap.StartDate), orUnknown(snap.EndDate))
		}
		fmt.Printf("File: %s\n", path)
		return nil
	},
}

var menuShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the menu snapshot contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(menuShowOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		path, err := resolveMenuFile(cmd)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read menu file: %w", err)
		}
		snap, err := menu.Parse(data)
		if err != nil {
			return fmt.Errorf("menu file %s is invalid: %w", path, err)
		}

		outPath := strings.TrimSpace(menuShowOut)
		outDir := strings.TrimSpace(menuShowOutDir)
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
			outPath = filepath.Join(outDir, fmt.Sprintf("menu.show.%s", ext))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		symbol := "₾"
		if cfg := config.GetConfig(); cfg != nil && cfg.Site.CurrencySymbol != "" {
			symbol = cfg.Site.CurrencySymbol
		}
		_, err = fmt.Fprintln(sink.writer, output.RenderMenuTable(snap, symbol))
		return err
	},
}

// resolveMenuFile prefers the --file flag, then the configured menu file.
func resolveMenuFile(cmd *cobra.Command) (string, error) {
	if path := strings.TrimSpace(menuFileFlag); path != "" {
		return path, nil
	}

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.Menu.File) == "" {
		return "", fmt.Errorf("no menu file configured")
	}
	return cfg.Menu.File, nil
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}

func init() {
	menuCmd.PersistentFlags().StringVar(&menuFileFlag, "file", "", "Menu snapshot file (default from config)")

	menuShowCmd.Flags().StringVar(&menuShowOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	menuShowCmd.Flags().StringVar(&menuShowOut, "out", "", "Write output to a file (default stdout)")
	menuShowCmd.Flags().StringVar(&menuShowOutDir, "out-dir", "", "Write output to a directory")

	menuCmd.AddCommand(menuValidateCmd)
	menuCmd.AddCommand(menuShowCmd)
	rootCmd.AddCommand(menuCmd)
}
