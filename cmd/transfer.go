package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/vhosts/internal/application/hosts"
)

var (
	exportFormat string
	exportOutput string
	importFormat string
	importMerge  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the registry as JSON or YAML",
	Long: `Write the registry to stdout or a file. JSON output is identical to
hosts.json; YAML output has the same structure.

Examples:
  vhosts export > backup.json
  vhosts export --format yaml -o hosts.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := resolveFormat(exportFormat, exportOutput)
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			return hostService.Export(cmd.Context(), cmd.OutOrStdout(), format)
		}

		var buf bytes.Buffer
		if err := hostService.Export(cmd.Context(), &buf, format); err != nil {
			return err
		}
		if err := os.WriteFile(exportOutput, buf.Bytes(), 0o644); err != nil { //nolint:gosec // G306: export is meant to be shared
			return fmt.Errorf("writing %s: %w", exportOutput, err)
		}
		printf(cmd, "Exported to %s\n", exportOutput)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Load hosts from a JSON or YAML document",
	Long: `Load hosts from a JSON or YAML document. By default the registry is replaced;
with --merge the imported hosts are added to it, overwriting hosts with the
same domain.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(importFormat, args[0])
		if err != nil {
			return err
		}
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		result, err := hostService.Import(cmd.Context(), bytes.NewReader(data), format, importMerge)
		if err != nil {
			return err
		}
		verb := "Replaced registry with"
		if result.Merged {
			verb = "Merged"
		}
		printf(cmd, "%s %d hosts\n", verb, result.Imported)
		if len(result.Skipped) > 0 {
			printf(cmd, "Skipped malformed entries: %v\n", result.Skipped)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "json or yaml (default: from --output extension, else json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "json or yaml (default: from file extension, else json)")
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "Merge into the registry instead of replacing it")
	rootCmd.AddCommand(exportCmd, importCmd)
}

// resolveFormat prefers an explicit --format and falls back to the file extension.
func resolveFormat(explicit, path string) (hosts.Format, error) {
	if explicit != "" {
		return hosts.ParseFormat(explicit)
	}
	return hosts.FormatFromPath(path), nil
}
