package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/condoreg/internal/core"
)

func newTemplateCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the example import template",
		Long: `Writes the canonical column layout with example rows. The XLSX variant
adds an instructions sheet describing every column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var write func(io.Writer) error
			switch format {
			case "csv":
				write = core.WriteTemplateCSV
			case "xlsx":
				write = core.WriteTemplateXLSX
			default:
				return fmt.Errorf("unknown format %q (want csv or xlsx)", format)
			}

			if output == "" || output == "-" {
				return write(cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := write(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}
			cmd.PrintErrf("template written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "template format: csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
