package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/export"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var format string
	var columns []string

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export the project dataset",
		Long: `Write the project dataset as WHP-exchange, flat CSV, an xlsx workbook or a
parquet file. Null values are written as -999 in the text formats.

By default every exportable required, parameter, non-QC and flag column is
written in table order; --columns restricts the selection.`,
		Example: `  # Exchange file for submission
  cruiseqc export 33RR20160208_hy1.csv --format whp

  # Spreadsheet of a few columns
  cruiseqc export qc.xlsx --columns STNNBR,CASTNO,BTLNBR,SALNTY,SALNTY_FLAG_W`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], format, columns)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (whp|csv|xlsx|parquet); inferred from the extension when empty")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to export")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"whp", "csv", "xlsx", "parquet"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runExport(cmd *cobra.Command, path, format string, columns []string) error {
	f := export.FormatFromPath(path)
	if format != "" {
		var err error
		if f, err = export.ParseFormat(format); err != nil {
			return err
		}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireDataset(cmdCtx.Session); err != nil {
		return err
	}
	if err := cmdCtx.Session.Export(path, f, columns); err != nil {
		return err
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Exported %s (%s)", path, f))
	return nil
}
