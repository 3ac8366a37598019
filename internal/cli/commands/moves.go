package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// NewMovesCommand creates the moves command.
func NewMovesCommand() *cobra.Command {
	var exportPath string
	var action string
	var last int

	cmd := &cobra.Command{
		Use:     "moves",
		Aliases: []string{"log"},
		Short:   "Show the audit log",
		Long: `Show the append-only audit log of the project: flag updates, merged
columns, rows and values, and computed parameters added or removed.`,
		Example: `  # Last 20 entries
  cruiseqc moves --last 20

  # Only flag updates
  cruiseqc moves --action "QC Update"

  # Write the whole log as CSV
  cruiseqc moves --export moves.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMoves(cmd, exportPath, action, last)
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "Write the audit log as CSV to this path")
	cmd.Flags().StringVar(&action, "action", "", "Only show entries of this action")
	cmd.Flags().IntVarP(&last, "last", "n", 0, "Only show the last n entries")
	return cmd
}

func runMoves(cmd *cobra.Command, exportPath, action string, last int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := cmdCtx.Session
	if err := requireDataset(s); err != nil {
		return err
	}
	r := cmdCtx.Renderer

	if exportPath != "" {
		if err := s.ExportMoves(exportPath); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Exported %d audit entries to %s", len(s.Dataset().Moves), exportPath))
		return nil
	}

	moves := filterMoves(s.Dataset().Moves, action, last)
	if r.EffectiveMode() == output.ModeJSON {
		if moves == nil {
			moves = []dataset.Move{}
		}
		return r.JSON(moves)
	}

	r.Header(1, fmt.Sprintf("Audit log (%d entries)", len(moves)))
	rows := make([][]string, len(moves))
	for i, m := range moves {
		rows[i] = []string{m.Date.Format(dataset.MoveDateLayout), m.Action, m.Param, m.Value, m.Description}
	}
	r.Table([]string{"Date", "Action", "Param", "Value", "Description"}, rows)
	return nil
}

func filterMoves(moves []dataset.Move, action string, last int) []dataset.Move {
	var out []dataset.Move
	for _, m := range moves {
		if action == "" || m.Action == action {
			out = append(out, m)
		}
	}
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out
}
