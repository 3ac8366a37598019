package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// rowFilter selects rows by their physical identity. Empty fields match anything.
type rowFilter struct {
	station string
	cast    string
	bottle  string
}

func (f rowFilter) empty() bool {
	return f.station == "" && f.cast == "" && f.bottle == ""
}

func (f rowFilter) match(id dataset.Identity) bool {
	return (f.station == "" || f.station == id.Station) &&
		(f.cast == "" || f.cast == id.Cast) &&
		(f.bottle == "" || f.bottle == id.Bottle)
}

func (f rowFilter) rows(ds *dataset.Dataset) []string {
	var ids []string
	for _, id := range ds.Table.IDs() {
		if f.match(ds.Identity(id)) {
			ids = append(ids, id)
		}
	}
	return ids
}

// flagColumn accepts either a flag column or the parameter it qualifies.
func flagColumn(ds *dataset.Dataset, name string) string {
	if ds.Catalog.HasRole(name, catalog.RoleFlag) {
		return name
	}
	if flag, ok := ds.Catalog.PairedFlag(name); ok {
		return flag
	}
	return name
}

// NewFlagCommand creates the flag command.
func NewFlagCommand() *cobra.Command {
	var filter rowFilter

	cmd := &cobra.Command{
		Use:   "flag <column> <value> [row-id...]",
		Short: "Set a QC flag on selected rows",
		Long: `Set the WOCE quality flag of a parameter on the selected rows.

The column may be a flag column (SALNTY_FLAG_W) or the parameter it qualifies
(SALNTY). Rows are chosen by their identifiers, by --station/--cast/--bottle,
or both. Every updated row is recorded in the audit log.`,
		Example: `  # Flag bottle 12 of station 5 as questionable
  cruiseqc flag SALNTY 3 --station 5 --bottle 12

  # Flag two rows by identifier
  cruiseqc flag OXYGEN_FLAG_W 4 9f1c0a... 0b77e2...`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlag(cmd, args[0], args[1], args[2:], filter)
		},
	}

	cmd.Flags().StringVar(&filter.station, "station", "", "Select rows of this station (STNNBR)")
	cmd.Flags().StringVar(&filter.cast, "cast", "", "Select rows of this cast (CASTNO)")
	cmd.Flags().StringVar(&filter.bottle, "bottle", "", "Select rows of this bottle (BTLNBR)")
	return cmd
}

func runFlag(cmd *cobra.Command, column, raw string, ids []string, filter rowFilter) error {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid flag value %q: %w", raw, err)
	}
	if len(ids) == 0 && filter.empty() {
		return fmt.Errorf("no rows selected\nHint: pass row identifiers or --station, --cast or --bottle")
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := cmdCtx.Session
	if err := requireDataset(s); err != nil {
		return err
	}
	ds := s.Dataset()

	if !filter.empty() {
		ids = unique(append(ids, filter.rows(ds)...))
	}
	if len(ids) == 0 {
		return fmt.Errorf("no rows match the selection")
	}

	column = flagColumn(ds, column)
	if err := s.UpdateFlag(column, value, ids); err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"column": column, "value": value, "rows": ids})
	}
	r.Success(fmt.Sprintf("%s set to %d on %d row(s)", column, value, len(ids)))
	return nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
