package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/reconcile"
)

// selectionFlags maps command-line switches onto a merge selection.
type selectionFlags struct {
	all           bool
	addColumns    bool
	removeColumns bool
	addRows       bool
	removeRows    bool
	values        bool
	file          string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.all, "all", false, "Accept every difference")
	cmd.Flags().BoolVar(&f.addColumns, "add-columns", false, "Accept added columns")
	cmd.Flags().BoolVar(&f.removeColumns, "remove-columns", false, "Accept removed columns")
	cmd.Flags().BoolVar(&f.addRows, "add-rows", false, "Accept added rows")
	cmd.Flags().BoolVar(&f.removeRows, "remove-rows", false, "Accept removed rows")
	cmd.Flags().BoolVar(&f.values, "values", false, "Accept every value difference")
	cmd.Flags().StringVar(&f.file, "selection", "", "JSON file with a detailed selection (per-row param and flag choices)")
}

// selection builds the merge selection. ok is false when nothing was requested.
func (f *selectionFlags) selection() (sel reconcile.Selection, ok bool, err error) {
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return sel, false, fmt.Errorf("failed to read selection: %w", err)
		}
		if err := json.Unmarshal(data, &sel); err != nil {
			return sel, false, fmt.Errorf("invalid selection %s: %w", f.file, err)
		}
		ok = true
	}
	if f.all {
		return reconcile.AcceptAll(), true, nil
	}
	sel.AddColumns = sel.AddColumns || f.addColumns
	sel.RemoveColumns = sel.RemoveColumns || f.removeColumns
	sel.AddRows = sel.AddRows || f.addRows
	sel.RemoveRows = sel.RemoveRows || f.removeRows
	sel.AllValues = sel.AllValues || f.values
	ok = ok || f.addColumns || f.removeColumns || f.addRows || f.removeRows || f.values
	return sel, ok, nil
}

// UpdateOutput is the JSON form of a comparison and its merge.
type UpdateOutput struct {
	Diff    *reconcile.DiffResult                         `json:"diff"`
	Changes map[string]map[string][]reconcile.ParamChange `json:"changes"`
	Merge   *reconcile.Merge                              `json:"merge,omitempty"`
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand() *cobra.Command {
	var sel selectionFlags
	var ifChanged bool

	cmd := &cobra.Command{
		Use:     "update <file>",
		Aliases: []string{"compare"},
		Short:   "Compare a refreshed source file and merge the accepted differences",
		Long: `Compare a new version of the bottle file against the project dataset.

Differences are reported as added and removed columns and rows, and as changed
values grouped by parameter and station. When a parameter value changes, its QC
flag is reset to 2 (unset) so the new value is reviewed.

Without selection flags the comparison is only reported. Selected differences
are merged all-or-nothing: computed parameters are recomputed, removed columns
are dropped from the plot layout and the audit log records the merge. A
selection file gives per-row control:

  {"add_rows": true, "diff_values": [{"hash_id": "...", "param": "SALNTY",
   "param_checked": true, "flag_checked": false}]}`,
		Example: `  # Show what changed
  cruiseqc update 33RR20160208_hy1.csv

  # Accept everything
  cruiseqc update 33RR20160208_hy1.csv --all

  # Accept new rows and value changes only
  cruiseqc update 33RR20160208_hy1.csv --add-rows --values`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, args[0], &sel, ifChanged)
		},
	}

	sel.register(cmd)
	cmd.Flags().BoolVar(&ifChanged, "if-changed", false, "Do nothing when the file content is unchanged since the last load or merge")
	return cmd
}

func runUpdate(cmd *cobra.Command, path string, flags *selectionFlags, ifChanged bool) error {
	sel, apply, err := flags.selection()
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireDataset(cmdCtx.Session); err != nil {
		return err
	}
	if ifChanged {
		changed, err := cmdCtx.Session.SourceChanged(path)
		if err != nil {
			return err
		}
		if !changed {
			cmdCtx.Renderer.Muted(path + " is unchanged.")
			return nil
		}
	}

	var selection *reconcile.Selection
	if apply {
		selection = &sel
	}
	return compareAndMerge(cmd.Context(), cmdCtx, path, selection)
}

// compareAndMerge compares path with the project dataset, reports the
// differences and merges sel when given. Without a selection the comparison is
// discarded.
func compareAndMerge(ctx context.Context, cmdCtx *CommandContext, path string, sel *reconcile.Selection) error {
	s := cmdCtx.Session
	r := cmdCtx.Renderer

	d, err := s.Compare(ctx, path)
	if err != nil {
		return err
	}
	out := UpdateOutput{Diff: d, Changes: d.ByParameter()}

	if sel == nil {
		s.Discard()
	} else {
		m, err := s.Apply(ctx, *sel)
		if err != nil {
			s.Discard()
			return fmt.Errorf("merge failed, project left unchanged: %w", err)
		}
		out.Merge = m
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderDiff(r, path, d)
	if out.Merge != nil {
		renderMerge(r, out.Merge)
	} else if d.Modified {
		r.Println("")
		r.Muted("Nothing merged. Re-run with --all or a selection to accept differences.")
	}
	return nil
}

func renderDiff(r *output.Renderer, path string, d *reconcile.DiffResult) {
	r.Header(1, "Changes in "+path)
	if !d.Modified {
		r.Success("No differences.")
		return
	}

	r.KeyValue("Added columns", output.FormatList(d.AddedColumns))
	r.KeyValue("Removed columns", output.FormatList(d.RemovedColumns))
	r.KeyValue("Added rows", len(d.AddedRows))
	r.KeyValue("Removed rows", len(d.RemovedRows))
	r.KeyValue("Changed values", len(d.ValueDiffs))
	if n := d.FlagResets(); n > 0 {
		r.KeyValue("Flags reset to 2", n)
	}
	if len(d.RemovedPlotted) > 0 {
		r.Warning("removed columns are plotted and will leave the plot layout: " + output.FormatList(d.RemovedPlotted))
	}
	if len(d.StaleComputed) > 0 {
		r.Warning("plotted computed parameters lose an input: " + output.FormatList(d.StaleComputed))
	}

	groups := d.ByParameter()
	for _, param := range d.Parameters() {
		r.Println("")
		r.Header(2, param)

		stations := make([]string, 0, len(groups[param]))
		for stn := range groups[param] {
			stations = append(stations, stn)
		}
		sort.Strings(stations)

		var rows [][]string
		for _, stn := range stations {
			for _, c := range groups[param][stn] {
				rows = append(rows, []string{
					stn, c.Castno, c.Btlnbr,
					c.OldParam, c.NewParam, c.OldFlag, c.NewFlag, c.Changed,
				})
			}
		}
		r.Table([]string{"Station", "Cast", "Bottle", "Old", "New", "Old flag", "New flag", "Changed"}, rows)
	}
}

func renderMerge(r *output.Renderer, m *reconcile.Merge) {
	r.Println("")
	if !m.Superseded {
		r.Muted("Nothing accepted. Project unchanged.")
		return
	}
	a := m.Applied
	r.Success(fmt.Sprintf("Merged: %d column(s) added, %d removed, %d row(s) added, %d removed, %d value(s) updated",
		len(a.AddedColumns), len(a.RemovedColumns), len(a.AddedRows), len(a.RemovedRows), a.Values))
	if len(m.Report.Recomputed) > 0 {
		r.KeyValue("Recomputed", output.FormatList(m.Report.Recomputed))
	}
	if len(m.Report.Failed) > 0 {
		r.Warning("computed parameters are stale: " + output.FormatList(m.Report.StaleNames()))
	}
	if len(m.Pruned) > 0 {
		r.KeyValue("Removed from plots", output.FormatList(m.Pruned))
	}
}
