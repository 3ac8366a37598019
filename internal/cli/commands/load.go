package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
	"github.com/leapstack-labs/cruiseqc/internal/loader"
)

// LoadOutput is the JSON form of a load result.
type LoadOutput struct {
	Source   string   `json:"source"`
	Format   string   `json:"format"`
	Rows     int      `json:"rows"`
	Columns  int      `json:"columns"`
	Params   []string `json:"params"`
	Computed []string `json:"computed,omitempty"`
	Stale    []string `json:"stale,omitempty"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Load a bottle file into the project",
		Long: `Load a WHP-exchange or flat CSV bottle file as the project dataset.

The file is validated, column names are normalized, missing QC flag columns are
created and every row gets a stable identifier. Loading replaces the current
dataset and its audit log; the active computed parameters are recomputed.`,
		Example: `  # Load an exchange file into the current project
  cruiseqc load 33RR20160208_hy1.csv

  # Load into another project directory
  cruiseqc load bottle.csv --project-dir ./a16n`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0])
		},
	}
	return cmd
}

func runLoad(cmd *cobra.Command, path string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	ds, err := cmdCtx.Session.Load(cmd.Context(), path)
	if err != nil {
		var verr *loader.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s is not a valid bottle file: %w", path, err)
		}
		return err
	}

	out := LoadOutput{
		Source:   path,
		Format:   string(ds.Source.Format),
		Rows:     ds.Table.Len(),
		Columns:  ds.Catalog.Len(),
		Params:   ds.ColumnsByRole(false, catalog.RoleParam),
		Computed: cmdCtx.Session.Computed().Active(),
		Stale:    cmdCtx.Session.Computed().Stale(),
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	default:
		renderLoad(r, ds, out)
	}
	return nil
}

func renderLoad(r *output.Renderer, ds *dataset.Dataset, out LoadOutput) {
	r.Header(1, "Loaded "+out.Source)
	r.KeyValue("Format", out.Format)
	r.KeyValue("Rows", out.Rows)
	r.KeyValue("Columns", out.Columns)
	r.KeyValue("Parameters", output.FormatList(out.Params))
	if len(out.Computed) > 0 {
		r.KeyValue("Computed", output.FormatList(out.Computed))
	}
	if len(out.Stale) > 0 {
		r.Warning(fmt.Sprintf("computed parameters could not be recomputed: %s", output.FormatList(out.Stale)))
	}
	if created := ds.ColumnsByRole(false, catalog.RoleCreated); len(created) > 0 {
		r.Muted("Created: " + output.FormatList(created))
	}
}
