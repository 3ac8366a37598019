package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/catalog"
	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

// ColumnInfo is one row of the column listing.
type ColumnInfo struct {
	Name         string   `json:"name"`
	ExternalName string   `json:"external_name"`
	Unit         string   `json:"unit,omitempty"`
	Roles        []string `json:"roles"`
	Precision    *int     `json:"precision,omitempty"`
	DataType     string   `json:"data_type"`
	Export       bool     `json:"export"`
}

// InfoOutput is the JSON form of the info command.
type InfoOutput struct {
	ProjectDir string       `json:"project_dir"`
	Loaded     bool         `json:"loaded"`
	Source     string       `json:"source,omitempty"`
	Format     string       `json:"format,omitempty"`
	Hash       string       `json:"hash,omitempty"`
	SavedAt    *time.Time   `json:"saved_at,omitempty"`
	Rows       int          `json:"rows"`
	Moves      int          `json:"moves"`
	Computed   []string     `json:"computed,omitempty"`
	Stale      []string     `json:"stale,omitempty"`
	Tabs       []string     `json:"plot_tabs,omitempty"`
	Columns    []ColumnInfo `json:"columns,omitempty"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	var showColumns bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the project dataset and its columns",
		Long: `Show where the project dataset came from, its size, the active computed
parameters and the plot layout. With --columns the column catalog is listed
with its external names, units, roles and precision.`,
		Example: `  # Summarize the project
  cruiseqc info

  # Include the column catalog as JSON
  cruiseqc info --columns --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(cmd, showColumns)
		},
	}

	cmd.Flags().BoolVar(&showColumns, "columns", false, "List the column catalog")
	return cmd
}

func runInfo(cmd *cobra.Command, showColumns bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := cmdCtx.Session
	r := cmdCtx.Renderer

	out := InfoOutput{ProjectDir: s.ProjectDir(), Tabs: s.Views().Tabs().Names()}
	info, ok, err := s.Info()
	if err != nil {
		return err
	}
	if ds := s.Dataset(); ds != nil {
		out.Loaded = true
		out.Rows = ds.Table.Len()
		out.Moves = len(ds.Moves)
		out.Computed = s.Computed().Active()
		out.Stale = s.Computed().Stale()
		if showColumns {
			out.Columns = columnInfos(ds)
		}
	}
	if ok {
		out.Source = info.Source
		out.Format = string(info.Format)
		out.Hash = info.Hash
		savedAt := info.SavedAt
		out.SavedAt = &savedAt
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Project "+out.ProjectDir)
	if !out.Loaded {
		r.Muted("No dataset loaded. Run `cruiseqc load <file>`.")
		return nil
	}
	r.KeyValue("Source", out.Source)
	r.KeyValue("Format", out.Format)
	r.KeyValue("Rows", out.Rows)
	r.KeyValue("Audit entries", out.Moves)
	r.KeyValue("Computed", output.FormatList(out.Computed))
	if len(out.Stale) > 0 {
		r.KeyValue("Stale", output.FormatList(out.Stale))
	}
	r.KeyValue("Plot tabs", output.FormatList(out.Tabs))
	if out.SavedAt != nil {
		r.KeyValue("Saved", out.SavedAt.Format(dataset.MoveDateLayout))
	}

	if showColumns {
		r.Println("")
		r.Header(2, "Columns")
		rows := make([][]string, 0, len(out.Columns))
		for _, c := range out.Columns {
			precision := ""
			if c.Precision != nil {
				precision = strconv.Itoa(*c.Precision)
			}
			rows = append(rows, []string{
				c.Name, c.ExternalName, c.Unit, strings.Join(c.Roles, " "),
				precision, c.DataType, strconv.FormatBool(c.Export),
			})
		}
		r.Table([]string{"Name", "External", "Unit", "Roles", "Precision", "Type", "Export"}, rows)
	}
	return nil
}

func columnInfos(ds *dataset.Dataset) []ColumnInfo {
	var out []ColumnInfo
	for _, name := range ds.Table.ColumnNames() {
		meta, ok := ds.Catalog.Get(name)
		if !ok {
			continue
		}
		out = append(out, ColumnInfo{
			Name:         name,
			ExternalName: meta.ExternalName,
			Unit:         meta.Unit,
			Roles:        roleNames(meta.Roles),
			Precision:    meta.Precision,
			DataType:     string(meta.DataType),
			Export:       meta.Export,
		})
	}
	return out
}

func roleNames(roles []catalog.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
