package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/views"
)

// NewViewsCommand creates the views command and its subcommands.
func NewViewsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "views",
		Aliases: []string{"plots"},
		Short:   "Manage the QC plot layout",
		Long: `Manage the tabs of property-property plots used during quality control.

Graphs that plot a column removed by a merge or a computed-parameter change are
dropped from the layout automatically, along with tabs left empty.`,
	}

	cmd.AddCommand(newViewsListCommand())
	cmd.AddCommand(newViewsAddCommand())
	cmd.AddCommand(newViewsRemoveCommand())
	return cmd
}

func newViewsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List plot tabs and their graphs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tabs := cmdCtx.Session.Views().Tabs()
			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(tabs)
			}

			r.Header(1, fmt.Sprintf("Plot tabs (%d)", len(tabs)))
			var rows [][]string
			for _, name := range tabs.Names() {
				for _, g := range tabs[name] {
					rows = append(rows, []string{name, g.Title, g.X, g.Y})
				}
			}
			r.Table([]string{"Tab", "Title", "X", "Y"}, rows)
			return nil
		},
	}
}

func newViewsAddCommand() *cobra.Command {
	var g views.Graph

	cmd := &cobra.Command{
		Use:   "add <tab>",
		Short: "Add a graph to a plot tab",
		Example: `  # Salinity against pressure on the Salinity tab
  cruiseqc views add Salinity --x SALNTY --y CTDPRS --title "Bottle salinity"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if ds := cmdCtx.Session.Dataset(); ds != nil {
				for _, col := range []string{g.X, g.Y} {
					if !ds.Table.HasColumn(col) {
						return fmt.Errorf("unknown column %s", col)
					}
				}
			}
			if g.Title == "" {
				g.Title = g.Y + " vs " + g.X
			}
			if err := cmdCtx.Session.Views().AddGraph(args[0], g); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Added %q to tab %s", g.Title, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&g.X, "x", "", "Column on the x axis")
	cmd.Flags().StringVar(&g.Y, "y", "", "Column on the y axis")
	cmd.Flags().StringVar(&g.Title, "title", "", "Graph title")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func newViewsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <tab>",
		Aliases: []string{"remove"},
		Short:   "Remove a plot tab",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Session.Views().RemoveTab(args[0]); err != nil {
				return err
			}
			cmdCtx.Renderer.Success("Removed tab " + args[0])
			return nil
		},
	}
}
