package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/computed"
)

// DefinitionInfo is one row of the computed-parameter listing.
type DefinitionInfo struct {
	Name        string `json:"name"`
	Equation    string `json:"equation"`
	Precision   *int   `json:"precision,omitempty"`
	Units       string `json:"units,omitempty"`
	State       string `json:"state"`
	Satisfiable bool   `json:"satisfiable"`
}

// NewComputedCommand creates the computed command and its subcommands.
func NewComputedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "computed",
		Aliases: []string{"cp"},
		Short:   "Manage computed parameters",
		Long: `Manage the parameters derived from other columns by an equation.

Definitions come from the project's computed.yaml. Adding a parameter evaluates
its equation over every row and stores the result as a new column; removing it
drops the column. Active parameters are recomputed whenever their inputs change.`,
	}

	cmd.AddCommand(newComputedListCommand())
	cmd.AddCommand(newComputedAddCommand())
	cmd.AddCommand(newComputedRemoveCommand())
	cmd.AddCommand(newComputedAddAllCommand())
	return cmd
}

func newComputedListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "check"},
		Short:   "List definitions, their state and whether the dataset satisfies them",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runComputedList(cmd)
		},
	}
}

func runComputedList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := cmdCtx.Session
	eng := s.Computed()
	var satisfiable map[string]bool
	if s.Dataset() != nil {
		if satisfiable, err = s.CheckComputed(cmd.Context()); err != nil {
			return err
		}
	}

	defs := eng.Definitions()
	infos := make([]DefinitionInfo, len(defs))
	for i, d := range defs {
		infos[i] = DefinitionInfo{
			Name:        d.Name,
			Equation:    d.Equation,
			Precision:   d.Precision,
			Units:       d.Units,
			State:       string(eng.State(d.Name)),
			Satisfiable: satisfiable[d.Name],
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}

	r.Header(1, fmt.Sprintf("Computed parameters (%d defined)", len(infos)))
	rows := make([][]string, len(infos))
	for i, d := range infos {
		precision := ""
		if d.Precision != nil {
			precision = strconv.Itoa(*d.Precision)
		}
		rows[i] = []string{d.Name, d.Equation, precision, d.Units, d.State, strconv.FormatBool(d.Satisfiable)}
	}
	r.Table([]string{"Name", "Equation", "Precision", "Units", "State", "Satisfiable"}, rows)
	return nil
}

func newComputedAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>...",
		Short: "Add computed parameters to the dataset",
		Example: `  # Add potential temperature and its dependents
  cruiseqc computed add THETA SIGMA0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComputedChange(cmd, args, true)
		},
	}
}

func newComputedRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>...",
		Aliases: []string{"remove"},
		Short:   "Remove computed parameters from the dataset",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComputedChange(cmd, args, false)
		},
	}
}

func runComputedChange(cmd *cobra.Command, names []string, add bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := cmdCtx.Session
	if err := requireDataset(s); err != nil {
		return err
	}

	results := make([]computed.Result, 0, len(names))
	for _, name := range names {
		var res computed.Result
		if add {
			res, err = s.AddComputed(cmd.Context(), name)
		} else {
			res, err = s.RemoveComputed(cmd.Context(), name)
		}
		if err != nil {
			return err
		}
		results = append(results, res)
	}
	return renderResults(cmdCtx.Renderer, results)
}

func newComputedAddAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-all",
		Short: "Add every computed parameter the dataset can satisfy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := requireDataset(cmdCtx.Session); err != nil {
				return err
			}
			results, err := cmdCtx.Session.AddAllComputed(cmd.Context())
			if err != nil {
				return err
			}
			return renderResults(cmdCtx.Renderer, results)
		},
	}
}

// renderResults reports per-parameter outcomes. Failures are not command errors.
func renderResults(r *output.Renderer, results []computed.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(results)
	}
	if len(results) == 0 {
		r.Muted("Nothing to do.")
		return nil
	}
	styles := r.Styles()
	for _, res := range results {
		if res.Success {
			r.Printf("%s %s\n", styles.StatusSuccess.String(), res.Name)
			continue
		}
		r.Printf("%s %s: %s\n", styles.StatusFailed.String(), res.Name, styles.Muted.Render(res.Reason))
	}
	return nil
}
