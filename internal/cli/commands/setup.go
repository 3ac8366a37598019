package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/cli/config"
	"github.com/leapstack-labs/cruiseqc/internal/cli/output"
	"github.com/leapstack-labs/cruiseqc/internal/session"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Session  *session.Session
	Renderer *output.Renderer
}

// NewCommandContext opens the project session and creates a renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cctx, err := newContext(cmd)
	if err != nil {
		return nil, nil, err
	}

	scfg := cctx.Cfg.SessionConfig()
	scfg.Logger = cctx.Logger
	s, err := session.Open(scfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project %s: %w", cctx.Cfg.ProjectDir, err)
	}
	cctx.Session = s

	cleanup := func() {
		if err := s.Close(); err != nil {
			cctx.Logger.Warn("failed to close project", slog.String("error", err.Error()))
		}
	}
	return cctx, cleanup, nil
}

// NewCommandContextWithoutSession creates a CommandContext without opening the project.
func NewCommandContextWithoutSession(cmd *cobra.Command) (*CommandContext, error) {
	return newContext(cmd)
}

func newContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: r,
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading it
// from the environment when the command runs on its own.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetConfig(cmd.Context()); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// requireDataset fails when the project has no dataset yet.
func requireDataset(s *session.Session) error {
	if s.Dataset() == nil {
		return fmt.Errorf("%w\nHint: run `cruiseqc load <file>` first", session.ErrNoDataset)
	}
	return nil
}
