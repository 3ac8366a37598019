package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cruiseqc/internal/reconcile"
)

// DefaultDebounce coalesces the bursts of events editors and copy tools emit.
const DefaultDebounce = 300 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var sel selectionFlags
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Watch a source file and compare every new version",
		Long: `Watch a bottle file and compare it against the project dataset each time its
content changes. Differences are reported; with selection flags they are also
merged, exactly as the update command does.

Press Ctrl+C to stop.`,
		Example: `  # Report every change made by the data provider
  cruiseqc watch 33RR20160208_hy1.csv

  # Keep the project in sync, accepting new rows and values
  cruiseqc watch 33RR20160208_hy1.csv --add-rows --values`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, args[0], &sel, debounce, nil)
		},
	}

	sel.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "Wait this long after the last write before comparing")
	return cmd
}

// runWatch blocks until ctx is done. processed, when set, is called after each
// handled change.
func runWatch(ctx context.Context, cmd *cobra.Command, path string, flags *selectionFlags, debounce time.Duration, processed func()) error {
	sel, apply, err := flags.selection()
	if err != nil {
		return err
	}
	var selection *reconcile.Selection
	if apply {
		selection = &sel
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireDataset(cmdCtx.Session); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger := cmdCtx.Logger
	r := cmdCtx.Renderer
	r.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", path))

	trigger := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != abs {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			changed, err := cmdCtx.Session.SourceChanged(path)
			if err != nil {
				logger.Warn("failed to read source", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			if changed {
				logger.Info("source changed", slog.String("path", path))
				if err := compareAndMerge(ctx, cmdCtx, path, selection); err != nil {
					r.Error(err.Error())
				}
			}
			if processed != nil {
				processed()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}
