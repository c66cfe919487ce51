package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagekit/internal/config"
	"github.com/conneroisu/pagekit/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <page.html>",
	Aliases: []string{"w"},
	Short:   "Boot a page and rebuild stale components when it changes",
	Long: `Boot the configured components on a page, then watch the file. Every
change is swapped into the running page as a restored snapshot and the
components that lost their wiring are rebuilt, exactly as after a
back/forward cache restore.

Examples:
  pagekit watch index.html              # Watch with the configured debounce
  pagekit watch index.html --verbose    # Print the instances after each reload`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "verbosity")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := newSession(cfg, args[0], cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := s.boot(ctx)
	out := cmd.OutOrStdout()
	if !watchFlags.Quiet {
		fmt.Fprintf(out, "Booted %d component(s), %d failed\n", len(res.Instances()), res.Failed)
	}

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, watcher.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.HTMLFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	if err := fw.AddPath(args[0]); err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}

	reloader := watcher.NewPageReloader(s.manager, args[0], s.logger)
	reloader.OnReload(func(r watcher.ReloadResult) {
		if watchFlags.Quiet {
			return
		}
		fmt.Fprintf(out, "Reloaded %s: %d recovered, %d live\n", r.Path, r.Recovered, r.Components)
		if watchFlags.Verbose {
			_ = writeInstanceTable(out, s.rows(res))
		}
	})
	fw.AddHandler(reloader.Handle)

	if err := fw.Start(ctx); err != nil {
		return err
	}
	if !watchFlags.Quiet {
		fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)\n", args[0])
	}

	<-ctx.Done()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.manager.DestroyAll()
	return nil
}
