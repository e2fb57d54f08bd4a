package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/365businessdev/alget/internal/manager"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRestoreCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [folder...]",
		Short: "Download the missing packages of one or more projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args, false)
		},
	}
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update [folder...]",
		Short: "Install newer versions of the packages of one or more projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args, true)
		},
	}
}

// runBatch restores or updates every folder, a few at a time. A failing
// folder does not stop the others.
func runBatch(ctx context.Context, opts *globalOptions, dirs []string, update bool) error {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	verb, done := "restore", "restored"
	if update {
		verb, done = "update", "updated"
	}

	output := make([]string, len(dirs))
	mu := &sync.Mutex{}
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(dirs), e.cfg.MaxParallel))

	for i, dir := range dirs {
		g.Go(func() error {
			p, err := e.openProject(gctx, dir, dirs, update)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				output[i] = fmt.Sprintf("%s %s: %v", red("✗"), dir, err)
				return nil
			}

			var res manager.Result
			if update {
				res = p.manager.Update(gctx)
			} else {
				res = p.manager.Restore(gctx)
			}

			output[i] = summarize(dir, res, verb, done)
			if res.Err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println()
	for _, line := range output {
		fmt.Println(line)
	}

	if failed > 0 {
		return fmt.Errorf("failed to %s %d project(s)", verb, failed)
	}
	return nil
}

func summarize(dir string, res manager.Result, verb, done string) string {
	if len(res.Installed) == 0 && len(res.Failed) == 0 {
		return fmt.Sprintf("%s %s: nothing to %s", dim("○"), dir, verb)
	}

	mark := green("✓")
	if len(res.Failed) > 0 {
		mark = red("✗")
	}
	line := fmt.Sprintf("%s %s: %d package(s) %s", mark, bold(dir), len(res.Installed), done)
	for _, pkg := range res.Installed {
		line += fmt.Sprintf("\n  %s %s%s%s", dim("↳"), pkg.Name, dim("@"), pkg.Version)
	}
	for _, pkg := range res.Failed {
		line += fmt.Sprintf("\n  %s %s %s", red("↳"), pkg.Name, dim("(failed)"))
	}
	return line
}
