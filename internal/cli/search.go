package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var show int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "List packages available on the enabled feeds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			var query string
			if len(args) > 0 {
				query = args[0]
			}

			stop := withSpinner(cmd.Context(), fmt.Sprintf("Searching %s...", query))
			results, err := e.feeds.Load(cmd.Context(), query)
			stop()
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Printf("%s No results found for %q\n", dim("○"), query)
				return nil
			}

			size := pageSize(len(results), show)

			fmt.Printf("\nShowing %s of %s results for %q\n\n", green(size), green(len(results)), query)

			for _, pkg := range results[:size] {
				fmt.Printf("%s %s %s\n", green("●"), bold(pkg.Name), dim(pkg.PackageID))
				fmt.Printf("  %s %s\n", cyan("version:"), pkg.Version)
				if pkg.Publisher != "" {
					fmt.Printf("  %s %s\n", cyan("publisher:"), pkg.Publisher)
				}
				if pkg.Description != "" {
					fmt.Printf("  %s %s\n", cyan("desc:"), pkg.Description)
				}
				fmt.Printf("  %s %s\n", cyan("feed:"), dim(pkg.Source.Name))
				fmt.Println()
			}

			if len(results) > size {
				fmt.Printf("%s %d more available, use %s to see all\n", dim("..."), len(results)-size, cyan(fmt.Sprintf("--show %d", len(results))))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&show, "show", "s", 50, "Shows first n packages")
	return cmd
}

// pageSize is how many of total results fit in show; a negative show
// shows none.
func pageSize(total, show int) int {
	return min(total, max(show, 0))
}
