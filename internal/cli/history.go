package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var folder string
	var all bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the packages alget has written, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			project := ""
			if !all {
				if project, err = filepath.Abs(folder); err != nil {
					return err
				}
			}

			records, err := e.journal.List(project)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Printf("\n%s No installs recorded\n", dim("○"))
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s %s%s%s  %s\n", dim(rec.InstalledAt.Local().Format("2006-01-02 15:04")),
					bold(rec.Name), bold("@"), bold(rec.Version), dim(rec.Source))
				if all {
					fmt.Printf("  %s %s\n", cyan("project:"), rec.Project)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "project", "p", ".", "Project folder")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show every project")
	return cmd
}
