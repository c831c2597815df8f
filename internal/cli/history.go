package cli

import (
	"github.com/iamhalje/argo-appsets/internal/services"

	"github.com/spf13/cobra"
)

func newHistoryCommand(o *globalOptions) *cobra.Command {
	var (
		sel   selectorOptions
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history <set>",
		Short: "List recent revisions deployed to the selected applications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := o.openSet(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := sel.apply(sess); err != nil {
				return err
			}
			entries := services.RecentRevisions(services.GroupHistory(sess.SelectedApps()), limit)
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	sel.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", services.DefaultRecentRevisions, "number of revisions to show")
	return cmd
}
