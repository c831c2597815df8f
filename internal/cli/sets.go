package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"
	"github.com/iamhalje/argo-appsets/internal/session"

	"github.com/spf13/cobra"
)

func newSetsCommand(o *globalOptions) *cobra.Command {
	var (
		search    string
		favorites bool
	)
	cmd := &cobra.Command{
		Use:     "sets",
		Aliases: []string{"ls"},
		Short:   "List ApplicationSets with their aggregated status",
		Example: `  # Only favorites whose name contains "payments"
  argo-appsets sets --favorites --search payments`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := services.NewDiscoveryService(a.api).ListSets(ctx)
			if err != nil {
				return err
			}
			favs, err := a.prefs.Favorites(ctx)
			if err != nil {
				a.logger.Warn("loading favorites failed", slog.Any("err", err))
			}
			only := favorites
			if !cmd.Flags().Changed("favorites") {
				if only, err = a.prefs.ShowFavoritesOnly(ctx); err != nil {
					a.logger.Warn("loading favorites toggle failed", slog.Any("err", err))
				}
			}
			return printSets(cmd.OutOrStdout(), services.FilterSets(all, search, only, favs), favs)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive name filter")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "show favorites only (default: saved preference)")
	return cmd
}

func newFavoriteCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <set>",
		Short: "Toggle an ApplicationSet in favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			now, err := a.prefs.ToggleFavorite(ctx, args[0])
			if err != nil {
				return err
			}
			state := "removed from"
			if now {
				state = "added to"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", args[0], state)
			return nil
		},
	}
}

func newStatusCommand(o *globalOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status <set>",
		Short: "Show health, sync and rollout progress of every application in a set",
		Example: `  # Print the status of a set once
  argo-appsets status payments

  # Reprint it on every --poll-interval until interrupted
  argo-appsets status payments --watch --poll-interval 10s`,
		Args: cobra.ExactArgs(1),
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
			if watch {
				return watchStatus(ctx, cmd, sess, o.pollInterval)
			}
			return printSetStatus(cmd, sess)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and reprint the status after every round")
	return cmd
}

// watchStatus reprints the set status after every poll round until ctx is done.
func watchStatus(ctx context.Context, cmd *cobra.Command, sess *session.Session, interval time.Duration) error {
	var printErr error
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := sess.Watch(watchCtx, interval, func() {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s, every %s\n\n",
			time.Now().Format(time.TimeOnly), sess.Parent().Name, interval)
		if printErr = printSetStatus(cmd, sess); printErr != nil {
			cancel()
			return
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	})
	if printErr != nil {
		return printErr
	}
	return err
}

func printSetStatus(cmd *cobra.Command, sess *session.Session) error {
	snaps := map[models.ItemKey]models.ItemSnapshot{}
	for _, k := range sess.TrackedKeys() {
		if s, ok := sess.Snapshot(k); ok {
			snaps[k] = s
		}
	}
	w := cmd.OutOrStdout()
	if err := printStatus(w, sess.TrackedKeys(), snaps); err != nil {
		return err
	}

	sum := sess.Summary()
	_, _ = fmt.Fprintf(w, "\nstatus: %s  health: %s  sync: %s\n",
		sum.Tile, formatCounts(models.AllHealthStatuses, sum.Health), formatCounts(models.AllSyncStatuses, sum.Sync))
	if rs := sess.RolloutSummary(); rs.Paused > 0 || rs.Processing > 0 {
		p := rs.Progress()
		_, _ = fmt.Fprintf(w, "rollouts: %d paused, %d processing, %d/%d pods updated (%d%%)\n",
			rs.Paused, rs.Processing, p.UpdatedPods, p.TotalPods, p.Percent())
	}
	for _, g := range sess.LabelGroups() {
		_, _ = fmt.Fprintf(w, "label %s: %v\n", g.Key, g.Values)
	}
	printNotifications(cmd, sess)
	return nil
}

// openSet loads set name into a new session and fetches its applications once.
func (o *globalOptions) openSet(ctx context.Context, a *app, name string) (*session.Session, error) {
	set, err := services.NewDiscoveryService(a.api).FindSet(ctx, name)
	if err != nil {
		return nil, err
	}
	sess := session.New(session.Config{
		API:      a.api,
		Parallel: o.parallel,
		Prefs:    a.prefs,
		Logger:   a.logger,
	})
	sess.SetParent(set)
	if err := sess.Refresh(ctx, services.PollVisible, models.RefreshNone); err != nil {
		return nil, err
	}
	return sess, nil
}

func printNotifications(cmd *cobra.Command, sess *session.Session) {
	for _, n := range sess.Notifications() {
		if n.Kind == models.NotifyError {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), n.Message)
			continue
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), n.Message)
	}
}
