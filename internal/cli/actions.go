package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"
	"github.com/iamhalje/argo-appsets/internal/session"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// selectorOptions picks the applications of a set a bulk command acts on.
// No flag selects every application. Filters are combined with AND; --app then toggles single applications.
type selectorOptions struct {
	all       bool
	outOfSync bool
	suspended bool
	degraded  bool
	labels    []string
	apps      []string
}

func (s *selectorOptions) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&s.all, "all", false, "select every application of the set")
	fs.BoolVar(&s.outOfSync, "out-of-sync", false, "select OutOfSync applications")
	fs.BoolVar(&s.suspended, "suspended", false, "select applications with a suspended rollout")
	fs.BoolVar(&s.degraded, "degraded", false, "select applications with a degraded rollout")
	fs.StringArrayVar(&s.labels, "label", nil, "select applications with label key=value (repeatable)")
	fs.StringArrayVar(&s.apps, "app", nil, "toggle one application by name (repeatable)")
}

func (s *selectorOptions) predicates() ([]services.Predicate, error) {
	var preds []services.Predicate
	if s.outOfSync {
		preds = append(preds, services.OutOfSync)
	}
	if s.suspended {
		preds = append(preds, services.RolloutSuspended)
	}
	if s.degraded {
		preds = append(preds, services.RolloutDegraded)
	}
	for _, l := range s.labels {
		k, v, ok := strings.Cut(l, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--label %q: want key=value", l)
		}
		preds = append(preds, services.HasLabel(strings.TrimSpace(k), strings.TrimSpace(v)))
	}
	return preds, nil
}

// apply replaces the session selection according to the flags.
func (s *selectorOptions) apply(sess *session.Session) error {
	preds, err := s.predicates()
	if err != nil {
		return err
	}
	sess.SelectNone()
	switch {
	case s.all, len(preds) == 0 && len(s.apps) == 0:
		sess.SelectAll()
	case len(preds) > 0:
		sess.SelectBy(func(snap models.ItemSnapshot) bool {
			return lo.EveryBy(preds, func(p services.Predicate) bool { return p(snap) })
		})
	}

	tracked := sess.TrackedKeys()
	for _, name := range s.apps {
		key, ok := lo.Find(tracked, func(k models.ItemKey) bool { return k.Name == name })
		if !ok {
			return fmt.Errorf("application %q is not part of %s", name, sess.Parent().Name)
		}
		sess.Toggle(key)
	}
	if len(sess.Selected()) == 0 {
		return session.ErrNoSelection
	}
	return nil
}

// bulkOptions are shared by every command that runs a bulk operation.
type bulkOptions struct {
	sel selectorOptions
	yes bool
}

func (b *bulkOptions) register(cmd *cobra.Command) {
	b.sel.register(cmd)
	cmd.Flags().BoolVarP(&b.yes, "yes", "y", false, "do not ask for confirmation")
}

func newSyncCommand(o *globalOptions) *cobra.Command {
	var (
		b    bulkOptions
		opts models.SyncOptions
	)
	cmd := &cobra.Command{
		Use:   "sync <set>",
		Short: "Sync the selected applications of a set",
		Example: `  # Sync every OutOfSync application to its target revision
  argo-appsets sync payments --out-of-sync

  # Dry-run a sync of two applications with pruning
  argo-appsets sync payments --app payments-eu --app payments-us --prune --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBulk(cmd, args[0], &b, func(sess *session.Session) services.Operation {
				if !cmd.Flags().Changed("revision") {
					opts.Revision = services.DefaultSyncOptions(sess.SelectedApps()).Revision
				}
				return services.SyncOperation{Options: opts}
			})
		},
	}
	b.register(cmd)
	cmd.Flags().StringVar(&opts.Revision, "revision", "", "revision to sync to (default: target revision of the first selected application)")
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "prune resources no longer in git")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "preview the sync without applying it")
	return cmd
}

func newRolloutCommand(o *globalOptions) *cobra.Command {
	var b bulkOptions
	cmd := &cobra.Command{
		Use:       fmt.Sprintf("rollout <%s> <set>", strings.Join(models.RolloutActions, "|")),
		Short:     "Run an argo-rollouts action on the Rollout of every selected application",
		Args:      cobra.ExactArgs(2),
		ValidArgs: models.RolloutActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			if !lo.Contains(models.RolloutActions, action) {
				return fmt.Errorf("unknown rollout action %q, want one of %s", action, strings.Join(models.RolloutActions, ", "))
			}
			return o.runBulk(cmd, args[1], &b, func(*session.Session) services.Operation {
				return services.RolloutOperation{Action: action}
			})
		},
	}
	b.register(cmd)
	return cmd
}

func newRestartCommand(o *globalOptions) *cobra.Command {
	var b bulkOptions
	cmd := &cobra.Command{
		Use:   "restart <set>",
		Short: "Restart the Rollout, or else the Deployment, of every selected application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBulk(cmd, args[0], &b, func(*session.Session) services.Operation {
				return services.RestartOperation{}
			})
		},
	}
	b.register(cmd)
	return cmd
}

func newRollbackCommand(o *globalOptions) *cobra.Command {
	var (
		b        bulkOptions
		revision string
	)
	cmd := &cobra.Command{
		Use:   "rollback <set> --revision <sha>",
		Short: "Roll the selected applications back to a revision from their history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runBulk(cmd, args[0], &b, func(*session.Session) services.Operation {
				return services.RollbackOperation{Revision: revision}
			})
		},
	}
	b.register(cmd)
	cmd.Flags().StringVar(&revision, "revision", "", "revision to roll back to, see `history`")
	_ = cmd.MarkFlagRequired("revision")
	return cmd
}

func (o *globalOptions) runBulk(cmd *cobra.Command, setName string, b *bulkOptions, build func(*session.Session) services.Operation) error {
	ctx := cmd.Context()
	a, err := o.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := o.openSet(ctx, a, setName)
	if err != nil {
		return err
	}
	return runBulkOnSession(cmd, sess, b, build)
}

// runBulkOnSession selects, confirms and runs op against an already loaded set.
// A declined confirmation is not an error.
func runBulkOnSession(cmd *cobra.Command, sess *session.Session, b *bulkOptions, build func(*session.Session) services.Operation) error {
	ctx := cmd.Context()
	if err := b.sel.apply(sess); err != nil {
		return err
	}
	op := build(sess)

	confirm := session.Confirmer(session.Confirmed)
	if !b.yes {
		confirm = promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	summary, err := runWithProgress(ctx, cmd.ErrOrStderr(), func(events chan<- models.ProgressEvent) (models.BulkSummary, error) {
		return sess.RunBulk(ctx, op, confirm, events)
	})
	if errors.Is(err, session.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	printNotifications(cmd, sess)
	if len(summary.Failed) > 0 {
		for _, r := range summary.Failed {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", r.Key, r.Err)
		}
		return fmt.Errorf("%s failed for %d of %d applications", op.Name(), len(summary.Failed), summary.Total)
	}
	return nil
}

// runWithProgress prints one line per finished target while run is in flight.
func runWithProgress(ctx context.Context, w io.Writer, run func(chan<- models.ProgressEvent) (models.BulkSummary, error)) (models.BulkSummary, error) {
	events := make(chan models.ProgressEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Phase == models.TaskRunning {
				continue
			}
			_, _ = fmt.Fprintf(w, "[%d/%d] %s %s %s\n", ev.Completed, ev.Total, ev.Operation, ev.Key, ev.Phase)
		}
	}()

	summary, err := run(events)
	close(events)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return summary, err
}

// promptConfirmer asks on w and reads a y/yes answer from r.
func promptConfirmer(r io.Reader, w io.Writer) session.Confirmer {
	return func(prompt string) bool {
		_, _ = fmt.Fprintf(w, "%s [y/N]: ", prompt)
		answer, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}
