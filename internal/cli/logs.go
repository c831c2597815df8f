package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/prettylogs"
	"github.com/iamhalje/argo-appsets/internal/store"

	"github.com/spf13/cobra"
)

const defaultTailLines = 1000

type logsOptions struct {
	appNamespace string
	namespace    string
	pod          string
	container    string
	tail         int64
	follow       bool
	previous     bool
	filter       string
	wrap         bool
	uiMode       string
	width        int
}

func newLogsCommand(o *globalOptions) *cobra.Command {
	lopts := &logsOptions{}
	cmd := &cobra.Command{
		Use:   "logs <app> --pod <pod> --container <container>",
		Short: "Stream pretty-printed container logs of an application's pod",
		Long: `Stream container logs through the Argo CD API.

JSON log lines are shown as LEVEL time msg key=value, anything else keeps its ANSI colors.
The format is detected from the first lines of the stream.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := o.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			opts, err := lopts.renderOptions(cmd, a.prefs, a.logger)
			if err != nil {
				return err
			}

			q := models.LogQuery{
				App:       models.AppRef{Name: args[0], Namespace: lopts.appNamespace},
				Namespace: lopts.namespace,
				Pod:       lopts.pod,
				Container: lopts.container,
				TailLines: lopts.tail,
				Follow:    lopts.follow,
				Previous:  lopts.previous,
			}

			w := cmd.OutOrStdout()
			buf := prettylogs.NewBuffer()
			return a.api.StreamLogs(ctx, q, func(e models.LogEntry) error {
				for _, raw := range strings.Split(strings.TrimRight(e.Content, "\n"), "\n") {
					buf.Append(raw)
					if !prettylogs.Match(raw, lopts.filter) {
						continue
					}
					opts.Mode = buf.Mode()
					if _, err := fmt.Fprintln(w, prettylogs.Render(raw, opts)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&lopts.appNamespace, "app-namespace", "", "namespace of the Application resource")
	fs.StringVarP(&lopts.namespace, "namespace", "n", "", "namespace of the pod")
	fs.StringVar(&lopts.pod, "pod", "", "pod name")
	fs.StringVarP(&lopts.container, "container", "c", "", "container name")
	fs.Int64Var(&lopts.tail, "tail", defaultTailLines, "number of lines to load before following")
	fs.BoolVarP(&lopts.follow, "follow", "f", true, "keep streaming new lines")
	fs.BoolVarP(&lopts.previous, "previous", "p", false, "show logs of the previous container instance")
	fs.StringVar(&lopts.filter, "filter", "", "only show lines containing this text")
	fs.BoolVar(&lopts.wrap, "wrap", true, "wrap long lines, the value is remembered")
	fs.StringVar(&lopts.uiMode, "ui-mode", string(store.UIModeDark), "color scheme (dark|bright), the value is remembered")
	fs.IntVar(&lopts.width, "width", 0, "terminal width used for wrapping, 0 disables")
	_ = cmd.MarkFlagRequired("pod")
	_ = cmd.MarkFlagRequired("container")
	return cmd
}

// renderOptions reads wrap and ui-mode from preferences unless set on the command line,
// in which case the new value is stored.
func (lopts *logsOptions) renderOptions(cmd *cobra.Command, prefs *store.Preferences, logger *slog.Logger) (prettylogs.Options, error) {
	ctx := cmd.Context()
	opts := prettylogs.Options{Width: lopts.width}

	if cmd.Flags().Changed("wrap") {
		if err := prefs.SetWrapLines(ctx, lopts.wrap); err != nil {
			return opts, err
		}
		opts.Wrap = lopts.wrap
	} else {
		wrap, err := prefs.WrapLines(ctx)
		if err != nil {
			logger.Debug("reading wrap preference failed", slog.Any("err", err))
		}
		opts.Wrap = wrap
	}

	if cmd.Flags().Changed("ui-mode") {
		m := store.UIMode(lopts.uiMode)
		if m != store.UIModeDark && m != store.UIModeBright {
			return opts, fmt.Errorf("--ui-mode %q: want %s or %s", lopts.uiMode, store.UIModeDark, store.UIModeBright)
		}
		if err := prefs.SetUIMode(ctx, m); err != nil {
			return opts, err
		}
		opts.UIMode = m
		return opts, nil
	}
	m, err := prefs.UIMode(ctx)
	if err != nil {
		logger.Debug("reading ui mode preference failed", slog.Any("err", err))
	}
	opts.UIMode = m
	return opts, nil
}
