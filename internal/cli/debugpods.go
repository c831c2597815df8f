package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/iamhalje/argo-appsets/internal/debugpods"
	"github.com/iamhalje/argo-appsets/internal/prettylogs"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

func newDebugPodsCommand(o *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug-pods",
		Aliases: []string{"dp"},
		Short:   "Manage pods of the debug-pod server extension",
	}
	cmd.AddCommand(
		newDebugPodsListCommand(o),
		newDebugPodsCreateCommand(o),
		newDebugPodsDeleteCommand(o),
		newDebugPodsLogsCommand(o),
		newDebugPodsEventsCommand(o),
	)
	return cmd
}

func (o *globalOptions) debugPodsClient(cmd *cobra.Command) (*debugpods.Client, func(), error) {
	a, err := o.newApp(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return debugpods.NewClient(a.api.Cluster()), a.Close, nil
}

func newDebugPodsListCommand(o *globalOptions) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List debug pods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := o.debugPodsClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			pods, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			return printDebugPods(cmd.OutOrStdout(), debugpods.Filter(pods, search))
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive pod name filter")
	return cmd
}

func newDebugPodsCreateCommand(o *globalOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create <cluster> <application> <original-pod> -f pod.yaml",
		Short: "Spawn a debug copy of a pod",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read pod manifest: %w", err)
			}
			var pod corev1.Pod
			if err := yaml.Unmarshal(b, &pod); err != nil {
				return fmt.Errorf("parse pod manifest %q: %w", file, err)
			}

			c, closeFn, err := o.debugPodsClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			created, err := c.Create(cmd.Context(), args[0], args[2], args[1], pod)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "debug pod %s/%s created on %s\n", created.Pod.Namespace, created.Pod.Name, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "filename", "f", "", "pod manifest (yaml or json)")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}

func newDebugPodsDeleteCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <cluster> <pod>",
		Short: "Delete a debug pod",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := o.debugPodsClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := c.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "debug pod %s deleted\n", args[1])
			return nil
		},
	}
}

func newDebugPodsLogsCommand(o *globalOptions) *cobra.Command {
	var (
		container string
		filter    string
	)
	cmd := &cobra.Command{
		Use:   "logs <cluster> <namespace> <pod>",
		Short: "Stream logs of a debug pod container",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := o.debugPodsClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			w := cmd.OutOrStdout()
			buf := prettylogs.NewBuffer()
			return c.Logs(cmd.Context(), args[0], args[1], args[2], container, func(line string) error {
				buf.Append(line)
				if !prettylogs.Match(line, filter) {
					return nil
				}
				_, err := fmt.Fprintln(w, prettylogs.Render(line, prettylogs.Options{Mode: buf.Mode()}))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&container, "container", "c", "", "container name")
	cmd.Flags().StringVar(&filter, "filter", "", "only show lines containing this text")
	_ = cmd.MarkFlagRequired("container")
	return cmd
}

func newDebugPodsEventsCommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <cluster> <namespace> <pod>",
		Short: "Stream kubernetes events of a debug pod",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := o.debugPodsClient(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			w := cmd.OutOrStdout()
			return c.Events(cmd.Context(), args[0], args[1], args[2], func(ev corev1.Event) error {
				ts := ev.LastTimestamp.Time
				if ts.IsZero() {
					ts = ev.EventTime.Time
				}
				_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ts.Format(time.TimeOnly), ev.Type, ev.Reason, ev.Message)
				return err
			})
		},
	}
}
