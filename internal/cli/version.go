package cli

import (
	"fmt"
	"log/slog"

	"github.com/iamhalje/argo-appsets/internal/buildinfo"

	"github.com/spf13/cobra"
)

func newVersionCommand(o *globalOptions) *cobra.Command {
	var server bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print client and, with --server, Argo CD server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s %s\n", buildinfo.Name, buildinfo.Short())
			if !server {
				return nil
			}

			a, err := o.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.api.DetectServerVersion(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Debug("detected server version", slog.String("raw", v.Raw), slog.Int("major", v.Major))
			_, _ = fmt.Fprintf(w, "server %s (%s)\n", v.Raw, a.api.Cluster().ContextName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&server, "server", false, "also query the Argo CD server")
	return cmd
}
