package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/buildinfo"
	"github.com/iamhalje/argo-appsets/internal/metrics"
	"github.com/iamhalje/argo-appsets/internal/services"
	"github.com/iamhalje/argo-appsets/internal/store"
	"github.com/iamhalje/argo-appsets/internal/tui"

	"github.com/spf13/cobra"
)

const defaultStateRelativePath = ".config/argo-appsets/state"

type globalOptions struct {
	configPath   string
	contextName  string
	parallel     int
	pollInterval time.Duration
	stateDir     string
	debug        bool
	logFile      string
	metricsAddr  string

	logger   *slog.Logger
	closeLog func()
}

// app is everything a command needs to talk to one Argo CD instance.
type app struct {
	logger *slog.Logger
	api    *argocd.GRPCAPI
	db     *store.Badger
	prefs  *store.Preferences
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing state store failed", slog.Any("err", err))
		}
	}
}

func NewRootCommand() *cobra.Command {
	o := &globalOptions{}

	root := &cobra.Command{
		Use:           buildinfo.Name,
		Short:         "Dashboard and bulk actions for Argo CD ApplicationSets",
		Long:          "Visualize ApplicationSets and their child Applications, and sync, roll out, restart or roll back many of them at once.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildinfo.Short(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setupLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.closeLog != nil {
				o.closeLog()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runTUI(cmd.Context(), "")
		},
	}

	fs := root.PersistentFlags()
	fs.StringVar(&o.configPath, "config", argocd.DefaultConfigPath(), "path to argocd config")
	fs.StringVar(&o.contextName, "context", "", "argocd context to use (default: current-context)")
	fs.IntVar(&o.parallel, "parallel", services.DefaultParallel, "max concurrent calls per bulk action, <=0 for unbounded")
	fs.DurationVar(&o.pollInterval, "poll-interval", services.ScreenPollInterval, "refresh interval of the applicationset screen")
	fs.StringVar(&o.stateDir, "state-dir", defaultStateDir(), "directory for favorites and preferences")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.logFile, "log-file", "", "write logs to file (the dashboard owns the terminal)")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newTUICommand(o),
		newSetsCommand(o),
		newFavoriteCommand(o),
		newStatusCommand(o),
		newSyncCommand(o),
		newRolloutCommand(o),
		newRestartCommand(o),
		newRollbackCommand(o),
		newHistoryCommand(o),
		newLogsCommand(o),
		newDebugPodsCommand(o),
		newVersionCommand(o),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newTUICommand(o *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [set]",
		Short: "Open the interactive dashboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initial := ""
			if len(args) == 1 {
				initial = args[0]
			}
			return o.runTUI(cmd.Context(), initial)
		},
	}
}

func (o *globalOptions) runTUI(ctx context.Context, initialSet string) error {
	a, err := o.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(ctx, a.logger, a.api, a.prefs, tui.Options{
		Parallel:     o.parallel,
		PollInterval: o.pollInterval,
		InitialSet:   initialSet,
	})
}

func (o *globalOptions) setupLogging() error {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	w := io.Writer(os.Stderr)
	if strings.TrimSpace(o.logFile) != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("open --log-file %q: %w", o.logFile, err)
		}
		o.closeLog = func() { _ = f.Close() }
		w = f
	}

	o.logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

func (o *globalOptions) newApp(ctx context.Context) (*app, error) {
	cluster, err := argocd.LoadCluster(o.configPath, o.contextName)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("starting argo-appsets",
		slog.String("config", o.configPath),
		slog.String("context", cluster.ContextName),
		slog.String("server", cluster.Server),
		slog.Int("parallel", o.parallel),
		slog.Duration("poll_interval", o.pollInterval),
		slog.String("state_dir", o.stateDir),
	)

	db, err := store.OpenBadger(store.BadgerConfig{Path: o.stateDir, SyncWrites: true, Logger: o.logger.With(slog.String("component", "store"))})
	if err != nil {
		return nil, err
	}

	if o.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, o.metricsAddr, o.logger); err != nil {
				o.logger.Error("metrics listener failed", slog.Any("err", err))
			}
		}()
	}

	return &app{
		logger: o.logger,
		api:    argocd.NewGRPCAPI(cluster, argocd.WithLogger(o.logger)),
		db:     db,
		prefs:  store.NewPreferences(db),
	}, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.FromSlash(defaultStateRelativePath)
	}
	return filepath.Join(home, filepath.FromSlash(defaultStateRelativePath))
}
