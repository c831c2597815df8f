package argocd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/iamhalje/argo-appsets/internal/buildinfo"
	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/argoproj/argo-cd/v2/pkg/apiclient"
	argoapp "github.com/argoproj/argo-cd/v2/pkg/apiclient/application"
	argoappset "github.com/argoproj/argo-cd/v2/pkg/apiclient/applicationset"
	argoappv1 "github.com/argoproj/argo-cd/v2/pkg/apis/application/v1alpha1"
)

// API is wrapper over Argo CD Application and ApplicationSet services.
type API interface {
	ListApplicationSets(ctx context.Context) ([]models.ApplicationSet, error)
	GetApplication(ctx context.Context, app models.AppRef, refresh models.RefreshMode) (models.Application, error)
	GetResourceTree(ctx context.Context, app models.AppRef) (*models.ResourceTree, error)
	SyncApplication(ctx context.Context, app models.AppRef, opts models.SyncOptions) error
	Rollback(ctx context.Context, app models.AppRef, id int64) error
	RunResourceAction(ctx context.Context, app models.AppRef, target models.ResourceRef, action string) error
	StreamLogs(ctx context.Context, q models.LogQuery, fn func(models.LogEntry) error) error
}

type GRPCAPI struct {
	cluster models.Cluster
	retry   RetryPolicy
	logger  *slog.Logger
}

type Option func(*GRPCAPI)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *GRPCAPI) { a.retry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *GRPCAPI) { a.logger = l }
}

func NewGRPCAPI(cluster models.Cluster, opts ...Option) *GRPCAPI {
	a := &GRPCAPI{
		cluster: cluster,
		retry:   DefaultRetryPolicy(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *GRPCAPI) Cluster() models.Cluster { return a.cluster }

func (a *GRPCAPI) ListApplicationSets(ctx context.Context) ([]models.ApplicationSet, error) {
	// listing is a single cheap call, it is not retried.
	return withRetry(ctx, NoRetry(), func() ([]models.ApplicationSet, error) {
		c, closeFn, err := a.appSetClient()
		if err != nil {
			return nil, err
		}
		defer closeFn()

		resp, err := c.List(ctx, &argoappset.ApplicationSetListQuery{})
		if err != nil {
			return nil, fmt.Errorf("%s: list applicationsets: %w", a.cluster.ContextName, err)
		}

		out := make([]models.ApplicationSet, 0, len(resp.Items))
		for i := range resp.Items {
			out = append(out, applicationSetFromV1(&resp.Items[i]))
		}
		return out, nil
	})
}

func (a *GRPCAPI) GetApplication(ctx context.Context, app models.AppRef, refresh models.RefreshMode) (models.Application, error) {
	return withRetry(ctx, a.retry, func() (models.Application, error) {
		c, closeFn, err := a.appClient()
		if err != nil {
			return models.Application{}, err
		}
		defer closeFn()

		q := &argoapp.ApplicationQuery{
			Name:         ptr(app.Name),
			AppNamespace: optional(app.Namespace),
		}
		if refresh != models.RefreshNone {
			q.Refresh = ptr(string(refresh))
		}

		resp, err := c.Get(ctx, q)
		if err != nil {
			return models.Application{}, fmt.Errorf("%s/%s: get application (refresh=%q): %w", a.cluster.ContextName, app.Name, refresh, err)
		}
		return applicationFromV1(resp), nil
	})
}

func (a *GRPCAPI) GetResourceTree(ctx context.Context, app models.AppRef) (*models.ResourceTree, error) {
	return withRetry(ctx, a.retry, func() (*models.ResourceTree, error) {
		c, closeFn, err := a.appClient()
		if err != nil {
			return nil, err
		}
		defer closeFn()

		resp, err := c.ResourceTree(ctx, &argoapp.ResourcesQuery{
			ApplicationName: ptr(app.Name),
			AppNamespace:    optional(app.Namespace),
		})
		if err != nil {
			return nil, fmt.Errorf("%s/%s: resource tree: %w", a.cluster.ContextName, app.Name, err)
		}
		return resourceTreeFromV1(resp), nil
	})
}

func (a *GRPCAPI) SyncApplication(ctx context.Context, app models.AppRef, opts models.SyncOptions) error {
	return doWithRetry(ctx, a.retry, func() error {
		c, closeFn, err := a.appClient()
		if err != nil {
			return err
		}
		defer closeFn()

		req := &argoapp.ApplicationSyncRequest{
			Name:         ptr(app.Name),
			AppNamespace: optional(app.Namespace),
			Prune:        ptr(opts.Prune),
			DryRun:       ptr(opts.DryRun),
			Revision:     optional(strings.TrimSpace(opts.Revision)),
			Strategy:     &argoappv1.SyncStrategy{Hook: &argoappv1.SyncStrategyHook{}},
		}

		if _, err := c.Sync(ctx, req); err != nil {
			return fmt.Errorf("%s/%s: sync (revision=%q prune=%v dryRun=%v): %w",
				a.cluster.ContextName, app.Name, opts.Revision, opts.Prune, opts.DryRun, err)
		}
		return nil
	})
}

func (a *GRPCAPI) Rollback(ctx context.Context, app models.AppRef, id int64) error {
	return doWithRetry(ctx, a.retry, func() error {
		c, closeFn, err := a.appClient()
		if err != nil {
			return err
		}
		defer closeFn()

		_, err = c.Rollback(ctx, &argoapp.ApplicationRollbackRequest{
			Name:         ptr(app.Name),
			AppNamespace: optional(app.Namespace),
			Id:           ptr(id),
		})
		if err != nil {
			return fmt.Errorf("%s/%s: rollback (id=%d): %w", a.cluster.ContextName, app.Name, id, err)
		}
		return nil
	})
}

func (a *GRPCAPI) RunResourceAction(ctx context.Context, app models.AppRef, target models.ResourceRef, action string) error {
	return doWithRetry(ctx, a.retry, func() error {
		c, closeFn, err := a.appClient()
		if err != nil {
			return err
		}
		defer closeFn()

		_, err = c.RunResourceAction(ctx, &argoapp.ResourceActionRunRequest{
			Name:         ptr(app.Name),
			AppNamespace: optional(app.Namespace),
			Namespace:    ptr(target.Namespace),
			ResourceName: ptr(target.Name),
			Version:      ptr(target.Version),
			Group:        ptr(target.Group),
			Kind:         ptr(target.Kind),
			Action:       ptr(action),
		})
		if err != nil {
			return fmt.Errorf("%s/%s: run action %q on %s/%s: %w", a.cluster.ContextName, app.Name, action, target.Kind, target.Name, err)
		}
		return nil
	})
}

// StreamLogs calls fn for every log line until the stream ends, fn fails or ctx is done.
// Only opening the stream is retried.
func (a *GRPCAPI) StreamLogs(ctx context.Context, q models.LogQuery, fn func(models.LogEntry) error) error {
	type opened struct {
		stream argoapp.ApplicationService_PodLogsClient
		close  func()
	}

	o, err := withRetry(ctx, a.retry, func() (opened, error) {
		c, closeFn, err := a.appClient()
		if err != nil {
			return opened{}, err
		}
		req := &argoapp.ApplicationPodLogsQuery{
			Name:         ptr(q.App.Name),
			AppNamespace: optional(q.App.Namespace),
			Namespace:    ptr(q.Namespace),
			PodName:      ptr(q.Pod),
			Container:    ptr(q.Container),
			Follow:       ptr(q.Follow),
			Previous:     ptr(q.Previous),
			Filter:       optional(q.Filter),
			// the API requires sinceSeconds to be set.
			SinceSeconds: ptr(int64(0)),
		}
		if q.TailLines > 0 {
			req.TailLines = ptr(q.TailLines)
		}
		stream, err := c.PodLogs(ctx, req)
		if err != nil {
			closeFn()
			return opened{}, fmt.Errorf("%s/%s: pod logs %s/%s: %w", a.cluster.ContextName, q.App.Name, q.Pod, q.Container, err)
		}
		return opened{stream: stream, close: closeFn}, nil
	})
	if err != nil {
		return err
	}
	defer o.close()

	for {
		entry, err := o.stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsUnauthorized(err) {
				return fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
			return fmt.Errorf("%s/%s: receive logs: %w", a.cluster.ContextName, q.App.Name, err)
		}
		if entry.GetLast() {
			return nil
		}
		le := models.LogEntry{Content: entry.GetContent(), Pod: entry.GetPodName()}
		if ts, perr := time.Parse(time.RFC3339Nano, entry.GetTimeStampStr()); perr == nil {
			le.Timestamp = ts
		}
		if err := fn(le); err != nil {
			return err
		}
	}
}

func (a *GRPCAPI) clientOptions() *apiclient.ClientOptions {
	return &apiclient.ClientOptions{
		ServerAddr:      a.cluster.Server,
		Insecure:        a.cluster.Insecure,
		AuthToken:       a.cluster.AuthToken,
		GRPCWeb:         a.cluster.GRPCWeb,
		GRPCWebRootPath: a.cluster.GRPCWebRootPath,
		UserAgent:       buildinfo.UserAgent(),
	}
}

func (a *GRPCAPI) newClient() (apiclient.Client, error) {
	ac, err := apiclient.NewClient(a.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("%s: create argocd client: %w", a.cluster.ContextName, err)
	}
	return ac, nil
}

func (a *GRPCAPI) appClient() (argoapp.ApplicationServiceClient, func(), error) {
	ac, err := a.newClient()
	if err != nil {
		return nil, func() {}, err
	}

	closer, c, err := ac.NewApplicationClient()
	if err != nil {
		return nil, func() {}, fmt.Errorf("%s: create application client: %w", a.cluster.ContextName, err)
	}
	return c, func() { _ = closer.Close() }, nil
}

func (a *GRPCAPI) appSetClient() (argoappset.ApplicationSetServiceClient, func(), error) {
	ac, err := a.newClient()
	if err != nil {
		return nil, func() {}, err
	}

	closer, c, err := ac.NewApplicationSetClient()
	if err != nil {
		return nil, func() {}, fmt.Errorf("%s: create applicationset client: %w", a.cluster.ContextName, err)
	}
	return c, func() { _ = closer.Close() }, nil
}

func ptr[T any](v T) *T { return &v }

// optional returns nil for empty strings so the server applies its own default.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
