package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/metrics"
	"github.com/iamhalje/argo-appsets/internal/models"

	"golang.org/x/sync/errgroup"
)

// DefaultParallel bounds in-flight calls of one bulk operation.
const DefaultParallel = 20

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrNoRollout           = errors.New("no rollout resource found")
	ErrMultipleRollouts    = errors.New("multiple rollout resources found")
	ErrNoRestartTarget     = errors.New("no rollout or deployment resource found")
	ErrNoHistoryEntry      = errors.New("no matching history entry")
)

// Operation is applied to every target of a bulk run.
type Operation interface {
	Name() string
	// RequiresConfirmation gates the whole batch behind one confirmation.
	RequiresConfirmation() bool
	Prompt(targets int) string
	Apply(ctx context.Context, api argocd.API, app models.Application) error
}

// SyncOperation syncs every target with the same options.
type SyncOperation struct {
	Options models.SyncOptions
}

func (o SyncOperation) Name() string               { return "sync" }
func (o SyncOperation) RequiresConfirmation() bool { return false }

func (o SyncOperation) Prompt(n int) string {
	return fmt.Sprintf("Sync %d application(s) to %q?", n, o.Options.Revision)
}

func (o SyncOperation) Apply(ctx context.Context, api argocd.API, app models.Application) error {
	return api.SyncApplication(ctx, app.Key.Ref(), o.Options)
}

// RolloutOperation runs an argo-rollouts resource action on the single rollout of a target.
type RolloutOperation struct {
	Action string
}

func (o RolloutOperation) Name() string               { return "rollout-" + o.Action }
func (o RolloutOperation) RequiresConfirmation() bool { return false }

func (o RolloutOperation) Prompt(n int) string {
	return fmt.Sprintf("Run %q on %d rollout(s)?", o.Action, n)
}

func (o RolloutOperation) Apply(ctx context.Context, api argocd.API, app models.Application) error {
	rollouts := app.Rollouts()
	switch {
	case len(rollouts) == 0:
		return ErrNoRollout
	case len(rollouts) > 1:
		return ErrMultipleRollouts
	}
	return api.RunResourceAction(ctx, app.Key.Ref(), rollouts[0].ResourceRef, o.Action)
}

// RestartOperation restarts the rollout of a target, or its deployment when there is none.
type RestartOperation struct{}

func (RestartOperation) Name() string               { return "restart" }
func (RestartOperation) RequiresConfirmation() bool { return true }

func (RestartOperation) Prompt(n int) string {
	return fmt.Sprintf("Rolling restart %d application(s)?", n)
}

func (RestartOperation) Apply(ctx context.Context, api argocd.API, app models.Application) error {
	target, ok := app.Rollout()
	if !ok {
		target, ok = app.Deployment()
	}
	if !ok {
		return ErrNoRestartTarget
	}
	return api.RunResourceAction(ctx, app.Key.Ref(), target.ResourceRef, models.ActionRestart)
}

// RollbackOperation rolls every target back to the history entry deployed from Revision.
type RollbackOperation struct {
	Revision string
}

func (o RollbackOperation) Name() string               { return "rollback" }
func (o RollbackOperation) RequiresConfirmation() bool { return true }

func (o RollbackOperation) Prompt(n int) string {
	return fmt.Sprintf("Rollback %d application(s) to %s?", n, ShortRevision(o.Revision))
}

func (o RollbackOperation) Apply(ctx context.Context, api argocd.API, app models.Application) error {
	id, ok := app.HistoryID(o.Revision)
	if !ok {
		return fmt.Errorf("%w for revision %q", ErrNoHistoryEntry, ShortRevision(o.Revision))
	}
	return api.Rollback(ctx, app.Key.Ref(), id)
}

// BulkTarget is one selected key and its current snapshot, nil when the last refresh dropped it.
type BulkTarget struct {
	Key      models.ItemKey
	Snapshot *models.ItemSnapshot
}

type BulkService struct {
	api      argocd.API
	parallel int
	logger   *slog.Logger
}

// NewBulkService bounds fan-out by parallel; parallel <= 0 means unbounded.
func NewBulkService(api argocd.API, parallel int, logger *slog.Logger) *BulkService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BulkService{api: api, parallel: parallel, logger: logger}
}

// Run applies op to every target concurrently and waits for all of them.
// It returns one result per target in target order. A failing target never affects its siblings.
func (s *BulkService) Run(ctx context.Context, targets []BulkTarget, op Operation, events chan<- models.ProgressEvent) []models.BulkResult {
	started := time.Now()
	total := len(targets)
	results := make([]models.BulkResult, total)
	var completed atomic.Int32

	emit := func(ev models.ProgressEvent) {
		if events == nil {
			return
		}
		ev.At = time.Now()
		ev.Operation = op.Name()
		ev.Total = total
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	var g errgroup.Group
	if s.parallel > 0 {
		g.SetLimit(s.parallel)
	}

	for i, t := range targets {
		g.Go(func() error {
			emit(models.ProgressEvent{Key: t.Key, Phase: models.TaskRunning, Completed: int(completed.Load())})

			var err error
			if t.Snapshot == nil {
				err = ErrApplicationNotFound
			} else {
				err = op.Apply(ctx, s.api, t.Snapshot.App)
			}

			done := int(completed.Add(1))
			metrics.ObserveBulkTarget(op.Name(), err == nil)
			if err != nil {
				s.logger.Warn("bulk target failed",
					slog.String("operation", op.Name()),
					slog.String("app", t.Key.String()),
					slog.Any("err", err),
				)
				results[i] = models.BulkResult{Key: t.Key, Err: err}
				emit(models.ProgressEvent{Key: t.Key, Phase: models.TaskFailed, Err: err, Completed: done})
				return nil
			}

			results[i] = models.BulkResult{Key: t.Key, Success: true}
			emit(models.ProgressEvent{Key: t.Key, Phase: models.TaskSuccess, Completed: done})
			return nil
		})
	}

	_ = g.Wait()
	metrics.ObserveBulkDuration(op.Name(), time.Since(started))
	return results
}

// SummarizeResults counts successes and keeps the failed results in order.
func SummarizeResults(results []models.BulkResult) models.BulkSummary {
	out := models.BulkSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
			continue
		}
		out.Failed = append(out.Failed, r)
	}
	return out
}
