package services

import (
	"context"
	"errors"
	"testing"

	"github.com/iamhalje/argo-appsets/internal/argocd/argocdtest"
	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func targetsOf(apps ...models.Application) []BulkTarget {
	out := make([]BulkTarget, 0, len(apps))
	for _, a := range apps {
		snap := models.ItemSnapshot{App: a}
		out = append(out, BulkTarget{Key: a.Key, Snapshot: &snap})
	}
	return out
}

func TestBulkRunPartialFailure(t *testing.T) {
	api := new(argocdtest.MockAPI)
	opts := models.SyncOptions{Revision: "main"}
	names := []string{"a1", "a2", "a3", "a4", "a5"}
	for _, n := range names {
		var err error
		if n == "a3" {
			err = errors.New("boom")
		}
		api.On("SyncApplication", mock.Anything, key(n).Ref(), opts).Return(err).Once()
	}

	apps := make([]models.Application, 0, len(names))
	for _, n := range names {
		apps = append(apps, app(n))
	}

	results := NewBulkService(api, 2, nil).Run(context.Background(), targetsOf(apps...), SyncOperation{Options: opts}, nil)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, key(names[i]), r.Key)
	}

	summary := SummarizeResults(results)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.SuccessCount)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, []string{"a3"}, summary.FailedNames())
	assert.EqualError(t, summary.Failed[0].Err, "boom")
	api.AssertExpectations(t)
}

func TestBulkRunMissingSnapshot(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("SyncApplication", mock.Anything, key("a").Ref(), mock.Anything).Return(nil).Once()

	targets := append(targetsOf(app("a")), BulkTarget{Key: key("gone")})
	results := NewBulkService(api, 0, nil).Run(context.Background(), targets, SyncOperation{}, nil)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.ErrorIs(t, results[1].Err, ErrApplicationNotFound)
	api.AssertExpectations(t)
}

func TestBulkRunEmitsProgress(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("SyncApplication", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	events := make(chan models.ProgressEvent, 16)
	NewBulkService(api, DefaultParallel, nil).Run(context.Background(), targetsOf(app("a"), app("b")), SyncOperation{}, events)
	close(events)

	var finished []models.ProgressEvent
	for ev := range events {
		assert.Equal(t, "sync", ev.Operation)
		assert.Equal(t, 2, ev.Total)
		if ev.Phase == models.TaskSuccess {
			finished = append(finished, ev)
		}
	}
	require.Len(t, finished, 2)
	assert.ElementsMatch(t, []int{1, 2}, []int{finished[0].Completed, finished[1].Completed})
}

func TestRolloutOperation(t *testing.T) {
	ctx := context.Background()
	api := new(argocdtest.MockAPI)
	withRollout := app("a", rolloutRes("web", models.HealthSuspended))
	api.On("RunResourceAction", mock.Anything, withRollout.Key.Ref(), withRollout.Resources[0].ResourceRef, models.ActionResume).Return(nil).Once()

	op := RolloutOperation{Action: models.ActionResume}
	assert.Equal(t, "rollout-resume", op.Name())
	assert.False(t, op.RequiresConfirmation())
	require.NoError(t, op.Apply(ctx, api, withRollout))

	assert.ErrorIs(t, op.Apply(ctx, api, app("b", deploymentRes("b"))), ErrNoRollout)
	assert.ErrorIs(t, op.Apply(ctx, api, app("c", rolloutRes("x", models.HealthHealthy), rolloutRes("y", models.HealthHealthy))), ErrMultipleRollouts)
	api.AssertExpectations(t)
}

func TestRestartOperation(t *testing.T) {
	ctx := context.Background()
	api := new(argocdtest.MockAPI)
	rollout := rolloutRes("web", models.HealthHealthy)
	deploy := deploymentRes("api")
	api.On("RunResourceAction", mock.Anything, key("r").Ref(), rollout.ResourceRef, models.ActionRestart).Return(nil).Once()
	api.On("RunResourceAction", mock.Anything, key("d").Ref(), deploy.ResourceRef, models.ActionRestart).Return(nil).Once()

	op := RestartOperation{}
	assert.True(t, op.RequiresConfirmation())
	require.NoError(t, op.Apply(ctx, api, app("r", deploy, rollout)))
	require.NoError(t, op.Apply(ctx, api, app("d", deploy)))
	assert.ErrorIs(t, op.Apply(ctx, api, app("none")), ErrNoRestartTarget)
	api.AssertExpectations(t)
}

func TestRollbackOperation(t *testing.T) {
	ctx := context.Background()
	api := new(argocdtest.MockAPI)
	a := app("a")
	a.History = []models.RevisionHistory{{ID: 3, Revision: "abc"}, {ID: 4, Revision: "def"}}
	api.On("Rollback", mock.Anything, a.Key.Ref(), int64(3)).Return(nil).Once()

	op := RollbackOperation{Revision: "abc"}
	assert.True(t, op.RequiresConfirmation())
	require.NoError(t, op.Apply(ctx, api, a))

	err := RollbackOperation{Revision: "zzz"}.Apply(ctx, api, a)
	assert.ErrorIs(t, err, ErrNoHistoryEntry)
	api.AssertExpectations(t)
}
