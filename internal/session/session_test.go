package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/argocd/argocdtest"
	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls []services.PollMode
}

func (r *countingRefresher) Refresh(_ context.Context, mode services.PollMode, _ models.RefreshMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, mode)
	return nil
}

func appSet(names ...string) models.ApplicationSet {
	set := models.ApplicationSet{Name: "payments", Namespace: "argocd"}
	for _, n := range names {
		set.Resources = append(set.Resources, models.ResourceStatus{
			ResourceRef: models.ResourceRef{Kind: models.KindApplication, Namespace: "argocd", Name: n},
		})
	}
	return set
}

func itemKey(name string) models.ItemKey {
	return models.ItemKey{Namespace: "argocd", Name: name}
}

func snapshotsOf(names ...string) map[models.ItemKey]models.ItemSnapshot {
	out := map[models.ItemKey]models.ItemSnapshot{}
	for _, n := range names {
		out[itemKey(n)] = models.ItemSnapshot{App: models.Application{
			Key:          itemKey(n),
			HealthStatus: models.HealthHealthy,
			SyncStatus:   models.SyncOutOfSync,
		}}
	}
	return out
}

func newTestSession(t *testing.T, api argocd.API, names ...string) (*Session, *countingRefresher, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &countingRefresher{}
	s := New(Config{API: api, Parallel: 3, Refresher: r, Now: func() time.Time { return now }})
	s.SetParent(appSet(names...))
	s.ReplaceSnapshots(snapshotsOf(names...))
	return s, r, &now
}

func TestRunBulkPartialFailure(t *testing.T) {
	api := new(argocdtest.MockAPI)
	names := []string{"a1", "a2", "a3", "a4", "a5"}
	for _, n := range names {
		var err error
		if n == "a3" {
			err = errors.New("boom")
		}
		api.On("SyncApplication", mock.Anything, itemKey(n).Ref(), mock.Anything).Return(err).Once()
	}

	s, r, _ := newTestSession(t, api, names...)
	s.SelectAll()

	summary, err := s.RunBulk(context.Background(), services.SyncOperation{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.SuccessCount)
	assert.Equal(t, []string{"a3"}, summary.FailedNames())

	assert.Len(t, s.Selected(), 5)
	assert.Empty(t, r.calls)

	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Successfully triggered sync for 4 applications. Failed: a3", notes[0].Message)
	assert.Equal(t, models.NotifyError, notes[0].Kind)
	assert.True(t, notes[0].Sticky)
	api.AssertExpectations(t)
}

func TestRunBulkFullSuccess(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("SyncApplication", mock.Anything, mock.Anything, mock.Anything).Return(nil).Times(5)

	s, r, _ := newTestSession(t, api, "a1", "a2", "a3", "a4", "a5")
	s.SelectAll()

	summary, err := s.RunBulk(context.Background(), services.SyncOperation{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.SuccessCount)
	assert.Empty(t, s.Selected())
	assert.Equal(t, []services.PollMode{services.PollSilent}, r.calls)

	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Successfully triggered sync for 5 applications", notes[0].Message)
	assert.False(t, notes[0].Sticky)
	api.AssertExpectations(t)
}

func TestRunBulkMissingSnapshot(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("SyncApplication", mock.Anything, itemKey("a").Ref(), mock.Anything).Return(nil).Once()

	s, _, _ := newTestSession(t, api, "a", "b")
	s.Toggle(itemKey("a"))
	s.Toggle(itemKey("b"))

	// b fails to refresh and drops out of the item map.
	s.ReplaceSnapshots(snapshotsOf("a"))
	assert.True(t, s.IsSelected(itemKey("b")))

	summary, err := s.RunBulk(context.Background(), services.SyncOperation{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, itemKey("b"), summary.Failed[0].Key)
	assert.ErrorIs(t, summary.Failed[0].Err, services.ErrApplicationNotFound)
	assert.Len(t, s.Selected(), 2)
}

func TestRunBulkConfirmation(t *testing.T) {
	api := new(argocdtest.MockAPI)
	s, _, _ := newTestSession(t, api, "a")
	s.SelectAll()

	var prompt string
	_, err := s.RunBulk(context.Background(), services.RestartOperation{}, func(p string) bool {
		prompt = p
		return false
	}, nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, "Rolling restart 1 application(s)?", prompt)

	_, err = s.RunBulk(context.Background(), services.RestartOperation{}, nil, nil)
	assert.ErrorIs(t, err, ErrCancelled)
	api.AssertNotCalled(t, "RunResourceAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunBulkNoSelection(t *testing.T) {
	s, _, _ := newTestSession(t, new(argocdtest.MockAPI), "a")
	_, err := s.RunBulk(context.Background(), services.SyncOperation{}, Confirmed, nil)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestRunBulkUnauthorized(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("SyncApplication", mock.Anything, mock.Anything, mock.Anything).
		Return(status.Error(codes.Unauthenticated, "expired"))

	var hooked error
	s := New(Config{API: api, Refresher: &countingRefresher{}, OnUnauthorized: func(err error) { hooked = err }})
	s.SetParent(appSet("a"))
	s.ReplaceSnapshots(snapshotsOf("a"))
	s.SelectAll()

	_, err := s.RunBulk(context.Background(), services.SyncOperation{}, Confirmed, nil)
	assert.ErrorIs(t, err, argocd.ErrUnauthorized)
	assert.Error(t, hooked)
	assert.Empty(t, s.Notifications())
}

func TestNotificationsExpire(t *testing.T) {
	s, _, now := newTestSession(t, new(argocdtest.MockAPI))
	s.Notify("done", models.NotifySuccess, false)
	s.Notify("failed", models.NotifyError, true)
	require.Len(t, s.Notifications(), 2)

	*now = now.Add(NotificationTTL)
	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "failed", notes[0].Message)

	s.DismissNotifications()
	assert.Empty(t, s.Notifications())
}

func TestFetchFailedNotifies(t *testing.T) {
	s, _, _ := newTestSession(t, new(argocdtest.MockAPI))
	s.FetchFailed(itemKey("web"), errors.New("not found"))

	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to refresh application web: not found", notes[0].Message)
	assert.False(t, notes[0].Sticky)
}

func TestSetParentDropsUntrackedSnapshots(t *testing.T) {
	s, _, _ := newTestSession(t, new(argocdtest.MockAPI), "a", "b")
	s.Toggle(itemKey("b"))

	s.SetParent(appSet("a"))
	assert.Equal(t, []models.ItemKey{itemKey("a")}, s.TrackedKeys())
	_, ok := s.Snapshot(itemKey("b"))
	assert.False(t, ok)
	assert.True(t, s.IsSelected(itemKey("b")))
}

func TestSessionRefreshThroughPoller(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("GetApplication", mock.Anything, itemKey("a").Ref(), models.RefreshNone).
		Return(models.Application{Key: itemKey("a"), HealthStatus: models.HealthDegraded, SyncStatus: models.SyncSynced}, nil)

	s := New(Config{API: api})
	s.SetParent(appSet("a"))
	require.NoError(t, s.Refresh(context.Background(), services.PollVisible, models.RefreshNone))

	assert.Len(t, s.Apps(), 1)
	assert.Equal(t, services.TileDegraded, s.Summary().Tile)
}

func TestWatchRefreshesUntilCancelled(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("GetApplication", mock.Anything, itemKey("a").Ref(), models.RefreshNone).
		Return(models.Application{Key: itemKey("a"), HealthStatus: models.HealthHealthy, SyncStatus: models.SyncSynced}, nil)

	s := New(Config{API: api})
	s.SetParent(appSet("a"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rounds := 0
	require.NoError(t, s.Watch(ctx, time.Millisecond, func() {
		rounds++
		assert.Len(t, s.Apps(), 1)
		if rounds == 2 {
			cancel()
		}
	}))
	assert.Equal(t, 2, rounds)
}

func TestWatchUnauthorized(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("GetApplication", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, status.Error(codes.Unauthenticated, "expired"))

	var hooked error
	s := New(Config{API: api, OnUnauthorized: func(err error) { hooked = err }})
	s.SetParent(appSet("a"))

	err := s.Watch(context.Background(), time.Hour, nil)
	assert.ErrorIs(t, err, argocd.ErrUnauthorized)
	assert.Error(t, hooked)
}
