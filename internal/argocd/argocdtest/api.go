// Package argocdtest provides a testify mock of argocd.API.
package argocdtest

import (
	"context"

	"github.com/iamhalje/argo-appsets/internal/argocd"
	"github.com/iamhalje/argo-appsets/internal/models"

	"github.com/stretchr/testify/mock"
)

var _ argocd.API = (*MockAPI)(nil)

// MockAPI is a mock implementation of argocd.API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) ListApplicationSets(ctx context.Context) ([]models.ApplicationSet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ApplicationSet), args.Error(1)
}

func (m *MockAPI) GetApplication(ctx context.Context, app models.AppRef, refresh models.RefreshMode) (models.Application, error) {
	args := m.Called(ctx, app, refresh)
	if args.Get(0) == nil {
		return models.Application{}, args.Error(1)
	}
	return args.Get(0).(models.Application), args.Error(1)
}

func (m *MockAPI) GetResourceTree(ctx context.Context, app models.AppRef) (*models.ResourceTree, error) {
	args := m.Called(ctx, app)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResourceTree), args.Error(1)
}

func (m *MockAPI) SyncApplication(ctx context.Context, app models.AppRef, opts models.SyncOptions) error {
	return m.Called(ctx, app, opts).Error(0)
}

func (m *MockAPI) Rollback(ctx context.Context, app models.AppRef, id int64) error {
	return m.Called(ctx, app, id).Error(0)
}

func (m *MockAPI) RunResourceAction(ctx context.Context, app models.AppRef, target models.ResourceRef, action string) error {
	return m.Called(ctx, app, target, action).Error(0)
}

// StreamLogs replays the []models.LogEntry given as first return value, then returns the second.
func (m *MockAPI) StreamLogs(ctx context.Context, q models.LogQuery, fn func(models.LogEntry) error) error {
	args := m.Called(ctx, q)
	if entries, ok := args.Get(0).([]models.LogEntry); ok {
		for _, e := range entries {
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}
