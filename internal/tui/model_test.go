package tui

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/iamhalje/argo-appsets/internal/argocd/argocdtest"
	"github.com/iamhalje/argo-appsets/internal/models"
	"github.com/iamhalje/argo-appsets/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
)

func testSets() []models.ApplicationSet {
	child := func(name string) models.ResourceStatus {
		return models.ResourceStatus{ResourceRef: models.ResourceRef{Kind: models.KindApplication, Namespace: "argocd", Name: name}}
	}
	return []models.ApplicationSet{
		{Name: "billing", Namespace: "argocd", Resources: []models.ResourceStatus{child("billing-eu")}},
		{Name: "payments", Namespace: "argocd", Resources: []models.ResourceStatus{child("payments-eu"), child("payments-us")}},
	}
}

func newTestModel(t *testing.T, api *argocdtest.MockAPI) (*model, *store.Preferences) {
	t.Helper()
	prefs := store.NewPreferences(store.NewMemory())
	m := newModel(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), api, prefs, Options{Parallel: 2})
	t.Cleanup(m.cancel)
	m.Update(setsLoadedMsg{sets: testSets(), favorites: sets.New[string]()})
	require.Equal(t, stepSets, m.step)
	return m, prefs
}

// openPayments opens the second set and runs the initial visible refresh.
func openPayments(t *testing.T, m *model, api *argocdtest.MockAPI) {
	t.Helper()
	for _, name := range []string{"payments-eu", "payments-us"} {
		api.On("GetApplication", mock.Anything, models.AppRef{Namespace: "argocd", Name: name}, models.RefreshNone).
			Return(models.Application{
				Key:          models.ItemKey{Namespace: "argocd", Name: name},
				HealthStatus: models.HealthHealthy,
				SyncStatus:   models.SyncOutOfSync,
				Labels:       map[string]string{"region": name[len(name)-2:]},
			}, nil)
	}
	m.Update(runes("j"))
	_, cmd := m.Update(keyEnter)
	require.Equal(t, stepSet, m.step)
	require.NotNil(t, cmd)
	m.Update(cmd())
	require.False(t, m.refreshing)
	require.Len(t, m.sess.Snapshots(), 2)
}

func TestSetsScreenFavorites(t *testing.T) {
	m, prefs := newTestModel(t, new(argocdtest.MockAPI))

	m.Update(runes("f"))
	favs, err := prefs.Favorites(context.Background())
	require.NoError(t, err)
	assert.True(t, favs.Has("billing"))

	m.Update(runes("F"))
	only, err := prefs.ShowFavoritesOnly(context.Background())
	require.NoError(t, err)
	assert.True(t, only)
	require.Len(t, m.visibleSets, 1)
	assert.Equal(t, "billing", m.visibleSets[0].Name)
	assert.Contains(t, m.View(), "[favorites only]")
}

func TestSetsScreenFilter(t *testing.T) {
	m, _ := newTestModel(t, new(argocdtest.MockAPI))

	m.Update(runes("/"))
	require.True(t, m.filtering)
	m.Update(runes("pay"))
	require.Len(t, m.visibleSets, 1)
	assert.Equal(t, "payments", m.visibleSets[0].Name)

	m.Update(keyEsc)
	assert.False(t, m.filtering)
	assert.Len(t, m.visibleSets, 2)
}

func TestSetScreenSelection(t *testing.T) {
	api := new(argocdtest.MockAPI)
	m, _ := newTestModel(t, api)
	openPayments(t, m, api)

	m.Update(keySpace)
	assert.Len(t, m.sess.Selected(), 1)
	m.Update(runes("a"))
	assert.Len(t, m.sess.Selected(), 2)
	m.Update(runes("n"))
	assert.Empty(t, m.sess.Selected())
	m.Update(runes("o"))
	assert.Len(t, m.sess.Selected(), 2)

	m.Update(runes("n"))
	m.Update(runes("l"))
	require.Equal(t, stepLabels, m.step)
	require.Len(t, m.labelChoices, 2)
	m.Update(keyEnter)
	assert.Equal(t, stepSet, m.step)
	assert.Equal(t, []models.ItemKey{{Namespace: "argocd", Name: "payments-eu"}}, m.sess.Selected())
}

func TestConfirmDeclineCallsNothing(t *testing.T) {
	api := new(argocdtest.MockAPI)
	m, _ := newTestModel(t, api)
	openPayments(t, m, api)

	m.Update(runes("a"))
	m.Update(runes("X"))
	require.Equal(t, stepConfirm, m.step)
	assert.Contains(t, m.View(), "Rolling restart 2 application(s)?")

	m.Update(runes("n"))
	assert.Equal(t, stepSet, m.step)
	assert.Nil(t, m.pending)
	assert.Len(t, m.sess.Selected(), 2)
	api.AssertNotCalled(t, "RunResourceAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkWithoutSelectionNotifies(t *testing.T) {
	api := new(argocdtest.MockAPI)
	m, _ := newTestModel(t, api)
	openPayments(t, m, api)

	m.Update(runes("R"))
	assert.Equal(t, stepSet, m.step)
	notes := m.sess.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "no applications selected", notes[0].Message)
}

func TestSyncDialog(t *testing.T) {
	api := new(argocdtest.MockAPI)
	m, _ := newTestModel(t, api)
	openPayments(t, m, api)

	m.Update(runes("a"))
	m.Update(runes("s"))
	require.Equal(t, stepSyncOptions, m.step)
	assert.Equal(t, "HEAD", m.revision.Value())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.True(t, m.syncOpts.Prune)
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.True(t, m.syncOpts.DryRun)

	m.Update(keyEsc)
	assert.Equal(t, stepSet, m.step)
}

func TestBackToSetsKeepsCursor(t *testing.T) {
	api := new(argocdtest.MockAPI)
	api.On("ListApplicationSets", mock.Anything).Return(testSets(), nil).Maybe()
	m, _ := newTestModel(t, api)
	openPayments(t, m, api)

	m.Update(runes("j"))
	m.Update(runes("b"))
	require.Equal(t, stepRollback, m.step)
	m.Update(keyEsc)
	assert.Equal(t, stepSet, m.step)
	assert.Equal(t, 1, m.cursor)

	m.Update(keyEsc)
	assert.Equal(t, stepSets, m.step)
}
